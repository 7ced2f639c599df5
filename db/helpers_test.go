package db

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"borrowbuddy/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

// newTestRepo opens a migrated SQLite database under t.TempDir().
func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	conn, err := Open(Options{
		Driver:   DriverSQLite,
		DSN:      filepath.Join(t.TempDir(), "test.db"),
		LogLevel: logger.Silent,
	})
	require.NoError(t, err, "Open() failed")
	t.Cleanup(func() { _ = Close(conn) })

	r := NewRepo(conn)
	r.Now = newStepClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)).Now
	return r
}

// stepClock advances one second on every call so timestamps are strictly increasing.
type stepClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newStepClock(start time.Time) *stepClock { return &stepClock{cur: start} }

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

func givenUser(t *testing.T, r *Repo, name string) *models.User {
	t.Helper()
	u := &models.User{Username: name, Email: fmt.Sprintf("%s@example.com", name)}
	require.NoError(t, r.CreateUser(context.Background(), u))
	return u
}

func givenItem(t *testing.T, r *Repo, ownerID uint, name string, images ...string) *ItemView {
	t.Helper()
	it, err := r.CreateItem(context.Background(), &models.Item{
		OwnerID:  ownerID,
		Name:     name,
		Category: "tools",
		Price:    5,
	}, images)
	require.NoError(t, err)
	return it
}

func reloadItem(t *testing.T, r *Repo, id uint) models.Item {
	t.Helper()
	var it models.Item
	require.NoError(t, r.DB.First(&it, id).Error)
	return it
}

func countOpenBorrows(t *testing.T, r *Repo, itemID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, r.DB.Model(&models.Borrow{}).
		Where("item_id = ? AND returned_at IS NULL", itemID).
		Count(&n).Error)
	return n
}

// requireConsistent checks available <=> no open borrow for every item.
func requireConsistent(t *testing.T, r *Repo) {
	t.Helper()
	drift, err := r.AuditAvailability(context.Background())
	require.NoError(t, err)
	require.Empty(t, drift, "items with availability out of sync")
}
