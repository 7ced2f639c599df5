package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"borrowbuddy/auth"
	"borrowbuddy/db"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIdentity struct {
	uid uint
	err error
	got string
}

func (f *fakeIdentity) VerifyCaller(_ context.Context, credential string) (uint, error) {
	f.got = credential
	return f.uid, f.err
}

func serve(h gin.HandlerFunc, header string) (*httptest.ResponseRecorder, uint) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var seen uint
	r.GET("/x", h, func(c *gin.Context) {
		seen, _ = UserID(c)
		c.Status(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w, seen
}

func TestAuthRequired(t *testing.T) {
	ok := &fakeIdentity{uid: 9}
	w, uid := serve(AuthRequired(ok), "Bearer abc")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.EqualValues(t, 9, uid)
	assert.Equal(t, "Bearer abc", ok.got)

	w, _ = serve(AuthRequired(&fakeIdentity{err: auth.ErrMissingToken}), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = serve(AuthRequired(&fakeIdentity{err: fmt.Errorf("%w: expired", auth.ErrInvalidToken)}), "Bearer old")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = serve(AuthRequired(&fakeIdentity{err: errors.New("redis down")}), "Bearer abc")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	w, _ := serve(RequestLogger(), "")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "not_found", Outcome(db.ErrNotFound))
	assert.Equal(t, "conflict", Outcome(db.ErrAlreadyBorrowed))
	assert.Equal(t, "unauthorized", Outcome(db.ErrUnauthorized))
	assert.Equal(t, "error", Outcome(&db.StoreError{Op: "x", Err: errors.New("boom")}))
}

func TestMetrics_ObserveLedger(t *testing.T) {
	m := NewMetrics()
	m.ObserveLedger("borrow", nil)
	m.ObserveLedger("borrow", db.ErrAlreadyBorrowed)
	m.ObserveLedger("borrow", db.ErrAlreadyBorrowed)
	m.ObserveLedger("return", db.ErrNotFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerCount("borrow", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LedgerCount("borrow", "conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerCount("return", "not_found")))
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/bb.db")
	t.Setenv("SESSION_TTL_SECONDS", "600")
	t.Setenv("WEB_ORIGIN", "https://app.example.com")
	t.Setenv("RP_ORIGINS", "")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg := LoadConfig()
	assert.Equal(t, db.DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "/tmp/bb.db", cfg.DatabaseURL)
	assert.Equal(t, 10*time.Minute, cfg.SessionTTL)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.RPOrigins)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
}

func TestLoadConfig_PostgresDSNFromParts(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "pg")
	t.Setenv("DB_NAME", "lend")

	cfg := LoadConfig()
	require.Equal(t, db.DriverPostgres, cfg.DBDriver)
	assert.Contains(t, cfg.DatabaseURL, "host=pg")
	assert.Contains(t, cfg.DatabaseURL, "dbname=lend")
}
