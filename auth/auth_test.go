package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"borrowbuddy/db"
	"borrowbuddy/models"
	"borrowbuddy/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var errDup = errors.New("duplicate email")

type memUsers struct {
	mu   sync.Mutex
	next uint
	byEm map[string]*models.User
}

func newMemUsers() *memUsers { return &memUsers{byEm: map[string]*models.User{}} }

func (m *memUsers) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := strings.ToLower(u.Email)
	if _, ok := m.byEm[k]; ok {
		return errDup
	}
	m.next++
	u.ID = m.next
	m.byEm[k] = u
	return nil
}

func (m *memUsers) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byEm[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, db.ErrNotFound
	}
	return u, nil
}

func newProvider(t *testing.T, ttl time.Duration) (*Provider, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewProvider(NewJWTManager("test-secret", ttl), session.NewAppSessionStore(rdb, ttl)), mr
}

func TestPasswordAuthenticator_RegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	a := NewPasswordAuthenticator(newMemUsers()).WithCost(bcrypt.MinCost)

	u, err := a.Register(ctx, "sam", "sam@example.com", "correct horse")
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.NotEqual(t, "correct horse", u.PasswordHash)

	got, err := a.Authenticate(ctx, "sam@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = a.Authenticate(ctx, "sam@example.com", "wrong horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = a.Authenticate(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = a.Register(ctx, "sam2", "sam@example.com", "another pass")
	assert.ErrorIs(t, err, errDup)
}

func TestPasswordAuthenticator_Validation(t *testing.T) {
	ctx := context.Background()
	a := NewPasswordAuthenticator(newMemUsers()).WithCost(bcrypt.MinCost)

	_, err := a.Register(ctx, "sam", "sam@example.com", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)
	_, err = a.Register(ctx, " ", "sam@example.com", "long enough")
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestPasswordAuthenticator_PasskeyOnlyUserCannotUsePassword(t *testing.T) {
	ctx := context.Background()
	users := newMemUsers()
	require.NoError(t, users.CreateUser(ctx, &models.User{Username: "pk", Email: "pk@example.com"}))
	a := NewPasswordAuthenticator(users)

	_, err := a.Authenticate(ctx, "pk@example.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestProvider_IssueVerifyRevoke(t *testing.T) {
	ctx := context.Background()
	p, _ := newProvider(t, time.Hour)

	tok, err := p.Issue(ctx, 9)
	require.NoError(t, err)

	uid, err := p.VerifyCaller(ctx, tok)
	require.NoError(t, err)
	assert.EqualValues(t, 9, uid)

	uid, err = p.VerifyCaller(ctx, "Bearer "+tok)
	require.NoError(t, err)
	assert.EqualValues(t, 9, uid)

	require.NoError(t, p.Revoke(ctx, tok))
	_, err = p.VerifyCaller(ctx, tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestProvider_RevokeAll(t *testing.T) {
	ctx := context.Background()
	p, _ := newProvider(t, time.Hour)

	t1, err := p.Issue(ctx, 4)
	require.NoError(t, err)
	t2, err := p.Issue(ctx, 4)
	require.NoError(t, err)
	other, err := p.Issue(ctx, 5)
	require.NoError(t, err)

	require.NoError(t, p.RevokeAll(ctx, 4))
	for _, tok := range []string{t1, t2} {
		_, err := p.VerifyCaller(ctx, tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
	uid, err := p.VerifyCaller(ctx, other)
	require.NoError(t, err)
	assert.EqualValues(t, 5, uid)
}

func TestProvider_RejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	p, mr := newProvider(t, time.Hour)

	_, err := p.VerifyCaller(ctx, "")
	assert.ErrorIs(t, err, ErrMissingToken)
	_, err = p.VerifyCaller(ctx, "Bearer not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// 其他密钥签出的 token
	foreign, err := NewJWTManager("other-secret", time.Hour).Generate(9, "sid")
	require.NoError(t, err)
	_, err = p.VerifyCaller(ctx, foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// 签名有效但会话不存在
	orphan, err := p.jwt.Generate(9, "never-created")
	require.NoError(t, err)
	_, err = p.VerifyCaller(ctx, orphan)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// 会话过期
	tok, err := p.Issue(ctx, 9)
	require.NoError(t, err)
	mr.FastForward(2 * time.Hour)
	_, err = p.VerifyCaller(ctx, tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_Expired(t *testing.T) {
	m := NewJWTManager("k", -time.Minute)
	tok, err := m.Generate(1, "sid")
	require.NoError(t, err)
	_, err = m.Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

type downUsers struct{ memUsers }

func (*downUsers) FindUserByEmail(context.Context, string) (*models.User, error) {
	return nil, &db.StoreError{Op: "find user", Err: errors.New("connection refused")}
}

func TestPasswordAuthenticator_StoreFailureIsNotInvalidCredentials(t *testing.T) {
	a := NewPasswordAuthenticator(&downUsers{})

	_, err := a.Authenticate(context.Background(), "sam@example.com", "correct horse")
	assert.ErrorIs(t, err, db.ErrStoreFailure)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestPasswordAuthenticator_RejectsOverlongPassword(t *testing.T) {
	a := NewPasswordAuthenticator(newMemUsers()).WithCost(bcrypt.MinCost)

	_, err := a.Register(context.Background(), "sam", "sam@example.com", strings.Repeat("p", 80))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
	assert.NoError(t, a.ValidateCredential(strings.Repeat("p", 72)))
}
