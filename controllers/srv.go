// controllers/srv.go
package controllers

import (
	"context"
	"encoding/binary"
	"strconv"

	"borrowbuddy/app"
	"borrowbuddy/auth"
	"borrowbuddy/db"
	"borrowbuddy/models"
	"borrowbuddy/session"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/webauthn"
)

type Srv struct {
	WA        *webauthn.WebAuthn
	Repo      *db.Repo
	Sess      *session.Store
	Identity  *auth.Provider
	Passwords *auth.PasswordAuthenticator
	Metrics   *app.Metrics
}

func GetSrv(a *app.App) *Srv {
	return &Srv{
		WA:        a.WA,
		Repo:      a.Repo,
		Sess:      a.Ceremonies,
		Identity:  a.Identity,
		Passwords: a.Passwords,
		Metrics:   a.Metrics,
	}
}

// --- helpers ---

// 登录成功：记录登录快照 + 签发 token
func (s *Srv) issueToken(ctx context.Context, userID uint) (string, error) {
	_ = s.Repo.TouchUserLogin(ctx, userID) // 不阻塞
	return s.Identity.Issue(ctx, userID)
}

// 路径参数里的正整数 id
func paramID(c *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

// WebAuthn: DB user -> waUser
type waUser struct {
	user  models.User
	creds []webauthn.Credential
}

// WebAuthnID user handle = 8 字节大端 user id
func (u *waUser) WebAuthnID() []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(u.user.ID))
	return b
}
func (u *waUser) WebAuthnName() string                       { return u.user.Email }
func (u *waUser) WebAuthnDisplayName() string                { return u.user.Username }
func (u *waUser) WebAuthnIcon() string                       { return "" }
func (u *waUser) WebAuthnCredentials() []webauthn.Credential { return u.creds }

func userIDFromHandle(h []byte) (uint, bool) {
	if len(h) != 8 {
		return 0, false
	}
	id := binary.BigEndian.Uint64(h)
	return uint(id), id != 0
}

func toWaCred(c models.Credential) webauthn.Credential {
	return webauthn.Credential{
		ID:              c.CredentialID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Authenticator: webauthn.Authenticator{
			AAGUID:       c.AAGUID,
			SignCount:    c.SignCount,
			CloneWarning: c.CloneWarning,
		},
		Flags: webauthn.CredentialFlags{
			BackupEligible: c.BackupEligible,
			BackupState:    c.BackupState,
		},
	}
}

func (s *Srv) loadWAUserByID(ctx context.Context, id uint) (*waUser, error) {
	u, err := s.Repo.FindUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toWAUser(ctx, u)
}

func (s *Srv) loadWAUserByEmail(ctx context.Context, email string) (*waUser, error) {
	u, err := s.Repo.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.toWAUser(ctx, u)
}

func (s *Srv) toWAUser(ctx context.Context, u *models.User) (*waUser, error) {
	cs, err := s.Repo.LoadUserCredentials(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	ws := make([]webauthn.Credential, 0, len(cs))
	for _, c := range cs {
		ws = append(ws, toWaCred(c))
	}
	return &waUser{user: *u, creds: ws}, nil
}
