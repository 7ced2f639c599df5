package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"borrowbuddy/session"

	"github.com/google/uuid"
)

// Provider 把 JWT 与 redis 会话绑在一起：token 有效且会话仍在才算登录
type Provider struct {
	jwt      *JWTManager
	sessions *session.AppSessionStore
}

func NewProvider(jwt *JWTManager, sessions *session.AppSessionStore) *Provider {
	return &Provider{jwt: jwt, sessions: sessions}
}

// Issue creates a session for userID and returns the bearer token for it.
func (p *Provider) Issue(ctx context.Context, userID uint) (string, error) {
	sid := uuid.NewString()
	if err := p.sessions.Create(ctx, sid, userID); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	tok, err := p.jwt.Generate(userID, sid)
	if err != nil {
		_ = p.sessions.Delete(ctx, sid)
		return "", err
	}
	return tok, nil
}

// VerifyCaller resolves a credential (raw token or "Bearer <token>") to a user id.
func (p *Provider) VerifyCaller(ctx context.Context, credential string) (uint, error) {
	claims, err := p.parse(credential)
	if err != nil {
		return 0, err
	}
	as, err := p.sessions.Get(ctx, claims.ID)
	if errors.Is(err, session.ErrSessionNotFound) {
		return 0, ErrInvalidToken
	}
	if err != nil {
		return 0, fmt.Errorf("load session: %w", err)
	}
	if as.UserID != claims.UserID {
		return 0, ErrInvalidToken
	}
	return claims.UserID, nil
}

// Revoke 删掉 token 对应的会话，之后同一 token 校验失败
func (p *Provider) Revoke(ctx context.Context, credential string) error {
	claims, err := p.parse(credential)
	if err != nil {
		return err
	}
	return p.sessions.Delete(ctx, claims.ID)
}

func (p *Provider) RevokeAll(ctx context.Context, userID uint) error {
	return p.sessions.RevokeAllForUser(ctx, userID)
}

func (p *Provider) parse(credential string) (*Claims, error) {
	tok := strings.TrimSpace(credential)
	if len(tok) > 7 && strings.EqualFold(tok[:7], "bearer ") {
		tok = strings.TrimSpace(tok[7:])
	}
	if tok == "" {
		return nil, ErrMissingToken
	}
	return p.jwt.Validate(tok)
}
