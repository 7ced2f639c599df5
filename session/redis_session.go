package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
)

// Store 保存 WebAuthn 仪式（注册/登录）中间态，短 TTL
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store { return &Store{rdb: rdb, ttl: ttl} }

func regKey(uid uint) string    { return fmt.Sprintf("webauthn:reg:%d", uid) }
func authKey(sid string) string { return fmt.Sprintf("webauthn:auth:%s", sid) }

func (s *Store) SaveReg(ctx context.Context, uid uint, sd *webauthn.SessionData) error {
	return s.save(ctx, regKey(uid), sd)
}

func (s *Store) LoadReg(ctx context.Context, uid uint) (*webauthn.SessionData, error) {
	return s.load(ctx, regKey(uid))
}

func (s *Store) DelReg(ctx context.Context, uid uint) { _ = s.rdb.Del(ctx, regKey(uid)).Err() }

func (s *Store) SaveAuth(ctx context.Context, sid string, sd *webauthn.SessionData) error {
	return s.save(ctx, authKey(sid), sd)
}

func (s *Store) LoadAuth(ctx context.Context, sid string) (*webauthn.SessionData, error) {
	return s.load(ctx, authKey(sid))
}

func (s *Store) DelAuth(ctx context.Context, sid string) { _ = s.rdb.Del(ctx, authKey(sid)).Err() }

func (s *Store) save(ctx context.Context, k string, sd *webauthn.SessionData) error {
	b, err := json.Marshal(sd)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, k, b, s.ttl).Err()
}

func (s *Store) load(ctx context.Context, k string) (*webauthn.SessionData, error) {
	b, err := s.rdb.Get(ctx, k).Bytes()
	if err != nil {
		return nil, err
	}
	var sd webauthn.SessionData
	if err := json.Unmarshal(b, &sd); err != nil {
		return nil, err
	}
	return &sd, nil
}
