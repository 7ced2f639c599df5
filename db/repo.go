package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"borrowbuddy/models"

	"gorm.io/gorm"
)

type Repo struct {
	DB *gorm.DB
	// 借还时间戳来源，测试里替换成可控时钟
	Now func() time.Time
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{DB: db, Now: func() time.Time { return time.Now().UTC() }}
}

// Users

func (r *Repo) CreateUser(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if err := r.DB.WithContext(ctx).Create(u).Error; err != nil {
		err = classify("create user", err)
		if errors.Is(err, ErrConflict) {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *Repo) TouchUserLogin(ctx context.Context, userID uint) error {
	// 计数用表达式自增，避免并发覆盖
	now := r.Now()
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"last_login_at": now,
			"last_seen_at":  now,
			"login_count":   gorm.Expr("COALESCE(login_count, 0) + 1"),
		}).Error
}

func (r *Repo) TouchUserSeen(ctx context.Context, userID uint) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_seen_at", r.Now()).Error
}

// 按 ID 查
func (r *Repo) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, classify("find user", err)
	}
	return &u, nil
}

func (r *Repo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	email = strings.ToLower(strings.TrimSpace(email))
	if err := r.DB.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, classify("find user", err)
	}
	return &u, nil
}

// Ping 用于 healthz
func (r *Repo) Ping(ctx context.Context) error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
