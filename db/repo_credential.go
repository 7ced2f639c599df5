package db

import (
	"context"

	"borrowbuddy/models"
)

// Credentials

func (r *Repo) AddCredential(ctx context.Context, c *models.Credential) error {
	return classify("add credential", r.DB.WithContext(ctx).Create(c).Error)
}

func (r *Repo) LoadUserCredentials(ctx context.Context, userID uint) ([]models.Credential, error) {
	var cs []models.Credential
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Find(&cs).Error; err != nil {
		return nil, classify("load credentials", err)
	}
	return cs, nil
}

func (r *Repo) CountCredentials(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Credential{}).
		Where("user_id = ?", userID).
		Count(&n).Error
	return n, classify("count credentials", err)
}

// 登录成功后更新计数器与最近使用时间
func (r *Repo) UpdateCredentialCounter(ctx context.Context, credID []byte, newCount uint32, cloneWarn bool) error {
	return classify("update credential", r.DB.WithContext(ctx).Model(&models.Credential{}).
		Where("credential_id = ?", credID).
		Updates(map[string]any{
			"sign_count":    newCount,
			"clone_warning": cloneWarn,
			"last_used_at":  r.Now(),
		}).Error)
}

func (r *Repo) FindUserByCredentialID(ctx context.Context, credID []byte) (*models.User, *models.Credential, error) {
	var c models.Credential
	if err := r.DB.WithContext(ctx).Where("credential_id = ?", credID).First(&c).Error; err != nil {
		return nil, nil, classify("find credential", err)
	}
	u, err := r.FindUserByID(ctx, c.UserID)
	if err != nil {
		return nil, nil, err
	}
	return u, &c, nil
}
