package repository

import (
	"context"
	"errors"
	"time"

	"ipo-reminder-backend/internal/notification/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// fcmTokenRepository implements FCMTokenRepository interface
type fcmTokenRepository struct {
	db *gorm.DB
}

// NewFCMTokenRepository creates a new instance of fcmTokenRepository
func NewFCMTokenRepository(db *gorm.DB) FCMTokenRepository {
	return &fcmTokenRepository{
		db: db,
	}
}

// SaveToken saves or re-activates an FCM token (atomic upsert)
func (r *fcmTokenRepository) SaveToken(ctx context.Context, token, deviceID, platform string) (*domain.FCMToken, error) {
	now := time.Now().UTC()
	fcmToken := &domain.FCMToken{
		Token:     token,
		DeviceID:  deviceID,
		Platform:  platform,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Atomic upsert: INSERT ... ON CONFLICT (token) DO UPDATE
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"device_id", "platform", "active", "updated_at"}),
	}).Create(fcmToken).Error
	if err != nil {
		return nil, persistence("save token", err)
	}

	// The returned primary key is unreliable on the update branch, read it back
	var saved domain.FCMToken
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&saved).Error; err != nil {
		return nil, persistence("reload token", err)
	}
	return &saved, nil
}

func (r *fcmTokenRepository) FindTokenByID(ctx context.Context, id uint) (*domain.FCMToken, error) {
	var token domain.FCMToken
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, persistence("find token", err)
	}
	return &token, nil
}

func (r *fcmTokenRepository) ListActiveTokensWithPreferences(ctx context.Context) ([]domain.FCMToken, error) {
	var tokens []domain.FCMToken
	err := r.db.WithContext(ctx).
		Preload("Preferences", func(db *gorm.DB) *gorm.DB {
			return db.Order("updated_at DESC, id DESC")
		}).
		Where("active = ?", true).
		Order("id ASC").
		Find(&tokens).Error
	if err != nil {
		return nil, persistence("list active tokens", err)
	}
	return tokens, nil
}

func (r *fcmTokenRepository) UpdateTokenActive(ctx context.Context, id uint, active bool) error {
	res := r.db.WithContext(ctx).Model(&domain.FCMToken{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"active":     active,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return persistence("update token active", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteToken removes a specific FCM token
func (r *fcmTokenRepository) DeleteToken(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&domain.FCMToken{}, "id = ?", id)
	if res.Error != nil {
		return persistence("delete token", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
