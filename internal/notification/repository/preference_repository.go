package repository

import (
	"context"
	"time"

	"ipo-reminder-backend/internal/notification/domain"

	"gorm.io/gorm"
)

type preferenceRepository struct {
	db *gorm.DB
}

func NewPreferenceRepository(db *gorm.DB) PreferenceRepository {
	return &preferenceRepository{db: db}
}

// SavePreference inserts a new row or updates pref by its ID
func (r *preferenceRepository) SavePreference(ctx context.Context, pref *domain.Preference) error {
	if err := pref.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if pref.ID == 0 {
		pref.CreatedAt = now
	}
	pref.UpdatedAt = now

	tx := r.db.WithContext(ctx)
	if pref.ID != 0 {
		tx = tx.Omit("created_at")
	}
	err := tx.Save(pref).Error
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrNotFound
		}
		return persistence("save preference", err)
	}
	return nil
}

func (r *preferenceRepository) ListPreferences(ctx context.Context, tokenID uint) ([]domain.Preference, error) {
	var prefs []domain.Preference
	err := r.db.WithContext(ctx).
		Where("fcm_token_id = ?", tokenID).
		Order("updated_at DESC, id DESC").
		Find(&prefs).Error
	if err != nil {
		return nil, persistence("list preferences", err)
	}
	return prefs, nil
}
