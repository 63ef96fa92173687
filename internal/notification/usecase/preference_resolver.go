package usecase

import (
	"context"

	"ipo-reminder-backend/internal/notification/domain"
	"ipo-reminder-backend/internal/notification/repository"
)

// PreferenceResolver computes the notification rules that apply to a token
type PreferenceResolver struct {
	tokenRepo repository.FCMTokenRepository
	prefRepo  repository.PreferenceRepository
}

func NewPreferenceResolver(tokenRepo repository.FCMTokenRepository, prefRepo repository.PreferenceRepository) *PreferenceResolver {
	return &PreferenceResolver{
		tokenRepo: tokenRepo,
		prefRepo:  prefRepo,
	}
}

// Resolve returns the effective preference of a token, or domain.ErrNotFound
// if the token does not exist
func (r *PreferenceResolver) Resolve(ctx context.Context, tokenID uint) (domain.EffectivePreference, error) {
	if _, err := r.tokenRepo.FindTokenByID(ctx, tokenID); err != nil {
		return domain.EffectivePreference{}, err
	}
	rows, err := r.prefRepo.ListPreferences(ctx, tokenID)
	if err != nil {
		return domain.EffectivePreference{}, err
	}
	return ResolvePreference(rows), nil
}

// ResolvePreference picks the first (newest) row, or the defaults when there
// is none. A stored time that no longer parses falls back to the default time.
func ResolvePreference(rows []domain.Preference) domain.EffectivePreference {
	if len(rows) == 0 {
		return domain.DefaultEffectivePreference()
	}
	row := rows[0]

	tod, err := domain.ParseTimeOfDay(row.NotificationTime)
	if err != nil {
		tod = domain.DefaultEffectivePreference().Time
	}
	days := row.NotificationDaysBefore
	if days < 0 {
		days = 0
	}
	return domain.EffectivePreference{
		DaysBefore:      days,
		Time:            tod,
		NotifyOnOpening: row.NotifyOnOpening,
		NotifyDayBefore: row.NotifyDayBefore,
	}
}
