package repository

import (
	"context"
	"time"

	"ipo-reminder-backend/internal/notification/domain"
)

// IPORepository defines the interface for IPO data access
type IPORepository interface {
	// SaveIPOs validates and inserts IPO records
	SaveIPOs(ctx context.Context, ipos []*domain.IPO) error

	// FindIPOByID returns domain.ErrNotFound if the IPO does not exist
	FindIPOByID(ctx context.Context, id uint) (*domain.IPO, error)

	// UpdateIPODates corrects the subscription window of an IPO
	UpdateIPODates(ctx context.Context, id uint, start, end time.Time) error

	// DeleteIPO removes an IPO and, by cascade, its log entries
	DeleteIPO(ctx context.Context, id uint) error

	// ListActiveIPOsNotBefore returns IPOs whose end date is at or after floor,
	// ordered by start date then id
	ListActiveIPOsNotBefore(ctx context.Context, endDateFloor time.Time) ([]domain.IPO, error)
}

// FCMTokenRepository defines the interface for FCM token operations
type FCMTokenRepository interface {
	// SaveToken registers a token or re-activates an existing one (atomic upsert)
	SaveToken(ctx context.Context, token, deviceID, platform string) (*domain.FCMToken, error)

	// FindTokenByID returns domain.ErrNotFound if the token does not exist
	FindTokenByID(ctx context.Context, id uint) (*domain.FCMToken, error)

	// ListActiveTokensWithPreferences returns active tokens ordered by id with
	// their preference rows preloaded
	ListActiveTokensWithPreferences(ctx context.Context) ([]domain.FCMToken, error)

	UpdateTokenActive(ctx context.Context, id uint, active bool) error

	// DeleteToken removes a token and, by cascade, its preferences and logs
	DeleteToken(ctx context.Context, id uint) error
}

// PreferenceRepository defines the interface for notification preferences
type PreferenceRepository interface {
	SavePreference(ctx context.Context, pref *domain.Preference) error

	// ListPreferences returns the rows of a token, newest first
	ListPreferences(ctx context.Context, tokenID uint) ([]domain.Preference, error)
}

// NotificationLogRepository defines the interface for the notification ledger
type NotificationLogRepository interface {
	ExistsLogEntry(ctx context.Context, ipoID, tokenID uint, notificationType domain.NotificationType, successOnly bool) (bool, error)

	// InsertLogEntry appends an entry. A second successful entry for the same
	// pair returns domain.ErrConstraintViolation.
	InsertLogEntry(ctx context.Context, entry *domain.NotificationLog) error

	// ListLogEntries returns every entry for the given IPOs
	ListLogEntries(ctx context.Context, ipoIDs []uint) ([]domain.NotificationLog, error)

	// AcquireLease claims the pair for owner. It returns domain.ErrAlreadyHandled
	// when a successful entry exists and domain.ErrLeaseHeld when another owner
	// holds a lease younger than ttl.
	AcquireLease(ctx context.Context, key domain.DispatchKey, owner string, now time.Time, ttl time.Duration) error

	// CompleteDispatch appends the entry and releases owner's lease atomically
	CompleteDispatch(ctx context.Context, entry *domain.NotificationLog, owner string) error

	ReleaseLease(ctx context.Context, key domain.DispatchKey, owner string) error
}

// Gateway is the single persistence boundary of the notification engine
type Gateway interface {
	IPORepository
	FCMTokenRepository
	PreferenceRepository
	NotificationLogRepository

	// ListIPOsNotClosed backs the upcoming IPO status view
	ListIPOsNotClosed(ctx context.Context, now time.Time, limit int) ([]domain.IPO, error)

	// Stats counts notifications in [dayStart, dayEnd) and IPO states at now
	Stats(ctx context.Context, now, dayStart, dayEnd time.Time) (*domain.Stats, error)

	Ping(ctx context.Context) error
}
