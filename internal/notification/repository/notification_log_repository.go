package repository

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"ipo-reminder-backend/internal/notification/domain"

	"gorm.io/gorm"
)

type notificationLogRepository struct {
	db *gorm.DB
}

func NewNotificationLogRepository(db *gorm.DB) NotificationLogRepository {
	return &notificationLogRepository{db: db}
}

func pairScope(key domain.DispatchKey) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("ipo_id = ? AND fcm_token_id = ? AND notification_type = ?", key.IPOID, key.FCMTokenID, key.Type)
	}
}

func (r *notificationLogRepository) ExistsLogEntry(ctx context.Context, ipoID, tokenID uint, notificationType domain.NotificationType, successOnly bool) (bool, error) {
	key := domain.DispatchKey{IPOID: ipoID, FCMTokenID: tokenID, Type: notificationType}
	query := r.db.WithContext(ctx).Model(&domain.NotificationLog{}).Scopes(pairScope(key))
	if successOnly {
		query = query.Where("success = ?", true)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, persistence("check log entry", err)
	}
	return count > 0, nil
}

func (r *notificationLogRepository) InsertLogEntry(ctx context.Context, entry *domain.NotificationLog) error {
	return translateLogInsert(r.db.WithContext(ctx).Create(prepareEntry(entry)).Error)
}

func (r *notificationLogRepository) ListLogEntries(ctx context.Context, ipoIDs []uint) ([]domain.NotificationLog, error) {
	if len(ipoIDs) == 0 {
		return nil, nil
	}
	var entries []domain.NotificationLog
	err := r.db.WithContext(ctx).
		Where("ipo_id IN ?", ipoIDs).
		Order("sent_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, persistence("list log entries", err)
	}
	return entries, nil
}

func (r *notificationLogRepository) AcquireLease(ctx context.Context, key domain.DispatchKey, owner string, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Reclaim leases left behind by crashed workers
		if err := tx.Scopes(pairScope(key)).Where("acquired_at < ?", now.Add(-ttl)).
			Delete(&domain.DispatchLease{}).Error; err != nil {
			return err
		}

		// Claim before checking the ledger. While another owner's lease exists
		// the insert fails, and that owner drops its lease in the same commit
		// that writes its success row, so a claim that succeeds always sees
		// the success below.
		if err := tx.Create(&domain.DispatchLease{
			IPOID:            key.IPOID,
			FCMTokenID:       key.FCMTokenID,
			NotificationType: key.Type,
			Owner:            owner,
			AcquiredAt:       now,
		}).Error; err != nil {
			return err
		}

		var delivered int64
		if err := tx.Model(&domain.NotificationLog{}).Scopes(pairScope(key)).
			Where("success = ?", true).Count(&delivered).Error; err != nil {
			return err
		}
		if delivered > 0 {
			return domain.ErrAlreadyHandled
		}
		return nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrAlreadyHandled):
		return err
	case isUniqueViolation(err):
		return domain.ErrLeaseHeld
	default:
		return persistence("acquire lease", err)
	}
}

func (r *notificationLogRepository) CompleteDispatch(ctx context.Context, entry *domain.NotificationLog, owner string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(pairScope(entry.Key())).Where("owner = ?", owner).
			Delete(&domain.DispatchLease{}).Error; err != nil {
			return err
		}
		return tx.Create(prepareEntry(entry)).Error
	})
	if err != nil {
		// The rollback kept the lease, drop it so the pair is not blocked for a full TTL
		if releaseErr := r.ReleaseLease(ctx, entry.Key(), owner); releaseErr != nil {
			return errors.Join(translateLogInsert(err), releaseErr)
		}
		return translateLogInsert(err)
	}
	return nil
}

func (r *notificationLogRepository) ReleaseLease(ctx context.Context, key domain.DispatchKey, owner string) error {
	err := r.db.WithContext(ctx).Scopes(pairScope(key)).Where("owner = ?", owner).
		Delete(&domain.DispatchLease{}).Error
	if err != nil {
		return persistence("release lease", err)
	}
	return nil
}

func prepareEntry(entry *domain.NotificationLog) *domain.NotificationLog {
	if entry.SentAt.IsZero() {
		entry.SentAt = time.Now()
	}
	entry.SentAt = entry.SentAt.UTC()
	entry.ErrorMessage = truncateUTF8(entry.ErrorMessage, domain.MaxErrorMessageLength)
	return entry
}

// truncateUTF8 cuts s to at most n bytes without splitting a character
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func translateLogInsert(err error) error {
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return domain.ErrConstraintViolation
	case isForeignKeyViolation(err):
		return domain.ErrNotFound
	default:
		return persistence("insert log entry", err)
	}
}
