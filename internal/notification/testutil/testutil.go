// Package testutil provides database fixtures and fakes for notification tests
package testutil

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ipo-reminder-backend/internal/notification/domain"
	"ipo-reminder-backend/pkg/database"
	"ipo-reminder-backend/pkg/fcm"

	"gorm.io/gorm"
)

// SetupTestDB opens a migrated SQLite database in a temp directory
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.NewSQLiteConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// MustTime parses an RFC3339 timestamp
func MustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("bad timestamp %q: %v", value, err)
	}
	return ts
}

func CreateIPO(t *testing.T, db *gorm.DB, company string, start, end time.Time) domain.IPO {
	t.Helper()
	ipo := domain.IPO{Company: company, StartDate: start.UTC(), EndDate: end.UTC()}
	if err := db.Create(&ipo).Error; err != nil {
		t.Fatalf("failed to create ipo: %v", err)
	}
	return ipo
}

func CreateToken(t *testing.T, db *gorm.DB, token string, active bool) domain.FCMToken {
	t.Helper()
	row := domain.FCMToken{Token: token, Platform: "android", Active: active}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("failed to create token: %v", err)
	}
	return row
}

func CreatePreference(t *testing.T, db *gorm.DB, pref domain.Preference) domain.Preference {
	t.Helper()
	if err := db.Create(&pref).Error; err != nil {
		t.Fatalf("failed to create preference: %v", err)
	}
	return pref
}

func CreateLog(t *testing.T, db *gorm.DB, entry domain.NotificationLog) domain.NotificationLog {
	t.Helper()
	if err := db.Create(&entry).Error; err != nil {
		t.Fatalf("failed to create log entry: %v", err)
	}
	return entry
}

// CountLogs counts ledger rows for a pair, optionally only successful ones
func CountLogs(t *testing.T, db *gorm.DB, key domain.DispatchKey, successOnly bool) int64 {
	t.Helper()
	query := db.Model(&domain.NotificationLog{}).
		Where("ipo_id = ? AND fcm_token_id = ? AND notification_type = ?", key.IPOID, key.FCMTokenID, key.Type)
	if successOnly {
		query = query.Where("success = ?", true)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		t.Fatalf("failed to count logs: %v", err)
	}
	return count
}

// SentMessage records one call to FakeSender
type SentMessage struct {
	Token        string
	Notification fcm.NotificationData
}

// FakeSender is an in-memory delivery API
type FakeSender struct {
	mu   sync.Mutex
	sent []SentMessage

	// Errors maps a device token to the error returned for it
	Errors map[string]error
	// Block, when set, makes Send wait until it is closed or ctx is done
	Block chan struct{}
	// Started receives a value every time Send is entered
	Started chan struct{}
}

func NewFakeSender() *FakeSender {
	return &FakeSender{Errors: map[string]error{}}
}

func (f *FakeSender) Send(ctx context.Context, token string, notification fcm.NotificationData) error {
	if f.Started != nil {
		f.Started <- struct{}{}
	}
	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, SentMessage{Token: token, Notification: notification})
	if err, ok := f.Errors[token]; ok {
		return err
	}
	return nil
}

func (f *FakeSender) Sent() []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}
