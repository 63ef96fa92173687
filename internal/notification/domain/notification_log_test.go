package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotificationTypeValid(t *testing.T) {
	assert.True(t, NotificationTypeOpening.Valid())
	assert.True(t, NotificationTypeDayBefore.Valid())
	assert.False(t, NotificationType("weekly").Valid())
}

func TestNewLedger(t *testing.T) {
	first := date(t, "2025-03-09T08:00:00Z")
	second := date(t, "2025-03-09T08:30:00Z")

	ledger := NewLedger([]NotificationLog{
		{IPOID: 1, FCMTokenID: 1, NotificationType: NotificationTypeDayBefore, SentAt: second, Success: false},
		{IPOID: 1, FCMTokenID: 1, NotificationType: NotificationTypeDayBefore, SentAt: first, Success: false},
		{IPOID: 1, FCMTokenID: 2, NotificationType: NotificationTypeDayBefore, SentAt: first, Success: true},
	})

	failed := ledger.State(DispatchKey{IPOID: 1, FCMTokenID: 1, Type: NotificationTypeDayBefore})
	assert.False(t, failed.Succeeded)
	assert.Equal(t, 2, failed.Attempts)
	assert.True(t, failed.LastAttemptAt.Equal(second))

	sent := ledger.State(DispatchKey{IPOID: 1, FCMTokenID: 2, Type: NotificationTypeDayBefore})
	assert.True(t, sent.Succeeded)
	assert.Equal(t, 1, sent.Attempts)

	// Types are tracked independently
	none := ledger.State(DispatchKey{IPOID: 1, FCMTokenID: 2, Type: NotificationTypeOpening})
	assert.Equal(t, LedgerState{}, none)
}

func TestFCMTokenRedacted(t *testing.T) {
	short := FCMToken{Token: "abc"}
	assert.Equal(t, "abc", short.Redacted())

	long := FCMToken{Token: "abcdefghijklmnopqrstuvwxyz"}
	assert.Equal(t, "abcdefghijkl...", long.Redacted())
}
