package domain

import (
	"fmt"
	"time"
)

// NotificationType is the kind of IPO notification
type NotificationType string

const (
	NotificationTypeOpening   NotificationType = "opening"
	NotificationTypeDayBefore NotificationType = "day_before"
)

// NotificationTypes lists every kind in evaluation order
var NotificationTypes = []NotificationType{NotificationTypeDayBefore, NotificationTypeOpening}

func (t NotificationType) Valid() bool {
	return t == NotificationTypeOpening || t == NotificationTypeDayBefore
}

// MaxErrorMessageLength matches the error_message column size
const MaxErrorMessageLength = 500

// NotificationLog is one delivery attempt in the append-only ledger
type NotificationLog struct {
	ID               uint             `json:"id" gorm:"primaryKey"`
	IPOID            uint             `json:"ipo_id" gorm:"column:ipo_id;not null;index:idx_notification_log_pair"`
	FCMTokenID       uint             `json:"fcm_token_id" gorm:"column:fcm_token_id;not null;index:idx_notification_log_pair"`
	NotificationType NotificationType `json:"notification_type" gorm:"size:50;not null;index:idx_notification_log_pair"`
	SentAt           time.Time        `json:"sent_at" gorm:"not null;index"`
	Success          bool             `json:"success" gorm:"not null"`
	ErrorMessage     string           `json:"error_message,omitempty" gorm:"size:500"`
}

func (NotificationLog) TableName() string {
	return "notification_log"
}

func (l *NotificationLog) Key() DispatchKey {
	return DispatchKey{IPOID: l.IPOID, FCMTokenID: l.FCMTokenID, Type: l.NotificationType}
}

// DispatchKey identifies one (ipo, token, type) notification
type DispatchKey struct {
	IPOID      uint
	FCMTokenID uint
	Type       NotificationType
}

func (k DispatchKey) String() string {
	return fmt.Sprintf("ipo=%d token=%d type=%s", k.IPOID, k.FCMTokenID, k.Type)
}

// DispatchLease marks a pair as being dispatched by one worker
type DispatchLease struct {
	IPOID            uint             `gorm:"column:ipo_id;primaryKey;autoIncrement:false"`
	FCMTokenID       uint             `gorm:"column:fcm_token_id;primaryKey;autoIncrement:false"`
	NotificationType NotificationType `gorm:"size:50;primaryKey"`
	Owner            string           `gorm:"size:36;not null"`
	AcquiredAt       time.Time        `gorm:"not null;index"`
}

func (DispatchLease) TableName() string {
	return "dispatch_leases"
}

// LedgerState summarizes the log entries of one pair
type LedgerState struct {
	Succeeded     bool
	Attempts      int
	LastAttemptAt time.Time
}

// Ledger is a derived index over log entries for fast "already sent" lookups
type Ledger map[DispatchKey]LedgerState

func NewLedger(entries []NotificationLog) Ledger {
	ledger := make(Ledger, len(entries))
	for _, e := range entries {
		state := ledger[e.Key()]
		state.Attempts++
		if e.Success {
			state.Succeeded = true
		}
		if e.SentAt.After(state.LastAttemptAt) {
			state.LastAttemptAt = e.SentAt
		}
		ledger[e.Key()] = state
	}
	return ledger
}

func (l Ledger) State(key DispatchKey) LedgerState {
	return l[key]
}

// Stats aggregates the ledger and registrations for operators
type Stats struct {
	TotalIPOs          int64 `json:"total_ipos"`
	OpenIPOs           int64 `json:"open_ipos"`
	UpcomingIPOs       int64 `json:"upcoming_ipos"`
	ActiveTokens       int64 `json:"active_tokens"`
	TotalTokens        int64 `json:"total_tokens"`
	NotificationsToday int64 `json:"notifications_today"`
	FailuresToday      int64 `json:"failures_today"`
}
