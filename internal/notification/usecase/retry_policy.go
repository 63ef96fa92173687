package usecase

import (
	"time"

	"ipo-reminder-backend/internal/notification/domain"
)

// RetryPolicy decides whether a pair with failed attempts may be tried again.
// A zero Backoff disables retries; a zero MaxAttempts removes the cap.
type RetryPolicy struct {
	Backoff     time.Duration
	MaxAttempts int
}

// Allows reports whether the ledger state permits an attempt at now
func (p RetryPolicy) Allows(state domain.LedgerState, now time.Time) bool {
	if state.Succeeded {
		return false
	}
	if state.Attempts == 0 {
		return true
	}
	if p.Backoff <= 0 {
		return false
	}
	if p.MaxAttempts > 0 && state.Attempts >= p.MaxAttempts {
		return false
	}
	return !now.Before(state.LastAttemptAt.Add(p.Backoff))
}
