package usecase

import (
	"context"
	"time"

	"ipo-reminder-backend/internal/notification/domain"
	"ipo-reminder-backend/internal/notification/repository"

	"go.uber.org/zap"
)

// Due is one notification the scanner found ready for dispatch
type Due struct {
	IPO        domain.IPO
	Token      domain.FCMToken
	Type       domain.NotificationType
	Preference domain.EffectivePreference
	// Attempt is 1 for a first delivery, higher for retries
	Attempt int
}

func (d Due) Key() domain.DispatchKey {
	return domain.DispatchKey{IPOID: d.IPO.ID, FCMTokenID: d.Token.ID, Type: d.Type}
}

// Scanner determines which (IPO, token, type) notifications are due
type Scanner struct {
	ipoRepo   repository.IPORepository
	tokenRepo repository.FCMTokenRepository
	logRepo   repository.NotificationLogRepository
	location  *time.Location
	retry     RetryPolicy
	logger    *zap.Logger
}

func NewScanner(
	ipoRepo repository.IPORepository,
	tokenRepo repository.FCMTokenRepository,
	logRepo repository.NotificationLogRepository,
	location *time.Location,
	retry RetryPolicy,
	logger *zap.Logger,
) *Scanner {
	if location == nil {
		location = time.UTC
	}
	return &Scanner{
		ipoRepo:   ipoRepo,
		tokenRepo: tokenRepo,
		logRepo:   logRepo,
		location:  location,
		retry:     retry,
		logger:    logger,
	}
}

// Scan returns the notifications due at now, ordered by IPO start date, IPO
// id and token id. It only reads; calling it again without dispatching in
// between yields the same result.
func (s *Scanner) Scan(ctx context.Context, now time.Time) ([]Due, error) {
	ipos, err := s.ipoRepo.ListActiveIPOsNotBefore(ctx, now)
	if err != nil {
		return nil, err
	}
	if len(ipos) == 0 {
		return nil, nil
	}

	tokens, err := s.tokenRepo.ListActiveTokensWithPreferences(ctx)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		s.logger.Debug("no active tokens")
		return nil, nil
	}

	ipoIDs := make([]uint, len(ipos))
	for i, ipo := range ipos {
		ipoIDs[i] = ipo.ID
	}
	entries, err := s.logRepo.ListLogEntries(ctx, ipoIDs)
	if err != nil {
		return nil, err
	}
	ledger := domain.NewLedger(entries)

	prefs := make([]domain.EffectivePreference, len(tokens))
	for i := range tokens {
		prefs[i] = ResolvePreference(tokens[i].Preferences)
	}

	var due []Due
	for _, ipo := range ipos {
		if ipo.Closed(now) {
			continue
		}
		for i, token := range tokens {
			for _, typ := range domain.NotificationTypes {
				if !s.windowOpen(ipo, prefs[i], typ, now) {
					continue
				}
				key := domain.DispatchKey{IPOID: ipo.ID, FCMTokenID: token.ID, Type: typ}
				state := ledger.State(key)
				if !s.retry.Allows(state, now) {
					continue
				}
				token.Preferences = nil
				due = append(due, Due{
					IPO:        ipo,
					Token:      token,
					Type:       typ,
					Preference: prefs[i],
					Attempt:    state.Attempts + 1,
				})
			}
		}
	}
	return due, nil
}

// windowOpen applies the timing rule of a notification type, ignoring the ledger
func (s *Scanner) windowOpen(ipo domain.IPO, pref domain.EffectivePreference, typ domain.NotificationType, now time.Time) bool {
	switch typ {
	case domain.NotificationTypeDayBefore:
		if !pref.NotifyDayBefore || !now.Before(ipo.StartDate) {
			return false
		}
		return !now.Before(pref.DayBeforeWindowStart(ipo.StartDate, s.location))
	case domain.NotificationTypeOpening:
		return pref.NotifyOnOpening && !now.Before(ipo.StartDate)
	default:
		return false
	}
}
