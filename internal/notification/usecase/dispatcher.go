package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ipo-reminder-backend/internal/notification/domain"
	"ipo-reminder-backend/internal/notification/repository"
	"ipo-reminder-backend/pkg/fcm"
	"ipo-reminder-backend/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sender is the external delivery API
type Sender interface {
	Send(ctx context.Context, token string, notification fcm.NotificationData) error
}

// Outcome is the result of one dispatch
type Outcome struct {
	Success      bool
	ErrorMessage string
	// Skipped is set when another worker or an earlier cycle already handled the pair
	Skipped bool
	// TokenDeactivated is set when the delivery API retired the token
	TokenDeactivated bool
}

// DispatcherConfig tunes the dispatch engine
type DispatcherConfig struct {
	Timeout  time.Duration
	LeaseTTL time.Duration
	Location *time.Location
}

// Dispatcher sends notifications and records every attempt in the ledger
type Dispatcher struct {
	logRepo   repository.NotificationLogRepository
	tokenRepo repository.FCMTokenRepository
	sender    Sender
	cfg       DispatcherConfig
	owner     string
	clock     func() time.Time
	logger    *zap.Logger
}

func NewDispatcher(
	logRepo repository.NotificationLogRepository,
	tokenRepo repository.FCMTokenRepository,
	sender Sender,
	cfg DispatcherConfig,
	logger *zap.Logger,
) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 5 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Dispatcher{
		logRepo:   logRepo,
		tokenRepo: tokenRepo,
		sender:    sender,
		cfg:       cfg,
		owner:     uuid.New().String(),
		clock:     time.Now,
		logger:    logger,
	}
}

// SetClock replaces the clock used for lease and sent_at timestamps
func (d *Dispatcher) SetClock(clock func() time.Time) {
	d.clock = clock
}

// Dispatch delivers one notification exactly once and logs the attempt.
// now is the evaluation time of the scan that found the pair and drives the
// payload text. Delivery problems are reported in the Outcome; only
// persistence failures are returned as errors. Cancelling ctx does not
// interrupt a send already in flight; the delivery timeout bounds it instead.
func (d *Dispatcher) Dispatch(ctx context.Context, ipo domain.IPO, token domain.FCMToken, typ domain.NotificationType, now time.Time) (Outcome, error) {
	key := domain.DispatchKey{IPOID: ipo.ID, FCMTokenID: token.ID, Type: typ}
	log := d.logger.With(zap.Uint("ipo_id", ipo.ID), zap.Uint("token_id", token.ID), zap.String("type", string(typ)))

	err := d.logRepo.AcquireLease(ctx, key, d.owner, d.clock(), d.cfg.LeaseTTL)
	switch {
	case errors.Is(err, domain.ErrAlreadyHandled), errors.Is(err, domain.ErrLeaseHeld):
		log.Debug("dispatch skipped", zap.Error(err))
		metrics.NotificationsDispatchedTotal.WithLabelValues(string(typ), "skipped").Inc()
		return Outcome{Skipped: true}, nil
	case err != nil:
		return Outcome{}, err
	}

	// From here on the attempt must be recorded even if the tick is aborted
	ctx = context.WithoutCancel(ctx)

	payload := BuildPayload(ipo, typ, now, d.cfg.Location)
	sendErr := d.send(ctx, token.Token, typ, payload)

	entry := &domain.NotificationLog{
		IPOID:            ipo.ID,
		FCMTokenID:       token.ID,
		NotificationType: typ,
		SentAt:           d.clock(),
		Success:          sendErr == nil,
	}
	outcome := Outcome{Success: sendErr == nil}
	if sendErr != nil {
		outcome.ErrorMessage = sendErr.Error()
		entry.ErrorMessage = sendErr.Error()
	}

	if err := d.logRepo.CompleteDispatch(ctx, entry, d.owner); err != nil {
		switch {
		case errors.Is(err, domain.ErrConstraintViolation):
			// A concurrent worker logged a success for the same pair
			log.Warn("duplicate success for pair", zap.Error(err))
			return Outcome{Skipped: true}, nil
		case errors.Is(err, domain.ErrNotFound):
			log.Info("ipo or token removed during dispatch")
			return Outcome{Skipped: true}, nil
		default:
			return outcome, err
		}
	}

	if sendErr != nil {
		metrics.NotificationsDispatchedTotal.WithLabelValues(string(typ), "failed").Inc()
		log.Warn("notification delivery failed", zap.String("token", token.Redacted()), zap.Error(sendErr))

		if fcm.IsUnregistered(sendErr) {
			if err := d.tokenRepo.UpdateTokenActive(ctx, token.ID, false); err != nil && !errors.Is(err, domain.ErrNotFound) {
				return outcome, err
			}
			outcome.TokenDeactivated = true
			metrics.TokensDeactivatedTotal.Inc()
			log.Info("token deactivated", zap.String("token", token.Redacted()))
		}
		return outcome, nil
	}

	metrics.NotificationsDispatchedTotal.WithLabelValues(string(typ), "sent").Inc()
	log.Info("notification sent", zap.String("company", ipo.Company))
	return outcome, nil
}

// SendTest pushes a sample opening notification to a raw device token. It
// bypasses the lease and the ledger.
func (d *Dispatcher) SendTest(ctx context.Context, token string) error {
	now := d.clock()
	local := now.In(d.cfg.Location)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, d.cfg.Location)
	sample := domain.IPO{
		Company:   "Test Company Limited",
		StartDate: today,
		EndDate:   today.AddDate(0, 0, 5),
	}

	err := d.send(ctx, token, domain.NotificationTypeOpening, BuildPayload(sample, domain.NotificationTypeOpening, now, d.cfg.Location))
	if err != nil {
		d.logger.Warn("test notification failed", zap.Error(err))
		return err
	}
	d.logger.Info("test notification sent")
	return nil
}

func (d *Dispatcher) send(ctx context.Context, token string, typ domain.NotificationType, payload fcm.NotificationData) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	start := time.Now()
	err := d.sender.Send(sendCtx, token, payload)
	metrics.NotificationSendDuration.WithLabelValues(string(typ)).Observe(time.Since(start).Seconds())

	if err == nil && sendCtx.Err() != nil {
		// The sender ignored the deadline and returned late
		err = sendCtx.Err()
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: timed out after %s", domain.ErrDeliveryFailure, d.cfg.Timeout)
		}
		return fmt.Errorf("%w: %w", domain.ErrDeliveryFailure, err)
	}
	return nil
}
