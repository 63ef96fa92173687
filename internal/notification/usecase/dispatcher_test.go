package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ipo-reminder-backend/internal/notification/domain"
	"ipo-reminder-backend/internal/notification/testutil"
	"ipo-reminder-backend/internal/notification/usecase"
	"ipo-reminder-backend/pkg/fcm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDispatcher(t *testing.T, f *fixture, sender usecase.Sender, timeout time.Duration) *usecase.Dispatcher {
	d := usecase.NewDispatcher(f.gateway, f.gateway, sender, usecase.DispatcherConfig{
		Timeout:  timeout,
		LeaseTTL: time.Minute,
		Location: time.UTC,
	}, nopLogger)
	clock := at(t, "2025-03-09T08:00:00Z")
	d.SetClock(func() time.Time { return clock })
	return d
}

func TestDispatchSuccess(t *testing.T) {
	f := newFixture(t)
	sender := testutil.NewFakeSender()
	d := newDispatcher(t, f, sender, time.Second)

	outcome, err := d.Dispatch(context.Background(), f.ipo, f.token, domain.NotificationTypeDayBefore, f.now)
	require.NoError(t, err)
	assert.Equal(t, usecase.Outcome{Success: true}, outcome)

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, f.token.Token, sent[0].Token)
	assert.Equal(t, "📅 Upcoming IPO Reminder", sent[0].Notification.Title)
	assert.Equal(t, "Acme IPO opens tomorrow", sent[0].Notification.Body)

	assert.Equal(t, int64(1), testutil.CountLogs(t, f.db, f.key(domain.NotificationTypeDayBefore), true))

	// A second dispatch of the same pair is a no-op
	outcome, err = d.Dispatch(context.Background(), f.ipo, f.token, domain.NotificationTypeDayBefore, f.now)
	require.NoError(t, err)
	assert.True(t, outcome.Skipped)
	assert.Len(t, sender.Sent(), 1)
}

func TestDispatchFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	sender := testutil.NewFakeSender()
	sender.Errors[f.token.Token] = errors.New("service unavailable")
	d := newDispatcher(t, f, sender, time.Second)

	outcome, err := d.Dispatch(context.Background(), f.ipo, f.token, domain.NotificationTypeOpening, f.now)
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.False(t, outcome.TokenDeactivated)
	assert.Contains(t, outcome.ErrorMessage, "service unavailable")

	entries, err := f.gateway.ListLogEntries(context.Background(), []uint{f.ipo.ID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Success)
	assert.Contains(t, entries[0].ErrorMessage, "service unavailable")

	token, err := f.gateway.FindTokenByID(context.Background(), f.token.ID)
	require.NoError(t, err)
	assert.True(t, token.Active)

	// The lease was released, so a retry can proceed
	sender.Errors = map[string]error{}
	outcome, err = d.Dispatch(context.Background(), f.ipo, f.token, domain.NotificationTypeOpening, f.now)
	require.NoError(t, err)
	assert.True(t, outcome.Success)
}

func TestDispatchUnregisteredDeactivatesToken(t *testing.T) {
	f := newFixture(t)
	sender := testutil.NewFakeSender()
	sender.Errors[f.token.Token] = &fcm.DeliveryError{Err: errors.New("requested entity was not found"), Unregistered: true}
	d := newDispatcher(t, f, sender, time.Second)

	outcome, err := d.Dispatch(context.Background(), f.ipo, f.token, domain.NotificationTypeOpening, f.now)
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.True(t, outcome.TokenDeactivated)

	token, err := f.gateway.FindTokenByID(context.Background(), f.token.ID)
	require.NoError(t, err)
	assert.False(t, token.Active)
	assert.Equal(t, int64(1), testutil.CountLogs(t, f.db, f.key(domain.NotificationTypeOpening), false))
}

func TestDispatchTimeout(t *testing.T) {
	f := newFixture(t)
	sender := testutil.NewFakeSender()
	sender.Block = make(chan struct{})
	d := newDispatcher(t, f, sender, 50*time.Millisecond)

	outcome, err := d.Dispatch(context.Background(), f.ipo, f.token, domain.NotificationTypeOpening, f.now)
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.ErrorMessage, "timed out")
	assert.Equal(t, int64(1), testutil.CountLogs(t, f.db, f.key(domain.NotificationTypeOpening), false))
}

func TestDispatchRecordsAttemptAfterCancel(t *testing.T) {
	f := newFixture(t)
	sender := testutil.NewFakeSender()
	sender.Block = make(chan struct{})
	sender.Started = make(chan struct{}, 1)
	d := newDispatcher(t, f, sender, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan usecase.Outcome)
	go func() {
		outcome, err := d.Dispatch(ctx, f.ipo, f.token, domain.NotificationTypeOpening, f.now)
		assert.NoError(t, err)
		done <- outcome
	}()

	<-sender.Started
	cancel()
	close(sender.Block)

	outcome := <-done
	assert.True(t, outcome.Success)
	assert.Equal(t, int64(1), testutil.CountLogs(t, f.db, f.key(domain.NotificationTypeOpening), true))
}

func TestConcurrentDispatchSendsOnce(t *testing.T) {
	f := newFixture(t)
	sender := testutil.NewFakeSender()
	sender.Block = make(chan struct{})
	sender.Started = make(chan struct{}, 2)
	first := newDispatcher(t, f, sender, time.Second)
	second := newDispatcher(t, f, sender, time.Second)

	var wg sync.WaitGroup
	var firstOutcome usecase.Outcome
	wg.Add(1)
	go func() {
		defer wg.Done()
		var err error
		firstOutcome, err = first.Dispatch(context.Background(), f.ipo, f.token, domain.NotificationTypeOpening, f.now)
		assert.NoError(t, err)
	}()
	<-sender.Started

	secondOutcome, err := second.Dispatch(context.Background(), f.ipo, f.token, domain.NotificationTypeOpening, f.now)
	require.NoError(t, err)
	assert.True(t, secondOutcome.Skipped)

	close(sender.Block)
	wg.Wait()

	assert.True(t, firstOutcome.Success)
	assert.Len(t, sender.Sent(), 1)
	assert.Equal(t, int64(1), testutil.CountLogs(t, f.db, f.key(domain.NotificationTypeOpening), true))
}

func TestDispatchRemovedIPO(t *testing.T) {
	f := newFixture(t)
	sender := testutil.NewFakeSender()
	d := newDispatcher(t, f, sender, time.Second)

	ghost := f.ipo
	ghost.ID = 9999
	outcome, err := d.Dispatch(context.Background(), ghost, f.token, domain.NotificationTypeOpening, f.now)
	require.NoError(t, err)
	assert.True(t, outcome.Skipped)
}

func TestDispatchPayloadUsesEvaluationTime(t *testing.T) {
	f := newFixture(t)
	sender := testutil.NewFakeSender()
	// The dispatcher clock reads March 9th, the scan ran on March 7th
	d := newDispatcher(t, f, sender, time.Second)

	outcome, err := d.Dispatch(context.Background(), f.ipo, f.token, domain.NotificationTypeDayBefore, at(t, "2025-03-07T18:30:00Z"))
	require.NoError(t, err)
	require.True(t, outcome.Success)

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Acme IPO opens in 3 days", sent[0].Notification.Body)
	assert.Equal(t, "3", sent[0].Notification.Data["daysUntil"])

	// sent_at still comes from the clock
	entries, err := f.gateway.ListLogEntries(context.Background(), []uint{f.ipo.ID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].SentAt.Equal(f.now))
}

func TestSendTestNotification(t *testing.T) {
	f := newFixture(t)
	sender := testutil.NewFakeSender()
	d := newDispatcher(t, f, sender, time.Second)

	require.NoError(t, d.SendTest(context.Background(), "token-test-device"))

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "token-test-device", sent[0].Token)
	assert.Equal(t, "🔔 IPO Opening Today!", sent[0].Notification.Title)
	assert.Equal(t, "Test Company Limited IPO opens today until 2025-03-14", sent[0].Notification.Body)
	assert.Equal(t, "0", sent[0].Notification.Data["ipo_id"])

	// Nothing is written to the ledger
	var count int64
	require.NoError(t, f.db.Model(&domain.NotificationLog{}).Count(&count).Error)
	assert.Zero(t, count)

	sender.Errors["token-bad"] = &fcm.DeliveryError{Err: errors.New("unregistered"), Unregistered: true}
	err := d.SendTest(context.Background(), "token-bad")
	assert.True(t, errors.Is(err, domain.ErrDeliveryFailure))
	assert.True(t, fcm.IsUnregistered(err))
}
