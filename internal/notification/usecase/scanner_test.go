package usecase_test

import (
	"context"
	"testing"
	"time"

	"ipo-reminder-backend/internal/notification/domain"
	"ipo-reminder-backend/internal/notification/testutil"
	"ipo-reminder-backend/internal/notification/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScanner(f *fixture, retry usecase.RetryPolicy) *usecase.Scanner {
	return usecase.NewScanner(f.gateway, f.gateway, f.gateway, time.UTC, retry, nopLogger)
}

func types(due []usecase.Due) []domain.NotificationType {
	out := make([]domain.NotificationType, len(due))
	for i, d := range due {
		out[i] = d.Type
	}
	return out
}

func TestScanDayBeforeWindow(t *testing.T) {
	f := newFixture(t)
	scanner := newScanner(f, usecase.RetryPolicy{})
	ctx := context.Background()

	due, err := scanner.Scan(ctx, at(t, "2025-03-09T07:59:59Z"))
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = scanner.Scan(ctx, at(t, "2025-03-09T08:00:00Z"))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, domain.NotificationTypeDayBefore, due[0].Type)
	assert.Equal(t, f.ipo.ID, due[0].IPO.ID)
	assert.Equal(t, f.token.ID, due[0].Token.ID)
	assert.Equal(t, 1, due[0].Attempt)
	assert.True(t, due[0].Preference.IsDefault)

	// A missed reminder is still due later that day
	due, err = scanner.Scan(ctx, at(t, "2025-03-09T23:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, []domain.NotificationType{domain.NotificationTypeDayBefore}, types(due))
}

func TestScanOpening(t *testing.T) {
	f := newFixture(t)
	scanner := newScanner(f, usecase.RetryPolicy{})

	due, err := scanner.Scan(context.Background(), at(t, "2025-03-10T00:01:00Z"))
	require.NoError(t, err)
	assert.Equal(t, []domain.NotificationType{domain.NotificationTypeOpening}, types(due))

	// Still due while open if never sent
	due, err = scanner.Scan(context.Background(), at(t, "2025-03-17T00:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, []domain.NotificationType{domain.NotificationTypeOpening}, types(due))
}

func TestScanSkipsDelivered(t *testing.T) {
	f := newFixture(t)
	scanner := newScanner(f, usecase.RetryPolicy{Backoff: time.Minute})
	now := at(t, "2025-03-09T09:00:00Z")

	testutil.CreateLog(t, f.db, domain.NotificationLog{
		IPOID: f.ipo.ID, FCMTokenID: f.token.ID, NotificationType: domain.NotificationTypeDayBefore,
		SentAt: at(t, "2025-03-09T08:00:00Z"), Success: true,
	})

	due, err := scanner.Scan(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, due)

	// The day_before success does not suppress the opening notification
	due, err = scanner.Scan(context.Background(), at(t, "2025-03-10T00:01:00Z"))
	require.NoError(t, err)
	assert.Equal(t, []domain.NotificationType{domain.NotificationTypeOpening}, types(due))
}

func TestScanIsIdempotent(t *testing.T) {
	f := newFixture(t)
	scanner := newScanner(f, usecase.RetryPolicy{})
	now := at(t, "2025-03-09T08:00:00Z")

	first, err := scanner.Scan(context.Background(), now)
	require.NoError(t, err)
	second, err := scanner.Scan(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestScanExcludesInactiveTokensAndClosedIPOs(t *testing.T) {
	f := newFixture(t)
	scanner := newScanner(f, usecase.RetryPolicy{})
	ctx := context.Background()

	testutil.CreateToken(t, f.db, "token-inactive", false)
	due, err := scanner.Scan(ctx, at(t, "2025-03-10T00:01:00Z"))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, f.token.ID, due[0].Token.ID)

	due, err = scanner.Scan(ctx, at(t, "2025-03-17T00:00:01Z"))
	require.NoError(t, err)
	assert.Empty(t, due)

	require.NoError(t, f.gateway.UpdateTokenActive(ctx, f.token.ID, false))
	due, err = scanner.Scan(ctx, at(t, "2025-03-10T00:01:00Z"))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestScanAppliesPreferences(t *testing.T) {
	f := newFixture(t)
	scanner := newScanner(f, usecase.RetryPolicy{})
	ctx := context.Background()

	early := testutil.CreateToken(t, f.db, "token-early", true)
	testutil.CreatePreference(t, f.db, domain.Preference{
		FCMTokenID: early.ID, NotificationDaysBefore: 3, NotificationTime: "18:30",
		NotifyOnOpening: false, NotifyDayBefore: true,
	})
	quiet := testutil.CreateToken(t, f.db, "token-quiet", true)
	testutil.CreatePreference(t, f.db, domain.Preference{
		FCMTokenID: quiet.ID, NotificationDaysBefore: 1, NotificationTime: "08:00",
		NotifyOnOpening: false, NotifyDayBefore: false,
	})

	due, err := scanner.Scan(ctx, at(t, "2025-03-07T18:30:00Z"))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, early.ID, due[0].Token.ID)
	assert.Equal(t, 3, due[0].Preference.DaysBefore)
	assert.Nil(t, due[0].Token.Preferences)

	due, err = scanner.Scan(ctx, at(t, "2025-03-10T00:01:00Z"))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, f.token.ID, due[0].Token.ID)
}

func TestScanOrdering(t *testing.T) {
	f := newFixture(t)
	scanner := newScanner(f, usecase.RetryPolicy{})

	earlier := testutil.CreateIPO(t, f.db, "Earlier", at(t, "2025-03-08T00:00:00Z"), at(t, "2025-03-20T00:00:00Z"))
	second := testutil.CreateToken(t, f.db, "token-second", true)

	due, err := scanner.Scan(context.Background(), at(t, "2025-03-10T00:01:00Z"))
	require.NoError(t, err)
	require.Len(t, due, 4)

	var got [][2]uint
	for _, d := range due {
		got = append(got, [2]uint{d.IPO.ID, d.Token.ID})
	}
	assert.Equal(t, [][2]uint{
		{earlier.ID, f.token.ID},
		{earlier.ID, second.ID},
		{f.ipo.ID, f.token.ID},
		{f.ipo.ID, second.ID},
	}, got)
}

func TestScanRetriesFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	failedAt := at(t, "2025-03-09T08:00:00Z")
	testutil.CreateLog(t, f.db, domain.NotificationLog{
		IPOID: f.ipo.ID, FCMTokenID: f.token.ID, NotificationType: domain.NotificationTypeDayBefore,
		SentAt: failedAt, Success: false, ErrorMessage: "unavailable",
	})

	noRetry := newScanner(f, usecase.RetryPolicy{})
	due, err := noRetry.Scan(ctx, failedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)

	retry := newScanner(f, usecase.RetryPolicy{Backoff: 30 * time.Minute, MaxAttempts: 2})
	due, err = retry.Scan(ctx, failedAt.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = retry.Scan(ctx, failedAt.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 2, due[0].Attempt)

	testutil.CreateLog(t, f.db, domain.NotificationLog{
		IPOID: f.ipo.ID, FCMTokenID: f.token.ID, NotificationType: domain.NotificationTypeDayBefore,
		SentAt: failedAt.Add(30 * time.Minute), Success: false, ErrorMessage: "unavailable",
	})
	due, err = retry.Scan(ctx, failedAt.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestScanNotificationTimezone(t *testing.T) {
	f := newFixture(t)
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	scanner := usecase.NewScanner(f.gateway, f.gateway, f.gateway, tokyo, usecase.RetryPolicy{}, nopLogger)

	// 08:00 on March 9th in Tokyo
	due, err := scanner.Scan(context.Background(), at(t, "2025-03-08T23:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, []domain.NotificationType{domain.NotificationTypeDayBefore}, types(due))
}

func TestScanDispatchScenario(t *testing.T) {
	f := newFixture(t)
	scanner := newScanner(f, usecase.RetryPolicy{Backoff: 30 * time.Minute, MaxAttempts: 3})
	d := newDispatcher(t, f, testutil.NewFakeSender(), time.Second)
	ctx := context.Background()

	now := at(t, "2025-03-09T08:00:00Z")
	due, err := scanner.Scan(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, domain.NotificationTypeDayBefore, due[0].Type)

	outcome, err := d.Dispatch(ctx, due[0].IPO, due[0].Token, due[0].Type, now)
	require.NoError(t, err)
	require.True(t, outcome.Success)

	due, err = scanner.Scan(ctx, at(t, "2025-03-09T09:00:00Z"))
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = scanner.Scan(ctx, at(t, "2025-03-10T00:01:00Z"))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, domain.NotificationTypeOpening, due[0].Type)
	assert.Equal(t, f.ipo.ID, due[0].IPO.ID)
	assert.Equal(t, f.token.ID, due[0].Token.ID)
}
