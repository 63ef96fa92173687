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

func TestReporterStatsUsesLocalDay(t *testing.T) {
	f := newFixture(t)
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	reporter := usecase.NewReporter(f.gateway, tokyo)

	// 2025-03-09T16:00Z is already March 10th in Tokyo
	testutil.CreateLog(t, f.db, domain.NotificationLog{
		IPOID: f.ipo.ID, FCMTokenID: f.token.ID, NotificationType: domain.NotificationTypeDayBefore,
		SentAt: at(t, "2025-03-09T14:00:00Z"), Success: true,
	})
	testutil.CreateLog(t, f.db, domain.NotificationLog{
		IPOID: f.ipo.ID, FCMTokenID: f.token.ID, NotificationType: domain.NotificationTypeOpening,
		SentAt: at(t, "2025-03-09T16:00:00Z"), Success: true,
	})

	stats, err := reporter.Stats(context.Background(), at(t, "2025-03-09T20:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.NotificationsToday)
	assert.Equal(t, int64(0), stats.FailuresToday)
	assert.Equal(t, int64(1), stats.UpcomingIPOs)
	assert.Equal(t, int64(1), stats.ActiveTokens)
}

func TestReporterUpcomingIPOs(t *testing.T) {
	f := newFixture(t)
	reporter := usecase.NewReporter(f.gateway, time.UTC)
	testutil.CreateIPO(t, f.db, "Closed", at(t, "2025-02-01T00:00:00Z"), at(t, "2025-02-07T00:00:00Z"))
	open := testutil.CreateIPO(t, f.db, "Open", at(t, "2025-03-01T00:00:00Z"), at(t, "2025-03-12T00:00:00Z"))

	views, err := reporter.UpcomingIPOs(context.Background(), at(t, "2025-03-07T12:00:00Z"), 10)
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, open.ID, views[0].ID)
	assert.Equal(t, domain.IPOStatusOpen, views[0].Status)
	assert.Equal(t, 0, views[0].DaysUntilOpen)

	assert.Equal(t, f.ipo.ID, views[1].ID)
	assert.Equal(t, domain.IPOStatusUpcoming, views[1].Status)
	assert.Equal(t, 3, views[1].DaysUntilOpen)

	assert.NoError(t, reporter.Ping(context.Background()))
}
