package usecase_test

import (
	"testing"
	"time"

	"ipo-reminder-backend/internal/notification/domain"
	"ipo-reminder-backend/internal/notification/repository"
	"ipo-reminder-backend/internal/notification/testutil"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	gateway repository.Gateway
	ipo     domain.IPO
	token   domain.FCMToken
	// now is the evaluation time handed to dispatches
	now time.Time
}

// newFixture seeds one IPO opening 2025-03-10 for a week and one active token
// without preferences
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	start := testutil.MustTime(t, "2025-03-10T00:00:00Z")
	return &fixture{
		db:      db,
		gateway: repository.NewGormGateway(db),
		ipo:     testutil.CreateIPO(t, db, "Acme", start, start.AddDate(0, 0, 7)),
		token:   testutil.CreateToken(t, db, "token-acme-device-0001", true),
		now:     testutil.MustTime(t, "2025-03-09T08:00:00Z"),
	}
}

func (f *fixture) key(typ domain.NotificationType) domain.DispatchKey {
	return domain.DispatchKey{IPOID: f.ipo.ID, FCMTokenID: f.token.ID, Type: typ}
}

func at(t *testing.T, value string) time.Time {
	return testutil.MustTime(t, value)
}

var nopLogger = zap.NewNop()
