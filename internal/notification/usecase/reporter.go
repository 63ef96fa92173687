package usecase

import (
	"context"
	"time"

	"ipo-reminder-backend/internal/notification/domain"
	"ipo-reminder-backend/internal/notification/repository"
)

// Reporter serves the operator views over the ledger and IPO table
type Reporter struct {
	gateway  repository.Gateway
	location *time.Location
}

func NewReporter(gateway repository.Gateway, location *time.Location) *Reporter {
	if location == nil {
		location = time.UTC
	}
	return &Reporter{gateway: gateway, location: location}
}

// Stats aggregates counts, with "today" being the calendar day of now in the
// notification timezone
func (r *Reporter) Stats(ctx context.Context, now time.Time) (*domain.Stats, error) {
	local := now.In(r.location)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.location)
	dayEnd := dayStart.AddDate(0, 0, 1)
	return r.gateway.Stats(ctx, now, dayStart, dayEnd)
}

// UpcomingIPOs lists IPOs that are not closed yet with their status at now
func (r *Reporter) UpcomingIPOs(ctx context.Context, now time.Time, limit int) ([]domain.IPOView, error) {
	ipos, err := r.gateway.ListIPOsNotClosed(ctx, now, limit)
	if err != nil {
		return nil, err
	}
	views := make([]domain.IPOView, 0, len(ipos))
	for _, ipo := range ipos {
		views = append(views, domain.IPOView{
			IPO:           ipo,
			Status:        ipo.Status(now),
			DaysUntilOpen: ipo.DaysUntilOpen(now, r.location),
		})
	}
	return views, nil
}

func (r *Reporter) Ping(ctx context.Context) error {
	return r.gateway.Ping(ctx)
}
