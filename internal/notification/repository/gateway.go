package repository

import (
	"context"
	"time"

	"ipo-reminder-backend/internal/notification/domain"

	"gorm.io/gorm"
)

type gormGateway struct {
	IPORepository
	FCMTokenRepository
	PreferenceRepository
	NotificationLogRepository

	db *gorm.DB
}

// NewGormGateway wires every GORM repository behind one Gateway
func NewGormGateway(db *gorm.DB) Gateway {
	return &gormGateway{
		IPORepository:             NewIPORepository(db),
		FCMTokenRepository:        NewFCMTokenRepository(db),
		PreferenceRepository:      NewPreferenceRepository(db),
		NotificationLogRepository: NewNotificationLogRepository(db),
		db:                        db,
	}
}

func (g *gormGateway) ListIPOsNotClosed(ctx context.Context, now time.Time, limit int) ([]domain.IPO, error) {
	var ipos []domain.IPO
	query := g.db.WithContext(ctx).
		Where("end_date >= ?", now.UTC()).
		Order("start_date ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&ipos).Error; err != nil {
		return nil, persistence("list upcoming ipos", err)
	}
	return ipos, nil
}

func (g *gormGateway) Stats(ctx context.Context, now, dayStart, dayEnd time.Time) (*domain.Stats, error) {
	db := g.db.WithContext(ctx)
	now = now.UTC()
	stats := &domain.Stats{}

	counts := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&stats.TotalIPOs, db.Model(&domain.IPO{})},
		{&stats.OpenIPOs, db.Model(&domain.IPO{}).Where("start_date <= ? AND end_date >= ?", now, now)},
		{&stats.UpcomingIPOs, db.Model(&domain.IPO{}).Where("start_date > ?", now)},
		{&stats.ActiveTokens, db.Model(&domain.FCMToken{}).Where("active = ?", true)},
		{&stats.TotalTokens, db.Model(&domain.FCMToken{})},
		{&stats.NotificationsToday, db.Model(&domain.NotificationLog{}).
			Where("sent_at >= ? AND sent_at < ? AND success = ?", dayStart.UTC(), dayEnd.UTC(), true)},
		{&stats.FailuresToday, db.Model(&domain.NotificationLog{}).
			Where("sent_at >= ? AND sent_at < ? AND success = ?", dayStart.UTC(), dayEnd.UTC(), false)},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dst).Error; err != nil {
			return nil, persistence("stats", err)
		}
	}
	return stats, nil
}

func (g *gormGateway) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return persistence("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return persistence("ping", err)
	}
	return nil
}
