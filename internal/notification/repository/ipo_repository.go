package repository

import (
	"context"
	"errors"
	"time"

	"ipo-reminder-backend/internal/notification/domain"

	"gorm.io/gorm"
)

// ipoRepository implements IPORepository using GORM
type ipoRepository struct {
	db *gorm.DB
}

// NewIPORepository creates a new GORM-based IPORepository
func NewIPORepository(db *gorm.DB) IPORepository {
	return &ipoRepository{db: db}
}

func (r *ipoRepository) SaveIPOs(ctx context.Context, ipos []*domain.IPO) error {
	if len(ipos) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, ipo := range ipos {
		if err := ipo.Validate(); err != nil {
			return err
		}
		ipo.StartDate = ipo.StartDate.UTC()
		ipo.EndDate = ipo.EndDate.UTC()
		ipo.CreatedAt = now
		ipo.UpdatedAt = now
	}
	if err := r.db.WithContext(ctx).Create(ipos).Error; err != nil {
		return persistence("save ipos", err)
	}
	return nil
}

func (r *ipoRepository) FindIPOByID(ctx context.Context, id uint) (*domain.IPO, error) {
	var ipo domain.IPO
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&ipo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, persistence("find ipo", err)
	}
	return &ipo, nil
}

func (r *ipoRepository) UpdateIPODates(ctx context.Context, id uint, start, end time.Time) error {
	check := domain.IPO{Company: "-", StartDate: start, EndDate: end}
	if err := check.Validate(); err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&domain.IPO{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"start_date": start.UTC(),
			"end_date":   end.UTC(),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return persistence("update ipo dates", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ipoRepository) DeleteIPO(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&domain.IPO{}, "id = ?", id)
	if res.Error != nil {
		return persistence("delete ipo", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ipoRepository) ListActiveIPOsNotBefore(ctx context.Context, endDateFloor time.Time) ([]domain.IPO, error) {
	var ipos []domain.IPO
	err := r.db.WithContext(ctx).
		Where("end_date >= ?", endDateFloor.UTC()).
		Order("start_date ASC, id ASC").
		Find(&ipos).Error
	if err != nil {
		return nil, persistence("list active ipos", err)
	}
	return ipos, nil
}
