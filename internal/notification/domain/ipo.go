package domain

import (
	"fmt"
	"strings"
	"time"
)

// IPOStatus is the lifecycle state of an offering relative to an evaluation time
type IPOStatus string

const (
	IPOStatusUpcoming IPOStatus = "upcoming"
	IPOStatusOpen     IPOStatus = "open"
	IPOStatusClosed   IPOStatus = "closed"
)

// IPO represents an initial public offering with its subscription window
type IPO struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Company   string    `json:"company" gorm:"size:255;not null;index"`
	StartDate time.Time `json:"start_date" gorm:"not null;index"`
	EndDate   time.Time `json:"end_date" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Logs []NotificationLog `json:"-" gorm:"foreignKey:IPOID;constraint:OnDelete:CASCADE"`
}

func (IPO) TableName() string {
	return "ipos"
}

// Validate checks the invariants an IPO must hold before it is persisted
func (i *IPO) Validate() error {
	if strings.TrimSpace(i.Company) == "" {
		return fmt.Errorf("%w: company is required", ErrInvalidIPO)
	}
	if i.StartDate.IsZero() || i.EndDate.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidIPO)
	}
	if i.EndDate.Before(i.StartDate) {
		return fmt.Errorf("%w: end date %s is before start date %s", ErrInvalidIPO,
			i.EndDate.Format(time.RFC3339), i.StartDate.Format(time.RFC3339))
	}
	return nil
}

// Closed reports whether the offering has ended. Closed is terminal.
func (i *IPO) Closed(now time.Time) bool {
	return i.EndDate.Before(now)
}

// Status returns the lifecycle state of the IPO at now
func (i *IPO) Status(now time.Time) IPOStatus {
	switch {
	case i.Closed(now):
		return IPOStatusClosed
	case now.Before(i.StartDate):
		return IPOStatusUpcoming
	default:
		return IPOStatusOpen
	}
}

// DaysUntilOpen counts calendar days in loc between now and the start date.
// It is zero once the IPO has opened.
func (i *IPO) DaysUntilOpen(now time.Time, loc *time.Location) int {
	if !now.Before(i.StartDate) {
		return 0
	}
	n := now.In(loc)
	s := i.StartDate.In(loc)
	from := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}

// IPOView is a row of the upcoming IPO status view
type IPOView struct {
	IPO
	Status        IPOStatus `json:"status"`
	DaysUntilOpen int       `json:"days_until_open"`
}
