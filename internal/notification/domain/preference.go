package domain

import (
	"fmt"
	"time"
)

const (
	DefaultNotificationDaysBefore = 1
	DefaultNotificationTime       = "08:00"
)

// Preference is a per-token notification rule
type Preference struct {
	ID                     uint      `json:"id" gorm:"primaryKey"`
	FCMTokenID             uint      `json:"fcm_token_id" gorm:"column:fcm_token_id;not null;index"`
	NotificationDaysBefore int       `json:"notification_days_before" gorm:"not null"`
	NotificationTime       string    `json:"notification_time" gorm:"size:10;not null"`
	NotifyOnOpening        bool      `json:"notify_on_opening" gorm:"not null"`
	NotifyDayBefore        bool      `json:"notify_day_before" gorm:"not null"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

func (Preference) TableName() string {
	return "user_preferences"
}

// NewDefaultPreference returns a preference row filled with the documented defaults
func NewDefaultPreference(tokenID uint) *Preference {
	return &Preference{
		FCMTokenID:             tokenID,
		NotificationDaysBefore: DefaultNotificationDaysBefore,
		NotificationTime:       DefaultNotificationTime,
		NotifyOnOpening:        true,
		NotifyDayBefore:        true,
	}
}

func (p *Preference) Validate() error {
	if p.NotificationDaysBefore < 0 {
		return fmt.Errorf("%w: notification_days_before must be non-negative, got %d", ErrInvalidPreference, p.NotificationDaysBefore)
	}
	if _, err := ParseTimeOfDay(p.NotificationTime); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPreference, err)
	}
	return nil
}

// TimeOfDay is a local wall-clock time without a date
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses an "HH:MM" string
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid notification time %q, expected HH:MM", s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// EffectivePreference is the resolved configuration for one token
type EffectivePreference struct {
	DaysBefore      int       `json:"days_before"`
	Time            TimeOfDay `json:"-"`
	NotifyOnOpening bool      `json:"notify_on_opening"`
	NotifyDayBefore bool      `json:"notify_day_before"`
	IsDefault       bool      `json:"is_default"`
}

// DefaultEffectivePreference is applied to tokens without a preference row
func DefaultEffectivePreference() EffectivePreference {
	return EffectivePreference{
		DaysBefore:      DefaultNotificationDaysBefore,
		Time:            TimeOfDay{Hour: 8},
		NotifyOnOpening: true,
		NotifyDayBefore: true,
		IsDefault:       true,
	}
}

// DayBeforeWindowStart returns the instant the day_before reminder for an IPO
// starting at start becomes due: days_before calendar days earlier in loc, at
// the preferred time of day.
func (p EffectivePreference) DayBeforeWindowStart(start time.Time, loc *time.Location) time.Time {
	local := start.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()-p.DaysBefore, p.Time.Hour, p.Time.Minute, 0, 0, loc)
}
