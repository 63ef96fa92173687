package domain

import "time"

// FCMToken represents a Firebase Cloud Messaging device registration
type FCMToken struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Token     string    `json:"-" gorm:"size:500;uniqueIndex;not null"` // Don't expose token in JSON
	DeviceID  string    `json:"device_id" gorm:"size:255"`
	Platform  string    `json:"platform" gorm:"size:50"`
	Active    bool      `json:"active" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Preferences []Preference      `json:"preferences,omitempty" gorm:"foreignKey:FCMTokenID;constraint:OnDelete:CASCADE"`
	Logs        []NotificationLog `json:"-" gorm:"foreignKey:FCMTokenID;constraint:OnDelete:CASCADE"`
}

func (FCMToken) TableName() string {
	return "fcm_tokens"
}

// Redacted returns a shortened token suitable for logs
func (t *FCMToken) Redacted() string {
	if len(t.Token) <= 12 {
		return t.Token
	}
	return t.Token[:12] + "..."
}
