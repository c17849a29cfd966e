package domain

import (
	"errors"
	"time"
)

// Platforms a device token can belong to.
const (
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
)

// ErrTokenNotFound is returned when a token is not in the registry.
var ErrTokenNotFound = errors.New("device token not found")

// DeviceToken binds a push token to the student currently signed in on that
// device. A token has at most one owner; re-registering it under another
// student moves it.
type DeviceToken struct {
	Token      string    `json:"token" gorm:"primaryKey"`
	StudentUID string    `json:"student_uid" gorm:"index;not null"`
	BandID     string    `json:"band_id" gorm:"index;not null"`
	Platform   string    `json:"platform" gorm:"not null"`
	Active     bool      `json:"active" gorm:"not null;default:true"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeen   time.Time `json:"last_seen"`
}

// Usable reports whether the token should still receive pushes: active and
// seen since the staleness cutoff.
func (t DeviceToken) Usable(staleBefore time.Time) bool {
	return t.Active && t.LastSeen.After(staleBefore)
}
