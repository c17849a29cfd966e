package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Notification lifecycle. Accepted notifications either get claimed by a
// dispatch worker (dispatching, then completed) or cancelled before that.
const (
	StatusAccepted    = "accepted"
	StatusDispatching = "dispatching"
	StatusCompleted   = "completed"
	StatusCancelled   = "cancelled"
)

var (
	// ErrNotificationNotFound is returned when the notification id is unknown.
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrBandMismatch is returned when a notification belongs to another band.
	ErrBandMismatch = errors.New("notification belongs to another band")
)

// Notification is one logical push to a list of band members. Immutable
// after creation except for status and the delivery summary.
type Notification struct {
	ID            string     `json:"id" gorm:"primaryKey"`
	BandID        string     `json:"band_id" gorm:"index;not null"`
	SenderEmail   string     `json:"sender_email"`
	Title         string     `json:"title" gorm:"not null"`
	Body          string     `json:"body"`
	RecipientUIDs string     `json:"-" gorm:"not null"`
	Data          string     `json:"-" gorm:"type:text"`
	Status        string     `json:"status" gorm:"index;not null"`
	SentCount     int        `json:"sent_count"`
	FailedCount   int        `json:"failed_count"`
	SkippedCount  int        `json:"skipped_count"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// SetRecipients stores the ordered recipient list.
func (n *Notification) SetRecipients(uids []string) {
	n.RecipientUIDs = strings.Join(uids, ",")
}

// Recipients returns the ordered recipient list.
func (n *Notification) Recipients() []string {
	if n.RecipientUIDs == "" {
		return nil
	}
	return strings.Split(n.RecipientUIDs, ",")
}

// SetData stores the custom payload carried into the provider push.
func (n *Notification) SetData(data map[string]string) error {
	if len(data) == 0 {
		n.Data = ""
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	n.Data = string(raw)
	return nil
}

// DataMap decodes the custom payload, nil when there is none.
func (n *Notification) DataMap() map[string]string {
	if n.Data == "" {
		return nil
	}
	var data map[string]string
	if err := json.Unmarshal([]byte(n.Data), &data); err != nil {
		return nil
	}
	return data
}
