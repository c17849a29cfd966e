package domain

import (
	"errors"
	"time"
)

// Queue item lifecycle. pending items wait for a worker; in_progress items
// hold a lease; succeeded, failed, dead and cancelled are terminal.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusDead       = "dead"
	StatusCancelled  = "cancelled"
)

// Request types the band office accepts from students.
const (
	TypeNameChange       = "nameChange"
	TypeInstrumentChange = "instrumentChange"
	TypeLoanerRequest    = "loanerRequest"
	TypeLostTag          = "lostTag"
)

// ValidType reports whether t is one of the accepted request types.
func ValidType(t string) bool {
	switch t {
	case TypeNameChange, TypeInstrumentChange, TypeLoanerRequest, TypeLostTag:
		return true
	}
	return false
}

// ErrInvalidRequest marks enqueue input the API must refuse.
var ErrInvalidRequest = errors.New("invalid student request")

// StudentRequest is one durable queue item. Seq breaks queued-at ties so
// claims follow enqueue order exactly.
type StudentRequest struct {
	ID             string     `json:"id" gorm:"primaryKey"`
	Seq            int64      `json:"-" gorm:"autoIncrement;uniqueIndex"`
	StudentUID     string     `json:"student_uid" gorm:"index"`
	Operation      string     `json:"-" gorm:"type:text;not null"`
	Status         string     `json:"status" gorm:"index;not null"`
	Attempts       int        `json:"attempts"`
	NextAttemptAt  time.Time  `json:"next_attempt_at" gorm:"index"`
	LeaseOwner     string     `json:"-"`
	LeaseExpiresAt *time.Time `json:"-"`
	LastError      string     `json:"last_error,omitempty"`
	QueuedAt       time.Time  `json:"queued_at"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
}

// Operation is the payload a queue item carries to the applier. The queue
// itself never interprets it.
type Operation struct {
	SpreadsheetID    string `json:"spreadsheet_id"`
	SheetName        string `json:"sheet_name"`
	RequestType      string `json:"request_type"`
	NewValue         string `json:"new_value"`
	StudentCode      string `json:"student_code,omitempty"`
	StudentUID       string `json:"student_uid,omitempty"`
	RequestID        string `json:"request_id"`
	RequestTimestamp string `json:"request_timestamp"`
}

// permanentError marks an apply failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps an apply error so the worker fails the item immediately
// instead of retrying it.
func Permanent(err error) error {
	return &permanentError{err: err}
}

// IsPermanent reports whether the error chain carries the permanent marker.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
