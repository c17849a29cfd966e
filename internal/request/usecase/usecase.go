package usecase

import (
	"bandscan-backend/internal/request/domain"
)

// RequestUsecase defines the business logic for student data requests
type RequestUsecase interface {
	// Enqueue validates and durably queues a student request. The item is
	// pending before the caller gets an id back.
	Enqueue(studentUID, studentCode, requestType, newValue string) (*domain.StudentRequest, error)

	// Cancel withdraws a request no worker has claimed yet
	Cancel(id string) (bool, error)

	// Stats returns queue counts per status
	Stats() (map[string]int64, error)
}
