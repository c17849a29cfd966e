package usecase

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bandscan-backend/internal/request/domain"
	"bandscan-backend/internal/request/repository"
)

// requestUsecase implements RequestUsecase interface
type requestUsecase struct {
	requestRepo   repository.RequestRepository
	spreadsheetID string
	sheetName     string
	logger        zerolog.Logger
}

// NewRequestUsecase creates a new instance of requestUsecase
func NewRequestUsecase(requestRepo repository.RequestRepository, spreadsheetID, sheetName string, logger zerolog.Logger) RequestUsecase {
	return &requestUsecase{
		requestRepo:   requestRepo,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger.With().Str("component", "request").Logger(),
	}
}

func (u *requestUsecase) Enqueue(studentUID, studentCode, requestType, newValue string) (*domain.StudentRequest, error) {
	if !domain.ValidType(requestType) {
		return nil, fmt.Errorf("%w: unknown request type %q", domain.ErrInvalidRequest, requestType)
	}
	if studentUID == "" && studentCode == "" {
		return nil, fmt.Errorf("%w: student_uid or student_code required", domain.ErrInvalidRequest)
	}

	now := time.Now()
	op := domain.Operation{
		SpreadsheetID:    u.spreadsheetID,
		SheetName:        u.sheetName,
		RequestType:      requestType,
		NewValue:         newValue,
		StudentCode:      studentCode,
		StudentUID:       studentUID,
		RequestID:        uuid.New().String(),
		RequestTimestamp: now.Format(time.RFC3339),
	}
	raw, err := json.Marshal(op)
	if err != nil {
		return nil, err
	}

	// The queue item shares the operation's id, so the entry written to
	// the spreadsheet can be traced back to the queue.
	req := &domain.StudentRequest{
		ID:            op.RequestID,
		StudentUID:    studentUID,
		Operation:     string(raw),
		Status:        domain.StatusPending,
		NextAttemptAt: now,
		QueuedAt:      now,
	}
	if err := u.requestRepo.Create(req); err != nil {
		return nil, err
	}

	u.logger.Info().
		Str("request_id", req.ID).
		Str("type", requestType).
		Msg("request queued")
	return req, nil
}

func (u *requestUsecase) Cancel(id string) (bool, error) {
	return u.requestRepo.Cancel(id)
}

func (u *requestUsecase) Stats() (map[string]int64, error) {
	return u.requestRepo.Stats()
}
