package apply

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"

	"bandscan-backend/internal/request/domain"
)

// Roster column layout of the band spreadsheet: B holds the student UID,
// I the student code, J the JSON request list the mobile app reads.
const (
	colUID         = 1
	colStudentCode = 8
	colRequests    = 9
)

// ValuesClient is the Sheets surface the applier needs.
type ValuesClient interface {
	GetRange(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error)
	UpdateRange(ctx context.Context, spreadsheetID, writeRange string, values [][]interface{}) error
}

// SheetsApplier applies a student request by appending it to the student's
// request list in the roster spreadsheet.
type SheetsApplier struct {
	client ValuesClient
	logger zerolog.Logger
}

// NewSheetsApplier creates a new SheetsApplier
func NewSheetsApplier(client ValuesClient, logger zerolog.Logger) *SheetsApplier {
	return &SheetsApplier{
		client: client,
		logger: logger.With().Str("component", "sheets_apply").Logger(),
	}
}

// sheetRequest is the J-column entry shape the band office tooling reads.
type sheetRequest struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	NewValue  string `json:"newValue"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
}

func (a *SheetsApplier) Apply(ctx context.Context, operation string) error {
	var op domain.Operation
	if err := json.Unmarshal([]byte(operation), &op); err != nil {
		return domain.Permanent(fmt.Errorf("malformed operation: %w", err))
	}

	readRange := fmt.Sprintf("%s!A:J", op.SheetName)
	rows, err := a.client.GetRange(ctx, op.SpreadsheetID, readRange)
	if err != nil {
		return classify(err)
	}

	rowIndex := -1
	for i, row := range rows {
		if i == 0 {
			// header row
			continue
		}
		if op.StudentUID != "" && cell(row, colUID) == op.StudentUID {
			rowIndex = i
			break
		}
		if op.StudentCode != "" && cell(row, colStudentCode) == op.StudentCode {
			rowIndex = i
			break
		}
	}
	if rowIndex < 0 {
		return domain.Permanent(errors.New("student not found in roster"))
	}

	requests := parseRequests(cell(rows[rowIndex], colRequests))
	for _, r := range requests {
		if r.Status == "pending" && r.Type == op.RequestType {
			return domain.Permanent(fmt.Errorf("duplicate pending %s request", op.RequestType))
		}
	}

	requests = append(requests, sheetRequest{
		ID:        op.RequestID,
		Type:      op.RequestType,
		NewValue:  op.NewValue,
		Timestamp: op.RequestTimestamp,
		Status:    "pending",
	})
	raw, err := json.Marshal(requests)
	if err != nil {
		return domain.Permanent(err)
	}

	// Sheets rows are 1-indexed, matching the slice index plus one.
	writeRange := fmt.Sprintf("%s!J%d", op.SheetName, rowIndex+1)
	if err := a.client.UpdateRange(ctx, op.SpreadsheetID, writeRange, [][]interface{}{{string(raw)}}); err != nil {
		return classify(err)
	}

	a.logger.Info().
		Str("request_id", op.RequestID).
		Str("type", op.RequestType).
		Msg("request written to roster")
	return nil
}

// cell reads one column of a row; short rows read as empty.
func cell(row []interface{}, idx int) string {
	if idx >= len(row) || row[idx] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[idx]))
}

// parseRequests reads the request cell tolerantly: an empty or mangled cell
// starts a fresh list rather than wedging the queue item.
func parseRequests(raw string) []sheetRequest {
	if raw == "" {
		return nil
	}
	var requests []sheetRequest
	if err := json.Unmarshal([]byte(raw), &requests); err != nil {
		return nil
	}
	return requests
}

// classify maps Sheets API failures onto the retry taxonomy. Rate limits,
// timeouts, 5xx and transport errors stay transient; any other API
// rejection is permanent.
func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusRequestTimeout || apiErr.Code == http.StatusTooManyRequests:
			return err
		case apiErr.Code >= 500:
			return err
		default:
			return domain.Permanent(err)
		}
	}
	return err
}
