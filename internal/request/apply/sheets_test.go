package apply_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"bandscan-backend/internal/request/apply"
	"bandscan-backend/internal/request/domain"
)

type mockValuesClient struct {
	mock.Mock
}

func (m *mockValuesClient) GetRange(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error) {
	args := m.Called(ctx, spreadsheetID, readRange)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]interface{}), args.Error(1)
}

func (m *mockValuesClient) UpdateRange(ctx context.Context, spreadsheetID, writeRange string, values [][]interface{}) error {
	return m.Called(ctx, spreadsheetID, writeRange, values).Error(0)
}

// rosterRow builds one A:J row with the uid in column B, the student code
// in column I and the request list in column J.
func rosterRow(uid, code, requests string) []interface{} {
	row := make([]interface{}, 10)
	for i := range row {
		row[i] = ""
	}
	row[1] = uid
	row[8] = code
	row[9] = requests
	return row
}

func operationJSON(t *testing.T, op domain.Operation) string {
	t.Helper()
	raw, err := json.Marshal(op)
	require.NoError(t, err)
	return string(raw)
}

type writtenRequest struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	NewValue  string `json:"newValue"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	baseOp := domain.Operation{
		SpreadsheetID:    "sheet-1",
		SheetName:        "Roster",
		RequestType:      domain.TypeNameChange,
		NewValue:         "Jamie P.",
		StudentUID:       "student-1",
		RequestID:        "req-1",
		RequestTimestamp: "2026-08-25T10:00:00Z",
	}

	t.Run("appends the request to the student's row", func(t *testing.T) {
		client := new(mockValuesClient)
		applier := apply.NewSheetsApplier(client, zerolog.Nop())

		existing := `[{"id":"old-1","type":"lostTag","newValue":"","timestamp":"t0","status":"approved"}]`
		client.On("GetRange", ctx, "sheet-1", "Roster!A:J").Return([][]interface{}{
			rosterRow("UID", "Code", "Requests"),
			rosterRow("student-0", "SC-0", ""),
			rosterRow("student-1", "SC-1", existing),
		}, nil)

		var written string
		client.On("UpdateRange", ctx, "sheet-1", "Roster!J3", mock.Anything).
			Run(func(args mock.Arguments) {
				values := args.Get(3).([][]interface{})
				written = values[0][0].(string)
			}).Return(nil)

		require.NoError(t, applier.Apply(ctx, operationJSON(t, baseOp)))

		var requests []writtenRequest
		require.NoError(t, json.Unmarshal([]byte(written), &requests))
		require.Len(t, requests, 2)
		assert.Equal(t, "old-1", requests[0].ID)
		assert.Equal(t, "req-1", requests[1].ID)
		assert.Equal(t, domain.TypeNameChange, requests[1].Type)
		assert.Equal(t, "Jamie P.", requests[1].NewValue)
		assert.Equal(t, "pending", requests[1].Status)
		client.AssertExpectations(t)
	})

	t.Run("falls back to the student code", func(t *testing.T) {
		client := new(mockValuesClient)
		applier := apply.NewSheetsApplier(client, zerolog.Nop())

		op := baseOp
		op.StudentUID = ""
		op.StudentCode = "SC-2"
		client.On("GetRange", ctx, "sheet-1", "Roster!A:J").Return([][]interface{}{
			rosterRow("UID", "Code", "Requests"),
			rosterRow("student-1", "SC-1", ""),
			rosterRow("student-2", "SC-2", ""),
		}, nil)
		client.On("UpdateRange", ctx, "sheet-1", "Roster!J3", mock.Anything).Return(nil)

		require.NoError(t, applier.Apply(ctx, operationJSON(t, op)))
		client.AssertExpectations(t)
	})

	t.Run("unknown student fails permanently", func(t *testing.T) {
		client := new(mockValuesClient)
		applier := apply.NewSheetsApplier(client, zerolog.Nop())

		client.On("GetRange", ctx, "sheet-1", "Roster!A:J").Return([][]interface{}{
			rosterRow("UID", "Code", "Requests"),
			rosterRow("student-9", "SC-9", ""),
		}, nil)

		err := applier.Apply(ctx, operationJSON(t, baseOp))

		require.Error(t, err)
		assert.True(t, domain.IsPermanent(err))
		assert.Contains(t, err.Error(), "student not found")
		client.AssertNotCalled(t, "UpdateRange")
	})

	t.Run("duplicate pending request of the same type fails permanently", func(t *testing.T) {
		client := new(mockValuesClient)
		applier := apply.NewSheetsApplier(client, zerolog.Nop())

		pending := `[{"id":"old-1","type":"nameChange","newValue":"J","timestamp":"t0","status":"pending"}]`
		client.On("GetRange", ctx, "sheet-1", "Roster!A:J").Return([][]interface{}{
			rosterRow("UID", "Code", "Requests"),
			rosterRow("student-1", "SC-1", pending),
		}, nil)

		err := applier.Apply(ctx, operationJSON(t, baseOp))

		require.Error(t, err)
		assert.True(t, domain.IsPermanent(err))
		client.AssertNotCalled(t, "UpdateRange")
	})

	t.Run("mangled request cell starts a fresh list", func(t *testing.T) {
		client := new(mockValuesClient)
		applier := apply.NewSheetsApplier(client, zerolog.Nop())

		client.On("GetRange", ctx, "sheet-1", "Roster!A:J").Return([][]interface{}{
			rosterRow("UID", "Code", "Requests"),
			rosterRow("student-1", "SC-1", "{this is not json"),
		}, nil)

		var written string
		client.On("UpdateRange", ctx, "sheet-1", "Roster!J2", mock.Anything).
			Run(func(args mock.Arguments) {
				written = args.Get(3).([][]interface{})[0][0].(string)
			}).Return(nil)

		require.NoError(t, applier.Apply(ctx, operationJSON(t, baseOp)))

		var requests []writtenRequest
		require.NoError(t, json.Unmarshal([]byte(written), &requests))
		assert.Len(t, requests, 1)
	})

	t.Run("malformed operation fails permanently without a read", func(t *testing.T) {
		client := new(mockValuesClient)
		applier := apply.NewSheetsApplier(client, zerolog.Nop())

		err := applier.Apply(ctx, "{not an operation")

		require.Error(t, err)
		assert.True(t, domain.IsPermanent(err))
		client.AssertNotCalled(t, "GetRange")
	})
}

func TestApply_ErrorClassification(t *testing.T) {
	ctx := context.Background()
	op := domain.Operation{SpreadsheetID: "sheet-1", SheetName: "Roster", RequestType: domain.TypeLostTag, StudentUID: "student-1", RequestID: "req-1"}

	cases := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"rate limit is transient", &googleapi.Error{Code: http.StatusTooManyRequests}, false},
		{"timeout is transient", &googleapi.Error{Code: http.StatusRequestTimeout}, false},
		{"server error is transient", &googleapi.Error{Code: http.StatusServiceUnavailable}, false},
		{"client rejection is permanent", &googleapi.Error{Code: http.StatusForbidden}, true},
		{"transport failure is transient", errors.New("connection reset"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := new(mockValuesClient)
			applier := apply.NewSheetsApplier(client, zerolog.Nop())

			client.On("GetRange", ctx, "sheet-1", "Roster!A:J").Return(nil, tc.err)

			err := applier.Apply(ctx, operationJSON(t, op))

			require.Error(t, err)
			assert.Equal(t, tc.permanent, domain.IsPermanent(err))
		})
	}
}
