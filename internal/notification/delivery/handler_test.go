package delivery_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bandscan-backend/internal/notification/delivery"
	"bandscan-backend/internal/notification/domain"
)

type mockNotificationUsecase struct {
	mock.Mock
}

func (m *mockNotificationUsecase) Send(bandID, senderEmail, title, body string, recipientUIDs []string, data map[string]string) (*domain.Notification, error) {
	args := m.Called(bandID, senderEmail, title, body, recipientUIDs, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *mockNotificationUsecase) ListByBand(bandID string, limit, offset int) ([]domain.Notification, int64, error) {
	args := m.Called(bandID, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Notification), args.Get(1).(int64), args.Error(2)
}

func (m *mockNotificationUsecase) GetByID(bandID, id string) (*domain.Notification, error) {
	args := m.Called(bandID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *mockNotificationUsecase) Cancel(bandID, id string) (bool, error) {
	args := m.Called(bandID, id)
	return args.Bool(0), args.Error(1)
}

func setupRouter(uc *mockNotificationUsecase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := delivery.NewNotificationHandler(uc)
	r.POST("/api/notifications/send", h.SendNotification)
	r.GET("/api/notifications/:bandId", h.GetNotifications)
	r.GET("/api/notifications/:bandId/:id", h.GetNotificationByID)
	r.POST("/api/notifications/:bandId/:id/cancel", h.CancelNotification)
	return r
}

func validSendBody() []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"band_id":      "band-1",
		"sender_email": "director@school.edu",
		"title":        "Concert call",
		"body":         "Be there at 6",
		"recipients":   []string{"student-1", "student-2"},
		"data":         map[string]string{"event_id": "e-1"},
	})
	return body
}

func TestSendNotification(t *testing.T) {
	t.Run("accepted for background dispatch", func(t *testing.T) {
		uc := new(mockNotificationUsecase)
		r := setupRouter(uc)

		uc.On("Send", "band-1", "director@school.edu", "Concert call", "Be there at 6",
			[]string{"student-1", "student-2"}, map[string]string{"event_id": "e-1"}).
			Return(&domain.Notification{ID: "n-1", Status: domain.StatusAccepted}, nil)

		req := httptest.NewRequest("POST", "/api/notifications/send", bytes.NewReader(validSendBody()))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusAccepted, w.Code)
		assert.Contains(t, w.Body.String(), "n-1")
		assert.Contains(t, w.Body.String(), domain.StatusAccepted)
		uc.AssertExpectations(t)
	})

	t.Run("rejects an empty recipient list", func(t *testing.T) {
		uc := new(mockNotificationUsecase)
		r := setupRouter(uc)

		body, _ := json.Marshal(map[string]interface{}{
			"band_id":      "band-1",
			"sender_email": "director@school.edu",
			"title":        "Concert call",
			"recipients":   []string{},
		})
		req := httptest.NewRequest("POST", "/api/notifications/send", bytes.NewReader(body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		uc.AssertNotCalled(t, "Send")
	})

	t.Run("rejects a malformed sender email", func(t *testing.T) {
		uc := new(mockNotificationUsecase)
		r := setupRouter(uc)

		body, _ := json.Marshal(map[string]interface{}{
			"band_id":      "band-1",
			"sender_email": "not-an-email",
			"title":        "Concert call",
			"recipients":   []string{"student-1"},
		})
		req := httptest.NewRequest("POST", "/api/notifications/send", bytes.NewReader(body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetNotifications(t *testing.T) {
	t.Run("lists the band history with defaults", func(t *testing.T) {
		uc := new(mockNotificationUsecase)
		r := setupRouter(uc)

		n := domain.Notification{ID: "n-1", BandID: "band-1", Title: "Concert call", Status: domain.StatusCompleted}
		n.SetRecipients([]string{"student-1"})
		uc.On("ListByBand", "band-1", 50, 0).Return([]domain.Notification{n}, int64(1), nil)

		req := httptest.NewRequest("GET", "/api/notifications/band-1", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"total":1`)
		uc.AssertExpectations(t)
	})

	t.Run("clamps an oversized limit", func(t *testing.T) {
		uc := new(mockNotificationUsecase)
		r := setupRouter(uc)

		uc.On("ListByBand", "band-1", 50, 0).Return([]domain.Notification{}, int64(0), nil)

		req := httptest.NewRequest("GET", "/api/notifications/band-1?limit=9999", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		uc.AssertExpectations(t)
	})
}

func TestGetNotificationByID(t *testing.T) {
	t.Run("returns the delivery summary", func(t *testing.T) {
		uc := new(mockNotificationUsecase)
		r := setupRouter(uc)

		n := &domain.Notification{ID: "n-1", BandID: "band-1", Status: domain.StatusCompleted, SentCount: 3, FailedCount: 1, SkippedCount: 2}
		uc.On("GetByID", "band-1", "n-1").Return(n, nil)

		req := httptest.NewRequest("GET", "/api/notifications/band-1/n-1", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"sent_count":3`)
		assert.Contains(t, w.Body.String(), `"failed_count":1`)
		assert.Contains(t, w.Body.String(), `"skipped_count":2`)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		uc := new(mockNotificationUsecase)
		r := setupRouter(uc)
		uc.On("GetByID", "band-1", "gone").Return(nil, domain.ErrNotificationNotFound)

		req := httptest.NewRequest("GET", "/api/notifications/band-1/gone", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("another band's notification is forbidden", func(t *testing.T) {
		uc := new(mockNotificationUsecase)
		r := setupRouter(uc)
		uc.On("GetByID", "band-1", "n-1").Return(nil, domain.ErrBandMismatch)

		req := httptest.NewRequest("GET", "/api/notifications/band-1/n-1", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestCancelNotification(t *testing.T) {
	t.Run("reports whether the cancel won", func(t *testing.T) {
		uc := new(mockNotificationUsecase)
		r := setupRouter(uc)
		uc.On("Cancel", "band-1", "n-1").Return(true, nil)

		req := httptest.NewRequest("POST", "/api/notifications/band-1/n-1/cancel", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"cancelled":true`)
	})

	t.Run("reports false once dispatch claimed it", func(t *testing.T) {
		uc := new(mockNotificationUsecase)
		r := setupRouter(uc)
		uc.On("Cancel", "band-1", "n-1").Return(false, nil)

		req := httptest.NewRequest("POST", "/api/notifications/band-1/n-1/cancel", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"cancelled":false`)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		uc := new(mockNotificationUsecase)
		r := setupRouter(uc)
		uc.On("Cancel", "band-1", "gone").Return(false, domain.ErrNotificationNotFound)

		req := httptest.NewRequest("POST", "/api/notifications/band-1/gone/cancel", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
