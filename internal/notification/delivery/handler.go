package delivery

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"bandscan-backend/internal/notification/domain"
	"bandscan-backend/internal/notification/usecase"
)

// NotificationHandler handles notification HTTP requests
type NotificationHandler struct {
	notificationUsecase usecase.NotificationUsecase
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notificationUsecase usecase.NotificationUsecase) *NotificationHandler {
	return &NotificationHandler{
		notificationUsecase: notificationUsecase,
	}
}

// SendNotificationRequest represents the request body for sending a notification
type SendNotificationRequest struct {
	BandID      string            `json:"band_id" binding:"required"`
	SenderEmail string            `json:"sender_email" binding:"required,email"`
	Title       string            `json:"title" binding:"required"`
	Body        string            `json:"body"`
	Recipients  []string          `json:"recipients" binding:"required,min=1"`
	Data        map[string]string `json:"data"`
}

// NotificationResponse is the API shape of a notification
type NotificationResponse struct {
	ID           string            `json:"id"`
	BandID       string            `json:"band_id"`
	SenderEmail  string            `json:"sender_email"`
	Title        string            `json:"title"`
	Body         string            `json:"body"`
	Recipients   []string          `json:"recipients"`
	Data         map[string]string `json:"data,omitempty"`
	Status       string            `json:"status"`
	SentCount    int               `json:"sent_count"`
	FailedCount  int               `json:"failed_count"`
	SkippedCount int               `json:"skipped_count"`
	CreatedAt    time.Time         `json:"created_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

func toResponse(n *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:           n.ID,
		BandID:       n.BandID,
		SenderEmail:  n.SenderEmail,
		Title:        n.Title,
		Body:         n.Body,
		Recipients:   n.Recipients(),
		Data:         n.DataMap(),
		Status:       n.Status,
		SentCount:    n.SentCount,
		FailedCount:  n.FailedCount,
		SkippedCount: n.SkippedCount,
		CreatedAt:    n.CreatedAt,
		CompletedAt:  n.CompletedAt,
	}
}

// SendNotification accepts a notification for background dispatch
// POST /api/notifications/send
func (h *NotificationHandler) SendNotification(c *gin.Context) {
	var req SendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n, err := h.notificationUsecase.Send(req.BandID, req.SenderEmail, req.Title, req.Body, req.Recipients, req.Data)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"notification_id": n.ID,
		"status":          n.Status,
	})
}

// GetNotifications returns a band's notification history
// GET /api/notifications/:bandId?limit=50&offset=0
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	bandID := c.Param("bandId")

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	notifications, total, err := h.notificationUsecase.ListByBand(bandID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]NotificationResponse, 0, len(notifications))
	for i := range notifications {
		items = append(items, toResponse(&notifications[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": items,
		"total":         total,
	})
}

// GetNotificationByID returns a specific notification
// GET /api/notifications/:bandId/:id
func (h *NotificationHandler) GetNotificationByID(c *gin.Context) {
	n, err := h.notificationUsecase.GetByID(c.Param("bandId"), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotificationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
			return
		}
		if errors.Is(err, domain.ErrBandMismatch) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Notification belongs to another band"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toResponse(n))
}

// CancelNotification withdraws a notification that dispatch has not claimed
// POST /api/notifications/:bandId/:id/cancel
func (h *NotificationHandler) CancelNotification(c *gin.Context) {
	cancelled, err := h.notificationUsecase.Cancel(c.Param("bandId"), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotificationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
			return
		}
		if errors.Is(err, domain.ErrBandMismatch) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Notification belongs to another band"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"cancelled": cancelled})
}
