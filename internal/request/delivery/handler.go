package delivery

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bandscan-backend/internal/request/domain"
	"bandscan-backend/internal/request/usecase"
)

// RequestHandler handles student request HTTP requests
type RequestHandler struct {
	requestUsecase usecase.RequestUsecase
}

// NewRequestHandler creates a new RequestHandler
func NewRequestHandler(requestUsecase usecase.RequestUsecase) *RequestHandler {
	return &RequestHandler{
		requestUsecase: requestUsecase,
	}
}

// CreateRequestRequest represents the request body for queueing a student request
type CreateRequestRequest struct {
	RequestType string `json:"request_type" binding:"required"`
	NewValue    string `json:"new_value"`
	StudentCode string `json:"student_code"`
	StudentUID  string `json:"student_uid"`
}

// CreateRequest queues a student data request for the roster spreadsheet
// POST /api/requests
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	var req CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.requestUsecase.Enqueue(req.StudentUID, req.StudentCode, req.RequestType, req.NewValue)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"id":        item.ID,
		"type":      req.RequestType,
		"new_value": req.NewValue,
		"timestamp": item.QueuedAt.Format(time.RFC3339),
		"status":    item.Status,
	})
}

// CancelRequest withdraws a request no worker has claimed yet
// DELETE /api/requests/:id
func (h *RequestHandler) CancelRequest(c *gin.Context) {
	cancelled, err := h.requestUsecase.Cancel(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"cancelled": cancelled})
}

// GetStats returns queue counts per status
// GET /api/requests/stats
func (h *RequestHandler) GetStats(c *gin.Context) {
	stats, err := h.requestUsecase.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}
