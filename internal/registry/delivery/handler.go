package delivery

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bandscan-backend/internal/registry/domain"
	"bandscan-backend/internal/registry/dto"
	"bandscan-backend/internal/registry/usecase"
)

// TokenHandler handles device token HTTP requests
type TokenHandler struct {
	registryUsecase usecase.RegistryUsecase
}

// NewTokenHandler creates a new TokenHandler
func NewTokenHandler(registryUsecase usecase.RegistryUsecase) *TokenHandler {
	return &TokenHandler{
		registryUsecase: registryUsecase,
	}
}

// RegisterToken registers or reassigns a device token
// POST /api/tokens/register
func (h *TokenHandler) RegisterToken(c *gin.Context) {
	var req dto.RegisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.registryUsecase.Register(c.Request.Context(), req.Token, req.StudentUID, req.BandID, req.Platform)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, token)
}

// UnregisterToken removes a device token. Unknown tokens succeed too.
// DELETE /api/tokens/:token
func (h *TokenHandler) UnregisterToken(c *gin.Context) {
	if err := h.registryUsecase.Unregister(c.Request.Context(), c.Param("token")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

// PingToken refreshes a token's last-seen timestamp
// POST /api/tokens/:token/ping
func (h *TokenHandler) PingToken(c *gin.Context) {
	err := h.registryUsecase.Ping(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Token not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
