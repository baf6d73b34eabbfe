package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"iapgate/internal/shared/utils"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	ledger Pinger
}

func NewHealthHandler(ledger Pinger) *HealthHandler {
	return &HealthHandler{ledger: ledger}
}

func (h *HealthHandler) Health(c *gin.Context) {
	if h.ledger != nil {
		if err := h.ledger.PingContext(c.Request.Context()); err != nil {
			utils.ErrorResponse(c, http.StatusServiceUnavailable, "ledger unavailable")
			return
		}
	}
	utils.SuccessResponse(c, http.StatusOK, "ok", gin.H{"status": "healthy"})
}
