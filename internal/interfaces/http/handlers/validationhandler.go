package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"iapgate/internal/application/receipt"
	"iapgate/internal/domain/purchase"
	"iapgate/internal/shared/errors"
	"iapgate/internal/shared/logger"
	"iapgate/internal/shared/utils"
)

// ValidationHandler answers the receipt validation contract. The body is the
// bare envelope, not the APIResponse wrapper, since that is what clients
// decode.
type ValidationHandler struct {
	validator receipt.Validator
	logger    logger.Interface
}

func NewValidationHandler(validator receipt.Validator, logger logger.Interface) *ValidationHandler {
	return &ValidationHandler{
		validator: validator,
		logger:    logger,
	}
}

func (h *ValidationHandler) Validate(c *gin.Context) {
	var req purchase.ValidationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for validate", "error", err)
		utils.ErrorResponseWithError(c, errors.NewValidationError("request body must be {\"data\": \"<receipt>\"}", err.Error()))
		return
	}

	result, err := h.validator.Validate(c.Request.Context(), req.Data)
	if err != nil {
		h.logger.Errorw("failed to validate receipt", "error", err)
		utils.ErrorResponseWithError(c, errors.NewUpstreamError("receipt ledger unavailable", err))
		return
	}

	h.logger.Debugw("receipt validated", "outcome", result.Classify())
	c.JSON(http.StatusOK, purchase.ValidationEnvelope{Result: result})
}
