package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/saveyours/booking-api/internal/models"
	appErrors "github.com/saveyours/booking-api/pkg/errors"
	"github.com/saveyours/booking-api/pkg/response"
)

type allocationService interface {
	Allocate(ctx context.Context, conf models.PaymentConfirmation) (models.AllocationResult, error)
}

// AllocationHandler runs manual payment reconciliation.
type AllocationHandler struct {
	service allocationService
	logger  *zap.Logger
}

// NewAllocationHandler constructs AllocationHandler.
func NewAllocationHandler(svc allocationService, logger *zap.Logger) *AllocationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AllocationHandler{service: svc, logger: logger}
}

// Create godoc
// @Summary Record a payment by hand
// @Description Run allocation for a payment confirmed outside the webhook. Replays of the same payment reference are no-ops.
// @Tags Allocations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.PaymentConfirmation true "Payment confirmation"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/allocations [post]
func (h *AllocationHandler) Create(c *gin.Context) {
	var req models.PaymentConfirmation
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment confirmation"))
		return
	}
	h.logger.Info("manual allocation requested", zap.String("admin", actorEmail(c)), zap.String("payment_reference", req.PaymentReference))

	result, err := h.service.Allocate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
