package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/saveyours/booking-api/internal/service"
	appErrors "github.com/saveyours/booking-api/pkg/errors"
	"github.com/saveyours/booking-api/pkg/response"
	"github.com/saveyours/booking-api/pkg/webhook"
)

const maxWebhookBody = 1 << 20

type webhookService interface {
	HandlePayment(ctx context.Context, payload []byte, signature string) (*service.WebhookOutcome, error)
}

// WebhookHandler receives payment processor events.
type WebhookHandler struct {
	service webhookService
}

// NewWebhookHandler constructs WebhookHandler.
func NewWebhookHandler(svc webhookService) *WebhookHandler {
	return &WebhookHandler{service: svc}
}

// Payment godoc
// @Summary Payment webhook
// @Description Verify a signed processor event and allocate seats and vouchers for succeeded payments. Responds 500 only when redelivery may succeed.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "t=<unix>,v1=<hex hmac>"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /webhooks/payments [post]
func (h *WebhookHandler) Payment(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable webhook body"))
		return
	}

	outcome, err := h.service.HandlePayment(c.Request.Context(), payload, c.GetHeader(webhook.SignatureHeader))
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if outcome.Retryable() {
		status = http.StatusInternalServerError
	}
	response.JSON(c, status, outcome, nil)
}
