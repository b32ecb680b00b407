package service

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/saveyours/booking-api/internal/models"
	appErrors "github.com/saveyours/booking-api/pkg/errors"
	"github.com/saveyours/booking-api/pkg/webhook"
)

// Webhook result labels.
const (
	WebhookResultProcessed = "processed"
	WebhookResultIgnored   = "ignored"
	WebhookResultRejected  = "rejected"
	WebhookResultRetry     = "retry"
)

type paymentAllocator interface {
	Allocate(ctx context.Context, conf models.PaymentConfirmation) (models.AllocationResult, error)
}

type signatureVerifier interface {
	ConstructEvent(payload []byte, header string) (*webhook.Event, error)
}

// WebhookOutcome is returned to the payment processor.
type WebhookOutcome struct {
	EventID    string                   `json:"event_id"`
	Type       string                   `json:"type"`
	Result     string                   `json:"result"`
	Reason     string                   `json:"reason,omitempty"`
	Allocation *models.AllocationResult `json:"allocation,omitempty"`
}

// Retryable reports whether the processor should redeliver the event.
func (o *WebhookOutcome) Retryable() bool {
	return o != nil && o.Result == WebhookResultRetry
}

// WebhookService verifies processor events and feeds succeeded payments to allocation.
type WebhookService struct {
	verifier  signatureVerifier
	allocator paymentAllocator
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewWebhookService constructs WebhookService.
func NewWebhookService(verifier signatureVerifier, allocator paymentAllocator, metrics *MetricsService, logger *zap.Logger) *WebhookService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookService{verifier: verifier, allocator: allocator, metrics: metrics, logger: logger}
}

// HandlePayment verifies and processes one raw webhook delivery.
func (s *WebhookService) HandlePayment(ctx context.Context, payload []byte, signature string) (*WebhookOutcome, error) {
	evt, err := s.verifier.ConstructEvent(payload, signature)
	if err != nil {
		s.metrics.RecordWebhookEvent("unknown", WebhookResultRejected)
		switch {
		case errors.Is(err, webhook.ErrMissingSecret):
			s.logger.Error("webhook secret not configured")
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "webhook secret not configured")
		case errors.Is(err, webhook.ErrMalformedEvent):
			s.logger.Warn("webhook payload rejected", zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid webhook payload")
		default:
			s.logger.Warn("webhook signature rejected", zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidSignature.Code, appErrors.ErrInvalidSignature.Status, appErrors.ErrInvalidSignature.Message)
		}
	}

	outcome := &WebhookOutcome{EventID: evt.ID, Type: evt.Type}
	log := s.logger.With(zap.String("event_id", evt.ID), zap.String("event_type", evt.Type))
	if evt.Type != webhook.EventPaymentSucceeded {
		outcome.Result = WebhookResultIgnored
		s.metrics.RecordWebhookEvent(evt.Type, outcome.Result)
		log.Debug("webhook event ignored")
		return outcome, nil
	}

	conf, reason := ConfirmationFromIntent(evt.PaymentIntent)
	if reason != "" {
		outcome.Result = WebhookResultRejected
		outcome.Reason = reason
		s.metrics.RecordWebhookEvent(evt.Type, outcome.Result)
		log.Error("payment succeeded without usable booking metadata", zap.String("payment_intent", conf.PaymentReference), zap.String("reason", reason))
		return outcome, nil
	}

	result, err := s.allocator.Allocate(ctx, conf)
	if err != nil {
		outcome.Result = WebhookResultRejected
		outcome.Reason = err.Error()
		s.metrics.RecordWebhookEvent(evt.Type, outcome.Result)
		log.Error("payment confirmation rejected", zap.String("payment_intent", conf.PaymentReference), zap.Error(err))
		return outcome, nil
	}
	outcome.Allocation = &result
	outcome.Result = WebhookResultProcessed
	if result.Retryable() {
		outcome.Result = WebhookResultRetry
	}
	s.metrics.RecordWebhookEvent(evt.Type, outcome.Result)
	return outcome, nil
}

// ConfirmationFromIntent reads the booking metadata attached at checkout. A non-empty
// reason means the intent cannot be allocated.
func ConfirmationFromIntent(intent *webhook.PaymentIntent) (models.PaymentConfirmation, string) {
	if intent == nil {
		return models.PaymentConfirmation{}, "payment intent missing"
	}
	meta := intent.Metadata
	conf := models.PaymentConfirmation{
		PaymentReference: intent.ID,
		BuyerEmail:       strings.TrimSpace(meta["email"]),
		BuyerName:        strings.TrimSpace(meta["name"]),
		BuyerPhone:       strings.TrimSpace(meta["phone"]),
	}

	ids := meta["sessionIds"]
	if strings.TrimSpace(ids) == "" {
		ids = meta["sessionId"]
	}
	for _, id := range strings.Split(ids, ",") {
		if id = strings.TrimSpace(id); id != "" {
			conf.SessionIDs = append(conf.SessionIDs, id)
		}
	}

	conf.AmountTotalCents = dollarsToCents(meta["totalAmount"])
	if conf.AmountTotalCents == 0 {
		conf.AmountTotalCents = intent.AmountReceived
	}
	if conf.AmountTotalCents == 0 {
		conf.AmountTotalCents = intent.Amount
	}

	switch {
	case conf.PaymentReference == "":
		return conf, "payment intent id missing"
	case len(conf.SessionIDs) == 0:
		return conf, "metadata.sessionIds missing"
	case conf.BuyerEmail == "":
		return conf, "metadata.email missing"
	}
	if conf.BuyerName == "" {
		conf.BuyerName = conf.BuyerEmail
	}
	return conf, ""
}

func dollarsToCents(raw string) int64 {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "$")
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0
	}
	return int64(math.Round(v * 100))
}
