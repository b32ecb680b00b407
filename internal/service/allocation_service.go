package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/saveyours/booking-api/internal/models"
	"github.com/saveyours/booking-api/internal/repository"
	appErrors "github.com/saveyours/booking-api/pkg/errors"
)

type allocationSessionReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.SessionDetail, error)
}

type allocationEnrollmentWriter interface {
	CreateWithSeat(ctx context.Context, enrollment *models.Enrollment) (bool, error)
	FindByPayment(ctx context.Context, sessionID, paymentReference string) (*models.Enrollment, error)
}

type voucherClaimer interface {
	ClaimForEnrollment(ctx context.Context, sessionID, enrollmentID, email string, at time.Time) (*models.Voucher, error)
}

type enrollmentNotifier interface {
	SendEnrollmentConfirmation(ctx context.Context, to string, data models.EnrollmentConfirmation) error
	SendVoucherEmail(ctx context.Context, to string, data models.VoucherNotice) error
}

// AllocationService turns a confirmed payment into enrollments, seats, vouchers and emails.
// Replays of the same payment reference are no-ops per session.
type AllocationService struct {
	sessions    allocationSessionReader
	enrollments allocationEnrollmentWriter
	vouchers    voucherClaimer
	notifier    enrollmentNotifier
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewAllocationService constructs AllocationService.
func NewAllocationService(sessions allocationSessionReader, enrollments allocationEnrollmentWriter, vouchers voucherClaimer, notifier enrollmentNotifier, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AllocationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AllocationService{
		sessions:    sessions,
		enrollments: enrollments,
		vouchers:    vouchers,
		notifier:    notifier,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type claimedVoucher struct {
	session *models.SessionDetail
	voucher *models.Voucher
}

// Allocate processes every session of a confirmed payment. Per-session problems are
// reported in the result; only an invalid confirmation returns an error.
func (s *AllocationService) Allocate(ctx context.Context, conf models.PaymentConfirmation) (models.AllocationResult, error) {
	conf = normalizeConfirmation(conf)
	result := models.AllocationResult{PaymentReference: conf.PaymentReference}
	if err := s.validator.Struct(conf); err != nil {
		return result, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment confirmation")
	}

	log := s.logger.With(zap.String("payment_reference", conf.PaymentReference), zap.String("email", conf.BuyerEmail))

	var (
		lines   []models.ClassLine
		claimed []claimedVoucher
		priced  int64
	)
	for _, sessionID := range conf.SessionIDs {
		outcome, session, voucher := s.allocateSession(ctx, log, conf, sessionID)
		result.Sessions = append(result.Sessions, outcome)
		if outcome.Outcome != models.OutcomeEnrolled {
			continue
		}
		priced += session.ClassPriceCents
		lines = append(lines, models.ClassLine{
			ClassName: session.ClassName,
			Date:      session.Date,
			StartTime: session.StartTime,
			EndTime:   session.EndTime,
			Location:  session.Location,
		})
		if voucher != nil {
			claimed = append(claimed, claimedVoucher{session: session, voucher: voucher})
		}
	}

	if len(conf.SessionIDs) > 1 && conf.AmountTotalCents > 0 && len(lines) == len(conf.SessionIDs) && priced != conf.AmountTotalCents {
		log.Warn("payment total differs from class prices",
			zap.Int64("amount_total_cents", conf.AmountTotalCents), zap.Int64("priced_cents", priced))
	}

	if len(lines) > 0 {
		s.cache.InvalidateSessions(ctx)
		result.EmailsQueued += s.notify(ctx, log, conf, lines, claimed)
	}

	s.metrics.RecordAllocation(result)
	log.Info("payment allocated",
		zap.Int("enrolled", result.Count(models.OutcomeEnrolled)),
		zap.Int("duplicate", result.Count(models.OutcomeDuplicate)),
		zap.Int("failed", result.Count(models.OutcomeFailed)),
		zap.Int("emails_queued", result.EmailsQueued))
	return result, nil
}

func (s *AllocationService) allocateSession(ctx context.Context, log *zap.Logger, conf models.PaymentConfirmation, sessionID string) (models.SessionAllocation, *models.SessionDetail, *models.Voucher) {
	outcome := models.SessionAllocation{SessionID: sessionID}
	log = log.With(zap.String("session_id", sessionID))

	session, err := s.sessions.FindDetailByID(ctx, sessionID)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Warn("purchased session not found")
			outcome.Outcome = models.OutcomeNotFound
			return outcome, nil, nil
		}
		log.Error("failed to load session", zap.Error(err))
		outcome.Outcome = models.OutcomeFailed
		outcome.Error = err.Error()
		return outcome, nil, nil
	}

	enrollment := &models.Enrollment{
		SessionID:        sessionID,
		GuestEmail:       conf.BuyerEmail,
		GuestName:        conf.BuyerName,
		GuestPhone:       conf.BuyerPhone,
		AmountPaidCents:  amountFor(conf, session),
		PaymentReference: conf.PaymentReference,
		Status:           models.EnrollmentStatusConfirmed,
		PaymentStatus:    models.PaymentStatusPaid,
		EnrolledAt:       s.now(),
	}
	created, err := s.enrollments.CreateWithSeat(ctx, enrollment)
	switch {
	case errors.Is(err, repository.ErrSessionFull):
		log.Warn("session full, payment not enrolled")
		outcome.Outcome = models.OutcomeCapacityExceeded
		return outcome, nil, nil
	case errors.Is(err, repository.ErrSessionCancelled):
		log.Warn("session cancelled, payment not enrolled")
		outcome.Outcome = models.OutcomeSessionCancelled
		return outcome, nil, nil
	case err != nil:
		log.Error("failed to create enrollment", zap.Error(err))
		outcome.Outcome = models.OutcomeFailed
		outcome.Error = err.Error()
		return outcome, nil, nil
	}

	if !created {
		outcome.Outcome = models.OutcomeDuplicate
		if existing, err := s.enrollments.FindByPayment(ctx, sessionID, conf.PaymentReference); err == nil {
			outcome.EnrollmentID = existing.ID
		}
		log.Info("payment already recorded for session")
		return outcome, nil, nil
	}

	outcome.Outcome = models.OutcomeEnrolled
	outcome.EnrollmentID = enrollment.ID

	voucher, err := s.vouchers.ClaimForEnrollment(ctx, sessionID, enrollment.ID, conf.BuyerEmail, enrollment.EnrolledAt)
	switch {
	case err != nil:
		log.Error("voucher claim failed, enrollment kept", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
		s.metrics.RecordVoucherClaim(ClaimResultError)
		outcome.VoucherMissing = true
	case voucher == nil:
		log.Warn("voucher pool exhausted, enrollment kept without voucher", zap.String("enrollment_id", enrollment.ID))
		s.metrics.RecordVoucherClaim(ClaimResultExhausted)
		outcome.VoucherMissing = true
	default:
		s.metrics.RecordVoucherClaim(ClaimResultClaimed)
		outcome.VoucherID = voucher.ID
	}
	return outcome, session, voucher
}

func (s *AllocationService) notify(ctx context.Context, log *zap.Logger, conf models.PaymentConfirmation, lines []models.ClassLine, claimed []claimedVoucher) int {
	queued := 0
	if err := s.notifier.SendEnrollmentConfirmation(ctx, conf.BuyerEmail, models.EnrollmentConfirmation{Name: conf.BuyerName, Classes: lines}); err != nil {
		log.Error("enrollment confirmation email failed", zap.Error(err))
	} else {
		queued++
	}

	for _, c := range claimed {
		notice := models.VoucherNotice{
			Name:       conf.BuyerName,
			ClassName:  c.session.ClassName,
			Date:       c.session.Date,
			StartTime:  c.session.StartTime,
			EndTime:    c.session.EndTime,
			Location:   c.session.Location,
			VoucherURL: c.voucher.URL,
		}
		if err := s.notifier.SendVoucherEmail(ctx, conf.BuyerEmail, notice); err != nil {
			log.Error("voucher email failed", zap.String("voucher_id", c.voucher.ID), zap.Error(err))
			continue
		}
		queued++
	}
	return queued
}

// amountFor picks the amount recorded on one enrollment. A single-session payment
// records the charged total; carts record each class price.
func amountFor(conf models.PaymentConfirmation, session *models.SessionDetail) int64 {
	if len(conf.SessionIDs) == 1 && conf.AmountTotalCents > 0 {
		return conf.AmountTotalCents
	}
	return session.ClassPriceCents
}

// normalizeConfirmation trims fields, lower-cases the email and drops repeated or
// blank session ids while keeping cart order.
func normalizeConfirmation(conf models.PaymentConfirmation) models.PaymentConfirmation {
	conf.PaymentReference = strings.TrimSpace(conf.PaymentReference)
	conf.BuyerEmail = strings.ToLower(strings.TrimSpace(conf.BuyerEmail))
	conf.BuyerName = strings.TrimSpace(conf.BuyerName)
	conf.BuyerPhone = strings.TrimSpace(conf.BuyerPhone)

	seen := make(map[string]struct{}, len(conf.SessionIDs))
	ids := make([]string, 0, len(conf.SessionIDs))
	for _, id := range conf.SessionIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	conf.SessionIDs = ids
	return conf
}
