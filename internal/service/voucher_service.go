package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/saveyours/booking-api/internal/dto"
	"github.com/saveyours/booking-api/internal/models"
	"github.com/saveyours/booking-api/internal/repository"
	appErrors "github.com/saveyours/booking-api/pkg/errors"
)

type voucherRepository interface {
	ListBySession(ctx context.Context, sessionID string, status models.VoucherStatus) ([]models.Voucher, error)
	Stats(ctx context.Context, sessionID string) (models.VoucherStats, error)
	AddMany(ctx context.Context, sessionID string, urls []string) ([]models.Voucher, error)
	FindByID(ctx context.Context, id string) (*models.Voucher, error)
	UpdateURL(ctx context.Context, id, url string) error
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) (int, error)
	Release(ctx context.Context, voucherID string) error
	Assign(ctx context.Context, voucherID, email string, enrollmentID *string, at time.Time) (*models.Voucher, error)
	ClaimForEnrollment(ctx context.Context, sessionID, enrollmentID, email string, at time.Time) (*models.Voucher, error)
}

type sessionDetailReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.SessionDetail, error)
}

type voucherEnrollments interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ListWithoutVoucher(ctx context.Context, sessionID string) ([]models.Enrollment, error)
}

type voucherNotifier interface {
	SendVoucherEmail(ctx context.Context, to string, data models.VoucherNotice) error
}

// VoucherService manages per-session voucher pools for admins.
type VoucherService struct {
	repo        voucherRepository
	sessions    sessionDetailReader
	enrollments voucherEnrollments
	notifier    voucherNotifier
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewVoucherService constructs VoucherService.
func NewVoucherService(repo voucherRepository, sessions sessionDetailReader, enrollments voucherEnrollments, notifier voucherNotifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *VoucherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VoucherService{
		repo:        repo,
		sessions:    sessions,
		enrollments: enrollments,
		notifier:    notifier,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// List returns a session pool, optionally filtered by status.
func (s *VoucherService) List(ctx context.Context, sessionID, status string) ([]models.Voucher, error) {
	st := models.VoucherStatus(status)
	if st != "" && st != models.VoucherStatusAvailable && st != models.VoucherStatusAssigned {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be available or assigned")
	}
	if _, err := s.session(ctx, sessionID); err != nil {
		return nil, err
	}
	vouchers, err := s.repo.ListBySession(ctx, sessionID, st)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list vouchers")
	}
	if vouchers == nil {
		vouchers = []models.Voucher{}
	}
	return vouchers, nil
}

// Stats counts a session pool.
func (s *VoucherService) Stats(ctx context.Context, sessionID string) (models.VoucherStats, error) {
	if _, err := s.session(ctx, sessionID); err != nil {
		return models.VoucherStats{}, err
	}
	stats, err := s.repo.Stats(ctx, sessionID)
	if err != nil {
		return models.VoucherStats{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count vouchers")
	}
	return stats, nil
}

// Add imports URLs into a session pool. Lines are trimmed and blanks skipped;
// repeated URLs are imported anyway and reported.
func (s *VoucherService) Add(ctx context.Context, sessionID string, req dto.AddVouchersRequest) (*dto.AddVouchersResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid voucher payload")
	}
	if _, err := s.session(ctx, sessionID); err != nil {
		return nil, err
	}

	existing, err := s.repo.ListBySession(ctx, sessionID, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load voucher pool")
	}
	seen := make(map[string]struct{}, len(existing)+len(req.URLs))
	for _, v := range existing {
		seen[v.URL] = struct{}{}
	}

	resp := &dto.AddVouchersResponse{}
	urls := make([]string, 0, len(req.URLs))
	for _, raw := range req.URLs {
		url := strings.TrimSpace(raw)
		if url == "" {
			resp.Skipped++
			continue
		}
		if _, dup := seen[url]; dup {
			resp.Duplicates++
		}
		seen[url] = struct{}{}
		urls = append(urls, url)
	}
	if len(urls) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no voucher urls provided")
	}
	if resp.Duplicates > 0 {
		s.logger.Warn("duplicate voucher urls imported", zap.String("session_id", sessionID), zap.Int("duplicates", resp.Duplicates))
	}

	vouchers, err := s.repo.AddMany(ctx, sessionID, urls)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add vouchers")
	}
	resp.Added = len(vouchers)
	resp.Vouchers = vouchers
	s.logger.Info("vouchers added", zap.String("session_id", sessionID), zap.Int("added", resp.Added), zap.Int("skipped", resp.Skipped))
	return resp, nil
}

// UpdateURL replaces the access URL of one voucher.
func (s *VoucherService) UpdateURL(ctx context.Context, id string, req dto.UpdateVoucherRequest) (*models.Voucher, error) {
	req.URL = strings.TrimSpace(req.URL)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid voucher payload")
	}
	if err := s.repo.UpdateURL(ctx, id, req.URL); err != nil {
		return nil, voucherError(err, "failed to update voucher")
	}
	return s.Get(ctx, id)
}

// Get returns one voucher.
func (s *VoucherService) Get(ctx context.Context, id string) (*models.Voucher, error) {
	voucher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, voucherError(err, "failed to load voucher")
	}
	return voucher, nil
}

// Delete removes one voucher.
func (s *VoucherService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return voucherError(err, "failed to delete voucher")
	}
	return nil
}

// DeleteMany removes several vouchers and returns how many existed.
func (s *VoucherService) DeleteMany(ctx context.Context, req dto.DeleteVouchersRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid voucher payload")
	}
	n, err := s.repo.DeleteMany(ctx, req.IDs)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete vouchers")
	}
	s.logger.Info("vouchers deleted", zap.Int("requested", len(req.IDs)), zap.Int("deleted", n))
	return n, nil
}

// Release returns a voucher to the pool and clears its buyer.
func (s *VoucherService) Release(ctx context.Context, id string) (*models.Voucher, error) {
	if err := s.repo.Release(ctx, id); err != nil {
		return nil, voucherError(err, "failed to release voucher")
	}
	s.logger.Info("voucher released", zap.String("voucher_id", id))
	return s.Get(ctx, id)
}

// Assign records a buyer on a voucher by hand.
func (s *VoucherService) Assign(ctx context.Context, id string, req dto.AssignVoucherRequest) (*models.Voucher, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid voucher payload")
	}
	if req.EnrollmentID != nil && strings.TrimSpace(*req.EnrollmentID) == "" {
		req.EnrollmentID = nil
	}
	if req.EnrollmentID != nil {
		if err := s.checkAssignTarget(ctx, id, *req.EnrollmentID); err != nil {
			return nil, err
		}
	}
	voucher, err := s.repo.Assign(ctx, id, req.Email, req.EnrollmentID, s.now())
	if err != nil {
		return nil, voucherError(err, "failed to assign voucher")
	}
	s.logger.Info("voucher assigned manually", zap.String("voucher_id", id), zap.String("email", req.Email))
	return voucher, nil
}

// Backfill hands available vouchers to the session's paid enrollments that have none
// and emails each buyer. It stops when the pool runs dry. On a claim failure the
// partial result is returned alongside the error.
func (s *VoucherService) Backfill(ctx context.Context, sessionID string) (*dto.BackfillResult, error) {
	session, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	pending, err := s.enrollments.ListWithoutVoucher(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}

	result := &dto.BackfillResult{SessionID: sessionID}
	for i, enrollment := range pending {
		voucher, err := s.repo.ClaimForEnrollment(ctx, sessionID, enrollment.ID, enrollment.GuestEmail, s.now())
		if err != nil {
			s.metrics.RecordVoucherClaim(ClaimResultError)
			for _, rest := range pending[i:] {
				result.Pending = append(result.Pending, rest.ID)
			}
			s.logger.Error("voucher backfill interrupted", zap.String("session_id", sessionID),
				zap.Int("assigned", result.Assigned), zap.Int("emailed", result.Emailed),
				zap.Strings("still_missing", result.Pending), zap.Error(err))
			return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to claim voucher")
		}
		if voucher == nil {
			s.metrics.RecordVoucherClaim(ClaimResultExhausted)
			for _, rest := range pending[i:] {
				result.Pending = append(result.Pending, rest.ID)
			}
			break
		}
		s.metrics.RecordVoucherClaim(ClaimResultClaimed)
		result.Assigned++

		notice := models.VoucherNotice{
			Name:       enrollment.GuestName,
			ClassName:  session.ClassName,
			Date:       session.Date,
			StartTime:  session.StartTime,
			EndTime:    session.EndTime,
			Location:   session.Location,
			VoucherURL: voucher.URL,
		}
		if err := s.notifier.SendVoucherEmail(ctx, enrollment.GuestEmail, notice); err != nil {
			s.logger.Error("backfill voucher email failed", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
			continue
		}
		result.Emailed++
	}

	stats, err := s.repo.Stats(ctx, sessionID)
	if err == nil {
		result.Remaining = stats.Available
	}
	s.logger.Info("voucher backfill finished", zap.String("session_id", sessionID),
		zap.Int("assigned", result.Assigned), zap.Int("still_missing", len(result.Pending)))
	return result, nil
}

// checkAssignTarget rejects links to unknown enrollments or to enrollments of another session.
func (s *VoucherService) checkAssignTarget(ctx context.Context, voucherID, enrollmentID string) error {
	voucher, err := s.repo.FindByID(ctx, voucherID)
	if err != nil {
		return voucherError(err, "failed to load voucher")
	}
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.SessionID != voucher.SessionID {
		return appErrors.Clone(appErrors.ErrValidation, "enrollment belongs to a different session")
	}
	return nil
}

func (s *VoucherService) session(ctx context.Context, id string) (*models.SessionDetail, error) {
	session, err := s.sessions.FindDetailByID(ctx, id)
	if err != nil {
		return nil, sessionLookupError(err)
	}
	return session, nil
}

func voucherError(err error, message string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "voucher not found")
	case errors.Is(err, repository.ErrEnrollmentHasVoucher):
		return appErrors.Clone(appErrors.ErrConflict, "enrollment already has a voucher")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
	}
}
