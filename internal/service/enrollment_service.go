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

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	MarkCompleted(ctx context.Context, id string, at time.Time) error
	SetOnlineCourseCompleted(ctx context.Context, id string, done bool) error
	Cancel(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
}

// EnrollmentService runs admin enrollment workflows. Cancel and restore move the
// session seat counter together with the enrollment.
type EnrollmentService struct {
	repo      enrollmentRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, cache: cache, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, query dto.EnrollmentQuery) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment filter")
	}
	page, size := normalizePage(query.Page, query.PageSize)
	filter := models.EnrollmentFilter{
		SessionID: query.SessionID,
		Status:    models.EnrollmentStatus(query.Status),
		Email:     strings.TrimSpace(query.Email),
		Page:      page,
		PageSize:  size,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
	}
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one enrollment with session and voucher context.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, enrollmentError(err, "failed to load enrollment")
	}
	return detail, nil
}

// Complete marks an attended enrollment completed. The seat stays taken.
func (s *EnrollmentService) Complete(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if err := s.repo.MarkCompleted(ctx, id, s.now()); err != nil {
		return nil, enrollmentError(err, "failed to complete enrollment")
	}
	s.logger.Info("enrollment completed", zap.String("enrollment_id", id))
	return s.Get(ctx, id)
}

// SetOnlineCourse records whether the buyer finished the online portion.
func (s *EnrollmentService) SetOnlineCourse(ctx context.Context, id string, req dto.OnlineCourseRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid online course payload")
	}
	if err := s.repo.SetOnlineCourseCompleted(ctx, id, *req.Completed); err != nil {
		return nil, enrollmentError(err, "failed to update enrollment")
	}
	return s.Get(ctx, id)
}

// Cancel cancels an enrollment and frees its seat.
func (s *EnrollmentService) Cancel(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if err := s.repo.Cancel(ctx, id); err != nil {
		return nil, enrollmentError(err, "failed to cancel enrollment")
	}
	s.cache.InvalidateSessions(ctx)
	s.logger.Info("enrollment cancelled", zap.String("enrollment_id", id))
	return s.Get(ctx, id)
}

// Restore re-confirms a cancelled enrollment if its session still has a seat.
func (s *EnrollmentService) Restore(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if err := s.repo.Restore(ctx, id); err != nil {
		return nil, enrollmentError(err, "failed to restore enrollment")
	}
	s.cache.InvalidateSessions(ctx)
	s.logger.Info("enrollment restored", zap.String("enrollment_id", id))
	return s.Get(ctx, id)
}

func enrollmentError(err error, message string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	case errors.Is(err, repository.ErrSessionFull):
		return appErrors.Clone(appErrors.ErrCapacityExceeded, "session is full; enrollment cannot be restored")
	case errors.Is(err, repository.ErrSessionCancelled):
		return appErrors.Clone(appErrors.ErrSessionCancelled, "")
	case errors.Is(err, repository.ErrInvalidTransition):
		return appErrors.Clone(appErrors.ErrConflict, "enrollment status does not allow this change")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
	}
}
