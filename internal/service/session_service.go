package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/saveyours/booking-api/internal/dto"
	"github.com/saveyours/booking-api/internal/models"
	"github.com/saveyours/booking-api/internal/repository"
	appErrors "github.com/saveyours/booking-api/pkg/errors"
)

const dateLayout = "2006-01-02"

type sessionRepository interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Session, error)
	FindDetailByID(ctx context.Context, id string) (*models.SessionDetail, error)
	Create(ctx context.Context, session *models.Session) error
	Update(ctx context.Context, session *models.Session) error
	Cancel(ctx context.Context, id string) (int, error)
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// SessionService schedules sessions and serves the public listing.
type SessionService struct {
	repo            sessionRepository
	classes         classReader
	cache           *CacheService
	validator       *validator.Validate
	logger          *zap.Logger
	defaultLocation string
	now             func() time.Time
}

// NewSessionService constructs SessionService.
func NewSessionService(repo sessionRepository, classes classReader, cache *CacheService, defaultLocation string, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		repo:            repo,
		classes:         classes,
		cache:           cache,
		validator:       validate,
		logger:          logger,
		defaultLocation: defaultLocation,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

type publicSessionPage struct {
	Sessions []models.SessionDetail `json:"sessions"`
	Total    int                    `json:"total"`
}

// ListPublic returns upcoming bookable sessions. The boolean reports a cache hit.
func (s *SessionService) ListPublic(ctx context.Context, classID string, page, pageSize int) ([]models.SessionDetail, *models.Pagination, bool, error) {
	page, pageSize = normalizePage(page, pageSize)
	today := truncateDate(s.now())
	key := fmt.Sprintf("%spublic:%s:%s:%d:%d", sessionsCachePrefix, today.Format(dateLayout), classID, page, pageSize)

	var cached publicSessionPage
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached.Sessions, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: cached.Total}, true, nil
	}

	sessions, total, err := s.repo.List(ctx, models.SessionFilter{
		ClassID:  classID,
		Status:   models.SessionStatusScheduled,
		DateFrom: &today,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return nil, nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	if sessions == nil {
		sessions = []models.SessionDetail{}
	}
	_ = s.cache.Set(ctx, key, publicSessionPage{Sessions: sessions, Total: total}, 0)
	return sessions, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, false, nil
}

// List returns sessions for the admin console.
func (s *SessionService) List(ctx context.Context, query dto.SessionQuery) ([]models.SessionDetail, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session filter")
	}
	filter := models.SessionFilter{
		ClassID:   query.ClassID,
		Status:    models.SessionStatus(query.Status),
		SortOrder: query.SortOrder,
	}
	filter.Page, filter.PageSize = normalizePage(query.Page, query.PageSize)
	if query.DateFrom != "" {
		from, _ := time.Parse(dateLayout, query.DateFrom)
		filter.DateFrom = &from
	}
	if query.DateTo != "" {
		to, _ := time.Parse(dateLayout, query.DateTo)
		filter.DateTo = &to
	}

	sessions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a session with its class.
func (s *SessionService) Get(ctx context.Context, id string) (*models.SessionDetail, error) {
	session, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, sessionLookupError(err)
	}
	return session, nil
}

// Create schedules a new session with no seats taken.
func (s *SessionService) Create(ctx context.Context, req dto.CreateSessionRequest) (*models.SessionDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	if req.EndTime <= req.StartTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}
	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	date, _ := time.Parse(dateLayout, req.Date)
	location := strings.TrimSpace(req.Location)
	if location == "" {
		location = s.defaultLocation
	}
	session := &models.Session{
		ClassID:     req.ClassID,
		Date:        date,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Location:    location,
		MaxCapacity: req.MaxCapacity,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}
	s.cache.InvalidateSessions(ctx)
	s.logger.Info("session created", zap.String("session_id", session.ID), zap.String("date", req.Date))
	return s.Get(ctx, session.ID)
}

// Update changes schedule fields. Capacity may not drop below the seats already taken.
func (s *SessionService) Update(ctx context.Context, id string, req dto.UpdateSessionRequest) (*models.SessionDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, sessionLookupError(err)
	}
	if session.Status == models.SessionStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrSessionCancelled, "cancelled sessions cannot be edited")
	}

	if req.Date != nil {
		session.Date, _ = time.Parse(dateLayout, *req.Date)
	}
	if req.StartTime != nil {
		session.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		session.EndTime = *req.EndTime
	}
	if req.Location != nil {
		session.Location = strings.TrimSpace(*req.Location)
		if session.Location == "" {
			session.Location = s.defaultLocation
		}
	}
	if req.MaxCapacity != nil {
		session.MaxCapacity = *req.MaxCapacity
	}
	if session.EndTime <= session.StartTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}

	if err := s.repo.Update(ctx, session); err != nil {
		if errors.Is(err, repository.ErrCapacityBelowBooked) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "max_capacity is below current enrollment")
		}
		return nil, sessionLookupError(err)
	}
	s.cache.InvalidateSessions(ctx)
	return s.Get(ctx, id)
}

// Cancel cancels a session and every pending or confirmed enrollment in it.
func (s *SessionService) Cancel(ctx context.Context, id string) (*dto.CancelSessionResponse, error) {
	cancelled, err := s.repo.Cancel(ctx, id)
	if err != nil {
		return nil, sessionLookupError(err)
	}
	s.cache.InvalidateSessions(ctx)
	s.logger.Info("session cancelled", zap.String("session_id", id), zap.Int("enrollments_cancelled", cancelled))
	return &dto.CancelSessionResponse{SessionID: id, EnrollmentsCancelled: cancelled}, nil
}

func sessionLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "session not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > models.MaxPageSize {
		size = models.MaxPageSize
	}
	return page, size
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
