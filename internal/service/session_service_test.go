package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saveyours/booking-api/internal/dto"
	"github.com/saveyours/booking-api/internal/models"
	"github.com/saveyours/booking-api/internal/repository"
	appErrors "github.com/saveyours/booking-api/pkg/errors"
)

type stubCacheRepo struct {
	store map[string][]byte
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if s.store == nil {
		s.store = map[string][]byte{}
	}
	s.store[key] = raw
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range s.store {
		if strings.HasPrefix(key, prefix) {
			delete(s.store, key)
		}
	}
	return nil
}

type mockSessionRepo struct {
	sessions   map[string]*models.SessionDetail
	listCalls  int
	lastFilter models.SessionFilter
	cancelled  int
}

func (m *mockSessionRepo) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, int, error) {
	m.listCalls++
	m.lastFilter = filter
	var out []models.SessionDetail
	for _, s := range m.sessions {
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*models.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := s.Session
	return &copied, nil
}

func (m *mockSessionRepo) FindDetailByID(ctx context.Context, id string) (*models.SessionDetail, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *s
	return &copied, nil
}

func (m *mockSessionRepo) Create(ctx context.Context, session *models.Session) error {
	session.ID = "new-session"
	session.Status = models.SessionStatusScheduled
	m.sessions[session.ID] = &models.SessionDetail{Session: *session, ClassName: "CPR"}
	return nil
}

func (m *mockSessionRepo) Update(ctx context.Context, session *models.Session) error {
	existing, ok := m.sessions[session.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if existing.CurrentEnrollment > session.MaxCapacity {
		return repository.ErrCapacityBelowBooked
	}
	session.Status = models.DeriveSessionStatus(session.Status, session.CurrentEnrollment, session.MaxCapacity)
	existing.Session = *session
	return nil
}

func (m *mockSessionRepo) Cancel(ctx context.Context, id string) (int, error) {
	s, ok := m.sessions[id]
	if !ok {
		return 0, sql.ErrNoRows
	}
	s.Status = models.SessionStatusCancelled
	return m.cancelled, nil
}

type stubClassReader map[string]models.Class

func (s stubClassReader) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := s[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func newSessionFixture() (*SessionService, *mockSessionRepo, *stubCacheRepo) {
	repo := &mockSessionRepo{sessions: map[string]*models.SessionDetail{
		"s1": {Session: models.Session{ID: "s1", StartTime: "09:00", EndTime: "12:00", MaxCapacity: 4, CurrentEnrollment: 3, Status: models.SessionStatusScheduled}, ClassName: "CPR"},
	}}
	cacheRepo := &stubCacheRepo{}
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewSessionService(repo, stubClassReader{"c1": {ID: "c1", Name: "CPR"}}, cache, "Main Studio", nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 10, 19, 15, 4, 0, 0, time.UTC) }
	return svc, repo, cacheRepo
}

func TestSessionServiceListPublicUsesCache(t *testing.T) {
	svc, repo, cacheRepo := newSessionFixture()
	ctx := context.Background()

	sessions, pagination, hit, err := svc.ListPublic(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, sessions, 1)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, models.SessionStatusScheduled, repo.lastFilter.Status)
	require.NotNil(t, repo.lastFilter.DateFrom)
	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), *repo.lastFilter.DateFrom)

	sessions, _, hit, err = svc.ListPublic(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Len(t, sessions, 1)
	assert.Equal(t, 1, repo.listCalls)

	_, err = svc.Cancel(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, cacheRepo.store)

	sessions, _, hit, err = svc.ListPublic(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Empty(t, sessions)
}

func TestSessionServiceCreate(t *testing.T) {
	svc, repo, _ := newSessionFixture()
	ctx := context.Background()

	detail, err := svc.Create(ctx, dto.CreateSessionRequest{ClassID: "c1", Date: "2026-11-14", StartTime: "09:00", EndTime: "12:00", MaxCapacity: 8})
	require.NoError(t, err)
	assert.Equal(t, "Main Studio", detail.Location)
	assert.Equal(t, time.Date(2026, 11, 14, 0, 0, 0, 0, time.UTC), detail.Date)
	assert.Equal(t, models.SessionStatusScheduled, repo.sessions["new-session"].Status)

	_, err = svc.Create(ctx, dto.CreateSessionRequest{ClassID: "missing", Date: "2026-11-14", StartTime: "09:00", EndTime: "12:00", MaxCapacity: 8})
	requireAppError(t, err, http.StatusNotFound)

	_, err = svc.Create(ctx, dto.CreateSessionRequest{ClassID: "c1", Date: "2026-11-14", StartTime: "12:00", EndTime: "09:00", MaxCapacity: 8})
	requireAppError(t, err, http.StatusBadRequest)

	_, err = svc.Create(ctx, dto.CreateSessionRequest{ClassID: "c1", Date: "14/11/2026", StartTime: "09:00", EndTime: "12:00", MaxCapacity: 8})
	requireAppError(t, err, http.StatusBadRequest)
}

func TestSessionServiceUpdateCapacityGuard(t *testing.T) {
	svc, _, _ := newSessionFixture()
	ctx := context.Background()

	tooSmall := 2
	_, err := svc.Update(ctx, "s1", dto.UpdateSessionRequest{MaxCapacity: &tooSmall})
	requireAppError(t, err, http.StatusConflict)

	exact := 3
	detail, err := svc.Update(ctx, "s1", dto.UpdateSessionRequest{MaxCapacity: &exact})
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusFull, detail.Status)

	_, err = svc.Update(ctx, "missing", dto.UpdateSessionRequest{MaxCapacity: &exact})
	requireAppError(t, err, http.StatusNotFound)
}

func TestSessionServiceCancelReportsCascade(t *testing.T) {
	svc, repo, _ := newSessionFixture()
	repo.cancelled = 3

	resp, err := svc.Cancel(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, resp.EnrollmentsCancelled)

	tomorrow := "2026-10-20"
	_, err = svc.Update(context.Background(), "s1", dto.UpdateSessionRequest{Date: &tomorrow})
	appErr := requireAppError(t, err, http.StatusConflict)
	assert.Equal(t, appErrors.ErrSessionCancelled.Code, appErr.Code)

	_, err = svc.Cancel(context.Background(), "missing")
	requireAppError(t, err, http.StatusNotFound)
}
