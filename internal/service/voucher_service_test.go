package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saveyours/booking-api/internal/dto"
	"github.com/saveyours/booking-api/internal/models"
	"github.com/saveyours/booking-api/internal/repository"
)

type memoryVoucherRepo struct {
	vouchers []*models.Voucher
	added    []string
	seq      int
}

func (m *memoryVoucherRepo) find(id string) *models.Voucher {
	for _, v := range m.vouchers {
		if v.ID == id {
			return v
		}
	}
	return nil
}

func (m *memoryVoucherRepo) ListBySession(ctx context.Context, sessionID string, status models.VoucherStatus) ([]models.Voucher, error) {
	var out []models.Voucher
	for _, v := range m.vouchers {
		if v.SessionID == sessionID && (status == "" || v.Status == status) {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (m *memoryVoucherRepo) Stats(ctx context.Context, sessionID string) (models.VoucherStats, error) {
	var stats models.VoucherStats
	for _, v := range m.vouchers {
		if v.SessionID != sessionID {
			continue
		}
		stats.Total++
		if v.Status == models.VoucherStatusAvailable {
			stats.Available++
		} else {
			stats.Assigned++
		}
	}
	return stats, nil
}

func (m *memoryVoucherRepo) AddMany(ctx context.Context, sessionID string, urls []string) ([]models.Voucher, error) {
	var out []models.Voucher
	for _, url := range urls {
		m.seq++
		v := &models.Voucher{ID: fmt.Sprintf("v%d", m.seq), SessionID: sessionID, URL: url, Status: models.VoucherStatusAvailable}
		m.vouchers = append(m.vouchers, v)
		out = append(out, *v)
	}
	m.added = append(m.added, urls...)
	return out, nil
}

func (m *memoryVoucherRepo) FindByID(ctx context.Context, id string) (*models.Voucher, error) {
	if v := m.find(id); v != nil {
		copied := *v
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memoryVoucherRepo) UpdateURL(ctx context.Context, id, url string) error {
	v := m.find(id)
	if v == nil {
		return sql.ErrNoRows
	}
	v.URL = url
	return nil
}

func (m *memoryVoucherRepo) Delete(ctx context.Context, id string) error {
	n, _ := m.DeleteMany(ctx, []string{id})
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (m *memoryVoucherRepo) DeleteMany(ctx context.Context, ids []string) (int, error) {
	drop := map[string]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	kept := m.vouchers[:0]
	n := 0
	for _, v := range m.vouchers {
		if drop[v.ID] {
			n++
			continue
		}
		kept = append(kept, v)
	}
	m.vouchers = kept
	return n, nil
}

func (m *memoryVoucherRepo) Release(ctx context.Context, id string) error {
	v := m.find(id)
	if v == nil {
		return sql.ErrNoRows
	}
	v.Status = models.VoucherStatusAvailable
	v.EnrollmentID, v.AssignedToEmail, v.AssignedAt = nil, nil, nil
	return nil
}

func (m *memoryVoucherRepo) Assign(ctx context.Context, id, email string, enrollmentID *string, at time.Time) (*models.Voucher, error) {
	v := m.find(id)
	if v == nil {
		return nil, sql.ErrNoRows
	}
	if enrollmentID != nil {
		for _, other := range m.vouchers {
			if other != v && other.EnrollmentID != nil && *other.EnrollmentID == *enrollmentID {
				return nil, repository.ErrEnrollmentHasVoucher
			}
		}
		v.EnrollmentID = enrollmentID
	}
	v.Status = models.VoucherStatusAssigned
	v.AssignedToEmail = &email
	v.AssignedAt = &at
	copied := *v
	return &copied, nil
}

func (m *memoryVoucherRepo) ClaimForEnrollment(ctx context.Context, sessionID, enrollmentID, email string, at time.Time) (*models.Voucher, error) {
	for _, v := range m.vouchers {
		if v.SessionID == sessionID && v.Status == models.VoucherStatusAvailable {
			return m.Assign(ctx, v.ID, email, &enrollmentID, at)
		}
	}
	return nil, nil
}

type stubSessionReader map[string]models.SessionDetail

func (s stubSessionReader) FindDetailByID(ctx context.Context, id string) (*models.SessionDetail, error) {
	if d, ok := s[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

type stubEnrollments struct {
	pending []models.Enrollment
	byID    map[string]models.Enrollment
}

func (s stubEnrollments) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := s.byID[id]; ok {
		return &e, nil
	}
	for _, e := range s.pending {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s stubEnrollments) ListWithoutVoucher(ctx context.Context, sessionID string) ([]models.Enrollment, error) {
	return s.pending, nil
}

func newVoucherFixture(pending ...models.Enrollment) (*VoucherService, *memoryVoucherRepo, *fakeNotifier) {
	repo := &memoryVoucherRepo{}
	notifier := &fakeNotifier{}
	sessions := stubSessionReader{"s1": {Session: models.Session{ID: "s1", StartTime: "09:00", EndTime: "12:00"}, ClassName: "Adult CPR/AED"}}
	enrollments := stubEnrollments{pending: pending, byID: map[string]models.Enrollment{
		"e1":    {ID: "e1", SessionID: "s1"},
		"e2":    {ID: "e2", SessionID: "s1"},
		"other": {ID: "other", SessionID: "s2"},
	}}
	return NewVoucherService(repo, sessions, enrollments, notifier, nil, nil, nil), repo, notifier
}

func TestVoucherServiceAddTrimsAndReportsDuplicates(t *testing.T) {
	svc, repo, _ := newVoucherFixture()
	_, err := repo.AddMany(context.Background(), "s1", []string{"https://portal/x"})
	require.NoError(t, err)

	resp, err := svc.Add(context.Background(), "s1", dto.AddVouchersRequest{URLs: []string{" https://portal/a ", "", "   ", "https://portal/a", "https://portal/x"}})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Added)
	assert.Equal(t, 2, resp.Skipped)
	assert.Equal(t, 2, resp.Duplicates)
	assert.Equal(t, []string{"https://portal/x", "https://portal/a", "https://portal/a", "https://portal/x"}, repo.added)

	_, err = svc.Add(context.Background(), "s1", dto.AddVouchersRequest{URLs: []string{" "}})
	requireAppError(t, err, http.StatusBadRequest)

	_, err = svc.Add(context.Background(), "nope", dto.AddVouchersRequest{URLs: []string{"https://portal/b"}})
	requireAppError(t, err, http.StatusNotFound)
}

func TestVoucherServiceAdminOperations(t *testing.T) {
	svc, repo, _ := newVoucherFixture()
	ctx := context.Background()
	_, err := repo.AddMany(ctx, "s1", []string{"https://portal/1", "https://portal/2", "https://portal/3"})
	require.NoError(t, err)

	updated, err := svc.UpdateURL(ctx, "v1", dto.UpdateVoucherRequest{URL: " https://portal/1b "})
	require.NoError(t, err)
	assert.Equal(t, "https://portal/1b", updated.URL)

	_, err = svc.UpdateURL(ctx, "v1", dto.UpdateVoucherRequest{URL: "not a url"})
	requireAppError(t, err, http.StatusBadRequest)

	enrollmentID := "e1"
	assigned, err := svc.Assign(ctx, "v1", dto.AssignVoucherRequest{Email: " Walk@In.com ", EnrollmentID: &enrollmentID})
	require.NoError(t, err)
	assert.Equal(t, "walk@in.com", *assigned.AssignedToEmail)

	_, err = svc.Assign(ctx, "v2", dto.AssignVoucherRequest{Email: "walk@in.com", EnrollmentID: &enrollmentID})
	requireAppError(t, err, http.StatusConflict)

	_, err = svc.Assign(ctx, "v9", dto.AssignVoucherRequest{Email: "walk@in.com", EnrollmentID: &enrollmentID})
	requireAppError(t, err, http.StatusNotFound)

	stats, err := svc.Stats(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.VoucherStats{Available: 2, Assigned: 1, Total: 3}, stats)

	released, err := svc.Release(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, models.VoucherStatusAvailable, released.Status)

	n, err := svc.DeleteMany(ctx, dto.DeleteVouchersRequest{IDs: []string{"v2", "v3", "v9"}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	requireAppError(t, svc.Delete(ctx, "v9"), http.StatusNotFound)

	_, err = svc.List(ctx, "s1", "expired")
	requireAppError(t, err, http.StatusBadRequest)
	remaining, err := svc.List(ctx, "s1", "available")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestVoucherServiceBackfillStopsWhenPoolRunsDry(t *testing.T) {
	pending := []models.Enrollment{
		{ID: "e1", SessionID: "s1", GuestEmail: "a@example.com", GuestName: "A"},
		{ID: "e2", SessionID: "s1", GuestEmail: "b@example.com", GuestName: "B"},
		{ID: "e3", SessionID: "s1", GuestEmail: "c@example.com", GuestName: "C"},
	}
	svc, repo, notifier := newVoucherFixture(pending...)
	_, err := repo.AddMany(context.Background(), "s1", []string{"https://portal/1", "https://portal/2"})
	require.NoError(t, err)

	result, err := svc.Backfill(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Assigned)
	assert.Equal(t, 2, result.Emailed)
	assert.Equal(t, 0, result.Remaining)
	assert.Equal(t, []string{"e3"}, result.Pending)

	require.Len(t, notifier.sent, 2)
	assert.Equal(t, "a@example.com", notifier.sent[0].to)
	assert.Equal(t, "https://portal/1", notifier.sent[0].voucher.VoucherURL)
	assert.Equal(t, "Adult CPR/AED", notifier.sent[1].voucher.ClassName)
}

func TestVoucherServiceAssignRejectsForeignOrUnknownEnrollment(t *testing.T) {
	svc, repo, _ := newVoucherFixture()
	ctx := context.Background()
	_, err := repo.AddMany(ctx, "s1", []string{"https://portal/1"})
	require.NoError(t, err)

	other := "other"
	_, err = svc.Assign(ctx, "v1", dto.AssignVoucherRequest{Email: "walk@in.com", EnrollmentID: &other})
	requireAppError(t, err, http.StatusBadRequest)

	missing := "ghost"
	_, err = svc.Assign(ctx, "v1", dto.AssignVoucherRequest{Email: "walk@in.com", EnrollmentID: &missing})
	requireAppError(t, err, http.StatusNotFound)

	v, err := repo.FindByID(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, models.VoucherStatusAvailable, v.Status)
	assert.Nil(t, v.EnrollmentID)

	assigned, err := svc.Assign(ctx, "v1", dto.AssignVoucherRequest{Email: "walk@in.com"})
	require.NoError(t, err)
	assert.Nil(t, assigned.EnrollmentID)
}

type failingClaimRepo struct {
	*memoryVoucherRepo
	failAfter int
	claims    int
}

func (f *failingClaimRepo) ClaimForEnrollment(ctx context.Context, sessionID, enrollmentID, email string, at time.Time) (*models.Voucher, error) {
	f.claims++
	if f.claims > f.failAfter {
		return nil, errors.New("database is locked")
	}
	return f.memoryVoucherRepo.ClaimForEnrollment(ctx, sessionID, enrollmentID, email, at)
}

func TestVoucherServiceBackfillReportsPartialProgressOnFailure(t *testing.T) {
	pending := []models.Enrollment{
		{ID: "e1", SessionID: "s1", GuestEmail: "a@example.com", GuestName: "A"},
		{ID: "e2", SessionID: "s1", GuestEmail: "b@example.com", GuestName: "B"},
		{ID: "e3", SessionID: "s1", GuestEmail: "c@example.com", GuestName: "C"},
	}
	repo := &failingClaimRepo{memoryVoucherRepo: &memoryVoucherRepo{}, failAfter: 1}
	_, err := repo.AddMany(context.Background(), "s1", []string{"https://portal/1", "https://portal/2", "https://portal/3"})
	require.NoError(t, err)
	notifier := &fakeNotifier{}
	sessions := stubSessionReader{"s1": {Session: models.Session{ID: "s1"}, ClassName: "Adult CPR/AED"}}
	svc := NewVoucherService(repo, sessions, stubEnrollments{pending: pending}, notifier, nil, nil, nil)

	result, err := svc.Backfill(context.Background(), "s1")
	requireAppError(t, err, http.StatusInternalServerError)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Assigned)
	assert.Equal(t, 1, result.Emailed)
	assert.Equal(t, []string{"e2", "e3"}, result.Pending)
	assert.Len(t, notifier.sent, 1)
}
