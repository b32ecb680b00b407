package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saveyours/booking-api/internal/dto"
	"github.com/saveyours/booking-api/internal/models"
	appErrors "github.com/saveyours/booking-api/pkg/errors"
)

type fakeEnrollmentSrv struct {
	detail     *models.EnrollmentDetail
	restoreErr error
	query      dto.EnrollmentQuery
	online     *bool
	calls      []string
}

func (f *fakeEnrollmentSrv) List(_ context.Context, query dto.EnrollmentQuery) ([]models.EnrollmentDetail, *models.Pagination, error) {
	f.query = query
	return []models.EnrollmentDetail{*f.detail}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (f *fakeEnrollmentSrv) Get(_ context.Context, id string) (*models.EnrollmentDetail, error) {
	f.calls = append(f.calls, "get:"+id)
	return f.detail, nil
}

func (f *fakeEnrollmentSrv) Complete(_ context.Context, id string) (*models.EnrollmentDetail, error) {
	f.calls = append(f.calls, "complete:"+id)
	return f.detail, nil
}

func (f *fakeEnrollmentSrv) SetOnlineCourse(_ context.Context, _ string, req dto.OnlineCourseRequest) (*models.EnrollmentDetail, error) {
	f.online = req.Completed
	return f.detail, nil
}

func (f *fakeEnrollmentSrv) Cancel(_ context.Context, id string) (*models.EnrollmentDetail, error) {
	f.calls = append(f.calls, "cancel:"+id)
	return f.detail, nil
}

func (f *fakeEnrollmentSrv) Restore(_ context.Context, id string) (*models.EnrollmentDetail, error) {
	f.calls = append(f.calls, "restore:"+id)
	if f.restoreErr != nil {
		return nil, f.restoreErr
	}
	return f.detail, nil
}

func newEnrollmentContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "e1"}}
	return c, rec
}

func TestEnrollmentHandlerListBindsFilters(t *testing.T) {
	srv := &fakeEnrollmentSrv{detail: &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: "e1"}}}
	c, rec := newEnrollmentContext(http.MethodGet, "/admin/enrollments?session_id=s1&status=confirmed&page=2", "")

	NewEnrollmentHandler(srv).List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s1", srv.query.SessionID)
	assert.Equal(t, "confirmed", srv.query.Status)
	assert.Equal(t, 2, srv.query.Page)
}

func TestEnrollmentHandlerActionsUsePathID(t *testing.T) {
	srv := &fakeEnrollmentSrv{detail: &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: "e1"}}}
	handler := NewEnrollmentHandler(srv)

	for _, action := range []func(*gin.Context){handler.Get, handler.Complete, handler.Cancel, handler.Restore} {
		c, rec := newEnrollmentContext(http.MethodPost, "/admin/enrollments/e1", "")
		action(c)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, []string{"get:e1", "complete:e1", "cancel:e1", "restore:e1"}, srv.calls)
}

func TestEnrollmentHandlerRestoreIntoFullSession(t *testing.T) {
	srv := &fakeEnrollmentSrv{restoreErr: appErrors.ErrCapacityExceeded}
	c, rec := newEnrollmentContext(http.MethodPost, "/admin/enrollments/e1/restore", "")

	NewEnrollmentHandler(srv).Restore(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "CAPACITY_EXCEEDED")
}

func TestEnrollmentHandlerSetOnlineCourse(t *testing.T) {
	srv := &fakeEnrollmentSrv{detail: &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: "e1"}}}
	c, rec := newEnrollmentContext(http.MethodPut, "/admin/enrollments/e1/online-course", `{"completed":false}`)

	NewEnrollmentHandler(srv).SetOnlineCourse(c)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, srv.online)
	assert.False(t, *srv.online)
}
