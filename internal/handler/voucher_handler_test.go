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
	"github.com/saveyours/booking-api/internal/middleware"
	"github.com/saveyours/booking-api/internal/models"
	appErrors "github.com/saveyours/booking-api/pkg/errors"
)

type fakeVoucherSrv struct {
	addSession string
	addReq     dto.AddVouchersRequest
	assignErr  error
	deleted    []string
}

func (f *fakeVoucherSrv) List(context.Context, string, string) ([]models.Voucher, error) {
	return []models.Voucher{{ID: "v1"}}, nil
}

func (f *fakeVoucherSrv) Stats(context.Context, string) (models.VoucherStats, error) {
	return models.VoucherStats{Available: 2, Assigned: 1, Total: 3}, nil
}

func (f *fakeVoucherSrv) Add(_ context.Context, sessionID string, req dto.AddVouchersRequest) (*dto.AddVouchersResponse, error) {
	f.addSession = sessionID
	f.addReq = req
	return &dto.AddVouchersResponse{Added: len(req.URLs)}, nil
}

func (f *fakeVoucherSrv) Backfill(_ context.Context, sessionID string) (*dto.BackfillResult, error) {
	return &dto.BackfillResult{SessionID: sessionID, Assigned: 1}, nil
}

func (f *fakeVoucherSrv) Get(_ context.Context, id string) (*models.Voucher, error) {
	return &models.Voucher{ID: id}, nil
}

func (f *fakeVoucherSrv) UpdateURL(_ context.Context, id string, req dto.UpdateVoucherRequest) (*models.Voucher, error) {
	return &models.Voucher{ID: id, URL: req.URL}, nil
}

func (f *fakeVoucherSrv) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeVoucherSrv) DeleteMany(_ context.Context, req dto.DeleteVouchersRequest) (int, error) {
	f.deleted = append(f.deleted, req.IDs...)
	return len(req.IDs), nil
}

func (f *fakeVoucherSrv) Release(_ context.Context, id string) (*models.Voucher, error) {
	return &models.Voucher{ID: id, Status: models.VoucherStatusAvailable}, nil
}

func (f *fakeVoucherSrv) Assign(_ context.Context, id string, req dto.AssignVoucherRequest) (*models.Voucher, error) {
	if f.assignErr != nil {
		return nil, f.assignErr
	}
	email := req.Email
	return &models.Voucher{ID: id, Status: models.VoucherStatusAssigned, AssignedToEmail: &email}, nil
}

func voucherContext(method, target, body, id string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: id}}
	return c, rec
}

func TestVoucherHandlerAdd(t *testing.T) {
	srv := &fakeVoucherSrv{}
	c, rec := voucherContext(http.MethodPost, "/admin/sessions/s1/vouchers", `{"urls":["https://portal/a","https://portal/b"]}`, "s1")

	NewVoucherHandler(srv, nil).Add(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "s1", srv.addSession)
	assert.Len(t, srv.addReq.URLs, 2)
	assert.Contains(t, rec.Body.String(), `"added":2`)
}

func TestVoucherHandlerAssignConflict(t *testing.T) {
	srv := &fakeVoucherSrv{assignErr: appErrors.Clone(appErrors.ErrConflict, "voucher already assigned")}
	c, rec := voucherContext(http.MethodPost, "/admin/vouchers/v1/assign", `{"email":"a@b.co"}`, "v1")

	NewVoucherHandler(srv, nil).Assign(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestVoucherHandlerAssignByAdmin(t *testing.T) {
	srv := &fakeVoucherSrv{}
	c, rec := voucherContext(http.MethodPost, "/admin/vouchers/v1/assign", `{"email":"a@b.co"}`, "v1")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{Email: "info@saveyours.net", Role: models.RoleAdmin})

	NewVoucherHandler(srv, nil).Assign(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"assigned_to_email":"a@b.co"`)
}

func TestVoucherHandlerDelete(t *testing.T) {
	srv := &fakeVoucherSrv{}
	handler := NewVoucherHandler(srv, nil)

	c, _ := voucherContext(http.MethodDelete, "/admin/vouchers/v1", "", "v1")
	handler.Delete(c)
	assert.Equal(t, http.StatusNoContent, c.Writer.Status())

	c, rec := voucherContext(http.MethodPost, "/admin/vouchers/delete", `{"ids":["v2","v3"]}`, "")
	handler.DeleteMany(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deleted":2`)
	assert.Equal(t, []string{"v1", "v2", "v3"}, srv.deleted)
}

func TestVoucherHandlerBackfill(t *testing.T) {
	c, rec := voucherContext(http.MethodPost, "/admin/sessions/s1/vouchers/backfill", "", "s1")

	NewVoucherHandler(&fakeVoucherSrv{}, nil).Backfill(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"session_id":"s1"`)
}
