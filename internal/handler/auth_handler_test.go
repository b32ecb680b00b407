package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/saveyours/booking-api/internal/middleware"
	"github.com/saveyours/booking-api/internal/models"
	appErrors "github.com/saveyours/booking-api/pkg/errors"
)

type fakeAuthSrv struct {
	err error
}

func (f fakeAuthSrv) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.LoginResponse{AccessToken: "token", Email: req.Email, Role: models.RoleAdmin}, nil
}

func TestAuthHandlerLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{name: "ok", body: `{"email":"info@saveyours.net","password":"secret"}`, status: http.StatusOK},
		{name: "malformed", body: `{`, status: http.StatusBadRequest},
		{name: "bad credentials", body: `{"email":"info@saveyours.net","password":"nope"}`, err: appErrors.ErrInvalidCredentials, status: http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(tc.body))
			c.Request.Header.Set("Content-Type", "application/json")

			NewAuthHandler(fakeAuthSrv{err: tc.err}).Login(c)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestAuthHandlerMe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(fakeAuthSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/admin/me", nil)
	handler.Me(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/admin/me", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{Email: "info@saveyours.net", Role: models.RoleAdmin})
	handler.Me(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"ADMIN"`)
}
