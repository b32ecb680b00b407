package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/saveyours/booking-api/internal/models"
	appErrors "github.com/saveyours/booking-api/pkg/errors"
)

func newTestAuthService(t *testing.T) *AuthService {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	return NewAuthService(validator.New(), zap.NewNop(), AuthConfig{
		AdminEmail:        "Info@SaveYours.net",
		AdminPasswordHash: string(hash),
		AdminName:         "Owner",
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "booking-api",
	})
}

func TestAuthServiceLoginIssuesAdminToken(t *testing.T) {
	svc := newTestAuthService(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "info@saveyours.net", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, resp.Role)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, "info@saveyours.net", claims.Email)
}

func TestAuthServiceLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestAuthService(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "info@saveyours.net", Password: "wrong"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "other@saveyours.net", Password: "correct-horse"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email", Password: "x"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAuthServiceLoginWithoutHashConfigured(t *testing.T) {
	svc := NewAuthService(nil, nil, AuthConfig{AdminEmail: "info@saveyours.net", AccessTokenSecret: "secret"})
	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "info@saveyours.net", Password: ""})
	require.Error(t, err)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "info@saveyours.net", Password: "anything"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestAuthServiceValidateTokenRejectsExpiredAndForeign(t *testing.T) {
	svc := newTestAuthService(t)
	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "info@saveyours.net", Password: "correct-horse"})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.ValidateToken(resp.AccessToken)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	other := NewAuthService(nil, nil, AuthConfig{AccessTokenSecret: "different", Issuer: "booking-api"})
	_, err = other.ValidateToken(resp.AccessToken)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
