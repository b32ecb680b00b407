package service

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saveyours/booking-api/internal/dto"
	"github.com/saveyours/booking-api/internal/models"
	appErrors "github.com/saveyours/booking-api/pkg/errors"
)

type mockClassRepo struct {
	classes map[string]*models.Class
	err     error
}

func (m *mockClassRepo) List(context.Context) ([]models.Class, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]models.Class, 0, len(m.classes))
	for _, c := range m.classes {
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockClassRepo) FindByID(_ context.Context, id string) (*models.Class, error) {
	c, ok := m.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return c, nil
}

func (m *mockClassRepo) Create(_ context.Context, class *models.Class) error {
	if m.err != nil {
		return m.err
	}
	class.ID = "class-new"
	if m.classes == nil {
		m.classes = map[string]*models.Class{}
	}
	m.classes[class.ID] = class
	return nil
}

func TestClassServiceCreateTrimsAndValidates(t *testing.T) {
	repo := &mockClassRepo{}
	svc := NewClassService(repo, nil, nil)

	class, err := svc.Create(context.Background(), dto.CreateClassRequest{
		Name:       "  Heartsaver CPR AED  ",
		Type:       models.ClassTypeCPR,
		Audience:   " Community ",
		PriceCents: 7500,
	})
	require.NoError(t, err)
	assert.Equal(t, "class-new", class.ID)
	assert.Equal(t, "Heartsaver CPR AED", class.Name)
	assert.Equal(t, "Community", class.Audience)

	_, err = svc.Create(context.Background(), dto.CreateClassRequest{Name: "Yoga", Type: "yoga"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Len(t, repo.classes, 1)
}

func TestClassServiceGetMissing(t *testing.T) {
	svc := NewClassService(&mockClassRepo{}, nil, nil)

	_, err := svc.Get(context.Background(), "nope")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
}

func TestClassServiceListWrapsStorageErrors(t *testing.T) {
	svc := NewClassService(&mockClassRepo{err: errors.New("db down")}, nil, nil)

	_, err := svc.List(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, appErrors.FromError(err).Status)
}
