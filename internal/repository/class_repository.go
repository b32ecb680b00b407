package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/saveyours/booking-api/internal/models"
)

const classColumns = `id, name, type, audience, price_cents, duration_online, duration_skills, description, created_at`

// ClassRepository handles the class catalogue.
type ClassRepository struct {
	db *sqlx.DB
}

func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

func (r *ClassRepository) List(ctx context.Context) ([]models.Class, error) {
	query := `SELECT ` + classColumns + ` FROM classes ORDER BY name`
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	query := r.db.Rebind(`SELECT ` + classColumns + ` FROM classes WHERE id = ?`)
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	if class.CreatedAt.IsZero() {
		class.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO classes (id, name, type, audience, price_cents, duration_online, duration_skills, description, created_at)
        VALUES (:id, :name, :type, :audience, :price_cents, :duration_online, :duration_skills, :description, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}
