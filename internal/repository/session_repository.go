package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/saveyours/booking-api/internal/models"
)

const sessionDetailSelect = `SELECT s.id, s.class_id, s.date, s.start_time, s.end_time, s.location, s.max_capacity,
        s.current_enrollment, s.status, s.created_at, s.updated_at,
        c.name AS class_name, c.type AS class_type, c.price_cents AS class_price_cents
        FROM class_sessions s
        JOIN classes c ON c.id = s.class_id`

// SessionRepository persists class sessions and owns the seat counter.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// List returns sessions with class info matching filter.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.ClassID != "" {
		conditions = append(conditions, "s.class_id = ?")
		args = append(args, filter.ClassID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "s.status = ?")
		args = append(args, filter.Status)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, "s.date >= ?")
		args = append(args, filter.DateFrom.UTC())
	}
	if filter.DateTo != nil {
		conditions = append(conditions, "s.date <= ?")
		args = append(args, filter.DateTo.UTC())
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	if size > models.MaxPageSize {
		size = models.MaxPageSize
	}
	offset := (page - 1) * size

	query := r.db.Rebind(fmt.Sprintf(`%s%s ORDER BY s.date %s, s.start_time %s LIMIT %d OFFSET %d`,
		sessionDetailSelect, clause, order, order, size, offset))
	var sessions []models.SessionDetail
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	countQuery := r.db.Rebind("SELECT COUNT(*) FROM class_sessions s" + clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}
	return sessions, total, nil
}

// FindByID returns a bare session row.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	query := r.db.Rebind(`SELECT id, class_id, date, start_time, end_time, location, max_capacity, current_enrollment, status, created_at, updated_at
        FROM class_sessions WHERE id = ?`)
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindDetailByID returns a session with its class.
func (r *SessionRepository) FindDetailByID(ctx context.Context, id string) (*models.SessionDetail, error) {
	query := r.db.Rebind(sessionDetailSelect + ` WHERE s.id = ?`)
	var detail models.SessionDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create inserts a new session with no seats taken.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	now := time.Now().UTC()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	session.CurrentEnrollment = 0
	session.Status = models.SessionStatusScheduled
	session.CreatedAt = now
	session.UpdatedAt = now

	const query = `INSERT INTO class_sessions (id, class_id, date, start_time, end_time, location, max_capacity, current_enrollment, status, created_at, updated_at)
        VALUES (:id, :class_id, :date, :start_time, :end_time, :location, :max_capacity, :current_enrollment, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Update rewrites schedule fields. The capacity may not drop below seats already taken;
// status is recomputed from the new capacity.
func (r *SessionRepository) Update(ctx context.Context, session *models.Session) error {
	session.UpdatedAt = time.Now().UTC()
	query := r.db.Rebind(`UPDATE class_sessions
        SET date = ?, start_time = ?, end_time = ?, location = ?, max_capacity = ?,
            status = CASE WHEN status = 'cancelled' THEN status WHEN current_enrollment >= ? THEN 'full' ELSE 'scheduled' END,
            updated_at = ?
        WHERE id = ? AND current_enrollment <= ?`)
	res, err := r.db.ExecContext(ctx, query,
		session.Date, session.StartTime, session.EndTime, session.Location, session.MaxCapacity,
		session.MaxCapacity, session.UpdatedAt, session.ID, session.MaxCapacity)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session rows: %w", err)
	}
	if affected == 0 {
		if _, err := r.FindByID(ctx, session.ID); err != nil {
			return err
		}
		return ErrCapacityBelowBooked
	}
	return nil
}

// Cancel marks the session cancelled and cascades to its pending and confirmed
// enrollments, releasing their seats. Returns the number of enrollments cancelled.
// Cancelling an already cancelled session is a no-op.
func (r *SessionRepository) Cancel(ctx context.Context, id string) (int, error) {
	now := time.Now().UTC()
	var cancelled int
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE class_sessions SET status = 'cancelled', updated_at = ? WHERE id = ? AND status <> 'cancelled'`), now, id)
		if err != nil {
			return fmt.Errorf("cancel session: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("cancel session rows affected: %w", err)
		}
		if affected == 0 {
			var exists int
			if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT 1 FROM class_sessions WHERE id = ?`), id); err != nil {
				return err
			}
			return nil
		}

		res, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE enrollments SET status = 'cancelled', cancelled_at = ?
            WHERE session_id = ? AND status IN ('pending', 'confirmed')`), now, id)
		if err != nil {
			return fmt.Errorf("cascade cancel enrollments: %w", err)
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("cascade cancel rows: %w", err)
		}
		cancelled = int(affected)
		if cancelled == 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE class_sessions
            SET current_enrollment = CASE WHEN current_enrollment > ? THEN current_enrollment - ? ELSE 0 END, updated_at = ?
            WHERE id = ?`), cancelled, cancelled, now, id); err != nil {
			return fmt.Errorf("release cancelled seats: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return cancelled, nil
}

// acquireSeat takes one seat on a session inside tx. The guard makes the increment
// atomic with respect to concurrent writers, so capacity is never exceeded.
func acquireSeat(ctx context.Context, tx *sqlx.Tx, sessionID string, now time.Time) error {
	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE class_sessions
        SET current_enrollment = current_enrollment + 1,
            status = CASE WHEN current_enrollment + 1 >= max_capacity THEN 'full' ELSE 'scheduled' END,
            updated_at = ?
        WHERE id = ? AND status <> 'cancelled' AND current_enrollment < max_capacity`), now, sessionID)
	if err != nil {
		return fmt.Errorf("acquire seat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("acquire seat rows: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var status models.SessionStatus
	if err := tx.GetContext(ctx, &status, tx.Rebind(`SELECT status FROM class_sessions WHERE id = ?`), sessionID); err != nil {
		return err
	}
	if status == models.SessionStatusCancelled {
		return ErrSessionCancelled
	}
	return ErrSessionFull
}

// releaseSeat gives one seat back, reopening a full session.
func releaseSeat(ctx context.Context, tx *sqlx.Tx, sessionID string, now time.Time) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE class_sessions
        SET current_enrollment = CASE WHEN current_enrollment > 0 THEN current_enrollment - 1 ELSE 0 END,
            status = CASE WHEN status = 'cancelled' THEN status ELSE 'scheduled' END,
            updated_at = ?
        WHERE id = ?`), now, sessionID)
	if err != nil {
		return fmt.Errorf("release seat: %w", err)
	}
	return nil
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
