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

const enrollmentColumns = `e.id, e.session_id, e.user_id, e.guest_email, e.guest_name, e.guest_phone, e.amount_paid_cents,
        e.payment_reference, e.status, e.payment_status, e.online_course_completed, e.enrolled_at, e.completed_at, e.cancelled_at`

const enrollmentDetailSelect = `SELECT ` + enrollmentColumns + `,
        c.name AS class_name, s.date AS session_date, s.start_time, s.end_time, s.location,
        v.id AS voucher_id, v.voucher_url, v.status AS voucher_status
        FROM enrollments e
        JOIN class_sessions s ON s.id = e.session_id
        JOIN classes c ON c.id = s.class_id
        LEFT JOIN vouchers v ON v.enrollment_id = e.id`

// EnrollmentRepository handles persistence of enrollments. Writes that change
// whether an enrollment holds a seat also move the session counter in the same transaction.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// CreateWithSeat inserts enrollment and takes a seat on its session atomically.
// It returns created=false with no error when (session_id, payment_reference) already
// exists; the seat is untouched in that case. ErrSessionFull and ErrSessionCancelled
// roll the insert back.
func (r *EnrollmentRepository) CreateWithSeat(ctx context.Context, enrollment *models.Enrollment) (bool, error) {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusConfirmed
	}
	if enrollment.PaymentStatus == "" {
		enrollment.PaymentStatus = models.PaymentStatusPaid
	}

	created := false
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		insert := tx.Rebind(`INSERT INTO enrollments (id, session_id, user_id, guest_email, guest_name, guest_phone, amount_paid_cents,
            payment_reference, status, payment_status, online_course_completed, enrolled_at)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT (session_id, payment_reference) DO NOTHING
            RETURNING id`)
		var id string
		err := tx.GetContext(ctx, &id, insert,
			enrollment.ID, enrollment.SessionID, enrollment.UserID, enrollment.GuestEmail, enrollment.GuestName,
			enrollment.GuestPhone, enrollment.AmountPaidCents, enrollment.PaymentReference, enrollment.Status,
			enrollment.PaymentStatus, enrollment.OnlineCourseCompleted, enrollment.EnrolledAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("insert enrollment: %w", err)
		}

		if err := acquireSeat(ctx, tx, enrollment.SessionID, enrollment.EnrolledAt); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// FindByPayment returns the enrollment recorded for a session and payment reference.
func (r *EnrollmentRepository) FindByPayment(ctx context.Context, sessionID, paymentReference string) (*models.Enrollment, error) {
	query := r.db.Rebind(`SELECT ` + enrollmentColumns + ` FROM enrollments e WHERE e.session_id = ? AND e.payment_reference = ?`)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, sessionID, paymentReference); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := r.db.Rebind(`SELECT ` + enrollmentColumns + ` FROM enrollments e WHERE e.id = ?`)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with session, class and voucher info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := r.db.Rebind(enrollmentDetailSelect + ` WHERE e.id = ?`)
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.SessionID != "" {
		conditions = append(conditions, "e.session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "e.status = ?")
		args = append(args, filter.Status)
	}
	if filter.Email != "" {
		conditions = append(conditions, "LOWER(e.guest_email) = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(filter.Email)))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at":  "e.enrolled_at",
		"name":         "e.guest_name",
		"session_date": "s.date",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.enrolled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	if size > models.MaxPageSize {
		size = models.MaxPageSize
	}
	offset := (page - 1) * size

	query := r.db.Rebind(fmt.Sprintf(`%s%s ORDER BY %s %s, e.id LIMIT %d OFFSET %d`, enrollmentDetailSelect, clause, orderBy, order, size, offset))
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := r.db.Rebind("SELECT COUNT(*) FROM enrollments e" + clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// ListBySession returns every enrollment of a session ordered by name, for rosters.
func (r *EnrollmentRepository) ListBySession(ctx context.Context, sessionID string) ([]models.EnrollmentDetail, error) {
	query := r.db.Rebind(enrollmentDetailSelect + ` WHERE e.session_id = ? ORDER BY e.guest_name, e.enrolled_at`)
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, sessionID); err != nil {
		return nil, fmt.Errorf("list session enrollments: %w", err)
	}
	return enrollments, nil
}

// ListWithoutVoucher returns seat-holding paid enrollments of a session that have no voucher.
func (r *EnrollmentRepository) ListWithoutVoucher(ctx context.Context, sessionID string) ([]models.Enrollment, error) {
	query := r.db.Rebind(`SELECT ` + enrollmentColumns + ` FROM enrollments e
        LEFT JOIN vouchers v ON v.enrollment_id = e.id
        WHERE e.session_id = ? AND e.status IN ('confirmed', 'completed') AND v.id IS NULL
        ORDER BY e.enrolled_at, e.id`)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, sessionID); err != nil {
		return nil, fmt.Errorf("list enrollments without voucher: %w", err)
	}
	return enrollments, nil
}

// MarkCompleted moves a pending or confirmed enrollment to completed.
func (r *EnrollmentRepository) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE enrollments SET status = 'completed', completed_at = ?
        WHERE id = ? AND status IN ('pending', 'confirmed')`), at, id)
	if err != nil {
		return fmt.Errorf("complete enrollment: %w", err)
	}
	return r.checkTransition(ctx, res, id)
}

// SetOnlineCourseCompleted records whether the buyer finished the online portion.
func (r *EnrollmentRepository) SetOnlineCourseCompleted(ctx context.Context, id string, done bool) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE enrollments SET online_course_completed = ? WHERE id = ?`), done, id)
	if err != nil {
		return fmt.Errorf("update online course flag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update online course rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Cancel cancels a pending or confirmed enrollment and releases its seat.
func (r *EnrollmentRepository) Cancel(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var sessionID string
		err := tx.GetContext(ctx, &sessionID, tx.Rebind(`UPDATE enrollments SET status = 'cancelled', cancelled_at = ?
            WHERE id = ? AND status IN ('pending', 'confirmed') RETURNING session_id`), now, id)
		if errors.Is(err, sql.ErrNoRows) {
			return r.transitionError(ctx, tx, id)
		}
		if err != nil {
			return fmt.Errorf("cancel enrollment: %w", err)
		}
		return releaseSeat(ctx, tx, sessionID, now)
	})
}

// Restore re-confirms a cancelled enrollment, taking a seat under the same guard as a
// new enrollment. ErrSessionFull or ErrSessionCancelled leave the enrollment cancelled.
func (r *EnrollmentRepository) Restore(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var sessionID string
		err := tx.GetContext(ctx, &sessionID, tx.Rebind(`UPDATE enrollments SET status = 'confirmed', cancelled_at = NULL
            WHERE id = ? AND status = 'cancelled' RETURNING session_id`), id)
		if errors.Is(err, sql.ErrNoRows) {
			return r.transitionError(ctx, tx, id)
		}
		if err != nil {
			return fmt.Errorf("restore enrollment: %w", err)
		}
		return acquireSeat(ctx, tx, sessionID, now)
	})
}

func (r *EnrollmentRepository) checkTransition(ctx context.Context, res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("enrollment rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	return ErrInvalidTransition
}

func (r *EnrollmentRepository) transitionError(ctx context.Context, tx *sqlx.Tx, id string) error {
	var exists int
	if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT 1 FROM enrollments WHERE id = ?`), id); err != nil {
		return err
	}
	return ErrInvalidTransition
}
