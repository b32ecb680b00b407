package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/saveyours/booking-api/internal/models"
)

const (
	voucherColumns = `id, session_id, voucher_url, status, enrollment_id, assigned_to_email, assigned_at, created_at`

	// maxClaimAttempts bounds retries when a concurrent claimer takes the candidate row first.
	maxClaimAttempts = 5
	insertChunkSize  = 200
)

// VoucherRepository manages the per-session voucher pool.
type VoucherRepository struct {
	db *sqlx.DB
}

// NewVoucherRepository constructs the repository.
func NewVoucherRepository(db *sqlx.DB) *VoucherRepository {
	return &VoucherRepository{db: db}
}

// ClaimForEnrollment atomically moves the oldest available voucher of sessionID to
// assigned and records the buyer. It returns nil, nil when the pool is empty.
func (r *VoucherRepository) ClaimForEnrollment(ctx context.Context, sessionID, enrollmentID, email string, at time.Time) (*models.Voucher, error) {
	return r.claim(ctx, sessionID, &enrollmentID, &email, at)
}

// ClaimOne takes an available voucher without recording a buyer. Pair with Assign.
func (r *VoucherRepository) ClaimOne(ctx context.Context, sessionID string) (*models.Voucher, error) {
	return r.claim(ctx, sessionID, nil, nil, time.Now().UTC())
}

func (r *VoucherRepository) claim(ctx context.Context, sessionID string, enrollmentID, email *string, at time.Time) (*models.Voucher, error) {
	query := r.db.Rebind(`UPDATE vouchers
        SET status = 'assigned', enrollment_id = ?, assigned_to_email = ?, assigned_at = ?
        WHERE id = (
            SELECT id FROM vouchers
            WHERE session_id = ? AND status = 'available'
            ORDER BY created_at, id
            LIMIT 1
        ) AND status = 'available'
        RETURNING ` + voucherColumns)

	for attempt := 1; attempt <= maxClaimAttempts; attempt++ {
		var voucher models.Voucher
		err := r.db.GetContext(ctx, &voucher, query, enrollmentID, email, at, sessionID)
		if err == nil {
			return &voucher, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("claim voucher: %w", err)
		}

		available, err := r.CountAvailable(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if available == 0 {
			return nil, nil
		}
	}
	return nil, ErrVoucherClaimConflict
}

// Assign records a buyer on a voucher regardless of its current status.
// enrollmentID may be nil to keep any existing link.
func (r *VoucherRepository) Assign(ctx context.Context, voucherID, email string, enrollmentID *string, at time.Time) (*models.Voucher, error) {
	query := r.db.Rebind(`UPDATE vouchers
        SET status = 'assigned', assigned_to_email = ?, enrollment_id = COALESCE(?, enrollment_id), assigned_at = ?
        WHERE id = ?
        RETURNING ` + voucherColumns)
	var voucher models.Voucher
	if err := r.db.GetContext(ctx, &voucher, query, email, enrollmentID, at, voucherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		if isUniqueViolation(err) {
			return nil, ErrEnrollmentHasVoucher
		}
		return nil, fmt.Errorf("assign voucher: %w", err)
	}
	return &voucher, nil
}

// Release returns an assigned voucher to the pool and clears its buyer.
func (r *VoucherRepository) Release(ctx context.Context, voucherID string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE vouchers
        SET status = 'available', enrollment_id = NULL, assigned_to_email = NULL, assigned_at = NULL
        WHERE id = ?`), voucherID)
	if err != nil {
		return fmt.Errorf("release voucher: %w", err)
	}
	return expectAffected(res)
}

// AddMany inserts one available voucher per URL.
func (r *VoucherRepository) AddMany(ctx context.Context, sessionID string, urls []string) ([]models.Voucher, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	vouchers := make([]models.Voucher, len(urls))
	for i, url := range urls {
		vouchers[i] = models.Voucher{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			URL:       url,
			Status:    models.VoucherStatusAvailable,
			// Keeps claim order equal to import order.
			CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
		}
	}

	const query = `INSERT INTO vouchers (id, session_id, voucher_url, status, created_at)
        VALUES (:id, :session_id, :voucher_url, :status, :created_at)`
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for start := 0; start < len(vouchers); start += insertChunkSize {
			end := start + insertChunkSize
			if end > len(vouchers) {
				end = len(vouchers)
			}
			if _, err := tx.NamedExecContext(ctx, query, vouchers[start:end]); err != nil {
				return fmt.Errorf("insert vouchers: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vouchers, nil
}

// FindByID returns a voucher.
func (r *VoucherRepository) FindByID(ctx context.Context, id string) (*models.Voucher, error) {
	var voucher models.Voucher
	if err := r.db.GetContext(ctx, &voucher, r.db.Rebind(`SELECT `+voucherColumns+` FROM vouchers WHERE id = ?`), id); err != nil {
		return nil, err
	}
	return &voucher, nil
}

// ListBySession returns a session pool in claim order, optionally filtered by status.
func (r *VoucherRepository) ListBySession(ctx context.Context, sessionID string, status models.VoucherStatus) ([]models.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE session_id = ?`
	args := []interface{}{sessionID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at, id"

	var vouchers []models.Voucher
	if err := r.db.SelectContext(ctx, &vouchers, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list vouchers: %w", err)
	}
	return vouchers, nil
}

// Stats counts a session pool by status.
func (r *VoucherRepository) Stats(ctx context.Context, sessionID string) (models.VoucherStats, error) {
	query := r.db.Rebind(`SELECT
        COUNT(CASE WHEN status = 'available' THEN 1 END) AS available,
        COUNT(CASE WHEN status = 'assigned' THEN 1 END) AS assigned,
        COUNT(*) AS total
        FROM vouchers WHERE session_id = ?`)
	var stats models.VoucherStats
	if err := r.db.GetContext(ctx, &stats, query, sessionID); err != nil {
		return models.VoucherStats{}, fmt.Errorf("voucher stats: %w", err)
	}
	return stats, nil
}

// CountAvailable returns the number of unclaimed vouchers for a session.
func (r *VoucherRepository) CountAvailable(ctx context.Context, sessionID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM vouchers WHERE session_id = ? AND status = 'available'`), sessionID); err != nil {
		return 0, fmt.Errorf("count available vouchers: %w", err)
	}
	return n, nil
}

// UpdateURL replaces a voucher URL.
func (r *VoucherRepository) UpdateURL(ctx context.Context, id, url string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE vouchers SET voucher_url = ? WHERE id = ?`), url, id)
	if err != nil {
		return fmt.Errorf("update voucher url: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a voucher.
func (r *VoucherRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM vouchers WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete voucher: %w", err)
	}
	return expectAffected(res)
}

// DeleteMany removes the listed vouchers and returns how many existed.
func (r *VoucherRepository) DeleteMany(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`DELETE FROM vouchers WHERE id IN (?)`, ids)
	if err != nil {
		return 0, fmt.Errorf("build voucher delete: %w", err)
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("delete vouchers: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete vouchers rows: %w", err)
	}
	return int(affected), nil
}

func expectAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
