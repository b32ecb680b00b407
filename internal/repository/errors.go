package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Sentinel errors returned by conditional writes. Services map them to typed API errors.
var (
	ErrSessionFull          = errors.New("session at capacity")
	ErrSessionCancelled     = errors.New("session cancelled")
	ErrCapacityBelowBooked  = errors.New("capacity below current enrollment")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrVoucherClaimConflict = errors.New("voucher claim lost repeatedly to concurrent claimers")
	ErrEnrollmentHasVoucher = errors.New("enrollment already holds a voucher")
)

// isUniqueViolation recognises unique constraint failures from both drivers.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// withTx runs fn in a transaction, rolling back on error or panic.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
