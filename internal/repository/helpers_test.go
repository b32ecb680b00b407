package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/saveyours/booking-api/internal/models"
	"github.com/saveyours/booking-api/pkg/database"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

// newSQLiteDB returns a migrated on-disk SQLite database private to the test.
func newSQLiteDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.NewSQLite(ctx, filepath.Join(t.TempDir(), "booking.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(ctx, db))
	return db
}

type fixture struct {
	db          *sqlx.DB
	classes     *ClassRepository
	sessions    *SessionRepository
	enrollments *EnrollmentRepository
	vouchers    *VoucherRepository
}

func newFixture(t *testing.T) *fixture {
	db := newSQLiteDB(t)
	return &fixture{
		db:          db,
		classes:     NewClassRepository(db),
		sessions:    NewSessionRepository(db),
		enrollments: NewEnrollmentRepository(db),
		vouchers:    NewVoucherRepository(db),
	}
}

func (f *fixture) session(t *testing.T, capacity int) *models.Session {
	t.Helper()
	ctx := context.Background()
	class := &models.Class{Name: "CPR & First Aid", Type: models.ClassTypeCombo, Audience: "General", PriceCents: 8500}
	require.NoError(t, f.classes.Create(ctx, class))

	session := &models.Session{
		ClassID:     class.ID,
		Date:        time.Date(2026, 11, 14, 0, 0, 0, 0, time.UTC),
		StartTime:   "09:00",
		EndTime:     "12:00",
		Location:    "5450 W 41st St, Minneapolis, MN 55416",
		MaxCapacity: capacity,
	}
	require.NoError(t, f.sessions.Create(ctx, session))
	return session
}

func newEnrollment(sessionID, ref, email string) *models.Enrollment {
	return &models.Enrollment{
		SessionID:        sessionID,
		GuestEmail:       email,
		GuestName:        "Buyer " + ref,
		AmountPaidCents:  8500,
		PaymentReference: ref,
	}
}
