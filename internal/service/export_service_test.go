package service

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saveyours/booking-api/internal/models"
)

type stubRoster []models.EnrollmentDetail

func (s stubRoster) ListBySession(ctx context.Context, sessionID string) ([]models.EnrollmentDetail, error) {
	return s, nil
}

func rosterFixture() *ExportService {
	assigned := models.VoucherStatusAssigned
	sessions := stubSessionReader{"4f1c2d3e-aaaa-bbbb": {
		Session: models.Session{
			ID:          "4f1c2d3e-aaaa-bbbb",
			Date:        time.Date(2026, 11, 14, 0, 0, 0, 0, time.UTC),
			StartTime:   "09:00",
			EndTime:     "12:00",
			Location:    "Main Studio",
			MaxCapacity: 6,
		},
		ClassName: "Adult CPR/AED",
	}}
	roster := stubRoster{
		{Enrollment: models.Enrollment{GuestName: "Zed Cancelled", GuestEmail: "z@example.com", Status: models.EnrollmentStatusCancelled}},
		{Enrollment: models.Enrollment{GuestName: "Ana Active", GuestEmail: "ana@example.com", Status: models.EnrollmentStatusConfirmed, OnlineCourseCompleted: true}, VoucherStatus: &assigned},
		{Enrollment: models.Enrollment{GuestName: "Ben Active", GuestEmail: "ben@example.com", Status: models.EnrollmentStatusConfirmed}},
	}
	return NewExportService(sessions, roster, nil)
}

func TestExportServiceRosterCSV(t *testing.T) {
	svc := rosterFixture()

	result, err := svc.SessionRoster(context.Background(), "4f1c2d3e-aaaa-bbbb", "")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Equal(t, "roster-20261114-4f1c2d3e.csv", result.Filename)

	lines := strings.Split(strings.TrimSpace(string(result.Body)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Name,Email,Phone,Status,Online Course,Voucher", lines[0])
	assert.Equal(t, "Ana Active,ana@example.com,,confirmed,yes,assigned", lines[1])
	assert.Equal(t, "Ben Active,ben@example.com,,confirmed,no,missing", lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "Zed Cancelled"))
}

func TestExportServiceRosterPDF(t *testing.T) {
	svc := rosterFixture()

	result, err := svc.SessionRoster(context.Background(), "4f1c2d3e-aaaa-bbbb", "PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(string(result.Body), "%PDF"))
}

func TestExportServiceRosterErrors(t *testing.T) {
	svc := rosterFixture()

	_, err := svc.SessionRoster(context.Background(), "4f1c2d3e-aaaa-bbbb", "xlsx")
	requireAppError(t, err, http.StatusBadRequest)

	_, err = svc.SessionRoster(context.Background(), "missing", "csv")
	requireAppError(t, err, http.StatusNotFound)
}
