package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/saveyours/booking-api/internal/models"
	"github.com/saveyours/booking-api/pkg/export"
	appErrors "github.com/saveyours/booking-api/pkg/errors"
)

type rosterReader interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.EnrollmentDetail, error)
}

var rosterHeaders = []string{"Name", "Email", "Phone", "Status", "Online Course", "Voucher"}

// ExportResult is a rendered file ready to stream.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders session rosters (sign-in sheets).
type ExportService struct {
	sessions    sessionDetailReader
	enrollments rosterReader
	logger      *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(sessions sessionDetailReader, enrollments rosterReader, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{sessions: sessions, enrollments: enrollments, logger: logger}
}

// SessionRoster renders every enrollment of a session as CSV or PDF. Cancelled
// enrollments are listed after active ones.
func (s *ExportService) SessionRoster(ctx context.Context, sessionID, format string) (*ExportResult, error) {
	exporter, err := export.ForFormat(strings.ToLower(strings.TrimSpace(format)))
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	session, err := s.sessions.FindDetailByID(ctx, sessionID)
	if err != nil {
		return nil, sessionLookupError(err)
	}
	enrollments, err := s.enrollments.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	dataset := export.Dataset{Headers: rosterHeaders}
	active := 0
	var cancelled []models.EnrollmentDetail
	for _, e := range enrollments {
		if !e.Status.HoldsSeat() {
			cancelled = append(cancelled, e)
			continue
		}
		active++
		dataset.Append(rosterRow(e)...)
	}
	for _, e := range cancelled {
		dataset.Append(rosterRow(e)...)
	}

	heading := export.Heading{
		Title: fmt.Sprintf("%s - %s", session.ClassName, session.Date.Format("Mon Jan 2, 2006")),
		Lines: []string{
			fmt.Sprintf("%s - %s  |  %s", session.StartTime, session.EndTime, session.Location),
			fmt.Sprintf("Enrolled: %d / %d", active, session.MaxCapacity),
		},
	}
	body, err := exporter.Render(dataset, heading)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}
	s.logger.Info("roster exported", zap.String("session_id", sessionID), zap.String("format", exporter.Extension()), zap.Int("rows", len(dataset.Rows)))
	return &ExportResult{
		Filename:    fmt.Sprintf("roster-%s-%s.%s", session.Date.Format("20060102"), shortID(sessionID), exporter.Extension()),
		ContentType: exporter.ContentType(),
		Body:        body,
	}, nil
}

func rosterRow(e models.EnrollmentDetail) []string {
	voucher := "missing"
	if e.VoucherStatus != nil {
		voucher = string(*e.VoucherStatus)
	}
	return []string{
		e.GuestName,
		e.GuestEmail,
		e.GuestPhone,
		string(e.Status),
		yesNo(e.OnlineCourseCompleted),
		voucher,
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
