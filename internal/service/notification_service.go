package service

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saveyours/booking-api/internal/models"
	"github.com/saveyours/booking-api/pkg/jobs"
	"github.com/saveyours/booking-api/pkg/mailer"
)

//go:embed templates/*.html
var templateFS embed.FS

// Notification kinds, used as job types and metric labels.
const (
	NotificationEnrollment = "enrollment_confirmation"
	NotificationVoucher    = "voucher"
)

const longDateLayout = "Monday, January 2, 2006"

type mailQueue interface {
	Enqueue(job jobs.Job) error
}

// NotificationConfig carries storefront details rendered into every email.
type NotificationConfig struct {
	DefaultLocation string
	SupportEmail    string
	PoliciesURL     string
}

// NotificationService renders customer emails and hands them to the mail queue.
// Rendering happens on the caller's goroutine; delivery is asynchronous when a queue is attached.
type NotificationService struct {
	mailer       mailer.Mailer
	queue        mailQueue
	confirmation *template.Template
	voucher      *template.Template
	config       NotificationConfig
	metrics      *MetricsService
	logger       *zap.Logger
}

// NewNotificationService parses the embedded templates.
func NewNotificationService(m mailer.Mailer, cfg NotificationConfig, metrics *MetricsService, logger *zap.Logger) (*NotificationService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	confirmation, err := parseEmailTemplate("enrollment_confirmation.html")
	if err != nil {
		return nil, err
	}
	voucher, err := parseEmailTemplate("voucher.html")
	if err != nil {
		return nil, err
	}
	return &NotificationService{
		mailer:       m,
		confirmation: confirmation,
		voucher:      voucher,
		config:       cfg,
		metrics:      metrics,
		logger:       logger,
	}, nil
}

// UseQueue routes deliveries through q instead of sending inline.
func (s *NotificationService) UseQueue(q mailQueue) {
	s.queue = q
}

type confirmationView struct {
	models.EnrollmentConfirmation
	SupportEmail string
	PoliciesURL  string
}

type voucherView struct {
	models.VoucherNotice
	SupportEmail string
	PoliciesURL  string
}

// SendEnrollmentConfirmation emails one confirmation listing every class in data.
func (s *NotificationService) SendEnrollmentConfirmation(ctx context.Context, to string, data models.EnrollmentConfirmation) error {
	if len(data.Classes) == 0 {
		return nil
	}
	classes := make([]models.ClassLine, len(data.Classes))
	for i, c := range data.Classes {
		if strings.TrimSpace(c.Location) == "" {
			c.Location = s.config.DefaultLocation
		}
		classes[i] = c
	}
	data.Classes = classes

	html, err := render(s.confirmation, confirmationView{EnrollmentConfirmation: data, SupportEmail: s.config.SupportEmail, PoliciesURL: s.config.PoliciesURL})
	if err != nil {
		s.metrics.RecordNotification(NotificationEnrollment, NotifyResultFailed)
		return err
	}
	return s.dispatch(ctx, NotificationEnrollment, mailer.Message{
		To:      to,
		ToName:  data.Name,
		Subject: "Your Training Confirmation - SaveYours",
		HTML:    html,
	})
}

// SendVoucherEmail emails the online course access link for one class.
func (s *NotificationService) SendVoucherEmail(ctx context.Context, to string, data models.VoucherNotice) error {
	if strings.TrimSpace(data.Location) == "" {
		data.Location = s.config.DefaultLocation
	}
	html, err := render(s.voucher, voucherView{VoucherNotice: data, SupportEmail: s.config.SupportEmail, PoliciesURL: s.config.PoliciesURL})
	if err != nil {
		s.metrics.RecordNotification(NotificationVoucher, NotifyResultFailed)
		return err
	}
	return s.dispatch(ctx, NotificationVoucher, mailer.Message{
		To:      to,
		ToName:  data.Name,
		Subject: fmt.Sprintf("Blended %s course information", data.ClassName),
		HTML:    html,
	})
}

func (s *NotificationService) dispatch(ctx context.Context, kind string, msg mailer.Message) error {
	if s.queue == nil {
		return s.Deliver(ctx, jobs.Job{ID: uuid.NewString(), Type: kind, Payload: msg})
	}
	if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: kind, Payload: msg}); err != nil {
		s.metrics.RecordNotification(kind, NotifyResultFailed)
		return fmt.Errorf("enqueue %s email: %w", kind, err)
	}
	s.metrics.RecordNotification(kind, NotifyResultQueued)
	return nil
}

// Deliver is the mail queue handler.
func (s *NotificationService) Deliver(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(mailer.Message)
	if !ok {
		return fmt.Errorf("mail job %s: unexpected payload %T", job.ID, job.Payload)
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		if s.queue == nil {
			s.metrics.RecordNotification(job.Type, NotifyResultFailed)
		}
		return err
	}
	s.metrics.RecordNotification(job.Type, NotifyResultSent)
	s.logger.Info("email sent", zap.String("kind", job.Type), zap.String("to", msg.To), zap.Int("attempt", job.Attempt+1))
	return nil
}

// DeadLetter records a queued email that will not be retried again.
func (s *NotificationService) DeadLetter(job jobs.Job, err error) {
	s.metrics.RecordNotification(job.Type, NotifyResultFailed)
	to := ""
	if msg, ok := job.Payload.(mailer.Message); ok {
		to = msg.To
	}
	s.logger.Error("email delivery abandoned", zap.String("kind", job.Type), zap.String("to", to), zap.Int("attempts", job.Attempt), zap.Error(err))
}

func parseEmailTemplate(page string) (*template.Template, error) {
	tmpl, err := template.New(page).Funcs(template.FuncMap{
		"longDate":  formatLongDate,
		"timeRange": formatTimeRange,
	}).ParseFS(templateFS, "templates/layout.html", "templates/"+page)
	if err != nil {
		return nil, fmt.Errorf("parse email template %s: %w", page, err)
	}
	return tmpl, nil
}

func render(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

func formatLongDate(t time.Time) string {
	if t.IsZero() {
		return "TBD"
	}
	return t.Format(longDateLayout)
}

// formatTimeRange renders "09:00","12:30" as "9:00 AM - 12:30 PM", passing unparseable values through.
func formatTimeRange(start, end string) string {
	parts := make([]string, 0, 2)
	for _, raw := range []string{start, end} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if t, err := parseClock(raw); err == nil {
			parts = append(parts, t.Format("3:04 PM"))
		} else {
			parts = append(parts, raw)
		}
	}
	return strings.Join(parts, " - ")
}

var errClock = errors.New("unrecognised clock value")

func parseClock(raw string) (time.Time, error) {
	for _, layout := range []string{"15:04", "15:04:05", "3:04 PM", "3:04PM"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errClock
}
