package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/harentsoaR/dentaheal-api/internal/config"
	"github.com/harentsoaR/dentaheal-api/internal/models"
)

// Mailer delivers a plain-text email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends mail through an authenticated SMTP relay.
type SMTPMailer struct {
	client *mail.Client
	from   string
}

// NewSMTPMailer builds a mailer from the MAIL_* settings.
func NewSMTPMailer(cfg config.MailConfig) (*SMTPMailer, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &SMTPMailer{client: client, from: cfg.From}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	return m.client.DialAndSendWithContext(ctx, msg)
}

// LogMailer logs recipients and subjects instead of sending. Bodies are not logged
// because they carry one-time codes.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, to, subject, _ string) error {
	m.logger.Info("mail transport not configured; dropping email",
		zap.String("to", to), zap.String("subject", subject))
	return nil
}

// NotificationService composes the emails sent to patients and doctors.
type NotificationService struct {
	mailer Mailer
	logger *zap.Logger
}

func NewNotificationService(mailer Mailer, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{mailer: mailer, logger: logger}
}

// SendOTP emails a registration code valid for ttl.
func (s *NotificationService) SendOTP(ctx context.Context, to, code string, ttl time.Duration) error {
	minutes := int(math.Ceil(ttl.Minutes()))
	body := fmt.Sprintf("Your OTP is %s. It is valid for %d minutes.", code, minutes)
	return s.mailer.Send(ctx, to, "Your OTP for Registration", body)
}

// SendBookingNotice tells the patient their request reached the doctor.
// It runs in the background and only logs failures.
func (s *NotificationService) SendBookingNotice(patient, doctor *models.Account, apt *models.Appointment) {
	if patient == nil || patient.Email == "" {
		return
	}
	doctorName := "your dentist"
	if doctor != nil && doctor.Name != "" {
		doctorName = doctor.Name
	}
	body := fmt.Sprintf(
		"Hello %s,\n\nYour appointment request with %s on %s has been received and is pending confirmation.\n\nProblem: %s",
		patient.Name,
		doctorName,
		apt.Date.Format("Jan 2 at 3:04 PM"),
		apt.Problem,
	)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.mailer.Send(ctx, patient.Email, "Appointment request received", body); err != nil {
			s.logger.Warn("booking notice not sent",
				zap.String("appointment_id", apt.ID.Hex()), zap.Error(err))
		}
	}()
}
