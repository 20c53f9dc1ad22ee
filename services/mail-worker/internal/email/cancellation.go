package email

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/segmentio/kafka-go"
	"github.com/slotbook/slotbook/libs/locale"
)

// CancellationJob is the payload of appointment.cancellation.requested.v1.
type CancellationJob struct {
	AppointmentID string    `json:"appointment_id"`
	Date          time.Time `json:"date"`
	CanceledAt    time.Time `json:"canceled_at"`
	CustomerID    string    `json:"customer_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	ProviderID    string    `json:"provider_id"`
	ProviderName  string    `json:"provider_name"`
	ProviderEmail string    `json:"provider_email"`
}

type template struct {
	subject string
	body    string
}

var templates = map[string]template{
	"pt": {
		subject: "Agendamento cancelado",
		body:    "Olá, %s.\n\nHouve um cancelamento.\n\nCliente: %s\nData: %s\n\nO horário está disponível para novos agendamentos.\n",
	},
	"en": {
		subject: "Appointment canceled",
		body:    "Hello, %s.\n\nAn appointment was canceled.\n\nCustomer: %s\nDate: %s\n\nThe slot is open for new bookings.\n",
	},
}

// CancellationMailer tells the provider that a customer canceled.
type CancellationMailer struct {
	sender    Sender
	formatter locale.Formatter
	tmpl      template
	logger    *slog.Logger
}

func NewCancellationMailer(sender Sender, lang string, loc *time.Location, logger *slog.Logger) *CancellationMailer {
	tmpl := templates["pt"]
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(lang)), "en") {
		tmpl = templates["en"]
	}
	return &CancellationMailer{
		sender:    sender,
		formatter: locale.New(lang, loc),
		tmpl:      tmpl,
		logger:    logger,
	}
}

// Render returns the subject and body for job.
func (m *CancellationMailer) Render(job CancellationJob) (string, string) {
	customer := job.CustomerName
	if customer == "" {
		customer = job.CustomerID
	}
	return m.tmpl.subject, fmt.Sprintf(m.tmpl.body, job.ProviderName, customer, m.formatter.FormatSlot(job.Date))
}

// Handle is a consumer handler. Malformed payloads are logged and dropped
// since no retry can fix them.
func (m *CancellationMailer) Handle(ctx context.Context, msg kafka.Message) error {
	var job CancellationJob
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		m.logger.Error("invalid cancellation payload", "err", err, "topic", msg.Topic)
		return nil
	}
	if job.AppointmentID == "" || job.ProviderEmail == "" {
		m.logger.Error("cancellation payload missing fields", "appointment_id", job.AppointmentID)
		return nil
	}

	subject, body := m.Render(job)
	to := mail.Address{Name: job.ProviderName, Address: job.ProviderEmail}
	if err := m.sender.Send(ctx, to, subject, body); err != nil {
		return fmt.Errorf("send cancellation mail for %s: %w", job.AppointmentID, err)
	}
	m.logger.Info("cancellation mail sent", "appointment_id", job.AppointmentID, "provider_id", job.ProviderID)
	return nil
}
