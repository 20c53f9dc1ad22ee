package email

import (
	"context"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/emersion/go-message/mail"
)

type Sender interface {
	Send(ctx context.Context, to mail.Address, subject, body string) error
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender delivers through an unauthenticated relay (Mailpit-compatible),
// retrying with exponential backoff.
type SMTPSender struct {
	addr     string
	from     mail.Address
	maxTries uint
	initial  time.Duration
	logger   *slog.Logger
	now      func() time.Time
	send     sendMailFunc
}

func NewSMTPSender(host, port, from string, logger *slog.Logger) *SMTPSender {
	from = strings.TrimSpace(from)
	if from == "" {
		from = "no-reply@slotbook.local"
	}
	return &SMTPSender{
		addr:     net.JoinHostPort(strings.TrimSpace(host), strings.TrimSpace(port)),
		from:     mail.Address{Name: "Slotbook", Address: from},
		maxTries: 5,
		initial:  500 * time.Millisecond,
		logger:   logger,
		now:      time.Now,
		send:     smtp.SendMail,
	}
}

func (s *SMTPSender) Send(ctx context.Context, to mail.Address, subject, body string) error {
	raw, err := Compose(Message{From: s.from, To: to, Subject: subject, Body: body}, s.now())
	if err != nil {
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initial
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, s.send(s.addr, nil, s.from.Address, []string{to.Address}, raw)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Warn("smtp send failed, retrying", "to", to.Address, "retry_in", next, "err", err)
		}),
	)
	return err
}
