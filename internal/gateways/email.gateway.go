package gateways

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/jordan-wright/email"
	"github.com/nimasrn/lending-admin/pkg/logger"
)

type EmailRequest struct {
	To      string
	Subject string
	Body    string
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	Conns    int
	Timeout  time.Duration
}

// mailer is the part of email.Pool the sender uses.
type mailer interface {
	Send(e *email.Email, timeout time.Duration) error
	Close()
}

// SMTPSender delivers EMAIL communications over a pooled SMTP connection.
type SMTPSender struct {
	from    string
	timeout time.Duration
	pool    mailer
}

func NewSMTPSender(c SMTPConfig) (*SMTPSender, error) {
	if c.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if c.Conns <= 0 {
		c.Conns = 4
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	var auth smtp.Auth
	if c.User != "" {
		auth = smtp.PlainAuth("", c.User, c.Password, c.Host)
	}
	pool, err := email.NewPool(net.JoinHostPort(c.Host, strconv.Itoa(c.Port)), c.Conns, auth)
	if err != nil {
		return nil, fmt.Errorf("smtp pool: %w", err)
	}
	return &SMTPSender{from: c.From, timeout: c.Timeout, pool: pool}, nil
}

// SendEmail is bounded by the smaller of ctx's deadline and the configured
// timeout.
func (s *SMTPSender) SendEmail(ctx context.Context, req *EmailRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := s.timeout
	if d, ok := ctx.Deadline(); ok {
		if left := time.Until(d); left < timeout {
			timeout = left
		}
	}

	e := email.NewEmail()
	e.From = s.from
	e.To = []string{req.To}
	e.Subject = req.Subject
	e.Text = []byte(req.Body)

	if err := s.pool.Send(e, timeout); err != nil {
		return fmt.Errorf("smtp send to %s: %w", req.To, err)
	}
	logger.Info("[email] sent", "to", req.To, "subject", req.Subject)
	return nil
}

func (s *SMTPSender) Close() {
	s.pool.Close()
}
