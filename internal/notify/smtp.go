package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"stockwatch/internal/catalog"
	"stockwatch/internal/config"
)

const defaultSMTPPort = 465 // SMTPS (implicit TLS)

// SMTPSink sends plain-text mail over an implicit-TLS SMTP connection.
// Each Send dials a fresh connection; delivery volume here is tiny and
// this keeps the sink stateless.
type SMTPSink struct {
	host     string
	port     int
	from     string
	password string
}

func NewSMTP(cfg config.SMTPConfig) (*SMTPSink, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("notify.smtp.host is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("notify.smtp.from is required")
	}
	port := cfg.Port
	if port <= 0 {
		port = defaultSMTPPort
	}
	return &SMTPSink{
		host:     cfg.Host,
		port:     port,
		from:     cfg.From,
		password: cfg.Password,
	}, nil
}

func (s *SMTPSink) Send(ctx context.Context, sub *catalog.Subscriber, msg Message) error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))

	dialer := &tls.Dialer{Config: &tls.Config{ServerName: s.host}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if s.password != "" {
		auth := smtp.PlainAuth("", s.from, s.password, s.host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := c.Mail(s.from); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	if err := c.Rcpt(sub.Address); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(formatMail(s.from, sub.Address, msg)); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}

	return c.Quit()
}

func formatMail(from, to string, msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
