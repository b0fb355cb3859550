package mail

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrSMTPHostPortRequired is returned when Host/Port are missing.
	ErrSMTPHostPortRequired = errors.New("smtp host and port are required")
	// ErrSMTPNoRecipients is returned when To is empty.
	ErrSMTPNoRecipients = errors.New("no recipients provided")
	// ErrSMTPNoSender is returned when both Message.From and the configured default From are empty.
	ErrSMTPNoSender = errors.New("no sender provided")
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTP is a Mail implementation backed by net/smtp.
type SMTP struct {
	addr        string
	defaultFrom string
	auth        smtp.Auth
	send        sendFunc
	now         func() time.Time
}

// SMTPConfig configures the SMTP implementation.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// From is the default sender when Message.From is empty.
	From string
}

// NewSMTP constructs an SMTP mail sender. Authentication is only used when
// both Username and Password are set.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, ErrSMTPHostPortRequired
	}

	var auth smtp.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	return &SMTP{
		addr:        net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		defaultFrom: cfg.From,
		auth:        auth,
		send:        smtp.SendMail,
		now:         time.Now,
	}, nil
}

// Send delivers a message over SMTP.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(msg.To) == 0 {
		return ErrSMTPNoRecipients
	}

	from := msg.From
	if from == "" {
		from = s.defaultFrom
	}
	if from == "" {
		return ErrSMTPNoSender
	}

	raw := s.compose(from, msg)

	if err := ctx.Err(); err != nil {
		return err
	}

	return s.send(s.addr, s.auth, from, msg.To, []byte(raw))
}

// Close implements io.Closer; SMTP keeps no open connection between sends.
func (s *SMTP) Close() error {
	return nil
}

func (s *SMTP) compose(from string, msg Message) string {
	body, contentType := buildBody(msg)

	headers := []string{
		"From: " + from,
		"To: " + strings.Join(msg.To, ", "),
		"Subject: " + msg.Subject,
		"Date: " + s.now().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		"Content-Type: " + contentType,
	}

	return strings.Join(headers, "\r\n") + "\r\n\r\n" + body
}

func buildBody(msg Message) (body string, contentType string) {
	if msg.HTMLBody == "" {
		return msg.TextBody, "text/plain; charset=UTF-8"
	}
	if msg.TextBody == "" {
		return msg.HTMLBody, "text/html; charset=UTF-8"
	}

	boundary := multipartBoundary()
	var sb strings.Builder
	sb.WriteString("This is a multipart message in MIME format.\r\n")
	for _, part := range []struct{ ctype, content string }{
		{"text/plain", msg.TextBody},
		{"text/html", msg.HTMLBody},
	} {
		fmt.Fprintf(&sb, "--%s\r\n", boundary)
		fmt.Fprintf(&sb, "Content-Type: %s; charset=UTF-8\r\n\r\n", part.ctype)
		sb.WriteString(part.content)
		sb.WriteString("\r\n")
	}
	fmt.Fprintf(&sb, "--%s--", boundary)

	return sb.String(), "multipart/alternative; boundary=" + boundary
}

func multipartBoundary() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "otpgate-boundary-fallback"
	}
	return "otpgate-boundary-" + hex.EncodeToString(b[:])
}
