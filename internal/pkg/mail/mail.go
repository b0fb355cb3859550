package mail

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Drivers accepted by NewFromDriver.
const (
	DriverSMTP = "smtp"
	DriverLog  = "log"
)

// Message represents an email payload.
type Message struct {
	// From is an optional explicit sender; the driver default is used when empty.
	From string
	// To lists required recipients.
	To []string
	// Subject is the email subject line.
	Subject string
	// TextBody is the plain-text body.
	TextBody string
	// HTMLBody is the optional HTML alternative.
	HTMLBody string
}

// Mail abstracts an email provider.
type Mail interface {
	io.Closer
	// Send dispatches the given message using the underlying provider.
	Send(ctx context.Context, msg Message) error
}

// NewFromDriver builds a Mail for the named driver. An empty name selects SMTP.
func NewFromDriver(driver string, cfg SMTPConfig) (Mail, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSMTP:
		return NewSMTP(cfg)
	case DriverLog:
		return NewLog(cfg.From), nil
	default:
		return nil, fmt.Errorf("mail: unsupported driver %q", driver)
	}
}
