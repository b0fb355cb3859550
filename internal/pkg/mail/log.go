package mail

import (
	"context"
	"log/slog"
)

// Log is a Mail that records messages in the application log instead of
// delivering them. Bodies are not logged.
type Log struct {
	defaultFrom string
}

// NewLog returns a log-only mail driver.
func NewLog(from string) *Log {
	return &Log{defaultFrom: from}
}

// Send logs the envelope of msg.
func (l *Log) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(msg.To) == 0 {
		return ErrSMTPNoRecipients
	}

	from := msg.From
	if from == "" {
		from = l.defaultFrom
	}

	slog.InfoContext(ctx, "mail sent to log driver", "from", from, "to", msg.To, "subject", msg.Subject)

	return nil
}

// Close implements io.Closer.
func (l *Log) Close() error {
	return nil
}
