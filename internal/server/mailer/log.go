package mailer

import (
	"context"

	"github.com/dmitrijs2005/wbcms/internal/logging"
)

// LogMailer writes messages to the log instead of sending them.
// Used when no SMTP host is configured.
type LogMailer struct {
	log logging.Logger
}

func NewLogMailer(l logging.Logger) *LogMailer {
	return &LogMailer{log: l}
}

func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	m.log.Info(ctx, "mail not sent, no smtp host configured", "to", to, "subject", subject, "body", body)
	return nil
}
