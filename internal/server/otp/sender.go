package otp

import (
	"context"

	"github.com/keyhaven/keyhaven/internal/logging"
)

// LogSender writes issued codes to the structured log. Delivery over a real
// channel (mail, SMS) is an external collaborator; this sender stands in for
// it in development and tests.
type LogSender struct {
	logger logging.Logger
}

func NewLogSender(logger logging.Logger) *LogSender {
	return &LogSender{logger: logger.With("module", "otp_sender")}
}

func (s *LogSender) Send(ctx context.Context, email, code string) error {
	s.logger.Info(ctx, "one-time code issued", "email", email, "code", code)
	return nil
}
