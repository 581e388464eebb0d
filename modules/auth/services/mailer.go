package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/saaskit/pkg/logging"
)

// Mailer delivers transactional e-mail.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, link string) error
	SendInvitation(ctx context.Context, email, organization, link string) error
}

// LogMailer records messages in the log instead of sending them. Addresses and
// links are redacted by the logging sink.
type LogMailer struct {
	logger logrus.FieldLogger
}

func NewLogMailer(logger logrus.FieldLogger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendPasswordReset(_ context.Context, email, link string) error {
	logging.Log(m.logger, logging.LevelInfo, logging.System, "password reset e-mail queued", map[string]any{
		"email": email,
		"token": link,
	})
	return nil
}

func (m *LogMailer) SendInvitation(_ context.Context, email, organization, link string) error {
	logging.Log(m.logger, logging.LevelInfo, logging.System, "invitation e-mail queued", map[string]any{
		"email":        email,
		"organization": organization,
		"token":        link,
	})
	return nil
}
