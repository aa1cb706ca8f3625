package mailer

import (
	"context"

	"go.uber.org/zap"
)

// LogMailer writes pin codes to the log instead of sending them. Development only.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger.Named("mailer")}
}

func (m *LogMailer) SendCode(ctx context.Context, email string, code string) error {
	m.logger.Info("pin code issued", zap.String("email", email), zap.String("code", code))
	return nil
}
