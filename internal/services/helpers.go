package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/internai/pkg/mail"
	"github.com/charlesng35/internai/pkg/metrics"
)

const defaultDeliveryTimeout = 5 * time.Second

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// deliver sends msg with its own deadline, detached from the caller's
// cancellation. A failure is logged and counted, never returned.
func deliver(ctx context.Context, mailer mail.Mailer, timeout time.Duration, template string, msg mail.Message, log *zap.Logger) bool {
	if mailer == nil {
		log.Warn("no mailer configured", zap.String("template", template))
		metrics.MailDeliveries.WithLabelValues(template, "skipped").Inc()
		return false
	}
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ensureContext(ctx)), timeout)
	defer cancel()

	err := mailer.Send(sendCtx, msg)
	switch {
	case errors.Is(err, mail.ErrSMTPDisabled):
		log.Warn("mail not sent, smtp disabled", zap.String("template", template))
		metrics.MailDeliveries.WithLabelValues(template, "skipped").Inc()
		return false
	case err != nil:
		log.Warn("mail delivery failed", zap.String("template", template), zap.Error(err))
		metrics.MailDeliveries.WithLabelValues(template, "failure").Inc()
		return false
	}
	metrics.MailDeliveries.WithLabelValues(template, "success").Inc()
	return true
}
