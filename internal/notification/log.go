package notification

import (
	"context"

	"github.com/pot-code/progress-engine/internal/domain"
	"github.com/pot-code/progress-engine/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// LogSink writes notifications to the request logger, stands in for an external delivery service
type LogSink struct{}

var _ domain.Notifier = LogSink{}

func (LogSink) Notify(ctx context.Context, n *domain.Notification) error {
	logging.ExtractLoggerFromContext(ctx).Info(n.Title,
		zap.String("notification.id", n.ID),
		zap.String("notification.kind", string(n.Kind)),
		zap.String("user.id", n.UserID),
		zap.Any("notification.payload", n.Payload))
	return nil
}
