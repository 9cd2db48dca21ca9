package driver

import (
	"context"
	"time"

	"github.com/pot-code/progress-engine/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// logStatement write a debug record for a finished statement, or an error record if it failed
func logStatement(ctx context.Context, method, query string, args []interface{}, startTime time.Time, err error) {
	logger := logging.ExtractLoggerFromContext(ctx)
	fields := []zap.Field{zap.String("db.method", method)}
	if query != "" {
		fields = append(fields, zap.String("db.sql", query))
	}
	if len(args) > 0 {
		fields = append(fields, zap.Any("db.args", logQueryArgs(args)))
	}

	if err != nil {
		if shouldLogError(err) {
			logger.Error(err.Error(), fields...)
		}
		return
	}
	logger.Debug("", append(fields, zap.Duration("db.time", time.Since(startTime)))...)
}
