package notify

import (
	"context"

	"go.uber.org/zap"
)

// LoggingGateway logs every message instead of delivering it anywhere; it
// is the only ChatGateway implementation carried in this repo, suitable
// for local runs and tests (§6).
type LoggingGateway struct {
	log *zap.Logger
}

// NewLoggingGateway builds a no-op gateway that logs at info level.
func NewLoggingGateway(log *zap.Logger) *LoggingGateway {
	return &LoggingGateway{log: log}
}

func (g *LoggingGateway) Send(_ context.Context, channelID, message string, actions []Action) error {
	fields := []zap.Field{
		zap.String("channel", channelID),
		zap.String("message", message),
	}
	for _, a := range actions {
		fields = append(fields, zap.String("action_"+a.Label, a.Target))
	}
	g.log.Info("notification", fields...)
	return nil
}

var _ ChatGateway = (*LoggingGateway)(nil)
