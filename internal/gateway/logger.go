package gateway

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WSLogger provides structured logging for gateway events
type WSLogger struct {
	logger *zap.Logger
}

func NewWSLogger() *WSLogger {
	return &WSLogger{
		logger: zap.L().With(zap.String("component", "gateway")),
	}
}

func (l *WSLogger) Info(event string, participantID uuid.UUID, connID string, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("event", event),
		zap.String("participant_id", participantID.String()),
		zap.String("conn_id", connID),
	}, fields...)
	l.logger.Info("gateway_event", allFields...)
}

func (l *WSLogger) Warn(event string, participantID uuid.UUID, connID string, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("event", event),
		zap.String("participant_id", participantID.String()),
		zap.String("conn_id", connID),
	}, fields...)
	l.logger.Warn("gateway_warning", allFields...)
}

func (l *WSLogger) Error(event string, participantID uuid.UUID, connID string, err error, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("event", event),
		zap.String("participant_id", participantID.String()),
		zap.String("conn_id", connID),
		zap.Error(err),
	}, fields...)
	l.logger.Error("gateway_error", allFields...)
}
