package observability

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/curator-desk/internal/config"
)

// NewLogger builds the process logger from LOG_LEVEL, LOG_FORMAT and
// LOG_OUTPUT. Unknown levels fall back to info.
func NewLogger(cfg config.LoggerConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoder := zap.NewProductionEncoderConfig()
	encoder.MessageKey = "message"
	encoder.TimeKey = "ts"
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoder.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	output := cfg.Output
	if output == "" {
		output = "stdout"
	}

	zapCfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Encoding:          encoding,
		EncoderConfig:     encoder,
		DisableStacktrace: level > zapcore.DebugLevel,
		OutputPaths:       []string{output},
		ErrorOutputPaths:  []string{"stderr"},
	}
	return zapCfg.Build()
}

// WithTicket scopes a logger to one ticket and, when set, the acting user.
func WithTicket(logger *zap.Logger, ticketID, actorID string) *zap.Logger {
	fields := []zap.Field{zap.String("ticket_id", ticketID)}
	if actorID != "" {
		fields = append(fields, zap.String("actor_id", actorID))
	}
	return logger.With(fields...)
}
