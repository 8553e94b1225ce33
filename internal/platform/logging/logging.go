// Package logging builds the structured zap logger used by the ledger
// binaries and correlates log lines with OpenTelemetry spans.
package logging

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/paywire/paywire/internal/platform/requestctx"
)

// Environment controls the baseline logger profile.
type Environment string

const (
	EnvironmentProduction  Environment = "production"
	EnvironmentStaging     Environment = "staging"
	EnvironmentDevelopment Environment = "development"
	EnvironmentLocal       Environment = "local"
)

// Config contains logger initialization inputs.
type Config struct {
	Environment Environment `env:"PAYWIRE_ENV"       envDefault:"production"`
	Level       string      `env:"PAYWIRE_LOG_LEVEL"`
}

func (c Config) validate() error {
	switch c.Environment {
	case EnvironmentProduction, EnvironmentStaging, EnvironmentDevelopment, EnvironmentLocal:
		return nil
	default:
		return fmt.Errorf("invalid environment %q", c.Environment)
	}
}

// Logger wraps zap with context-aware helpers. A nil *Logger is a no-op.
type Logger struct {
	logger *zap.Logger
}

// New creates a JSON logger for the configured environment.
func New(cfg Config) (*Logger, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}

	base := buildConfigByEnvironment(cfg.Environment)
	level, err := resolveLevel(cfg)
	if err != nil {
		return nil, err
	}
	base.Level = level
	base.DisableStacktrace = true

	built, err := base.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &Logger{logger: built}, nil
}

// FromZap wraps an existing zap logger; tests use it with observer cores.
func FromZap(logger *zap.Logger) *Logger {
	return &Logger{logger: logger}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{logger: zap.NewNop()}
}

func (l *Logger) must() *zap.Logger {
	if l == nil || l.logger == nil {
		return zap.NewNop()
	}
	return l.logger
}

// With returns a child logger with additional structured fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{logger: l.must().With(fields...)}
}

// Zap returns the underlying zap logger, or a no-op logger for nil.
func (l *Logger) Zap() *zap.Logger {
	return l.must()
}

// Debug logs at debug level with request and trace correlation from ctx.
func (l *Logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	l.must().Debug(msg, withContext(ctx, fields)...)
}

// Info logs at info level with request and trace correlation from ctx.
func (l *Logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	l.must().Info(msg, withContext(ctx, fields)...)
}

// Warn logs at warn level with request and trace correlation from ctx.
func (l *Logger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	l.must().Warn(msg, withContext(ctx, fields)...)
}

// Error logs at error level with request and trace correlation from ctx.
func (l *Logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	l.must().Error(msg, withContext(ctx, fields)...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.must().Sync()
}

// Printf adapts the logger to printf-style callbacks used by dial helpers.
func (l *Logger) Printf(format string, args ...any) {
	l.must().Info(fmt.Sprintf(format, args...))
}

func withContext(ctx context.Context, fields []zap.Field) []zap.Field {
	if ctx == nil {
		return fields
	}
	if requestID := requestctx.RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	return fields
}

func resolveLevel(cfg Config) (zap.AtomicLevel, error) {
	if strings.TrimSpace(cfg.Level) != "" {
		var parsed zapcore.Level
		if err := parsed.Set(cfg.Level); err != nil {
			return zap.AtomicLevel{}, fmt.Errorf("invalid level %q: %w", cfg.Level, err)
		}
		return zap.NewAtomicLevelAt(parsed), nil
	}

	if cfg.Environment == EnvironmentDevelopment || cfg.Environment == EnvironmentLocal {
		return zap.NewAtomicLevelAt(zapcore.DebugLevel), nil
	}
	return zap.NewAtomicLevelAt(zapcore.InfoLevel), nil
}

func buildConfigByEnvironment(environment Environment) zap.Config {
	var cfg zap.Config
	if environment == EnvironmentDevelopment || environment == EnvironmentLocal {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Encoding = "json"
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}
