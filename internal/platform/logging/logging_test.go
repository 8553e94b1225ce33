package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/paywire/paywire/internal/platform/requestctx"
)

func TestNewRejectsUnknownEnvironment(t *testing.T) {
	if _, err := New(Config{Environment: "moon"}); err == nil {
		t.Fatal("expected environment error")
	}
}

func TestNewRejectsInvalidLevel(t *testing.T) {
	if _, err := New(Config{Environment: EnvironmentProduction, Level: "loud"}); err == nil {
		t.Fatal("expected level error")
	}
}

func TestResolveLevelDefaults(t *testing.T) {
	tests := []struct {
		env  Environment
		want zapcore.Level
	}{
		{env: EnvironmentProduction, want: zapcore.InfoLevel},
		{env: EnvironmentStaging, want: zapcore.InfoLevel},
		{env: EnvironmentDevelopment, want: zapcore.DebugLevel},
		{env: EnvironmentLocal, want: zapcore.DebugLevel},
	}
	for _, tt := range tests {
		level, err := resolveLevel(Config{Environment: tt.env})
		if err != nil {
			t.Fatalf("resolve level %s: %v", tt.env, err)
		}
		if level.Level() != tt.want {
			t.Fatalf("%s: level = %v, want %v", tt.env, level.Level(), tt.want)
		}
	}
}

func TestLoggerAddsRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := FromZap(zap.New(core))

	ctx := requestctx.WithRequestID(context.Background(), "req-7")
	logger.Info(ctx, "transfer applied", zap.String("code", "OK"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-7" {
		t.Fatalf("expected request_id field, got %v", fields)
	}
	if fields["code"] != "OK" {
		t.Fatalf("expected code field, got %v", fields)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	logger.Info(context.Background(), "ignored")
	logger.With(zap.String("k", "v")).Error(nil, "ignored")
	if logger.Zap() == nil {
		t.Fatal("expected no-op zap logger")
	}
	if err := logger.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
}
