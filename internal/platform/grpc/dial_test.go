package grpc

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestProbeServing(t *testing.T) {
	addr, reporter := startReporter(t, "ledger")
	reporter.SetServing(true)

	if err := Probe(context.Background(), addr, "ledger", 2*time.Second, nil); err != nil {
		t.Fatalf("probe: %v", err)
	}
}

func TestProbeNotServing(t *testing.T) {
	addr, _ := startReporter(t)

	var logged int
	logf := func(string, ...any) { logged++ }
	err := Probe(context.Background(), addr, "", 300*time.Millisecond, logf)

	var probeErr *ProbeError
	if !errors.As(err, &probeErr) {
		t.Fatalf("error = %v, want *ProbeError", err)
	}
	if probeErr.Stage != ProbeStageHealth {
		t.Fatalf("stage = %s, want %s", probeErr.Stage, ProbeStageHealth)
	}
	if logged == 0 {
		t.Fatal("expected wait progress to be logged")
	}
}

func TestProbeRequiresAddress(t *testing.T) {
	err := Probe(context.Background(), " ", "", time.Second, nil)

	var probeErr *ProbeError
	if !errors.As(err, &probeErr) || probeErr.Stage != ProbeStageConnect {
		t.Fatalf("error = %v, want connect-stage ProbeError", err)
	}
}

func TestProbeErrorNil(t *testing.T) {
	var err *ProbeError
	if err.Error() == "" {
		t.Fatal("expected message for nil error")
	}
	if err.Unwrap() != nil {
		t.Fatal("expected nil unwrap")
	}
}
