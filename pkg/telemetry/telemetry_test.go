package telemetry

import (
	"context"
	"errors"
	"testing"
)

func TestSetupWithoutExporterIsDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

// Spans must be safe to use before (or without) Setup.
func TestSpansWithoutProvider(t *testing.T) {
	tel := NewTelemetry(context.Background(), "test")
	child := tel.CreateChild("child")
	child.AddEvent("event")
	child.Fail(errors.New("failure"))
	child.End()
	tel.End()
}

func TestServiceName(t *testing.T) {
	if got := (Config{}).ServiceName(); got != PACKAGE {
		t.Errorf("got %q, expected the default service name", got)
	}
	if got := (Config{Package: "brook"}).ServiceName(); got != "brook" {
		t.Errorf("got %q, expected the configured name", got)
	}
}

func TestEnabled(t *testing.T) {
	if (Config{}).Enabled() {
		t.Error("empty config should disable tracing")
	}
	if !(Config{JaegerURL: "http://localhost:14268/api/traces"}).Enabled() {
		t.Error("a Jaeger URL should enable tracing")
	}
	if !(Config{OTLP: OTLP{Host: "localhost:4318"}}).Enabled() {
		t.Error("an OTLP endpoint should enable tracing")
	}
}
