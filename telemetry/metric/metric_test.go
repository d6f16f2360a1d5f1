//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

package metric

import (
	"context"
	"testing"

	itelemetry "trpc.group/trpc-go/trpc-chat-digest/internal/telemetry"
)

// TestMetricsEndpoint validates metrics endpoint precedence rules.
func TestMetricsEndpoint(t *testing.T) {
	const (
		customEndpoint  = "custom-metric:4318"
		genericEndpoint = "generic-endpoint:4318"
	)

	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", customEndpoint)
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", genericEndpoint)
	if ep := metricsEndpoint(itelemetry.ProtocolGRPC); ep != customEndpoint {
		t.Fatalf("expected %s, got %s", customEndpoint, ep)
	}

	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")
	if ep := metricsEndpoint(itelemetry.ProtocolGRPC); ep != genericEndpoint {
		t.Fatalf("expected %s, got %s", genericEndpoint, ep)
	}

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	if ep := metricsEndpoint(itelemetry.ProtocolGRPC); ep != "localhost:4317" {
		t.Fatalf("expected gRPC default endpoint, got %s", ep)
	}
	if ep := metricsEndpoint(itelemetry.ProtocolHTTP); ep != "localhost:4318" {
		t.Fatalf("expected HTTP default endpoint, got %s", ep)
	}
}

// TestStartAndClean exercises the happy path of Start and the returned cleanup.
func TestStartAndClean(t *testing.T) {
	ctx := context.Background()
	clean, err := Start(ctx, WithEndpoint("localhost:4318"))
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if clean == nil {
		t.Fatalf("expected non-nil cleanup function")
	}
	_ = clean() // Ignore cleanup error as no collector is running in tests.
}
