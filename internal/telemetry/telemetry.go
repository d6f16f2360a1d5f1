//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

// Package telemetry provides telemetry and observability constants and
// helpers shared by the chat digest pipeline.
package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// telemetry service constants.
const (
	ServiceName      = "chat-digest"
	ServiceVersion   = "v0.1.0"
	ServiceNamespace = "trpc-chat-digest"
	InstrumentName   = "trpc.chat.digest"

	SpanNameComplete  = "gateway_complete"
	SpanNameSummarize = "summarize"
	SpanNameDigestRun = "digest_run"
)

const (
	// ProtocolGRPC uses gRPC protocol for OTLP exporter.
	ProtocolGRPC string = "grpc"
	// ProtocolHTTP uses HTTP protocol for OTLP exporter.
	ProtocolHTTP string = "http"
)

// telemetry attributes constants.
var (
	KeyGateway      = "trpc.chat.digest.gateway"
	KeyAttempts     = "trpc.chat.digest.attempts"
	KeyGroupID      = "trpc.chat.digest.group_id"
	KeyDigestID     = "trpc.chat.digest.digest_id"
	KeyMessageCount = "trpc.chat.digest.message_count"
	KeyChunkCount   = "trpc.chat.digest.chunk_count"
)

// TraceCompletion records the outcome of one gateway completion.
func TraceCompletion(span trace.Span, gateway, model string, attempts int, err error) {
	span.SetAttributes(
		attribute.String("gen_ai.system", InstrumentName),
		attribute.String("gen_ai.operation.name", "chat.completions"),
		attribute.String("gen_ai.request.model", model),
		attribute.String(KeyGateway, gateway),
		attribute.Int(KeyAttempts, attempts),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// TraceSummarize records one summarization run, chunkCount is zero for
// the single-pass path.
func TraceSummarize(span trace.Span, messageCount, chunkCount int, err error) {
	span.SetAttributes(
		attribute.String("gen_ai.system", InstrumentName),
		attribute.String("gen_ai.operation.name", "summarize"),
		attribute.Int(KeyMessageCount, messageCount),
		attribute.Int(KeyChunkCount, chunkCount),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// TraceDigestRun records one digest production run.
func TraceDigestRun(span trace.Span, groupID, digestID string, messageCount int) {
	span.SetAttributes(
		attribute.String(KeyGroupID, groupID),
		attribute.String(KeyDigestID, digestID),
		attribute.Int(KeyMessageCount, messageCount),
	)
}

// NewGRPCConn creates a new gRPC connection to the OpenTelemetry Collector.
func NewGRPCConn(endpoint string) (*grpc.ClientConn, error) {
	// Note the use of insecure transport here. TLS is recommended in production.
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to collector: %w", err)
	}
	return conn, nil
}
