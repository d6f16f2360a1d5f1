//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func recordedSpan(t *testing.T, record func(span trace.Span)) sdktrace.ReadOnlySpan {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	_, span := tp.Tracer("test").Start(context.Background(), "op")
	record(span)
	span.End()
	spans := sr.Ended()
	require.Len(t, spans, 1)
	return spans[0]
}

func attrValue(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTraceCompletion(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		span := recordedSpan(t, func(s trace.Span) {
			TraceCompletion(s, "default", "gemini-2.5-flash", 2, nil)
		})
		v, ok := attrValue(span, KeyAttempts)
		require.True(t, ok)
		assert.Equal(t, int64(2), v.AsInt64())
		v, ok = attrValue(span, "gen_ai.request.model")
		require.True(t, ok)
		assert.Equal(t, "gemini-2.5-flash", v.AsString())
		assert.Equal(t, codes.Ok, span.Status().Code)
	})

	t.Run("failure records the error", func(t *testing.T) {
		span := recordedSpan(t, func(s trace.Span) {
			TraceCompletion(s, "default", "gemini-2.5-flash", 3, errors.New("quota exceeded"))
		})
		assert.Equal(t, codes.Error, span.Status().Code)
		assert.NotEmpty(t, span.Events())
	})
}

func TestTraceSummarize(t *testing.T) {
	span := recordedSpan(t, func(s trace.Span) {
		TraceSummarize(s, 1801, 3, nil)
	})
	v, ok := attrValue(span, KeyMessageCount)
	require.True(t, ok)
	assert.Equal(t, int64(1801), v.AsInt64())
	v, ok = attrValue(span, KeyChunkCount)
	require.True(t, ok)
	assert.Equal(t, int64(3), v.AsInt64())
}

func TestTraceDigestRun(t *testing.T) {
	span := recordedSpan(t, func(s trace.Span) {
		TraceDigestRun(s, "g-1", "d-1", 42)
	})
	v, ok := attrValue(span, KeyGroupID)
	require.True(t, ok)
	assert.Equal(t, "g-1", v.AsString())
	v, ok = attrValue(span, KeyDigestID)
	require.True(t, ok)
	assert.Equal(t, "d-1", v.AsString())
}

func TestNewGRPCConn(t *testing.T) {
	conn, err := NewGRPCConn("localhost:4317")
	require.NoError(t, err)
	require.NotNil(t, conn)
	require.NoError(t, conn.Close())
}
