//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

// Package summarize turns ordered chat transcripts into a single
// natural-language summary. Short transcripts are summarized in one
// completion call, long ones are partitioned into chunks whose partial
// summaries are merged by a final call.
package summarize

import (
	"context"
	"fmt"
	"strings"

	oteltrace "go.opentelemetry.io/otel/trace"

	"trpc.group/trpc-go/trpc-chat-digest/chat"
	itelemetry "trpc.group/trpc-go/trpc-chat-digest/internal/telemetry"
	"trpc.group/trpc-go/trpc-chat-digest/log"
	chattrace "trpc.group/trpc-go/trpc-chat-digest/telemetry/trace"
)

// Completer produces one completion for one prompt. *gateway.Gateway
// satisfies it.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const (
	// DefaultChunkSize is the number of messages per chunk on the
	// hierarchical path.
	DefaultChunkSize = 900
	// DefaultSinglePassLimit is the largest transcript summarized in a
	// single completion call.
	DefaultSinglePassLimit = 1000
	// EmptyTranscriptSummary is returned for an empty message list
	// without any completion call.
	EmptyTranscriptSummary = "No messages found in the selected period."
	// MessagesPlaceholder marks where a custom prompt template receives
	// the rendered transcript.
	MessagesPlaceholder = "{messages}"

	chunkSeparator      = "\n\n---\n\n"
	degradedMergeHeader = "Partial summaries (merge unavailable):"
)

// Options shape a single Summarize call.
type Options struct {
	// Style selects the summary style. Unknown values behave like
	// StyleDefault.
	Style Style
	// CustomPrompt replaces the built-in prompt when non-empty. The
	// {messages} placeholder inside it receives the transcript.
	CustomPrompt string
}

// Summarizer reduces chat transcripts through a Completer.
type Summarizer struct {
	completer       Completer
	chunkSize       int
	singlePassLimit int
}

// Option configures a Summarizer.
type Option func(*Summarizer)

// WithChunkSize overrides the hierarchical chunk size. Non-positive
// values keep the default.
func WithChunkSize(n int) Option {
	return func(s *Summarizer) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithSinglePassLimit overrides the single-pass transcript limit.
// Non-positive values keep the default.
func WithSinglePassLimit(n int) Option {
	return func(s *Summarizer) {
		if n > 0 {
			s.singlePassLimit = n
		}
	}
}

// New creates a Summarizer on top of the given completer.
func New(completer Completer, opts ...Option) *Summarizer {
	s := &Summarizer{
		completer:       completer,
		chunkSize:       DefaultChunkSize,
		singlePassLimit: DefaultSinglePassLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize produces one summary for the ordered message list. An empty
// list returns EmptyTranscriptSummary without touching the completer.
// Transcripts within the single-pass limit are summarized in one call
// whose failures are rewrapped into the user-facing taxonomy, longer
// ones take the hierarchical path.
func (s *Summarizer) Summarize(ctx context.Context, msgs []chat.Message, opts Options) (string, error) {
	ctx, span := chattrace.Tracer.Start(ctx, itelemetry.SpanNameSummarize)
	defer span.End()

	if len(msgs) == 0 {
		itelemetry.TraceSummarize(span, 0, 0, nil)
		return EmptyTranscriptSummary, nil
	}
	if len(msgs) <= s.singlePassLimit {
		text, err := s.completer.Complete(ctx, buildPrompt(msgs, opts))
		if err != nil {
			err = rewrap(err)
			itelemetry.TraceSummarize(span, len(msgs), 0, err)
			return "", err
		}
		itelemetry.TraceSummarize(span, len(msgs), 0, nil)
		return text, nil
	}
	return s.hierarchical(ctx, span, msgs, opts)
}

// hierarchical summarizes each chunk independently and merges the
// labeled partial summaries with one final call. Chunk failures
// propagate as raw completer errors, a merge failure degrades to the
// joined partial summaries instead of failing the whole run.
func (s *Summarizer) hierarchical(ctx context.Context, span oteltrace.Span,
	msgs []chat.Message, opts Options) (string, error) {
	chunks := chunkMessages(msgs, s.chunkSize)
	if len(chunks) == 1 {
		// A single chunk needs no merge, return its summary unlabeled.
		text, err := s.completer.Complete(ctx, buildPrompt(chunks[0], opts))
		itelemetry.TraceSummarize(span, len(msgs), 1, err)
		if err != nil {
			return "", fmt.Errorf("summarize chunk 1/1: %w", err)
		}
		return text, nil
	}

	labeled := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		text, err := s.completer.Complete(ctx, buildPrompt(chunk, opts))
		if err != nil {
			err = fmt.Errorf("summarize chunk %d/%d: %w", i+1, len(chunks), err)
			itelemetry.TraceSummarize(span, len(msgs), len(chunks), err)
			return "", err
		}
		labeled = append(labeled, fmt.Sprintf("[Chunk %d/%d - %d messages]: %s",
			i+1, len(chunks), len(chunk), text))
	}

	joined := strings.Join(labeled, chunkSeparator)
	merged, err := s.completer.Complete(ctx, buildMergePrompt(len(chunks), len(msgs), joined, opts))
	if err != nil {
		// Partial summaries beat no summary, so the merge never fails
		// the request.
		log.Warnf("summarize: merge of %d partial summaries failed, degrading: %v",
			len(chunks), err)
		itelemetry.TraceSummarize(span, len(msgs), len(chunks), nil)
		return degradedMergeHeader + "\n\n" + joined, nil
	}
	itelemetry.TraceSummarize(span, len(msgs), len(chunks), nil)
	return merged, nil
}

// chunkMessages partitions msgs into order-preserving chunks of at most
// size messages each.
func chunkMessages(msgs []chat.Message, size int) [][]chat.Message {
	chunks := make([][]chat.Message, 0, (len(msgs)+size-1)/size)
	for start := 0; start < len(msgs); start += size {
		end := start + size
		if end > len(msgs) {
			end = len(msgs)
		}
		chunks = append(chunks, msgs[start:end])
	}
	return chunks
}
