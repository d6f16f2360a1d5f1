//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

// Package digest produces conversation digests: it loads a group's
// cached messages, summarizes them and hands the result to a delivery
// notifier. The Scheduler triggers runs at each group's configured
// interval.
package digest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trpc.group/trpc-go/trpc-chat-digest/chat"
	itelemetry "trpc.group/trpc-go/trpc-chat-digest/internal/telemetry"
	"trpc.group/trpc-go/trpc-chat-digest/log"
	"trpc.group/trpc-go/trpc-chat-digest/store"
	"trpc.group/trpc-go/trpc-chat-digest/summarize"
	chattrace "trpc.group/trpc-go/trpc-chat-digest/telemetry/trace"
)

// DefaultWindow is the lookback window for groups without a digest
// interval of their own.
const DefaultWindow = 24 * time.Hour

// Digest is one produced summary of a group's recent conversation.
type Digest struct {
	// ID uniquely identifies this digest.
	ID string `json:"id"`
	// GroupID is the summarized group.
	GroupID string `json:"group_id"`
	// GroupTitle is the group title at production time.
	GroupTitle string `json:"group_title,omitempty"`
	// Summary is the produced summary text, markdown formatted.
	Summary string `json:"summary"`
	// MessageCount is the number of messages that entered the summary
	// after filtering.
	MessageCount int `json:"message_count"`
	// WindowStart and WindowEnd bound the summarized period.
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	// CreatedAt records when the digest was produced.
	CreatedAt time.Time `json:"created_at"`
}

// Engine produces a summary for a prepared transcript.
// *summarize.Summarizer satisfies it.
type Engine interface {
	Summarize(ctx context.Context, msgs []chat.Message, opts summarize.Options) (string, error)
}

// EngineFactory builds the engine for one group, letting groups bring
// their own credentials.
type EngineFactory func(ctx context.Context, group *chat.Group) (Engine, error)

// Runner loads, filters and summarizes a group's recent messages.
type Runner struct {
	store    store.Service
	engine   Engine
	factory  EngineFactory
	notifier Notifier
	window   time.Duration
	now      func() time.Time
}

// RunnerOpt is the option for a Runner.
type RunnerOpt func(*Runner)

// WithEngine sets the default summarization engine.
func WithEngine(engine Engine) RunnerOpt {
	return func(r *Runner) {
		r.engine = engine
	}
}

// WithEngineFactory sets a per-group engine factory. Groups without an
// entry in the factory's view fall back to the default engine when the
// factory returns a nil engine and nil error.
func WithEngineFactory(factory EngineFactory) RunnerOpt {
	return func(r *Runner) {
		r.factory = factory
	}
}

// WithNotifier sets the delivery notifier. Delivery failures are logged
// and never fail a run.
func WithNotifier(notifier Notifier) RunnerOpt {
	return func(r *Runner) {
		r.notifier = notifier
	}
}

// WithDefaultWindow overrides the lookback window for groups without a
// digest interval.
func WithDefaultWindow(window time.Duration) RunnerOpt {
	return func(r *Runner) {
		if window > 0 {
			r.window = window
		}
	}
}

// runConfig carries per-run overrides of the group configuration.
type runConfig struct {
	style        string
	customPrompt string
	window       time.Duration
}

// RunOption adjusts a single digest run without touching the stored
// group configuration.
type RunOption func(*runConfig)

// WithStyle overrides the group's summary style for this run.
func WithStyle(style string) RunOption {
	return func(c *runConfig) {
		c.style = style
	}
}

// WithCustomPrompt overrides the group's custom prompt for this run.
func WithCustomPrompt(prompt string) RunOption {
	return func(c *runConfig) {
		c.customPrompt = prompt
	}
}

// WithWindow overrides the summarized window for this run.
func WithWindow(window time.Duration) RunOption {
	return func(c *runConfig) {
		c.window = window
	}
}

// NewRunner creates a digest runner.
func NewRunner(svc store.Service, opts ...RunnerOpt) (*Runner, error) {
	if svc == nil {
		return nil, errors.New("digest runner requires a store")
	}
	r := &Runner{
		store:  svc,
		window: DefaultWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.engine == nil && r.factory == nil {
		return nil, errors.New("digest runner requires an engine or engine factory")
	}
	return r, nil
}

// Run produces one digest for a group. The summarized window is the
// group's digest interval, or the runner's default window when the
// group has none. Options override the stored configuration for this
// run only.
func (r *Runner) Run(ctx context.Context, groupID string, opts ...RunOption) (*Digest, error) {
	ctx, span := chattrace.Tracer.Start(ctx, itelemetry.SpanNameDigestRun)
	defer span.End()

	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	group, err := r.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("load group %s: %w", groupID, err)
	}

	now := r.now()
	window := cfg.window
	if window <= 0 {
		window = group.DigestInterval
	}
	if window <= 0 {
		window = r.window
	}
	since := now.Add(-window)

	msgs, err := r.store.ListMessages(ctx, groupID, since, store.MaxCachedMessages)
	if err != nil {
		return nil, fmt.Errorf("list messages for group %s: %w", groupID, err)
	}
	msgs = group.Filter.Apply(msgs)

	engine, err := r.resolveEngine(ctx, group)
	if err != nil {
		return nil, fmt.Errorf("build engine for group %s: %w", groupID, err)
	}

	style := group.Style
	if cfg.style != "" {
		style = cfg.style
	}
	customPrompt := group.CustomPrompt
	if cfg.customPrompt != "" {
		customPrompt = cfg.customPrompt
	}

	summary, err := engine.Summarize(ctx, msgs, summarize.Options{
		Style:        summarize.ParseStyle(style),
		CustomPrompt: customPrompt,
	})
	if err != nil {
		return nil, err
	}

	d := &Digest{
		ID:           uuid.New().String(),
		GroupID:      group.ID,
		GroupTitle:   group.Title,
		Summary:      summary,
		MessageCount: len(msgs),
		WindowStart:  since,
		WindowEnd:    now,
		CreatedAt:    now,
	}
	itelemetry.TraceDigestRun(span, group.ID, d.ID, len(msgs))

	if r.notifier != nil {
		if err := r.notifier.Deliver(ctx, group, d); err != nil {
			log.Errorf("deliver digest %s for group %s: %v", d.ID, group.ID, err)
		}
	}
	return d, nil
}

func (r *Runner) resolveEngine(ctx context.Context, group *chat.Group) (Engine, error) {
	if r.factory != nil {
		engine, err := r.factory(ctx, group)
		if err != nil {
			return nil, err
		}
		if engine != nil {
			return engine, nil
		}
	}
	if r.engine == nil {
		return nil, errors.New("no engine available")
	}
	return r.engine, nil
}
