//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

// Package gateway obtains LLM completions while masking transient
// backend failures. It rotates across interchangeable credentials,
// falls back across an ordered model chain, tracks quota exhaustion
// with timed recovery and bounds the whole search with a global retry
// budget.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"

	itelemetry "trpc.group/trpc-go/trpc-chat-digest/internal/telemetry"
	"trpc.group/trpc-go/trpc-chat-digest/log"
	"trpc.group/trpc-go/trpc-chat-digest/provider"
	chatmetric "trpc.group/trpc-go/trpc-chat-digest/telemetry/metric"
	chattrace "trpc.group/trpc-go/trpc-chat-digest/telemetry/trace"
)

const (
	// DefaultMaxRetries bounds the outer attempts of one Complete call.
	DefaultMaxRetries = 3
	// DefaultRecoveryInterval is how long a quota-exhausted credential
	// stays out of the rotation.
	DefaultRecoveryInterval = 60 * time.Second
	// DefaultRetryBackoff is the base delay between outer attempts. The
	// actual wait adds up to one base delay of random jitter.
	DefaultRetryBackoff = time.Second
	// EmptyCompletionPlaceholder replaces completions that came back blank.
	EmptyCompletionPlaceholder = "(empty model response)"

	defaultName = "default"
)

// ProviderError reports that the retry budget was spent without any
// credential and model combination succeeding.
type ProviderError struct {
	// Attempts is the number of outer attempts made.
	Attempts int
	// Err is the most recent underlying failure.
	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("completion failed after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the most recent underlying failure.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Gateway is a completion front over N interchangeable credentials and
// an ordered model fallback chain. It is safe for concurrent use, all
// in-flight calls share the credential health state and the rotation
// cursor.
type Gateway struct {
	name             string
	clients          []provider.Client
	models           []string
	maxRetries       int
	recoveryInterval time.Duration
	retryBackoff     time.Duration
	rotation         *rotationState

	// now, sleep and randInt63n are replaced in tests.
	now        func() time.Time
	sleep      func(context.Context, time.Duration) error
	randInt63n func(int64) int64

	completions metric.Int64Counter
	rotations   metric.Int64Counter
}

// New builds a gateway over the given credentials. Every credential is
// bound to its own provider client up front so a broken factory fails
// construction rather than the first completion.
func New(ctx context.Context, credentials []string, factory provider.Factory, opts ...Option) (*Gateway, error) {
	o := newOptions()
	for _, opt := range opts {
		opt(o)
	}
	if len(credentials) == 0 {
		return nil, errors.New("gateway: at least one credential is required")
	}
	if len(o.models) == 0 {
		return nil, errors.New("gateway: at least one model is required")
	}
	if o.maxRetries <= 0 {
		return nil, errors.New("gateway: max retries must be positive")
	}
	clients := make([]provider.Client, len(credentials))
	for i, credential := range credentials {
		client, err := factory(ctx, credential)
		if err != nil {
			return nil, fmt.Errorf("gateway: bind credential %d: %w", i, err)
		}
		clients[i] = client
	}
	g := &Gateway{
		name:             o.name,
		clients:          clients,
		models:           append([]string(nil), o.models...),
		maxRetries:       o.maxRetries,
		recoveryInterval: o.recoveryInterval,
		retryBackoff:     o.retryBackoff,
		rotation:         newRotationState(len(clients)),
		now:              time.Now,
		sleep:            sleepContext,
		randInt63n:       rand.Int63n,
	}
	var err error
	g.completions, err = chatmetric.Meter.Int64Counter("chat_digest.gateway.completions",
		metric.WithDescription("Finished completion calls by outcome."))
	if err != nil {
		return nil, fmt.Errorf("gateway: create completion counter: %w", err)
	}
	g.rotations, err = chatmetric.Meter.Int64Counter("chat_digest.gateway.rotations",
		metric.WithDescription("Credential rotations forced by quota or auth failures."))
	if err != nil {
		return nil, fmt.Errorf("gateway: create rotation counter: %w", err)
	}
	return g, nil
}

// Complete obtains one completion for prompt. It retries transparently
// across credentials and models within the retry budget, returns a
// *ProviderError once the budget is spent, and surfaces non-retryable
// failures immediately and unchanged. Blank completions are normalized
// to EmptyCompletionPlaceholder.
func (g *Gateway) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := chattrace.Tracer.Start(ctx, itelemetry.SpanNameComplete)
	defer span.End()

	var (
		attempt   = 1
		idx       int
		text      string
		lastModel string
		lastErr   error
	)
	state := stateSelecting
	for {
		switch state {
		case stateSelecting:
			if err := ctx.Err(); err != nil {
				return "", g.finish(ctx, span, attempt, lastModel, err)
			}
			var ok bool
			idx, ok = g.rotation.next(g.now())
			if !ok {
				// Every credential is exhausted or dead. Attempt the
				// cursor position anyway instead of stalling until the
				// nearest recovery deadline.
				log.Warnf("gateway %s: no usable credential, attempting credential %d anyway", g.name, idx)
			}
			state = stateTrying
		case stateTrying:
			var next searchState
			text, lastModel, next, lastErr = g.tryModels(ctx, idx, prompt)
			if next == stateSelecting || next == stateBackoff {
				// Rotating away and exhausting the chain both consume
				// one outer attempt.
				if attempt >= g.maxRetries {
					err := &ProviderError{Attempts: attempt, Err: lastErr}
					return "", g.finish(ctx, span, attempt, lastModel, err)
				}
				attempt++
			}
			state = next
		case stateBackoff:
			if err := g.sleep(ctx, g.backoffDelay()); err != nil {
				return "", g.finish(ctx, span, attempt, lastModel, err)
			}
			state = stateSelecting
		case stateSucceeded:
			return text, g.finish(ctx, span, attempt, lastModel, nil)
		default: // stateAborted
			return "", g.finish(ctx, span, attempt, lastModel, lastErr)
		}
	}
}

// tryModels walks the model chain against the credential at idx and
// reports the state transition the outcome forces. The returned model
// is the last one called.
func (g *Gateway) tryModels(ctx context.Context, idx int, prompt string) (string, string, searchState, error) {
	var (
		lastModel string
		lastErr   error
	)
	for _, model := range g.models {
		lastModel = model
		text, err := g.clients[idx].Complete(ctx, model, prompt)
		if err == nil {
			if strings.TrimSpace(text) == "" {
				text = EmptyCompletionPlaceholder
			}
			return text, lastModel, stateSucceeded, nil
		}
		lastErr = err
		action := g.decide(idx, err)
		log.Debugf("gateway %s: credential %d model %s failed, action %s: %v",
			g.name, idx, model, action, err)
		switch action {
		case actionRotate:
			g.countRotation(ctx)
			return "", lastModel, stateSelecting, err
		case actionAbort:
			return "", lastModel, stateAborted, err
		}
		// actionNextModel: fall through to the next chain entry.
	}
	return "", lastModel, stateBackoff, lastErr
}

// decide maps one classified model-call failure onto the next
// transition. Quota failures exhaust the credential and prefer rotating
// while another credential is usable. Credential failures kill the slot
// for the process lifetime and abort only once every slot is dead.
// Unclassified failures abort the whole search at once.
func (g *Gateway) decide(idx int, err error) chainAction {
	switch provider.ReasonOf(err) {
	case provider.ReasonQuotaExhausted:
		g.rotation.markExhausted(idx, g.now(), g.recoveryInterval)
		if g.rotation.otherUsable(idx, g.now()) {
			return actionRotate
		}
		return actionNextModel
	case provider.ReasonUnavailable, provider.ReasonTimeout, provider.ReasonNetwork:
		return actionNextModel
	case provider.ReasonInvalidCredential, provider.ReasonPermissionDenied:
		g.rotation.markDead(idx)
		if g.rotation.allDead() {
			return actionAbort
		}
		return actionRotate
	default:
		return actionAbort
	}
}

// backoffDelay returns the jittered wait before the next outer attempt.
func (g *Gateway) backoffDelay() time.Duration {
	if g.retryBackoff <= 0 {
		return 0
	}
	return g.retryBackoff + time.Duration(g.randInt63n(int64(g.retryBackoff)))
}

func (g *Gateway) finish(ctx context.Context, span oteltrace.Span, attempts int, model string, err error) error {
	status := "ok"
	if err != nil {
		status = "error"
	}
	g.completions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("gateway", g.name),
		attribute.String("status", status),
	))
	itelemetry.TraceCompletion(span, g.name, model, attempts, err)
	return err
}

func (g *Gateway) countRotation(ctx context.Context) {
	g.rotations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("gateway", g.name),
	))
}

// sleepContext blocks for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
