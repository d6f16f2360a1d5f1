//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

package gateway

import "time"

// options holds the configuration options for the gateway.
type options struct {
	name             string
	models           []string
	maxRetries       int
	recoveryInterval time.Duration
	retryBackoff     time.Duration
}

func newOptions() *options {
	return &options{
		name:             defaultName,
		maxRetries:       DefaultMaxRetries,
		recoveryInterval: DefaultRecoveryInterval,
		retryBackoff:     DefaultRetryBackoff,
	}
}

// Option is a function that configures the gateway.
type Option func(*options)

// WithName labels the gateway in logs and metrics. Useful when several
// gateways with distinct credential sets run in one process.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithModels sets the ordered model fallback chain. The chain is fixed
// for the gateway lifetime and tried in order on every attempt.
func WithModels(models ...string) Option {
	return func(o *options) {
		o.models = append([]string(nil), models...)
	}
}

// WithMaxRetries bounds the outer attempts of one Complete call.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		o.maxRetries = n
	}
}

// WithRecoveryInterval sets how long a quota-exhausted credential stays
// out of the rotation before it recovers on its own.
func WithRecoveryInterval(d time.Duration) Option {
	return func(o *options) {
		o.recoveryInterval = d
	}
}

// WithRetryBackoff sets the base delay between outer attempts. A zero
// duration disables the wait entirely.
func WithRetryBackoff(d time.Duration) Option {
	return func(o *options) {
		o.retryBackoff = d
	}
}
