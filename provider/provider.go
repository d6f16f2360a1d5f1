//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

// Package provider abstracts the LLM backends used to produce
// completions. A provider turns one credential into a Client, and maps
// backend specific failures onto a small shared error taxonomy so the
// gateway can decide between retrying, rotating credentials and
// switching models without knowing which SDK produced the error.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Client produces completions for a single credential.
type Client interface {
	// Complete sends prompt to model and returns the generated text.
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// Factory builds a Client bound to the given credential. The gateway
// calls it once per credential at construction time.
type Factory func(ctx context.Context, credential string) (Client, error)

// Reason classifies a completion failure.
type Reason int

const (
	// ReasonUnknown marks failures outside the taxonomy.
	ReasonUnknown Reason = iota
	// ReasonQuotaExhausted marks rate limit and quota failures. The
	// credential recovers after a cool-down.
	ReasonQuotaExhausted
	// ReasonUnavailable marks transient backend failures such as 5xx
	// responses or an unknown model. Worth trying another model.
	ReasonUnavailable
	// ReasonInvalidCredential marks authentication failures. The
	// credential will not recover.
	ReasonInvalidCredential
	// ReasonPermissionDenied marks authorization failures, for example
	// a key without access to the requested model.
	ReasonPermissionDenied
	// ReasonTimeout marks deadline expiry while waiting for the backend.
	ReasonTimeout
	// ReasonNetwork marks connectivity failures before a response.
	ReasonNetwork
)

// String returns the reason name for logs.
func (r Reason) String() string {
	switch r {
	case ReasonQuotaExhausted:
		return "quota_exhausted"
	case ReasonUnavailable:
		return "unavailable"
	case ReasonInvalidCredential:
		return "invalid_credential"
	case ReasonPermissionDenied:
		return "permission_denied"
	case ReasonTimeout:
		return "timeout"
	case ReasonNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Error is a classified completion failure.
type Error struct {
	// Reason is the taxonomy bucket.
	Reason Reason
	// Provider names the backend, for example "gemini".
	Provider string
	// Model is the model the request was sent to.
	Model string
	// Err is the underlying SDK error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s completion failed (model %s, reason %s): %v",
		e.Provider, e.Model, e.Reason, e.Err)
}

// Unwrap returns the underlying SDK error.
func (e *Error) Unwrap() error {
	return e.Err
}

// ReasonOf extracts the failure reason from err. Errors produced by a
// provider carry their reason, anything else falls back to message
// classification.
func ReasonOf(err error) Reason {
	if err == nil {
		return ReasonUnknown
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Reason
	}
	return Classify(err)
}
