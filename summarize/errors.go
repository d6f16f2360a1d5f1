//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

package summarize

import (
	"fmt"

	"trpc.group/trpc-go/trpc-chat-digest/provider"
)

// Kind classifies a summarization failure for user display.
type Kind int

// Failure kinds surfaced to end users.
const (
	KindInvalidCredential Kind = iota + 1
	KindPermissionDenied
	KindQuotaExceeded
	KindTimeout
	KindNetwork
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInvalidCredential:
		return "invalid_credential"
	case KindPermissionDenied:
		return "permission_denied"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Error is a summarization failure carrying a message fit for end
// users alongside the underlying cause.
type Error struct {
	// Kind is the failure classification.
	Kind Kind
	// Message is the user-facing description of the failure.
	Message string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// userMessages is the fixed user-facing text per failure kind.
var userMessages = map[Kind]string{
	KindInvalidCredential: "The configured API credential was rejected. Please replace it.",
	KindPermissionDenied:  "The API credential has no access to the requested model.",
	KindQuotaExceeded:     "All API credentials are over quota right now. Try again later or add another credential.",
	KindTimeout:           "The summarization request timed out. Try again in a moment.",
	KindNetwork:           "The summarization service is unreachable. Check the network and try again.",
}

// rewrap converts a classified provider failure into the user-facing
// taxonomy. Anything unrecognized passes through unchanged so the
// caller sees the original message.
func rewrap(err error) error {
	if err == nil {
		return nil
	}
	var kind Kind
	switch provider.ReasonOf(err) {
	case provider.ReasonInvalidCredential:
		kind = KindInvalidCredential
	case provider.ReasonPermissionDenied:
		kind = KindPermissionDenied
	case provider.ReasonQuotaExhausted:
		kind = KindQuotaExceeded
	case provider.ReasonTimeout:
		kind = KindTimeout
	case provider.ReasonNetwork:
		kind = KindNetwork
	default:
		return err
	}
	return &Error{Kind: kind, Message: userMessages[kind], Err: err}
}
