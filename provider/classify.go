//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

package provider

import (
	"context"
	"errors"
	"strings"
)

// Classify buckets err by its message. It is the fallback for errors
// that did not come through a provider and therefore carry no status
// code, for example errors returned by OpenAI-compatible proxies that
// flatten HTTP failures into plain strings.
func Classify(err error) Reason {
	if err == nil {
		return ReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "429", "rate limit", "too many requests",
		"quota", "resource has been exhausted", "resource_exhausted"):
		return ReasonQuotaExhausted
	case containsAny(msg, "401", "unauthorized", "invalid api key",
		"api key not valid", "invalid authentication"):
		return ReasonInvalidCredential
	case containsAny(msg, "403", "permission denied", "forbidden"):
		return ReasonPermissionDenied
	case containsAny(msg, "404", "not found", "does not exist",
		"500", "502", "503", "internal server error", "server_error",
		"service unavailable", "overloaded", "bad gateway"):
		return ReasonUnavailable
	case containsAny(msg, "timeout", "deadline exceeded", "timed out"):
		return ReasonTimeout
	case containsAny(msg, "connection refused", "connection reset",
		"no such host", "dns", "broken pipe", "eof"):
		return ReasonNetwork
	default:
		return ReasonUnknown
	}
}

// StatusReason buckets an HTTP status code from an LLM backend.
func StatusReason(code int) Reason {
	switch {
	case code == 429:
		return ReasonQuotaExhausted
	case code == 401:
		return ReasonInvalidCredential
	case code == 403:
		return ReasonPermissionDenied
	case code == 404 || code >= 500:
		return ReasonUnavailable
	case code == 408:
		return ReasonTimeout
	default:
		return ReasonUnknown
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
