//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

package chat

import (
	"errors"
	"strings"
	"time"
)

// Group is the per-chat configuration for message capture and digests.
type Group struct {
	// ID uniquely identifies the chat, for example a Telegram chat id.
	ID string `json:"id"`
	// Title is the human readable chat title used in digest headers.
	Title string `json:"title,omitempty"`
	// CustomPrompt overrides the built-in summary prompt. It may contain
	// the {messages} placeholder which is replaced with the transcript.
	CustomPrompt string `json:"custom_prompt,omitempty"`
	// Style names the summary style, empty means the default style.
	Style string `json:"style,omitempty"`
	// Filter selects which captured messages participate in summaries.
	Filter Filter `json:"filter,omitempty"`
	// DigestInterval is the period of scheduled digests, zero disables
	// scheduling for the group.
	DigestInterval time.Duration `json:"digest_interval,omitempty"`
	// Credentials are per-group API keys that override the engine
	// defaults. Stores may encrypt them at rest.
	Credentials []string `json:"credentials,omitempty"`
	// UpdatedAt records the last configuration change.
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Validate reports whether the group configuration is usable.
func (g *Group) Validate() error {
	if strings.TrimSpace(g.ID) == "" {
		return errors.New("group id is required")
	}
	if g.DigestInterval < 0 {
		return errors.New("digest interval must not be negative")
	}
	return nil
}

// Clone returns a deep copy so stores and callers never share slices.
func (g *Group) Clone() *Group {
	if g == nil {
		return nil
	}
	clone := *g
	if g.Credentials != nil {
		clone.Credentials = append([]string(nil), g.Credentials...)
	}
	if g.Filter.MuteSenders != nil {
		clone.Filter.MuteSenders = append([]string(nil), g.Filter.MuteSenders...)
	}
	return &clone
}
