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
	"github.com/bmatcuk/doublestar/v4"
)

// Filter selects the messages that participate in a summary.
type Filter struct {
	// MuteSenders holds glob patterns matched against both the username
	// and the display name of each message. Matching messages are dropped.
	MuteSenders []string `json:"mute_senders,omitempty"`
	// SkipEmpty drops messages whose content is blank, for example
	// sticker or media placeholders captured without a caption.
	SkipEmpty bool `json:"skip_empty,omitempty"`
}

// Apply returns the messages that pass the filter, preserving order.
// The input slice is never modified.
func (f Filter) Apply(msgs []Message) []Message {
	if len(f.MuteSenders) == 0 && !f.SkipEmpty {
		return msgs
	}
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if f.SkipEmpty && m.IsEmpty() {
			continue
		}
		if f.muted(m) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (f Filter) muted(m Message) bool {
	for _, pattern := range f.MuteSenders {
		if matchGlob(pattern, m.Sender) || matchGlob(pattern, m.DisplayName) {
			return true
		}
	}
	return false
}

func matchGlob(pattern, name string) bool {
	if name == "" {
		return false
	}
	ok, err := doublestar.Match(pattern, name)
	if err != nil {
		// Invalid patterns never match.
		return false
	}
	return ok
}
