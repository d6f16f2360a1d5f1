//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

// Package chat defines the message and group types shared by the
// summarization pipeline, the stores and the transports.
package chat

import (
	"strings"
	"time"
)

// AnonymousLabel identifies a sender that carries neither a username nor
// a display name.
const AnonymousLabel = "Unknown"

// Message is a single chat message as captured from a transport.
type Message struct {
	// Sender is the stable username without the "@" prefix, may be empty.
	Sender string `json:"sender,omitempty"`
	// DisplayName is the human readable name shown in the chat client.
	DisplayName string `json:"display_name,omitempty"`
	// Content is the plain text body of the message.
	Content string `json:"content"`
	// Timestamp records when the message was sent.
	Timestamp time.Time `json:"timestamp"`
}

// Label returns the attribution used when rendering the message into a
// transcript: "@username" when a username exists, otherwise the display
// name, otherwise AnonymousLabel.
func (m Message) Label() string {
	if m.Sender != "" {
		return "@" + m.Sender
	}
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return AnonymousLabel
}

// IsEmpty reports whether the message has no visible text content.
func (m Message) IsEmpty() bool {
	return strings.TrimSpace(m.Content) == ""
}
