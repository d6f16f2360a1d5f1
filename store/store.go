//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

// Package store defines the storage boundary for cached chat messages
// and per-group settings records.
package store

import (
	"context"
	"errors"
	"time"

	"trpc.group/trpc-go/trpc-chat-digest/chat"
)

// MaxCachedMessages caps the per-group message cache. The oldest
// messages are evicted once the cap is reached.
const MaxCachedMessages = 10000

// ErrGroupNotFound is returned when a group record does not exist.
var ErrGroupNotFound = errors.New("store: group not found")

// Service is the interface all digest stores implement.
type Service interface {
	// AppendMessage caches one message for a group, evicting the oldest
	// message beyond the cache cap.
	AppendMessage(ctx context.Context, groupID string, msg chat.Message) error

	// ListMessages returns up to limit of the most recent cached
	// messages whose Timestamp is at or after since, in chronological
	// order. A zero since means no lower bound, limit <= 0 means all.
	ListMessages(ctx context.Context, groupID string, since time.Time, limit int) ([]chat.Message, error)

	// CountMessages reports how many messages are cached for a group.
	CountMessages(ctx context.Context, groupID string) (int, error)

	// PutGroup creates or replaces a group settings record.
	PutGroup(ctx context.Context, group *chat.Group) error

	// GetGroup loads a group settings record. ErrGroupNotFound is
	// returned when the group does not exist.
	GetGroup(ctx context.Context, id string) (*chat.Group, error)

	// ListGroups returns every group settings record ordered by id.
	ListGroups(ctx context.Context) ([]*chat.Group, error)

	// DeleteGroup removes a group record together with its cached
	// messages. Deleting an absent group is not an error.
	DeleteGroup(ctx context.Context, id string) error

	// Close releases the underlying resources.
	Close() error
}
