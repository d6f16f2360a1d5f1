//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides the in-process store implementation used by
// tests, examples and single-node deployments.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"trpc.group/trpc-go/trpc-chat-digest/chat"
	"trpc.group/trpc-go/trpc-chat-digest/store"
)

var _ store.Service = (*Service)(nil)

// serviceOpts is the options for the in-memory store.
type serviceOpts struct {
	// messageLimit caps the cached messages per group.
	messageLimit int
}

// ServiceOpt is the option for the in-memory store.
type ServiceOpt func(*serviceOpts)

// WithMessageLimit overrides the per-group message cap.
func WithMessageLimit(limit int) ServiceOpt {
	return func(opts *serviceOpts) {
		if limit > 0 {
			opts.messageLimit = limit
		}
	}
}

// Service is the in-memory store.
type Service struct {
	mu       sync.RWMutex
	messages map[string][]chat.Message
	groups   map[string]*chat.Group
	opts     serviceOpts
}

// NewService creates a new in-memory store.
func NewService(options ...ServiceOpt) *Service {
	opts := serviceOpts{
		messageLimit: store.MaxCachedMessages,
	}
	for _, option := range options {
		option(&opts)
	}
	return &Service{
		messages: make(map[string][]chat.Message),
		groups:   make(map[string]*chat.Group),
		opts:     opts,
	}
}

// AppendMessage caches one message, evicting the oldest beyond the cap.
func (s *Service) AppendMessage(_ context.Context, groupID string, msg chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := append(s.messages[groupID], msg)
	if over := len(msgs) - s.opts.messageLimit; over > 0 {
		msgs = append([]chat.Message(nil), msgs[over:]...)
	}
	s.messages[groupID] = msgs
	return nil
}

// ListMessages returns up to limit of the most recent messages at or
// after since, oldest first.
func (s *Service) ListMessages(_ context.Context, groupID string, since time.Time, limit int) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cached := s.messages[groupID]
	selected := make([]chat.Message, 0, len(cached))
	for _, m := range cached {
		if !since.IsZero() && m.Timestamp.Before(since) {
			continue
		}
		selected = append(selected, m)
	}
	if limit > 0 && len(selected) > limit {
		selected = selected[len(selected)-limit:]
	}
	return selected, nil
}

// CountMessages reports the cached message count for a group.
func (s *Service) CountMessages(_ context.Context, groupID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages[groupID]), nil
}

// PutGroup creates or replaces a group settings record.
func (s *Service) PutGroup(_ context.Context, group *chat.Group) error {
	if err := group.Validate(); err != nil {
		return err
	}
	record := group.Clone()
	record.UpdatedAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[record.ID] = record
	return nil
}

// GetGroup loads a group settings record.
func (s *Service) GetGroup(_ context.Context, id string) (*chat.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	group, ok := s.groups[id]
	if !ok {
		return nil, store.ErrGroupNotFound
	}
	return group.Clone(), nil
}

// ListGroups returns every group record ordered by id.
func (s *Service) ListGroups(_ context.Context) ([]*chat.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make([]*chat.Group, 0, len(s.groups))
	for _, g := range s.groups {
		groups = append(groups, g.Clone())
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, nil
}

// DeleteGroup removes a group record and its cached messages.
func (s *Service) DeleteGroup(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.groups, id)
	delete(s.messages, id)
	return nil
}

// Close implements store.Service. Nothing to release.
func (s *Service) Close() error { return nil }
