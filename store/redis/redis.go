//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

// Package redis implements the store on a redis instance so multiple
// assistant processes share one message cache.
//
// Storage structure:
//
//	messages: chatdigest:messages:<groupID> -> list [Message(json)], oldest first
//	groups:   chatdigest:groups             -> hash [groupID -> Group(json)]
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"trpc.group/trpc-go/trpc-chat-digest/chat"
	"trpc.group/trpc-go/trpc-chat-digest/secret"
	storage "trpc.group/trpc-go/trpc-chat-digest/storage/redis"
	"trpc.group/trpc-go/trpc-chat-digest/store"
)

var _ store.Service = (*Service)(nil)

const (
	messageKeyPrefix = "chatdigest:messages:"
	groupsKey        = "chatdigest:groups"
)

// ServiceOpts is the options for the redis store.
type ServiceOpts struct {
	messageLimit int
	messageTTL   time.Duration
	url          string
	instanceName string
	redisClient  redis.UniversalClient
	cipher       *secret.Cipher
}

// ServiceOpt is the option for the redis store.
type ServiceOpt func(*ServiceOpts)

// WithRedisClient sets a prebuilt redis client.
func WithRedisClient(client redis.UniversalClient) ServiceOpt {
	return func(opts *ServiceOpts) {
		opts.redisClient = client
	}
}

// WithRedisClientURL builds the redis client from a URL.
func WithRedisClientURL(url string) ServiceOpt {
	return func(opts *ServiceOpts) {
		opts.url = url
	}
}

// WithRedisInstance builds the redis client from a registered instance
// name, see storage/redis.RegisterRedisInstance.
func WithRedisInstance(name string) ServiceOpt {
	return func(opts *ServiceOpts) {
		opts.instanceName = name
	}
}

// WithMessageLimit overrides the per-group message cap.
func WithMessageLimit(limit int) ServiceOpt {
	return func(opts *ServiceOpts) {
		if limit > 0 {
			opts.messageLimit = limit
		}
	}
}

// WithMessageTTL expires a group's message list when no message arrives
// for the given duration. Zero keeps messages until evicted.
func WithMessageTTL(ttl time.Duration) ServiceOpt {
	return func(opts *ServiceOpts) {
		opts.messageTTL = ttl
	}
}

// WithCipher seals group credentials before they are written and opens
// them on read.
func WithCipher(cipher *secret.Cipher) ServiceOpt {
	return func(opts *ServiceOpts) {
		opts.cipher = cipher
	}
}

// Service is the redis store.
type Service struct {
	opts ServiceOpts
}

// NewService creates a new redis store. The client is resolved from,
// in order: an explicit client, a URL, a registered instance name.
func NewService(options ...ServiceOpt) (*Service, error) {
	opts := ServiceOpts{
		messageLimit: store.MaxCachedMessages,
	}
	for _, option := range options {
		option(&opts)
	}
	if opts.redisClient == nil {
		client, err := buildClient(&opts)
		if err != nil {
			return nil, err
		}
		opts.redisClient = client
	}
	return &Service{opts: opts}, nil
}

func buildClient(opts *ServiceOpts) (redis.UniversalClient, error) {
	builder := storage.GetClientBuilder()
	if opts.url != "" {
		client, err := builder(storage.WithClientBuilderURL(opts.url))
		if err != nil {
			return nil, fmt.Errorf("redis store build client from url: %w", err)
		}
		return client, nil
	}
	if opts.instanceName != "" {
		builderOpts, ok := storage.GetRedisInstance(opts.instanceName)
		if !ok {
			return nil, fmt.Errorf("redis store: instance %s not registered", opts.instanceName)
		}
		client, err := builder(builderOpts...)
		if err != nil {
			return nil, fmt.Errorf("redis store build client from instance %s: %w", opts.instanceName, err)
		}
		return client, nil
	}
	return nil, errors.New("redis store: redis client, url or instance name is required")
}

func messageKey(groupID string) string {
	return messageKeyPrefix + groupID
}

// AppendMessage caches one message, evicting the oldest beyond the cap.
func (s *Service) AppendMessage(ctx context.Context, groupID string, msg chat.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis store marshal message: %w", err)
	}

	key := messageKey(groupID)
	pipe := s.opts.redisClient.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, int64(-s.opts.messageLimit), -1)
	if s.opts.messageTTL > 0 {
		pipe.Expire(ctx, key, s.opts.messageTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store append message failed: %w", err)
	}
	return nil
}

// ListMessages returns up to limit of the most recent messages at or
// after since, oldest first.
func (s *Service) ListMessages(ctx context.Context, groupID string, since time.Time, limit int) ([]chat.Message, error) {
	raw, err := s.opts.redisClient.LRange(ctx, messageKey(groupID), 0, -1).Result()
	if err == redis.Nil {
		return []chat.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis store list messages failed: %w", err)
	}

	selected := make([]chat.Message, 0, len(raw))
	for _, item := range raw {
		var msg chat.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("redis store unmarshal message: %w", err)
		}
		if !since.IsZero() && msg.Timestamp.Before(since) {
			continue
		}
		selected = append(selected, msg)
	}
	if limit > 0 && len(selected) > limit {
		selected = selected[len(selected)-limit:]
	}
	return selected, nil
}

// CountMessages reports the cached message count for a group.
func (s *Service) CountMessages(ctx context.Context, groupID string) (int, error) {
	count, err := s.opts.redisClient.LLen(ctx, messageKey(groupID)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis store count messages failed: %w", err)
	}
	return int(count), nil
}

// PutGroup creates or replaces a group settings record. Credentials are
// sealed before the record is written when a cipher is configured.
func (s *Service) PutGroup(ctx context.Context, group *chat.Group) error {
	if err := group.Validate(); err != nil {
		return err
	}
	record := group.Clone()
	record.UpdatedAt = time.Now()
	if err := s.sealCredentials(record); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("redis store marshal group: %w", err)
	}
	if err := s.opts.redisClient.HSet(ctx, groupsKey, record.ID, data).Err(); err != nil {
		return fmt.Errorf("redis store put group failed: %w", err)
	}
	return nil
}

// GetGroup loads a group settings record.
func (s *Service) GetGroup(ctx context.Context, id string) (*chat.Group, error) {
	data, err := s.opts.redisClient.HGet(ctx, groupsKey, id).Result()
	if err == redis.Nil {
		return nil, store.ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis store get group failed: %w", err)
	}
	return s.decodeGroup([]byte(data))
}

// ListGroups returns every group record ordered by id.
func (s *Service) ListGroups(ctx context.Context) ([]*chat.Group, error) {
	records, err := s.opts.redisClient.HGetAll(ctx, groupsKey).Result()
	if err == redis.Nil {
		return []*chat.Group{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis store list groups failed: %w", err)
	}

	groups := make([]*chat.Group, 0, len(records))
	for _, data := range records {
		group, err := s.decodeGroup([]byte(data))
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, nil
}

// DeleteGroup removes a group record and its cached messages.
func (s *Service) DeleteGroup(ctx context.Context, id string) error {
	pipe := s.opts.redisClient.TxPipeline()
	pipe.HDel(ctx, groupsKey, id)
	pipe.Del(ctx, messageKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store delete group failed: %w", err)
	}
	return nil
}

// Close releases the redis client.
func (s *Service) Close() error {
	return s.opts.redisClient.Close()
}

func (s *Service) decodeGroup(data []byte) (*chat.Group, error) {
	var group chat.Group
	if err := json.Unmarshal(data, &group); err != nil {
		return nil, fmt.Errorf("redis store unmarshal group: %w", err)
	}
	if err := s.openCredentials(&group); err != nil {
		return nil, err
	}
	return &group, nil
}

func (s *Service) sealCredentials(group *chat.Group) error {
	if s.opts.cipher == nil {
		return nil
	}
	for i, credential := range group.Credentials {
		sealed, err := s.opts.cipher.Seal(credential)
		if err != nil {
			return fmt.Errorf("redis store seal credential: %w", err)
		}
		group.Credentials[i] = sealed
	}
	return nil
}

func (s *Service) openCredentials(group *chat.Group) error {
	if s.opts.cipher == nil {
		return nil
	}
	for i, sealed := range group.Credentials {
		credential, err := s.opts.cipher.Open(sealed)
		if err != nil {
			return fmt.Errorf("redis store open credential: %w", err)
		}
		group.Credentials[i] = credential
	}
	return nil
}
