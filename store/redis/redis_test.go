//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-chat-digest/chat"
	"trpc.group/trpc-go/trpc-chat-digest/secret"
	storage "trpc.group/trpc-go/trpc-chat-digest/storage/redis"
	"trpc.group/trpc-go/trpc-chat-digest/store"
)

func setupTestRedis(t testing.TB) string {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return "redis://" + mr.Addr()
}

func setupService(t *testing.T, options ...ServiceOpt) *Service {
	t.Helper()
	url := setupTestRedis(t)
	s, err := NewService(append([]ServiceOpt{WithRedisClientURL(url)}, options...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func rawClient(t *testing.T, url string) *goredis.Client {
	t.Helper()
	opts, err := goredis.ParseURL(url)
	require.NoError(t, err)
	client := goredis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func appendN(t *testing.T, s *Service, groupID string, n int, start time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := s.AppendMessage(context.Background(), groupID, chat.Message{
			Sender:    "alice",
			Content:   fmt.Sprintf("message %d", i+1),
			Timestamp: start.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
}

func TestNewServiceRequiresClientSource(t *testing.T) {
	_, err := NewService()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis client, url or instance name is required")
}

func TestNewServiceFromURL(t *testing.T) {
	url := setupTestRedis(t)
	s, err := NewService(WithRedisClientURL(url))
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestNewServiceInvalidURL(t *testing.T) {
	_, err := NewService(WithRedisClientURL("127.0.0.1:6379"))
	assert.Error(t, err)
}

func TestNewServiceFromInstance(t *testing.T) {
	url := setupTestRedis(t)
	storage.RegisterRedisInstance("store-test-instance", storage.WithClientBuilderURL(url))

	s, err := NewService(WithRedisInstance("store-test-instance"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = NewService(WithRedisInstance("never-registered"))
	assert.Error(t, err)
}

func TestAppendAndListMessages(t *testing.T) {
	s := setupService(t)
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	appendN(t, s, "g1", 5, start)

	msgs, err := s.ListMessages(context.Background(), "g1", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	for i, m := range msgs {
		assert.Equal(t, fmt.Sprintf("message %d", i+1), m.Content, "chronological order")
		assert.Equal(t, "alice", m.Sender)
	}
}

func TestListMessagesSinceAndLimit(t *testing.T) {
	s := setupService(t)
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	appendN(t, s, "g1", 10, start)

	msgs, err := s.ListMessages(context.Background(), "g1", start.Add(3*time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, msgs, 7)
	assert.Equal(t, "message 4", msgs[0].Content)

	msgs, err = s.ListMessages(context.Background(), "g1", time.Time{}, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "message 8", msgs[0].Content)
	assert.Equal(t, "message 10", msgs[2].Content)
}

func TestListMessagesEmptyGroup(t *testing.T) {
	s := setupService(t)
	msgs, err := s.ListMessages(context.Background(), "nobody", time.Time{}, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestAppendEvictsOldest(t *testing.T) {
	s := setupService(t, WithMessageLimit(3))
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	appendN(t, s, "g1", 5, start)

	count, err := s.CountMessages(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	msgs, err := s.ListMessages(context.Background(), "g1", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "message 3", msgs[0].Content, "oldest messages are evicted first")
}

func TestMessageTTL(t *testing.T) {
	url := setupTestRedis(t)
	s, err := NewService(WithRedisClientURL(url), WithMessageTTL(time.Minute))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	appendN(t, s, "g1", 1, time.Now())

	ttl, err := rawClient(t, url).TTL(context.Background(), messageKey("g1")).Result()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)
}

func TestPutGetGroupSealsCredentials(t *testing.T) {
	cipher, err := secret.NewCipherFromPassphrase("store test key")
	require.NoError(t, err)
	url := setupTestRedis(t)
	s, err := NewService(WithRedisClientURL(url), WithCipher(cipher))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	group := &chat.Group{
		ID:          "g1",
		Title:       "Platform Team",
		Credentials: []string{"sk-live-secret"},
	}
	require.NoError(t, s.PutGroup(context.Background(), group))

	// The record at rest must not contain the plaintext credential.
	raw, err := rawClient(t, url).HGet(context.Background(), groupsKey, "g1").Result()
	require.NoError(t, err)
	assert.NotContains(t, raw, "sk-live-secret")

	got, err := s.GetGroup(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, []string{"sk-live-secret"}, got.Credentials)
	assert.Equal(t, "Platform Team", got.Title)

	// The caller's group is left untouched.
	assert.Equal(t, []string{"sk-live-secret"}, group.Credentials)
}

func TestPutGetGroupWithoutCipher(t *testing.T) {
	s := setupService(t)
	group := &chat.Group{ID: "g1", Style: "bullet", DigestInterval: 2 * time.Hour}
	require.NoError(t, s.PutGroup(context.Background(), group))

	got, err := s.GetGroup(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "bullet", got.Style)
	assert.Equal(t, 2*time.Hour, got.DigestInterval)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestPutGroupValidates(t *testing.T) {
	s := setupService(t)
	assert.Error(t, s.PutGroup(context.Background(), &chat.Group{ID: ""}))
}

func TestGetGroupNotFound(t *testing.T) {
	s := setupService(t)
	_, err := s.GetGroup(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrGroupNotFound)
}

func TestListGroupsSorted(t *testing.T) {
	s := setupService(t)
	for _, id := range []string{"charlie", "alpha", "bravo"} {
		require.NoError(t, s.PutGroup(context.Background(), &chat.Group{ID: id}))
	}
	groups, err := s.ListGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, "alpha", groups[0].ID)
	assert.Equal(t, "bravo", groups[1].ID)
	assert.Equal(t, "charlie", groups[2].ID)
}

func TestDeleteGroupRemovesMessages(t *testing.T) {
	s := setupService(t)
	require.NoError(t, s.PutGroup(context.Background(), &chat.Group{ID: "g1"}))
	appendN(t, s, "g1", 3, time.Now())

	require.NoError(t, s.DeleteGroup(context.Background(), "g1"))

	_, err := s.GetGroup(context.Background(), "g1")
	assert.ErrorIs(t, err, store.ErrGroupNotFound)
	count, err := s.CountMessages(context.Background(), "g1")
	require.NoError(t, err)
	assert.Zero(t, count)
}
