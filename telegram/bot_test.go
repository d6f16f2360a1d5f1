//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-chat-digest/chat"
	"trpc.group/trpc-go/trpc-chat-digest/digest"
	"trpc.group/trpc-go/trpc-chat-digest/store"
	"trpc.group/trpc-go/trpc-chat-digest/store/inmemory"
	"trpc.group/trpc-go/trpc-chat-digest/summarize"
)

type fakeAPI struct {
	mu           sync.Mutex
	sent         []tgbotapi.MessageConfig
	updates      chan tgbotapi.Update
	failMarkdown bool
	stopped      bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 8)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, fmt.Errorf("unexpected chattable %T", c)
	}
	f.sent = append(f.sent, msg)
	if f.failMarkdown && msg.ParseMode == tgbotapi.ModeMarkdown {
		return tgbotapi.Message{}, errors.New("Bad Request: can't parse entities")
	}
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) GetUpdatesChan(_ tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) sentMessages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), f.sent...)
}

func (f *fakeAPI) lastSent(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	msgs := f.sentMessages()
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

func (f *fakeAPI) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

type fakeEngine struct {
	mu      sync.Mutex
	counts  []int
	options []summarize.Options
	reply   string
	err     error
}

func (f *fakeEngine) Summarize(_ context.Context, msgs []chat.Message, opts summarize.Options) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = append(f.counts, len(msgs))
	f.options = append(f.options, opts)
	if f.err != nil {
		return "", f.err
	}
	if f.reply != "" {
		return f.reply, nil
	}
	return "digest summary", nil
}

func (f *fakeEngine) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.counts)
}

func (f *fakeEngine) last(t *testing.T) (int, summarize.Options) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.counts)
	return f.counts[len(f.counts)-1], f.options[len(f.options)-1]
}

func newTestBot(t *testing.T, engine *fakeEngine) (*Bot, *fakeAPI, store.Service) {
	t.Helper()
	svc := inmemory.NewService()
	runner, err := digest.NewRunner(svc, digest.WithEngine(engine))
	require.NoError(t, err)
	api := newFakeAPI()
	bot, err := NewBot("", svc, runner, WithAPI(api))
	require.NoError(t, err)
	return bot, api, svc
}

func textUpdate(chatID int64, username, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 7,
		From:      &tgbotapi.User{UserName: username, FirstName: "Alice", LastName: "Walker"},
		Chat:      &tgbotapi.Chat{ID: chatID, Title: "Platform Team", Type: "group"},
		Text:      text,
		Date:      int(time.Now().Unix()),
	}}
}

func commandUpdate(chatID int64, command, args string) tgbotapi.Update {
	u := textUpdate(chatID, "alice", command)
	if args != "" {
		u.Message.Text = command + " " + args
	}
	u.Message.Entities = []tgbotapi.MessageEntity{{
		Type: "bot_command", Offset: 0, Length: len(command),
	}}
	return u
}

func seedGroup(t *testing.T, svc store.Service, chatID string, messageAges ...time.Duration) {
	t.Helper()
	require.NoError(t, svc.PutGroup(context.Background(), &chat.Group{
		ID: chatID, Title: "Platform Team",
	}))
	for i, age := range messageAges {
		require.NoError(t, svc.AppendMessage(context.Background(), chatID, chat.Message{
			Sender:    "alice",
			Content:   fmt.Sprintf("message %d", i+1),
			Timestamp: time.Now().Add(-age),
		}))
	}
}

func TestNewBotValidation(t *testing.T) {
	svc := inmemory.NewService()
	runner, err := digest.NewRunner(svc, digest.WithEngine(&fakeEngine{}))
	require.NoError(t, err)

	_, err = NewBot("", nil, runner, WithAPI(newFakeAPI()))
	assert.Error(t, err)
	_, err = NewBot("", svc, nil, WithAPI(newFakeAPI()))
	assert.Error(t, err)
	_, err = NewBot("", svc, runner)
	assert.Error(t, err, "a token is required when no client is supplied")
}

func TestCaptureRegistersGroupOnFirstMessage(t *testing.T) {
	bot, _, svc := newTestBot(t, &fakeEngine{})

	bot.handleUpdate(context.Background(), textUpdate(100, "alice_w", "shipping friday"))

	group, err := svc.GetGroup(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, "Platform Team", group.Title)

	msgs, err := svc.ListMessages(context.Background(), "100", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "alice_w", msgs[0].Sender)
	assert.Equal(t, "Alice Walker", msgs[0].DisplayName)
	assert.Equal(t, "shipping friday", msgs[0].Content)
	assert.False(t, msgs[0].Timestamp.IsZero())
}

func TestCaptureSkipsContentlessMessages(t *testing.T) {
	bot, _, svc := newTestBot(t, &fakeEngine{})

	u := textUpdate(100, "alice", "")
	bot.handleUpdate(context.Background(), u)

	_, err := svc.GetGroup(context.Background(), "100")
	assert.ErrorIs(t, err, store.ErrGroupNotFound, "contentless updates do not register the chat")
}

func TestCaptureUsesCaption(t *testing.T) {
	bot, _, svc := newTestBot(t, &fakeEngine{})

	u := textUpdate(100, "alice", "")
	u.Message.Caption = "look at this chart"
	bot.handleUpdate(context.Background(), u)

	msgs, err := svc.ListMessages(context.Background(), "100", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "look at this chart", msgs[0].Content)
}

func TestDigestCommand(t *testing.T) {
	engine := &fakeEngine{reply: "- decisions were made"}
	bot, api, svc := newTestBot(t, engine)
	seedGroup(t, svc, "100", 30*time.Minute, 10*time.Minute)

	bot.handleUpdate(context.Background(), commandUpdate(100, "/digest", ""))

	sent := api.lastSent(t)
	assert.Equal(t, int64(100), sent.ChatID)
	assert.Equal(t, tgbotapi.ModeMarkdown, sent.ParseMode)
	assert.Equal(t, "- decisions were made", sent.Text)

	count, _ := engine.last(t)
	assert.Equal(t, 2, count)
}

func TestDigestCommandParsesArguments(t *testing.T) {
	engine := &fakeEngine{}
	bot, _, svc := newTestBot(t, engine)
	seedGroup(t, svc, "100", 2*time.Hour, 10*time.Minute)

	bot.handleUpdate(context.Background(), commandUpdate(100, "/digest", "brief 1h"))

	count, opts := engine.last(t)
	assert.Equal(t, 1, count, "the 1h window excludes the older message")
	assert.Equal(t, summarize.StyleBrief, opts.Style)
}

func TestDigestCommandRejectsNegativeWindow(t *testing.T) {
	engine := &fakeEngine{}
	bot, api, svc := newTestBot(t, engine)
	seedGroup(t, svc, "100", 10*time.Minute)

	bot.handleUpdate(context.Background(), commandUpdate(100, "/digest", "-5m"))

	assert.Equal(t, 0, engine.calls())
	assert.Contains(t, api.lastSent(t).Text, "must be positive")
}

func TestDigestCommandUnknownChat(t *testing.T) {
	bot, api, _ := newTestBot(t, &fakeEngine{})

	bot.handleUpdate(context.Background(), commandUpdate(999, "/digest", ""))

	assert.Equal(t, "I have not seen any messages in this chat yet.", api.lastSent(t).Text)
}

func TestDigestCommandSurfacesUserFacingErrors(t *testing.T) {
	userMessage := "All API credentials are over quota right now. Try again later or add another credential."
	engine := &fakeEngine{err: &summarize.Error{
		Kind:    summarize.KindQuotaExceeded,
		Message: userMessage,
		Err:     errors.New("429 too many requests"),
	}}
	bot, api, svc := newTestBot(t, engine)
	seedGroup(t, svc, "100", 10*time.Minute)

	bot.handleUpdate(context.Background(), commandUpdate(100, "/digest", ""))

	sent := api.lastSent(t)
	assert.Equal(t, userMessage, sent.Text)
	assert.Empty(t, sent.ParseMode)
}

func TestHelpCommand(t *testing.T) {
	bot, api, _ := newTestBot(t, &fakeEngine{})

	bot.handleUpdate(context.Background(), commandUpdate(100, "/help", ""))
	assert.Contains(t, api.lastSent(t).Text, "/digest")

	bot.handleUpdate(context.Background(), commandUpdate(100, "/start", ""))
	assert.Len(t, api.sentMessages(), 2)
}

func TestUnknownCommandIgnored(t *testing.T) {
	bot, api, svc := newTestBot(t, &fakeEngine{})

	bot.handleUpdate(context.Background(), commandUpdate(100, "/weather", "tomorrow"))

	assert.Empty(t, api.sentMessages())
	n, err := svc.CountMessages(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, 0, n, "commands are not cached as conversation")
}

func TestMarkdownFallback(t *testing.T) {
	engine := &fakeEngine{reply: "a **bold** move"}
	bot, api, svc := newTestBot(t, engine)
	api.failMarkdown = true
	seedGroup(t, svc, "100", 10*time.Minute)

	bot.handleUpdate(context.Background(), commandUpdate(100, "/digest", ""))

	msgs := api.sentMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, tgbotapi.ModeMarkdown, msgs[0].ParseMode)
	assert.Empty(t, msgs[1].ParseMode)
	assert.Equal(t, "a bold move", msgs[1].Text, "the fallback strips markdown")
}

func TestDeliver(t *testing.T) {
	bot, api, _ := newTestBot(t, &fakeEngine{})

	err := bot.Deliver(context.Background(), &chat.Group{ID: "42"}, &digest.Digest{Summary: "scheduled digest"})
	require.NoError(t, err)
	sent := api.lastSent(t)
	assert.Equal(t, int64(42), sent.ChatID)
	assert.Equal(t, "scheduled digest", sent.Text)

	err = bot.Deliver(context.Background(), &chat.Group{ID: "not-a-chat"}, &digest.Digest{})
	assert.Error(t, err)
}

func TestRunConsumesUpdates(t *testing.T) {
	bot, api, svc := newTestBot(t, &fakeEngine{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx) }()

	api.updates <- textUpdate(100, "alice", "shipping friday")
	require.Eventually(t, func() bool {
		n, err := svc.CountMessages(context.Background(), "100")
		return err == nil && n == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop on context cancellation")
	}
	assert.True(t, api.isStopped())
}

func TestRunStopsWhenUpdatesClose(t *testing.T) {
	bot, api, _ := newTestBot(t, &fakeEngine{})

	done := make(chan error, 1)
	go func() { done <- bot.Run(context.Background()) }()

	close(api.updates)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop on channel close")
	}
}
