//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

// Package telegram runs the digest engine as a Telegram bot. The bot
// captures group messages into the store as they arrive and serves the
// /digest command. It also implements digest.Notifier so scheduled
// digests land back in the summarized chat.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"trpc.group/trpc-go/trpc-chat-digest/chat"
	"trpc.group/trpc-go/trpc-chat-digest/digest"
	"trpc.group/trpc-go/trpc-chat-digest/log"
	"trpc.group/trpc-go/trpc-chat-digest/render"
	"trpc.group/trpc-go/trpc-chat-digest/store"
	"trpc.group/trpc-go/trpc-chat-digest/summarize"
)

// DefaultPollTimeout is the long poll timeout in seconds.
const DefaultPollTimeout = 60

// DefaultRunTimeout bounds one /digest command run.
const DefaultRunTimeout = 2 * time.Minute

const helpText = `I summarize recent group conversation.

/digest - summarize the last day
/digest 6h - summarize the last six hours
/digest brief - pick a style: default, detailed, brief, bullet, timeline`

// api is the Telegram surface the bot needs. *tgbotapi.BotAPI
// satisfies it.
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// digestRunner runs an on-demand digest for one group.
type digestRunner interface {
	Run(ctx context.Context, groupID string, opts ...digest.RunOption) (*digest.Digest, error)
}

// Bot is the Telegram front of the digest engine.
type Bot struct {
	api    api
	store  store.Service
	runner digestRunner

	pollTimeout int
	runTimeout  time.Duration
}

var _ digest.Notifier = (*Bot)(nil)

// Option configures the Bot.
type Option func(*Bot)

// WithAPI supplies a prebuilt Telegram client instead of dialing with
// the token.
func WithAPI(a api) Option {
	return func(b *Bot) { b.api = a }
}

// WithPollTimeout sets the long poll timeout in seconds.
func WithPollTimeout(seconds int) Option {
	return func(b *Bot) {
		if seconds > 0 {
			b.pollTimeout = seconds
		}
	}
}

// WithRunTimeout bounds one /digest command run.
func WithRunTimeout(d time.Duration) Option {
	return func(b *Bot) {
		if d > 0 {
			b.runTimeout = d
		}
	}
}

// NewBot creates a bot for the given token. The store receives every
// captured message, the runner serves /digest commands.
func NewBot(token string, svc store.Service, runner digestRunner, opts ...Option) (*Bot, error) {
	if svc == nil {
		return nil, errors.New("telegram bot requires a store")
	}
	if runner == nil {
		return nil, errors.New("telegram bot requires a digest runner")
	}
	b := &Bot{
		store:       svc,
		runner:      runner,
		pollTimeout: DefaultPollTimeout,
		runTimeout:  DefaultRunTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.api == nil {
		if token == "" {
			return nil, errors.New("telegram bot token is empty")
		}
		client, err := tgbotapi.NewBotAPI(token)
		if err != nil {
			return nil, fmt.Errorf("create telegram bot api: %w", err)
		}
		b.api = client
	}
	return b, nil
}

// Run consumes updates until ctx is cancelled or the update channel
// closes.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(u)
	log.Infof("telegram bot started, polling for updates")
	for {
		select {
		case <-ctx.Done():
			log.Infof("telegram bot stopping")
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	b.captureMessage(ctx, msg)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start", "help":
		b.reply(msg.Chat.ID, helpText)
	case "digest":
		b.handleDigest(ctx, msg)
	default:
		// Unknown commands may belong to other bots in the chat.
	}
}

func (b *Bot) handleDigest(ctx context.Context, msg *tgbotapi.Message) {
	groupID := strconv.FormatInt(msg.Chat.ID, 10)
	opts, err := digestOptions(msg.CommandArguments())
	if err != nil {
		b.reply(msg.Chat.ID, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(ctx, b.runTimeout)
	defer cancel()

	d, err := b.runner.Run(ctx, groupID, opts...)
	if err != nil {
		log.Errorf("digest for group %s: %v", groupID, err)
		b.reply(msg.Chat.ID, digestFailureText(err))
		return
	}
	b.replyMarkdown(msg.Chat.ID, d.Summary)
}

// digestOptions parses the /digest arguments. Each argument is either
// a window duration such as "6h" or a style name.
func digestOptions(args string) ([]digest.RunOption, error) {
	var opts []digest.RunOption
	for _, arg := range strings.Fields(args) {
		if window, err := time.ParseDuration(arg); err == nil {
			if window <= 0 {
				return nil, fmt.Errorf("the digest window must be positive, got %q", arg)
			}
			opts = append(opts, digest.WithWindow(window))
			continue
		}
		opts = append(opts, digest.WithStyle(arg))
	}
	return opts, nil
}

func digestFailureText(err error) string {
	var sumErr *summarize.Error
	if errors.As(err, &sumErr) {
		return sumErr.Message
	}
	if errors.Is(err, store.ErrGroupNotFound) {
		return "I have not seen any messages in this chat yet."
	}
	return "Digest failed, please try again later."
}

// captureMessage caches one chat message. Chats are registered on
// first sight so capture works before an admin configures them.
func (b *Bot) captureMessage(ctx context.Context, msg *tgbotapi.Message) {
	content := msg.Text
	if content == "" {
		content = msg.Caption
	}
	if content == "" {
		// Stickers, joins and media without captions carry nothing to
		// summarize.
		return
	}

	groupID := strconv.FormatInt(msg.Chat.ID, 10)
	if err := b.ensureGroup(ctx, groupID, msg.Chat.Title); err != nil {
		log.Errorf("register group %s: %v", groupID, err)
		return
	}

	m := chat.Message{
		Content:   content,
		Timestamp: msg.Time(),
	}
	if msg.From != nil {
		m.Sender = msg.From.UserName
		m.DisplayName = strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
	}
	if err := b.store.AppendMessage(ctx, groupID, m); err != nil {
		log.Errorf("cache message for group %s: %v", groupID, err)
	}
}

func (b *Bot) ensureGroup(ctx context.Context, groupID, title string) error {
	_, err := b.store.GetGroup(ctx, groupID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrGroupNotFound) {
		return err
	}
	log.Infof("registering group %s (%s) on first message", groupID, title)
	return b.store.PutGroup(ctx, &chat.Group{ID: groupID, Title: title})
}

// Deliver implements digest.Notifier, sending scheduled digests back
// to the summarized chat.
func (b *Bot) Deliver(_ context.Context, group *chat.Group, d *digest.Digest) error {
	chatID, err := strconv.ParseInt(group.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("group %s is not a telegram chat id: %w", group.ID, err)
	}
	b.replyMarkdown(chatID, d.Summary)
	return nil
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Errorf("send message to chat %d: %v", chatID, err)
	}
}

// replyMarkdown sends text as markdown and falls back to plain text
// when Telegram rejects the formatting.
func (b *Bot) replyMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		log.Warnf("markdown send to chat %d failed, retrying as plain text: %v", chatID, err)
		b.reply(chatID, render.ToPlainText(text))
	}
}
