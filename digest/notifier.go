//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

package digest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"trpc.group/trpc-go/trpc-chat-digest/chat"
	"trpc.group/trpc-go/trpc-chat-digest/log"
)

// Notifier delivers a produced digest.
type Notifier interface {
	Deliver(ctx context.Context, group *chat.Group, digest *Digest) error
}

// LogNotifier writes digests to the log, useful for development setups
// without a delivery channel.
type LogNotifier struct{}

// Deliver implements Notifier.
func (LogNotifier) Deliver(_ context.Context, group *chat.Group, d *Digest) error {
	log.Infof("digest %s for group %s covers %d messages: %s",
		d.ID, group.ID, d.MessageCount, d.Summary)
	return nil
}

// MultiNotifier fans a digest out to several delivery channels. Every
// notifier is tried, failures are joined.
type MultiNotifier []Notifier

// Deliver implements Notifier.
func (m MultiNotifier) Deliver(ctx context.Context, group *chat.Group, d *Digest) error {
	var errs []error
	for _, n := range m {
		if err := n.Deliver(ctx, group, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

const defaultWebhookTimeout = 10 * time.Second

// WebhookNotifier POSTs the digest as JSON to a configured URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// WebhookOpt is the option for a WebhookNotifier.
type WebhookOpt func(*WebhookNotifier)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOpt {
	return func(n *WebhookNotifier) {
		if client != nil {
			n.client = client
		}
	}
}

// NewWebhookNotifier creates a webhook notifier for the given URL.
func NewWebhookNotifier(url string, opts ...WebhookOpt) (*WebhookNotifier, error) {
	if url == "" {
		return nil, errors.New("webhook notifier requires a url")
	}
	n := &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: defaultWebhookTimeout},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Deliver implements Notifier.
func (n *WebhookNotifier) Deliver(ctx context.Context, _ *chat.Group, d *Digest) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal digest: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post digest webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("digest webhook returned status %d", resp.StatusCode)
	}
	return nil
}
