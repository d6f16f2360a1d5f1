//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

// Package openai provides the completion provider for OpenAI-compatible APIs.
package openai

import (
	"context"
	"errors"

	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"trpc.group/trpc-go/trpc-chat-digest/provider"
)

// Verify that Client implements the provider.Client interface.
var _ provider.Client = (*Client)(nil)

const (
	// Name identifies this provider in classified errors.
	Name = "openai"

	// ModelGPT4oMini represents the gpt-4o-mini model.
	ModelGPT4oMini = "gpt-4o-mini"
	// ModelGPT4o represents the gpt-4o model.
	ModelGPT4o = "gpt-4o"
	// ModelGPT41Mini represents the gpt-4.1-mini model.
	ModelGPT41Mini = "gpt-4.1-mini"
)

type options struct {
	apiKey        string
	baseURL       string
	openaiOptions []openaiopt.RequestOption
}

// Option configures the client.
type Option func(*options)

// WithAPIKey sets the API key. When no key is set the underlying SDK
// falls back to the OPENAI_API_KEY environment variable.
func WithAPIKey(apiKey string) Option {
	return func(o *options) {
		o.apiKey = apiKey
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
	}
}

// WithOpenAIOptions passes extra request options to the underlying client.
func WithOpenAIOptions(openaiOpts ...openaiopt.RequestOption) Option {
	return func(o *options) {
		o.openaiOptions = append(o.openaiOptions, openaiOpts...)
	}
}

// Client completes prompts through an OpenAI-compatible API.
type Client struct {
	client openai.Client
}

// New creates a new OpenAI completion client.
func New(opts ...Option) *Client {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	var clientOpts []openaiopt.RequestOption
	if o.apiKey != "" {
		clientOpts = append(clientOpts, openaiopt.WithAPIKey(o.apiKey))
	}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, openaiopt.WithBaseURL(o.baseURL))
	}
	clientOpts = append(clientOpts, o.openaiOptions...)
	return &Client{client: openai.NewClient(clientOpts...)}
}

// Factory returns a provider.Factory that creates one client per
// credential. The credential overrides any shared API key option.
func Factory(opts ...Option) provider.Factory {
	return func(_ context.Context, credential string) (provider.Client, error) {
		merged := make([]Option, 0, len(opts)+1)
		merged = append(merged, opts...)
		merged = append(merged, WithAPIKey(credential))
		return New(merged...), nil
	}
}

// Complete implements the provider.Client interface.
func (c *Client) Complete(ctx context.Context, model, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", classify(model, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// classify maps OpenAI API errors onto the shared failure taxonomy.
func classify(model string, err error) error {
	reason := provider.ReasonUnknown
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		reason = provider.StatusReason(apierr.StatusCode)
	}
	if reason == provider.ReasonUnknown {
		reason = provider.Classify(err)
	}
	return &provider.Error{Reason: reason, Provider: Name, Model: model, Err: err}
}
