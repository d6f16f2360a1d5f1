//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

// Package gemini provides the Gemini completion provider.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"

	"google.golang.org/genai"

	"trpc.group/trpc-go/trpc-chat-digest/provider"
)

// Verify that Client implements the provider.Client interface.
var _ provider.Client = (*Client)(nil)

const (
	// Name identifies this provider in classified errors.
	Name = "gemini"

	// ModelGemini25Flash represents the gemini-2.5-flash model.
	ModelGemini25Flash = "gemini-2.5-flash"
	// ModelGemini25Pro represents the gemini-2.5-pro model.
	ModelGemini25Pro = "gemini-2.5-pro"
	// ModelGemini20Flash represents the gemini-2.0-flash model.
	ModelGemini20Flash = "gemini-2.0-flash"

	// GoogleAPIKeyEnv is the environment variable name for the Google API key.
	GoogleAPIKeyEnv = "GOOGLE_API_KEY"
)

// Client completes prompts through the Gemini API.
type Client struct {
	client         *genai.Client
	apiKey         string
	clientOptions  *genai.ClientConfig
	requestOptions *genai.GenerateContentConfig
}

// Option represents a functional option for configuring the Client.
type Option func(*Client)

// WithAPIKey sets the Google API key.
// If not provided, will use GOOGLE_API_KEY environment variable.
// APIKey priority: WithClientOptions > WithAPIKey > GOOGLE_API_KEY environment variable.
func WithAPIKey(apiKey string) Option {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

// WithClientOptions sets additional options for the Gemini client config.
// APIKey priority: WithClientOptions > WithAPIKey > GOOGLE_API_KEY environment variable.
func WithClientOptions(clientOptions *genai.ClientConfig) Option {
	return func(c *Client) {
		cp := *clientOptions
		c.clientOptions = &cp
	}
}

// WithRequestOptions sets additional options for the generate requests,
// for example temperature or safety settings.
func WithRequestOptions(requestOptions *genai.GenerateContentConfig) Option {
	return func(c *Client) {
		rp := *requestOptions
		c.requestOptions = &rp
	}
}

// New creates a new Gemini completion client with the given options.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	// Create client with defaults.
	c := &Client{
		apiKey:         os.Getenv(GoogleAPIKeyEnv),
		clientOptions:  &genai.ClientConfig{},
		requestOptions: &genai.GenerateContentConfig{},
	}
	// Apply functional options.
	for _, opt := range opts {
		opt(c)
	}
	// Build client options.
	if c.clientOptions.APIKey == "" {
		c.clientOptions.APIKey = c.apiKey
	}
	if c.clientOptions.APIKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is not provided")
	}
	client, err := genai.NewClient(ctx, c.clientOptions)
	if err != nil {
		return nil, err
	}
	c.client = client
	return c, nil
}

// Factory returns a provider.Factory that creates one Gemini client per
// credential. The credential overrides any API key carried by the
// shared options.
func Factory(opts ...Option) provider.Factory {
	return func(ctx context.Context, credential string) (provider.Client, error) {
		merged := make([]Option, 0, len(opts)+1)
		merged = append(merged, opts...)
		merged = append(merged, withCredential(credential))
		return New(ctx, merged...)
	}
}

func withCredential(credential string) Option {
	return func(c *Client) {
		c.apiKey = credential
		c.clientOptions.APIKey = credential
	}
}

// Complete implements the provider.Client interface.
func (c *Client) Complete(ctx context.Context, model, prompt string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := c.client.Models.GenerateContent(ctx, model, contents, c.requestOptions)
	if err != nil {
		return "", classify(model, err)
	}
	return resp.Text(), nil
}

// classify maps genai API errors onto the shared failure taxonomy.
func classify(model string, err error) error {
	reason := provider.ReasonUnknown
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		reason = provider.StatusReason(apiErr.Code)
	}
	if reason == provider.ReasonUnknown {
		reason = provider.Classify(err)
	}
	return &provider.Error{Reason: reason, Provider: Name, Model: model, Err: err}
}
