//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

// Package server exposes the digest engine over HTTP: group
// administration, message ingest and on-demand digest runs.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"trpc.group/trpc-go/trpc-chat-digest/digest"
	"trpc.group/trpc-go/trpc-chat-digest/log"
	"trpc.group/trpc-go/trpc-chat-digest/provider"
	"trpc.group/trpc-go/trpc-chat-digest/store"
	"trpc.group/trpc-go/trpc-chat-digest/summarize"
)

// requestIDHeader carries the per request correlation id.
const requestIDHeader = "X-Request-Id"

// DigestRunner runs an on-demand digest for one group.
type DigestRunner interface {
	Run(ctx context.Context, groupID string, opts ...digest.RunOption) (*digest.Digest, error)
}

var _ DigestRunner = (*digest.Runner)(nil)

// Server is the HTTP front of the digest engine.
type Server struct {
	router *mux.Router
	store  store.Service
	runner DigestRunner

	corsOrigins []string
}

// Option configures the Server.
type Option func(*Server)

// WithCORSOrigins restricts the allowed CORS origins. The default
// allows all origins.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// New creates an HTTP server around a store and a digest runner.
func New(svc store.Service, runner DigestRunner, opts ...Option) (*Server, error) {
	if svc == nil {
		return nil, errors.New("server requires a store")
	}
	if runner == nil {
		return nil, errors.New("server requires a digest runner")
	}
	s := &Server{
		router:      mux.NewRouter(),
		store:       svc,
		runner:      runner,
		corsOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Length", "Content-Type", requestIDHeader},
	})
	s.router.Use(c.Handler)
	s.router.Use(requestID)
	s.registerRoutes()
	return s, nil
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/groups", s.handleUpsertGroup).Methods(http.MethodPost)
	api.HandleFunc("/groups", s.handleListGroups).Methods(http.MethodGet)
	api.HandleFunc("/groups/{groupId}", s.handleGetGroup).Methods(http.MethodGet)
	api.HandleFunc("/groups/{groupId}", s.handleDeleteGroup).Methods(http.MethodDelete)
	api.HandleFunc("/groups/{groupId}/messages", s.handleIngestMessages).Methods(http.MethodPost)
	api.HandleFunc("/groups/{groupId}/digest", s.handleRunDigest).Methods(http.MethodPost)
}

// requestID echoes the caller's request id or assigns a fresh one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)
		log.Debugf("%s %s (request %s)", r.Method, r.URL.Path, id)
		next.ServeHTTP(w, r)
	})
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, map[string]errorBody{"error": {Code: code, Message: message}})
}

// writeErrorFor maps an engine or store failure onto a status code.
// Summarization failures keep their user-facing message.
func (s *Server) writeErrorFor(w http.ResponseWriter, err error) {
	status, code := statusForError(err)
	message := err.Error()
	var sumErr *summarize.Error
	if errors.As(err, &sumErr) {
		message = sumErr.Message
	}
	s.writeError(w, status, code, message)
}

func statusForError(err error) (int, string) {
	if errors.Is(err, store.ErrGroupNotFound) {
		return http.StatusNotFound, "group_not_found"
	}
	var sumErr *summarize.Error
	if errors.As(err, &sumErr) {
		switch sumErr.Kind {
		case summarize.KindQuotaExceeded:
			return http.StatusTooManyRequests, "quota_exceeded"
		case summarize.KindTimeout:
			return http.StatusGatewayTimeout, "upstream_timeout"
		case summarize.KindInvalidCredential:
			return http.StatusBadGateway, "invalid_credential"
		case summarize.KindPermissionDenied:
			return http.StatusBadGateway, "permission_denied"
		case summarize.KindNetwork:
			return http.StatusBadGateway, "upstream_unreachable"
		}
	}
	switch provider.ReasonOf(err) {
	case provider.ReasonQuotaExhausted:
		return http.StatusTooManyRequests, "quota_exceeded"
	case provider.ReasonTimeout:
		return http.StatusGatewayTimeout, "upstream_timeout"
	case provider.ReasonInvalidCredential:
		return http.StatusBadGateway, "invalid_credential"
	case provider.ReasonPermissionDenied:
		return http.StatusBadGateway, "permission_denied"
	case provider.ReasonNetwork:
		return http.StatusBadGateway, "upstream_unreachable"
	case provider.ReasonUnavailable:
		return http.StatusBadGateway, "upstream_unavailable"
	}
	return http.StatusInternalServerError, "internal"
}
