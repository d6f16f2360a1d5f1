//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"trpc.group/trpc-go/trpc-chat-digest/chat"
	"trpc.group/trpc-go/trpc-chat-digest/digest"
	"trpc.group/trpc-go/trpc-chat-digest/log"
	"trpc.group/trpc-go/trpc-chat-digest/render"
)

// groupPayload is the wire form of a group. The digest interval travels
// as a Go duration string so callers write "24h" instead of nanosecond
// counts. Credentials are accepted on writes and never echoed back,
// responses carry only their count.
type groupPayload struct {
	ID              string      `json:"id"`
	Title           string      `json:"title,omitempty"`
	CustomPrompt    string      `json:"custom_prompt,omitempty"`
	Style           string      `json:"style,omitempty"`
	Filter          chat.Filter `json:"filter,omitempty"`
	DigestInterval  string      `json:"digest_interval,omitempty"`
	Credentials     []string    `json:"credentials,omitempty"`
	CredentialCount int         `json:"credential_count,omitempty"`
	MessageCount    int         `json:"message_count,omitempty"`
	UpdatedAt       string      `json:"updated_at,omitempty"`
}

func (p *groupPayload) toGroup() (*chat.Group, error) {
	g := &chat.Group{
		ID:           p.ID,
		Title:        p.Title,
		CustomPrompt: p.CustomPrompt,
		Style:        p.Style,
		Filter:       p.Filter,
		Credentials:  p.Credentials,
	}
	if p.DigestInterval != "" {
		d, err := time.ParseDuration(p.DigestInterval)
		if err != nil {
			return nil, fmt.Errorf("parse digest_interval %q: %w", p.DigestInterval, err)
		}
		g.DigestInterval = d
	}
	return g, nil
}

func groupToPayload(g *chat.Group) groupPayload {
	p := groupPayload{
		ID:              g.ID,
		Title:           g.Title,
		CustomPrompt:    g.CustomPrompt,
		Style:           g.Style,
		Filter:          g.Filter,
		CredentialCount: len(g.Credentials),
	}
	if g.DigestInterval > 0 {
		p.DigestInterval = g.DigestInterval.String()
	}
	if !g.UpdatedAt.IsZero() {
		p.UpdatedAt = g.UpdatedAt.Format(time.RFC3339)
	}
	return p
}

// ingestRequest is the batch message ingest payload.
type ingestRequest struct {
	Messages []chat.Message `json:"messages"`
}

type ingestResponse struct {
	Appended int `json:"appended"`
}

// digestRequest optionally overrides the group configuration for one
// run.
type digestRequest struct {
	Style        string `json:"style,omitempty"`
	CustomPrompt string `json:"custom_prompt,omitempty"`
	Window       string `json:"window,omitempty"`
}

// digestResponse is the produced digest, plus an HTML rendering of the
// summary when format=html is requested.
type digestResponse struct {
	*digest.Digest
	HTML string `json:"html,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpsertGroup(w http.ResponseWriter, r *http.Request) {
	var p groupPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("decode group: %v", err))
		return
	}
	defer r.Body.Close()

	g, err := p.toGroup()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if err := g.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_group", err.Error())
		return
	}
	if err := s.store.PutGroup(r.Context(), g); err != nil {
		s.writeErrorFor(w, err)
		return
	}
	log.Infof("group %s upserted", g.ID)

	stored, err := s.store.GetGroup(r.Context(), g.ID)
	if err != nil {
		s.writeErrorFor(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, groupToPayload(stored))
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.store.ListGroups(r.Context())
	if err != nil {
		s.writeErrorFor(w, err)
		return
	}
	payloads := make([]groupPayload, 0, len(groups))
	for _, g := range groups {
		payloads = append(payloads, groupToPayload(g))
	}
	s.writeJSON(w, http.StatusOK, payloads)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupId"]
	g, err := s.store.GetGroup(r.Context(), groupID)
	if err != nil {
		s.writeErrorFor(w, err)
		return
	}
	count, err := s.store.CountMessages(r.Context(), groupID)
	if err != nil {
		s.writeErrorFor(w, err)
		return
	}
	p := groupToPayload(g)
	p.MessageCount = count
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupId"]
	if err := s.store.DeleteGroup(r.Context(), groupID); err != nil {
		s.writeErrorFor(w, err)
		return
	}
	log.Infof("group %s deleted", groupID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleIngestMessages(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupId"]

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("decode messages: %v", err))
		return
	}
	defer r.Body.Close()

	if _, err := s.store.GetGroup(r.Context(), groupID); err != nil {
		s.writeErrorFor(w, err)
		return
	}

	now := time.Now()
	for _, m := range req.Messages {
		if m.Timestamp.IsZero() {
			m.Timestamp = now
		}
		if err := s.store.AppendMessage(r.Context(), groupID, m); err != nil {
			s.writeErrorFor(w, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, ingestResponse{Appended: len(req.Messages)})
}

func (s *Server) handleRunDigest(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupId"]
	log.Infof("on-demand digest requested for group %s", groupID)

	// The body is optional, an empty request runs with the stored
	// group configuration.
	var req digestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("decode digest request: %v", err))
		return
	}
	defer r.Body.Close()

	var opts []digest.RunOption
	if req.Style != "" {
		opts = append(opts, digest.WithStyle(req.Style))
	}
	if req.CustomPrompt != "" {
		opts = append(opts, digest.WithCustomPrompt(req.CustomPrompt))
	}
	if req.Window != "" {
		window, err := time.ParseDuration(req.Window)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("parse window %q: %v", req.Window, err))
			return
		}
		opts = append(opts, digest.WithWindow(window))
	}

	d, err := s.runner.Run(r.Context(), groupID, opts...)
	if err != nil {
		s.writeErrorFor(w, err)
		return
	}

	resp := digestResponse{Digest: d}
	if r.URL.Query().Get("format") == "html" {
		html, err := render.ToHTML(d.Summary)
		if err != nil {
			s.writeErrorFor(w, err)
			return
		}
		resp.HTML = html
	}
	s.writeJSON(w, http.StatusOK, resp)
}
