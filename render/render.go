//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

// Package render converts digest markdown into presentation formats:
// HTML for the API's html format and plain text for document export.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Renderer renders digest markdown.
type Renderer struct {
	md goldmark.Markdown
}

// New creates a renderer with the default markdown dialect.
func New() *Renderer {
	return &Renderer{md: goldmark.New()}
}

var defaultRenderer = New()

// ToHTML renders markdown to an HTML fragment using the default
// renderer.
func ToHTML(markdown string) (string, error) {
	return defaultRenderer.ToHTML(markdown)
}

// ToPlainText strips markdown structure using the default renderer.
func ToPlainText(markdown string) string {
	return defaultRenderer.ToPlainText(markdown)
}

// ToHTML renders markdown to an HTML fragment.
func (r *Renderer) ToHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown to html: %w", err)
	}
	return buf.String(), nil
}

// ToPlainText strips markdown structure and keeps the visible text, one
// line per block.
func (r *Renderer) ToPlainText(markdown string) string {
	source := []byte(markdown)
	reader := text.NewReader(source)
	doc := r.md.Parser().Parse(reader)

	var b strings.Builder
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if node.Type() == ast.TypeBlock && b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
				b.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(source))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteString("\n")
			}
		case *ast.String:
			b.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
