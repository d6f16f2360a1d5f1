//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDigest = "**Decisions**\n\n* Ship on Friday\n* @alice_w owns the rollout\n\nBob disagreed about the **timeline**."

func TestToHTML(t *testing.T) {
	html, err := ToHTML(sampleDigest)
	require.NoError(t, err)

	assert.Contains(t, html, "<strong>Decisions</strong>")
	assert.Contains(t, html, "<ul>")
	assert.Contains(t, html, "<li>Ship on Friday</li>")
	assert.Contains(t, html, "@alice_w owns the rollout")
	assert.Contains(t, html, "<strong>timeline</strong>")
}

func TestToHTMLEmptyInput(t *testing.T) {
	html, err := ToHTML("")
	require.NoError(t, err)
	assert.Empty(t, html)
}

func TestToPlainText(t *testing.T) {
	plain := ToPlainText(sampleDigest)

	assert.NotContains(t, plain, "**")
	assert.NotContains(t, plain, "* Ship")
	assert.Contains(t, plain, "Decisions")
	assert.Contains(t, plain, "Ship on Friday")
	assert.Contains(t, plain, "@alice_w owns the rollout")
	assert.Contains(t, plain, "Bob disagreed about the timeline.")
}

func TestToPlainTextKeepsBlockBoundaries(t *testing.T) {
	plain := ToPlainText("first paragraph\n\nsecond paragraph")
	assert.Equal(t, "first paragraph\nsecond paragraph", plain)
}

func TestToPlainTextKeepsLineBreaks(t *testing.T) {
	plain := ToPlainText("line one\nline two")
	assert.Equal(t, "line one\nline two", plain)
}

func TestToPlainTextEmptyInput(t *testing.T) {
	assert.Empty(t, ToPlainText(""))
	assert.Empty(t, ToPlainText("   \n  "))
}
