//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

package summarize

import (
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-chat-digest/chat"
)

// Style selects the shape and length of the produced summary.
type Style string

// Supported summary styles.
const (
	StyleDefault  Style = "default"
	StyleDetailed Style = "detailed"
	StyleBrief    Style = "brief"
	StyleBullet   Style = "bullet"
	StyleTimeline Style = "timeline"
)

// ParseStyle maps a stored style name onto a Style. Unknown names fall
// back to StyleDefault rather than erroring.
func ParseStyle(name string) Style {
	switch Style(strings.ToLower(strings.TrimSpace(name))) {
	case StyleDetailed:
		return StyleDetailed
	case StyleBrief:
		return StyleBrief
	case StyleBullet:
		return StyleBullet
	case StyleTimeline:
		return StyleTimeline
	default:
		return StyleDefault
	}
}

// styleClauses is a closed table, every style maps to a length ceiling
// and a structural instruction.
var styleClauses = map[Style]string{
	StyleDefault: "Write a coherent summary of around 300 words covering " +
		"the main topics, decisions and outcomes.",
	StyleDetailed: "Write a thorough summary of up to 600 words covering every " +
		"substantial topic, decision and disagreement, including who argued what.",
	StyleBrief: "Write a summary of under 150 words containing only the most " +
		"critical points.",
	StyleBullet: "Write the entire summary as * bullet points, one point per " +
		"topic, at most 250 words in total.",
	StyleTimeline: "Reconstruct the conversation chronologically in under 400 " +
		"words, presenting topics in the order they came up.",
}

func styleClause(style Style) string {
	if clause, ok := styleClauses[style]; ok {
		return clause
	}
	return styleClauses[StyleDefault]
}

const summaryDirective = "You are summarizing the transcript of a group chat. " +
	"Produce one natural-language summary of the conversation below."

const namingRules = "Refer to participants exactly as they appear in the transcript: " +
	"use @username verbatim, including any underscores, when a username is present, " +
	"otherwise use the first name as written. Never substitute a generic placeholder " +
	"such as \"a user\", never wrap names in brackets, and never add underscore " +
	"emphasis that could be mistaken for part of a username."

const formattingRules = "Format the summary in markdown: **bold** for section " +
	"headers and * bullets for lists."

// renderTranscript renders the messages as numbered "label: content"
// lines joined by blank lines.
func renderTranscript(msgs []chat.Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%d. %s: %s", i+1, m.Label(), m.Content)
	}
	return b.String()
}

// buildPrompt renders the completion prompt for one transcript. A
// custom prompt template replaces the whole built-in prompt, the
// {messages} placeholder in it receives the transcript and any style
// instructions are skipped.
func buildPrompt(msgs []chat.Message, opts Options) string {
	transcript := renderTranscript(msgs)
	if opts.CustomPrompt != "" {
		return strings.ReplaceAll(opts.CustomPrompt, MessagesPlaceholder, transcript)
	}
	var b strings.Builder
	b.WriteString(summaryDirective)
	b.WriteString("\n\n")
	b.WriteString(styleClause(opts.Style))
	b.WriteString("\n\n")
	b.WriteString(namingRules)
	b.WriteString("\n\n")
	b.WriteString(formattingRules)
	b.WriteString("\n\nTranscript:\n\n")
	b.WriteString(transcript)
	b.WriteString("\n\nSummary:")
	return b.String()
}

// buildMergePrompt asks for one unified summary of the labeled partial
// summaries produced by the chunked path.
func buildMergePrompt(chunkCount, messageCount int, joined string, opts Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Below are %d partial summaries covering %d total messages "+
		"from one group chat, in chronological order.\n\n", chunkCount, messageCount)
	b.WriteString("Combine them into a single unified summary: remove duplicated " +
		"topics, keep the overall chronology coherent and do not invent content " +
		"that is absent from the partial summaries.")
	if opts.CustomPrompt == "" {
		b.WriteString("\n\n")
		b.WriteString(styleClause(opts.Style))
	}
	b.WriteString("\n\n")
	b.WriteString(namingRules)
	b.WriteString("\n\n")
	b.WriteString(formattingRules)
	b.WriteString("\n\nPartial summaries:\n\n")
	b.WriteString(joined)
	b.WriteString("\n\nSummary:")
	return b.String()
}
