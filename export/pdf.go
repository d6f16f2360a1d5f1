//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

// Package export turns produced digests into shareable artifacts: a PDF
// rendering and an optional object storage upload.
package export

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-pdf/fpdf"

	"trpc.group/trpc-go/trpc-chat-digest/digest"
	"trpc.group/trpc-go/trpc-chat-digest/render"
)

const timeLayout = "2006-01-02 15:04"

// PDF renders a digest into a PDF document. The markdown summary is
// flattened to plain text, core fonts only cover latin text.
func PDF(d *digest.Digest) ([]byte, error) {
	if d == nil {
		return nil, errors.New("export: nil digest")
	}

	title := d.GroupTitle
	if title == "" {
		title = d.GroupID
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	translate := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(translate("Digest: "+title), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 9, translate("Digest: "+title), "", "L", false)

	pdf.SetFont("Helvetica", "", 10)
	meta := fmt.Sprintf("%d messages from %s to %s",
		d.MessageCount, d.WindowStart.Format(timeLayout), d.WindowEnd.Format(timeLayout))
	pdf.MultiCell(0, 5, translate(meta), "", "L", false)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 5, translate(render.ToPlainText(d.Summary)), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render digest pdf: %w", err)
	}
	return buf.Bytes(), nil
}
