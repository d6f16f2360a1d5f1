//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

package export

import (
	"context"
	"errors"
	"fmt"

	"trpc.group/trpc-go/trpc-chat-digest/chat"
	"trpc.group/trpc-go/trpc-chat-digest/digest"
	"trpc.group/trpc-go/trpc-chat-digest/log"
)

// Notifier implements digest.Notifier by uploading a PDF rendering of
// every produced digest to object storage.
type Notifier struct {
	uploader *Uploader
}

var _ digest.Notifier = (*Notifier)(nil)

// NewNotifier creates a notifier around an uploader.
func NewNotifier(uploader *Uploader) (*Notifier, error) {
	if uploader == nil {
		return nil, errors.New("export notifier requires an uploader")
	}
	return &Notifier{uploader: uploader}, nil
}

// Deliver renders the digest as PDF and uploads it.
func (n *Notifier) Deliver(ctx context.Context, _ *chat.Group, d *digest.Digest) error {
	data, err := PDF(d)
	if err != nil {
		return fmt.Errorf("export digest %s: %w", d.ID, err)
	}
	name, err := n.uploader.Upload(ctx, d, data, FormatPDF)
	if err != nil {
		return err
	}
	log.Infof("digest %s exported to %s", d.ID, name)
	return nil
}
