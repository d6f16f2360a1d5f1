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
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploadClient struct {
	name     string
	mimeType string
	content  []byte
	err      error
}

func (f *fakeUploadClient) PutObject(_ context.Context, name string, content io.Reader, mimeType string) error {
	f.name = name
	f.mimeType = mimeType
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	f.content = data
	return f.err
}

func TestUpload(t *testing.T) {
	fake := &fakeUploadClient{}
	u := &Uploader{client: fake}

	name, err := u.Upload(context.Background(), sampleDigest(), []byte("pdf bytes"), FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "digests/g1/d-1.pdf", name)
	assert.Equal(t, "digests/g1/d-1.pdf", fake.name)
	assert.Equal(t, "application/pdf", fake.mimeType)
	assert.Equal(t, []byte("pdf bytes"), fake.content)
}

func TestUploadError(t *testing.T) {
	cause := errors.New("bucket unreachable")
	u := &Uploader{client: &fakeUploadClient{err: cause}}

	_, err := u.Upload(context.Background(), sampleDigest(), []byte("x"), FormatHTML)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
}

func TestUploadNilDigest(t *testing.T) {
	u := &Uploader{client: &fakeUploadClient{}}
	_, err := u.Upload(context.Background(), nil, nil, FormatPDF)
	require.Error(t, err)
}

func TestNewUploaderRequiresBucketURL(t *testing.T) {
	_, err := NewUploader("")
	require.Error(t, err)
}

func TestNewUploaderFromURL(t *testing.T) {
	u, err := NewUploader("https://bucket-1234567890.cos.ap-guangzhou.myqcloud.com",
		WithSecretID("id"), WithSecretKey("key"))
	require.NoError(t, err)
	require.NotNil(t, u)
}

func TestFormatMimeType(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{FormatPDF, "application/pdf"},
		{FormatHTML, "text/html"},
		{FormatMarkdown, "text/markdown"},
		{Format("unknown"), "text/markdown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.format.MimeType())
	}
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "digests/g1/d-1.html", ObjectName("g1", "d-1", FormatHTML))
}
