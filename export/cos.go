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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/tencentyun/cos-go-sdk-v5"

	"trpc.group/trpc-go/trpc-chat-digest/digest"
)

// Format identifies the file type of an exported digest artifact.
type Format string

// Supported export formats.
const (
	FormatPDF      Format = "pdf"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "md"
)

// MimeType returns the content type to store alongside the artifact.
func (f Format) MimeType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatHTML:
		return "text/html"
	default:
		return "text/markdown"
	}
}

// ObjectName builds the storage key for one exported digest.
func ObjectName(groupID, digestID string, f Format) string {
	return fmt.Sprintf("digests/%s/%s.%s", groupID, digestID, f)
}

// uploadClient is the minimal object storage surface the uploader needs.
type uploadClient interface {
	PutObject(ctx context.Context, name string, content io.Reader, mimeType string) error
}

// cosUploadClient adapts the COS SDK client to uploadClient.
type cosUploadClient struct {
	client *cos.Client
}

func (c *cosUploadClient) PutObject(ctx context.Context, name string, content io.Reader, mimeType string) error {
	opt := &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{
			ContentType: mimeType,
		},
	}
	_, err := c.client.Object.Put(ctx, name, content, opt)
	return err
}

type uploaderOptions struct {
	httpClient *http.Client
	timeout    time.Duration
	secretID   string
	secretKey  string
	client     *cos.Client
}

// UploaderOption configures the COS uploader.
type UploaderOption func(*uploaderOptions)

// WithClient supplies a prebuilt COS client, bypassing credential setup.
func WithClient(c *cos.Client) UploaderOption {
	return func(o *uploaderOptions) {
		o.client = c
	}
}

// WithHTTPClient overrides the HTTP client used to reach COS.
func WithHTTPClient(c *http.Client) UploaderOption {
	return func(o *uploaderOptions) {
		o.httpClient = c
	}
}

// WithTimeout sets the per request timeout of the default HTTP client.
func WithTimeout(d time.Duration) UploaderOption {
	return func(o *uploaderOptions) {
		o.timeout = d
	}
}

// WithSecretID sets the COS secret id, overriding the COS_SECRETID env.
func WithSecretID(id string) UploaderOption {
	return func(o *uploaderOptions) {
		o.secretID = id
	}
}

// WithSecretKey sets the COS secret key, overriding the COS_SECRETKEY env.
func WithSecretKey(key string) UploaderOption {
	return func(o *uploaderOptions) {
		o.secretKey = key
	}
}

// Uploader stores exported digest artifacts in Tencent COS under
// digests/{groupID}/{digestID}.{format}.
type Uploader struct {
	client uploadClient
}

// NewUploader creates an uploader for the given bucket URL, e.g.
// https://bucket-1234567890.cos.ap-guangzhou.myqcloud.com. Credentials
// default to the COS_SECRETID and COS_SECRETKEY environment variables.
func NewUploader(bucketURL string, opts ...UploaderOption) (*Uploader, error) {
	o := &uploaderOptions{
		timeout:   60 * time.Second,
		secretID:  os.Getenv("COS_SECRETID"),
		secretKey: os.Getenv("COS_SECRETKEY"),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.client != nil {
		return &Uploader{client: &cosUploadClient{client: o.client}}, nil
	}

	if bucketURL == "" {
		return nil, errors.New("export: bucket url is empty")
	}
	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, fmt.Errorf("export: parse bucket url %s: %w", bucketURL, err)
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: o.timeout,
			Transport: &cos.AuthorizationTransport{
				SecretID:  o.secretID,
				SecretKey: o.secretKey,
			},
		}
	}

	c := cos.NewClient(&cos.BaseURL{BucketURL: u}, httpClient)
	return &Uploader{client: &cosUploadClient{client: c}}, nil
}

// Upload stores one exported digest and returns the object name.
func (u *Uploader) Upload(ctx context.Context, d *digest.Digest, data []byte, format Format) (string, error) {
	if d == nil {
		return "", errors.New("export: nil digest")
	}
	name := ObjectName(d.GroupID, d.ID, format)
	if err := u.client.PutObject(ctx, name, bytes.NewReader(data), format.MimeType()); err != nil {
		return "", fmt.Errorf("upload digest %s: %w", d.ID, err)
	}
	return name, nil
}
