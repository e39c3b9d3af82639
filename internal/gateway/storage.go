// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	storage "github.com/supabase-community/storage-go"
)

// storageClient returns a storage SDK client. It sends its own requests through
// http.DefaultTransport, so uploads are observed here rather than in a transport.
func (c *Client) storageClient(ctx context.Context) *storage.Client {
	return storage.NewClient(c.baseURL+"/storage/v1", c.bearer(ctx), map[string]string{"apikey": c.anonKey})
}

// Upload stores an object in a bucket. It fails if the path is already taken.
// The SDK takes no context, so ctx is only checked before the upload starts.
func (c *Client) Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	upsert := false

	start := time.Now()
	_, err := c.storageClient(ctx).UploadFile(bucket, strings.TrimLeft(path, "/"), body, storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	status := http.StatusOK
	var serr *storage.StorageError
	switch {
	case errors.As(err, &serr):
		status = serr.Status
	case err != nil:
		status = 0
	}
	c.observe("storage:upload", status, time.Since(start))

	switch {
	case serr != nil:
		return &Error{Status: serr.Status, Message: serr.Message}
	case err != nil:
		return fmt.Errorf("storage:upload: %w", err)
	}
	return nil
}

// PublicURL returns the public address of an object in a public bucket.
func (c *Client) PublicURL(bucket, path string) string {
	return c.storageClient(context.Background()).GetPublicUrl(bucket, strings.TrimLeft(path, "/")).SignedURL
}
