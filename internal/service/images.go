// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/composerunion/composerunion/internal/imaging"
	"github.com/composerunion/composerunion/internal/objstore"
	"github.com/composerunion/composerunion/internal/util"
)

// MaxImageSize is the largest accepted upload.
const MaxImageSize = 10 << 20 // 10MB

// AllowedImageTypes are the MIME types accepted for featured and inline images.
var AllowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/avif": true,
}

// ImageFile is an uploaded file as received from a form.
type ImageFile struct {
	Filename    string
	Size        int64
	ContentType string
	Body        io.Reader
}

// Normalizer rewrites image data before it is stored, returning the new data
// and its MIME type.
type Normalizer interface {
	Normalize(data []byte) ([]byte, string, error)
}

// ImageService validates images and stores them under random names.
type ImageService struct {
	store      objstore.Store
	normalizer Normalizer
	newName    func() string
}

// NewImageService creates an ImageService.
func NewImageService(store objstore.Store) *ImageService {
	return &ImageService{store: store, newName: uuid.NewString}
}

// WithNormalizer makes s pass every upload through n first. Data n cannot
// handle is stored as uploaded, except images over its pixel limit, which are
// rejected.
func (s *ImageService) WithNormalizer(n Normalizer) *ImageService {
	s.normalizer = n
	return s
}

// Upload stores f under a random name that keeps the original extension and
// returns its public URL. The extension follows the data when normalizing
// changed its type.
func (s *ImageService) Upload(ctx context.Context, f *ImageFile) (string, error) {
	if f == nil || f.Body == nil {
		return "", ErrNoFile
	}
	if f.Size > MaxImageSize {
		return "", ErrImageTooLarge
	}

	body := f.Body
	mimeType := f.ContentType
	if mimeType == "" || mimeType == "application/octet-stream" {
		head := make([]byte, 512)
		n, err := io.ReadFull(body, head)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return "", fmt.Errorf("reading upload: %w", err)
		}
		mimeType = http.DetectContentType(head[:n])
		body = io.MultiReader(bytes.NewReader(head[:n]), body)
	}
	if !AllowedImageTypes[mimeType] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, mimeType)
	}

	ext := util.FileExtension(f.Filename)
	size := f.Size
	if size <= 0 {
		size = -1
	}

	if s.normalizer != nil {
		data, err := io.ReadAll(io.LimitReader(body, MaxImageSize+1))
		if err != nil {
			return "", fmt.Errorf("reading upload: %w", err)
		}
		if len(data) > MaxImageSize {
			return "", ErrImageTooLarge
		}
		out, outType, err := s.normalizer.Normalize(data)
		switch {
		case errors.Is(err, imaging.ErrTooManyPixels):
			return "", fmt.Errorf("%w: %w", ErrImageTooLarge, err)
		case err == nil:
			if outType != mimeType {
				ext = extensionFor(outType, ext)
			}
			data, mimeType = out, outType
		}
		body = bytes.NewReader(data)
		size = int64(len(data))
	}

	name := s.newName() + ext
	if err := s.store.Upload(ctx, name, body, size, mimeType); err != nil {
		return "", err
	}
	return s.store.PublicURL(name), nil
}

// extensionFor returns the usual extension of mimeType, or fallback.
func extensionFor(mimeType, fallback string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return fallback
}
