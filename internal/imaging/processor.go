// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package imaging normalizes uploaded post images before they are stored:
// photos are turned upright, oversized images are scaled down and metadata
// is dropped.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp" // WebP decoder
)

// MIME types the processor understands.
const (
	MimeTypeJPEG = "image/jpeg"
	MimeTypePNG  = "image/png"
	MimeTypeGIF  = "image/gif"
	MimeTypeWebP = "image/webp"
)

// DefaultMaxWidth is the widest image kept. Post pages never show more.
const DefaultMaxWidth = 1600

// DefaultMaxPixels is the largest canvas decoded. A few kilobytes of PNG can
// declare a canvas that needs gigabytes once decoded.
const DefaultMaxPixels = 50_000_000

const jpegQuality = 90

var (
	// ErrUnsupportedFormat is returned for data the processor cannot decode.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrTooManyPixels is returned for images whose header declares a canvas
	// above the pixel limit.
	ErrTooManyPixels = errors.New("image dimensions exceed the pixel limit")
)

// Processor normalizes images using pure Go libraries.
type Processor struct {
	maxWidth  int
	maxPixels int
}

// NewProcessor creates a processor that scales images wider than maxWidth
// down to it. A maxWidth of zero keeps every size.
func NewProcessor(maxWidth int) *Processor {
	return &Processor{maxWidth: maxWidth, maxPixels: DefaultMaxPixels}
}

// WithMaxPixels sets the pixel limit. Zero disables it.
func (p *Processor) WithMaxPixels(n int) *Processor {
	p.maxPixels = n
	return p
}

// Normalize returns data upright, no wider than the maximum width and without
// EXIF metadata, along with its MIME type.
//
// GIFs are returned unchanged so animations survive. WebP has no pure Go
// encoder: it is returned unchanged when nothing needs fixing and re-encoded
// as JPEG otherwise.
func (p *Processor) Normalize(data []byte) ([]byte, string, error) {
	format := detectFormat(data)
	switch format {
	case "":
		return nil, "", ErrUnsupportedFormat
	}

	w, h, err := Dimensions(data)
	if err != nil {
		return nil, "", err
	}
	if p.maxPixels > 0 && w*h > p.maxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrTooManyPixels, w, h)
	}
	if format == "gif" {
		return data, MimeTypeGIF, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decoding image: %w", err)
	}

	orientation := 1
	if format == "jpeg" {
		orientation = readExifOrientation(bytes.NewReader(data))
	}
	resize := p.maxWidth > 0 && img.Bounds().Dx() > p.maxWidth

	if format == "webp" && orientation == 1 && !resize {
		return data, MimeTypeWebP, nil
	}

	img = applyOrientation(img, orientation)
	if resize {
		img = imaging.Resize(img, p.maxWidth, 0, imaging.Lanczos)
	}

	out, outFormat, err := encodeImage(img, format)
	if err != nil {
		return nil, "", fmt.Errorf("encoding image: %w", err)
	}
	return out, formatToMimeType(outFormat), nil
}

// Dimensions returns the width and height of encoded image data. Only the
// header is read.
func Dimensions(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("reading image header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// readExifOrientation reads the EXIF orientation tag from image data.
// Returns 1 (normal) if orientation cannot be determined.
func readExifOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}

	return orientation
}

// applyOrientation undoes an EXIF orientation:
// 2 flip horizontal, 3 rotate 180, 4 flip vertical, 5 transpose,
// 6 rotate 90 CW, 7 transverse, 8 rotate 90 CCW.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.FlipH(imaging.Rotate270(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.FlipH(imaging.Rotate90(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// encodeImage encodes img in format and reports the format actually written.
func encodeImage(img image.Image, format string) ([]byte, string, error) {
	var buf bytes.Buffer

	switch format {
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", err
		}
	case "gif":
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, "", err
		}
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, "", err
		}
		format = "jpeg"
	}

	return buf.Bytes(), format, nil
}

// detectFormat detects the image format from raw bytes.
func detectFormat(data []byte) string {
	contentType := http.DetectContentType(data)
	// Explicitly reject TIFF (CVE-2023-36308 in disintegration/imaging)
	if strings.Contains(contentType, "tiff") {
		return ""
	}
	switch {
	case strings.Contains(contentType, "jpeg"):
		return "jpeg"
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "gif"):
		return "gif"
	case strings.Contains(contentType, "webp"):
		return "webp"
	default:
		return ""
	}
}

// formatToMimeType converts format string to MIME type.
func formatToMimeType(format string) string {
	switch format {
	case "jpeg":
		return MimeTypeJPEG
	case "png":
		return MimeTypePNG
	case "gif":
		return MimeTypeGIF
	case "webp":
		return MimeTypeWebP
	default:
		return "application/octet-stream"
	}
}
