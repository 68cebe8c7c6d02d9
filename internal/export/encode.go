/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export writes flattened annotation bitmaps to disk in raster or PDF form.
package export

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
	BMP  Format = "bmp"
	TIFF Format = "tiff"
	PDF  Format = "pdf"
)

// DefaultJPEGQuality matches a lossless-as-possible camera export.
const DefaultJPEGQuality = 100

// ParseFormat accepts the config spellings (case-insensitive, "jpg" and "tif" aliases).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "jpeg", "jpg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "bmp":
		return BMP, nil
	case "tiff", "tif":
		return TIFF, nil
	case "pdf":
		return PDF, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

func (f Format) Ext() string {
	if f == JPEG {
		return ".jpg"
	}
	return "." + string(f)
}

// MIME is recorded in the gallery next to each file.
func (f Format) MIME() string {
	switch f {
	case JPEG:
		return "image/jpeg"
	case PNG:
		return "image/png"
	case BMP:
		return "image/bmp"
	case TIFF:
		return "image/tiff"
	case PDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// Options controls a single export.
// Title, Description and Author only end up in formats with metadata (PDF).
type Options struct {
	Format      Format
	Quality     int // JPEG only, 1..100; 0 means DefaultJPEGQuality
	Title       string
	Description string
	Author      string
}

// Encode writes img to w in opt.Format.
func Encode(w io.Writer, img image.Image, opt Options) error {
	if img == nil {
		return fmt.Errorf("encode: nil image")
	}
	f := opt.Format
	if f == "" {
		f = JPEG
	}
	var err error
	switch f {
	case JPEG:
		q := opt.Quality
		if q <= 0 || q > 100 {
			q = DefaultJPEGQuality
		}
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: q})
	case PNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		err = enc.Encode(w, img)
	case BMP:
		err = bmp.Encode(w, img)
	case TIFF:
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	case PDF:
		err = WritePDF(w, img, opt)
	default:
		return fmt.Errorf("encode: unsupported format %q", f)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", f, err)
	}
	return nil
}
