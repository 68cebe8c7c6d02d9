/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package imageio decodes incoming photos and prepares them for the canvas.
package imageio

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var ErrUnsupported = errors.New("imageio: unsupported or corrupt image")

// Decode reads any registered format (png, jpeg, gif, bmp, tiff, webp) and
// returns the image with its format name.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(bufio.NewReader(r))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return img, format, nil
}

// Open decodes the image stored at path.
func Open(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	img, format, err := Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	return img, format, nil
}

// Probe returns the dimensions and format without decoding pixel data.
func Probe(path string) (image.Config, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, "", fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(bufio.NewReader(f))
	if err != nil {
		return image.Config{}, "", fmt.Errorf("%s: %w: %v", path, ErrUnsupported, err)
	}
	return cfg, format, nil
}

// Fit scales img to exactly w×h with Catmull-Rom filtering. The aspect ratio
// is not preserved; callers pick w and h. A zero or negative dimension, or an
// image already at the target size, returns img unchanged.
func Fit(img image.Image, w, h int) image.Image {
	if img == nil || w <= 0 || h <= 0 {
		return img
	}
	if sz := img.Bounds().Size(); sz.X == w && sz.Y == h {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

// FitWithin scales img down (never up) so it fits in maxW×maxH while keeping
// its aspect ratio.
func FitWithin(img image.Image, maxW, maxH int) image.Image {
	if img == nil || maxW <= 0 || maxH <= 0 {
		return img
	}
	sz := img.Bounds().Size()
	if sz.X <= maxW && sz.Y <= maxH {
		return img
	}
	rx := float64(maxW) / float64(sz.X)
	ry := float64(maxH) / float64(sz.Y)
	r := min(rx, ry)
	w := max(1, int(float64(sz.X)*r+0.5))
	h := max(1, int(float64(sz.Y)*r+0.5))
	return Fit(img, w, h)
}

// Crop copies the part of img inside r into a new bitmap anchored at the
// origin. The result is empty when r misses img.
func Crop(img image.Image, r image.Rectangle) *image.RGBA {
	r = r.Intersect(img.Bounds())
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	if r.Empty() {
		return dst
	}
	xdraw.Draw(dst, dst.Bounds(), img, r.Min, xdraw.Src)
	return dst
}
