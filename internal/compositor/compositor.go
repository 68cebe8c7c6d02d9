/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package compositor rasterizes committed strokes into the drawing layer and
// flattens that layer over the base photo.
//
// The layer is never patched incrementally: every change replays the whole
// active list onto a fresh transparent buffer in commit order. Output is
// deterministic for a given input and backend.
package compositor

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"time"

	applog "photomark/internal/log"
	"photomark/internal/stroke"
)

var (
	// ErrAllocation reports that a raster buffer could not be obtained. The
	// operation that needed it failed; previously built buffers are intact.
	ErrAllocation = errors.New("compositor: buffer allocation failed")
	ErrBounds     = errors.New("compositor: layer and base bounds differ")
)

// DefaultMaxPixels bounds a single buffer (64 Mpx, 256 MiB of RGBA).
const DefaultMaxPixels = 64 << 20

// Allocator returns a zeroed (fully transparent) RGBA buffer of w×h at the origin.
type Allocator func(w, h int) (*image.RGBA, error)

// BudgetAllocator refuses buffers above maxPixels.
func BudgetAllocator(maxPixels int) Allocator {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return func(w, h int) (*image.RGBA, error) {
		if w <= 0 || h <= 0 {
			return nil, fmt.Errorf("%w: invalid size %dx%d", ErrAllocation, w, h)
		}
		if int64(w)*int64(h) > int64(maxPixels) {
			return nil, fmt.Errorf("%w: %dx%d exceeds budget of %d pixels", ErrAllocation, w, h, maxPixels)
		}
		return image.NewRGBA(image.Rect(0, 0, w, h)), nil
	}
}

type Options struct {
	Rasterizer Rasterizer
	MaxPixels  int
	// Allocator overrides the budget allocator built from MaxPixels.
	Allocator Allocator
}

type Compositor struct {
	raster    Rasterizer
	alloc     Allocator
	maxPixels int
	log       *slog.Logger
}

func New(opts Options) *Compositor {
	if opts.Rasterizer == nil {
		opts.Rasterizer = VectorRasterizer{}
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	if opts.Allocator == nil {
		opts.Allocator = BudgetAllocator(opts.MaxPixels)
	}
	return &Compositor{
		raster:    opts.Rasterizer,
		alloc:     opts.Allocator,
		maxPixels: opts.MaxPixels,
		log:       applog.WithComponent("compositor"),
	}
}

func (c *Compositor) Rasterizer() Rasterizer { return c.raster }

// Fits reports whether a w×h buffer is within the pixel budget.
func (c *Compositor) Fits(w, h int) bool {
	return w > 0 && h > 0 && int64(w)*int64(h) <= int64(c.maxPixels)
}

// Allocate returns a transparent w×h buffer through the configured allocator.
func (c *Compositor) Allocate(w, h int) (*image.RGBA, error) {
	img, err := c.alloc(w, h)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, fmt.Errorf("%w: allocator returned nil", ErrAllocation)
	}
	return img, nil
}

// Rebuild replays active, oldest first, onto a new transparent w×h layer.
// On error nothing is returned and no caller state needs rolling back.
func (c *Compositor) Rebuild(active []stroke.Stroke, w, h int) (*image.RGBA, error) {
	start := time.Now()
	layer, err := c.Allocate(w, h)
	if err != nil {
		c.log.Error("layer allocation failed", slog.Int("w", w), slog.Int("h", h), slog.Any("err", err))
		return nil, fmt.Errorf("rebuild drawing layer: %w", err)
	}
	for _, s := range active {
		c.raster.StrokePath(layer, s.Points(), s.Color(), s.Width())
	}
	c.log.Debug("layer rebuilt",
		slog.Int("strokes", len(active)),
		slog.String("raster", c.raster.Name()),
		slog.Duration("took", time.Since(start)))
	return layer, nil
}

// Merge returns a new bitmap with layer composited over base. Neither input is
// modified. A fully transparent layer yields a copy of base.
func (c *Compositor) Merge(base image.Image, layer *image.RGBA) (*image.RGBA, error) {
	if base == nil {
		return nil, errors.New("merge: nil base image")
	}
	bb := base.Bounds()
	if layer != nil && layer.Bounds().Size() != bb.Size() {
		return nil, fmt.Errorf("%w: base %v, layer %v", ErrBounds, bb, layer.Bounds())
	}
	out, err := c.Allocate(bb.Dx(), bb.Dy())
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	draw.Draw(out, out.Bounds(), base, bb.Min, draw.Src)
	if layer != nil {
		draw.Draw(out, out.Bounds(), layer, layer.Bounds().Min, draw.Over)
	}
	return out, nil
}

// RenderFrame is Merge plus the uncommitted path painted on top with the
// pending color and width. The path never touches layer.
func (c *Compositor) RenderFrame(base image.Image, layer *image.RGBA, path []stroke.Point, col stroke.Color, width float32) (*image.RGBA, error) {
	out, err := c.Merge(base, layer)
	if err != nil {
		return nil, err
	}
	if len(path) > 0 {
		c.raster.StrokePath(out, path, col, width)
	}
	return out, nil
}
