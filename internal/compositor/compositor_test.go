/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package compositor

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"

	"photomark/internal/stroke"
)

func backends() []Rasterizer { return []Rasterizer{VectorRasterizer{}, ContextRasterizer{}} }

func mustStroke(t *testing.T, c stroke.Color, w float32, pts ...stroke.Point) stroke.Stroke {
	t.Helper()
	s, err := stroke.New(pts, c, w)
	if err != nil {
		t.Fatalf("stroke.New: %v", err)
	}
	return s
}

func solidBase(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestRebuildPaintsStrokeAndLeavesRestTransparent(t *testing.T) {
	for _, r := range backends() {
		t.Run(r.Name(), func(t *testing.T) {
			c := New(Options{Rasterizer: r})
			s := mustStroke(t, stroke.Red, 6, stroke.Pt(10, 20), stroke.Pt(50, 20))
			layer, err := c.Rebuild([]stroke.Stroke{s}, 64, 64)
			if err != nil {
				t.Fatalf("Rebuild: %v", err)
			}
			got := layer.RGBAAt(30, 20)
			if got.R < 250 || got.A < 250 || got.G > 5 || got.B > 5 {
				t.Fatalf("stroke centre = %v, want opaque red", got)
			}
			if far := layer.RGBAAt(30, 50); far.A != 0 {
				t.Fatalf("pixel far from stroke not transparent: %v", far)
			}
		})
	}
}

func TestSinglePointStrokeRendersDot(t *testing.T) {
	for _, r := range backends() {
		t.Run(r.Name(), func(t *testing.T) {
			c := New(Options{Rasterizer: r})
			s := mustStroke(t, stroke.Blue, 8, stroke.Pt(32, 32))
			layer, err := c.Rebuild([]stroke.Stroke{s}, 64, 64)
			if err != nil {
				t.Fatalf("Rebuild: %v", err)
			}
			if got := layer.RGBAAt(32, 32); got.A < 200 || got.B < 200 {
				t.Fatalf("dot centre = %v, want blue", got)
			}
			if got := layer.RGBAAt(32, 45); got.A != 0 {
				t.Fatalf("dot bled beyond its radius: %v", got)
			}
		})
	}
}

func TestPainterOrder(t *testing.T) {
	for _, r := range backends() {
		t.Run(r.Name(), func(t *testing.T) {
			c := New(Options{Rasterizer: r})
			red := mustStroke(t, stroke.Red, 6, stroke.Pt(5, 32), stroke.Pt(60, 32))
			blue := mustStroke(t, stroke.Blue, 6, stroke.Pt(32, 5), stroke.Pt(32, 60))
			layer, err := c.Rebuild([]stroke.Stroke{red, blue}, 64, 64)
			if err != nil {
				t.Fatalf("Rebuild: %v", err)
			}
			if got := layer.RGBAAt(32, 32); got.B < 250 || got.R > 5 {
				t.Fatalf("crossing pixel = %v, later stroke should win", got)
			}
		})
	}
}

func TestRebuildIsDeterministic(t *testing.T) {
	for _, r := range backends() {
		c := New(Options{Rasterizer: r})
		strokes := []stroke.Stroke{
			mustStroke(t, stroke.Red, 5, stroke.Pt(3, 3), stroke.Pt(40, 17), stroke.Pt(12, 55)),
			mustStroke(t, stroke.Color{R: 10, G: 200, B: 30, A: 128}, 9, stroke.Pt(60, 2), stroke.Pt(1, 60)),
		}
		a, err := c.Rebuild(strokes, 64, 64)
		if err != nil {
			t.Fatalf("Rebuild: %v", err)
		}
		b, _ := c.Rebuild(strokes, 64, 64)
		if !bytes.Equal(a.Pix, b.Pix) {
			t.Fatalf("%s: rebuild output differs between runs", r.Name())
		}
	}
}

func TestEmptyActiveGivesTransparentLayer(t *testing.T) {
	c := New(Options{})
	layer, err := c.Rebuild(nil, 16, 8)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	for _, v := range layer.Pix {
		if v != 0 {
			t.Fatalf("empty rebuild should be fully transparent")
		}
	}
}

func TestMergeWithTransparentLayerIsIdentity(t *testing.T) {
	c := New(Options{})
	base := solidBase(20, 10, color.RGBA{R: 12, G: 34, B: 56, A: 255})
	base.SetRGBA(3, 4, color.RGBA{R: 200, G: 100, B: 50, A: 255})
	layer, _ := c.Rebuild(nil, 20, 10)
	out, err := c.Merge(base, layer)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !bytes.Equal(out.Pix, base.Pix) {
		t.Fatalf("merge over transparent layer changed pixels")
	}
	if &out.Pix[0] == &base.Pix[0] {
		t.Fatalf("merge must return a new bitmap")
	}
}

func TestMergeIsPure(t *testing.T) {
	c := New(Options{})
	base := solidBase(32, 32, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	s := mustStroke(t, stroke.Black, 4, stroke.Pt(0, 16), stroke.Pt(32, 16))
	layer, _ := c.Rebuild([]stroke.Stroke{s}, 32, 32)
	baseBefore := append([]byte(nil), base.Pix...)
	layerBefore := append([]byte(nil), layer.Pix...)

	out, err := c.Merge(base, layer)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !bytes.Equal(base.Pix, baseBefore) || !bytes.Equal(layer.Pix, layerBefore) {
		t.Fatalf("merge mutated its inputs")
	}
	if got := out.RGBAAt(16, 16); got.R > 5 || got.A != 255 {
		t.Fatalf("merged stroke pixel = %v, want black", got)
	}
	if got := out.RGBAAt(16, 2); got != (color.RGBA{255, 255, 255, 255}) {
		t.Fatalf("merged background pixel = %v, want white", got)
	}
}

func TestMergeRejectsMismatchedBounds(t *testing.T) {
	c := New(Options{})
	base := solidBase(10, 10, color.RGBA{A: 255})
	layer := image.NewRGBA(image.Rect(0, 0, 11, 10))
	if _, err := c.Merge(base, layer); !errors.Is(err, ErrBounds) {
		t.Fatalf("expected ErrBounds, got %v", err)
	}
}

func TestRenderFrameLeavesLayerUntouched(t *testing.T) {
	c := New(Options{})
	base := solidBase(32, 32, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	layer, _ := c.Rebuild(nil, 32, 32)
	frame, err := c.RenderFrame(base, layer, []stroke.Point{{X: 2, Y: 10}, {X: 30, Y: 10}}, stroke.Red, 4)
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if got := frame.RGBAAt(16, 10); got.R < 250 || got.G > 5 {
		t.Fatalf("in-progress path not visible in frame: %v", got)
	}
	for _, v := range layer.Pix {
		if v != 0 {
			t.Fatalf("render frame wrote into the drawing layer")
		}
	}
}

func TestAllocationBudget(t *testing.T) {
	c := New(Options{MaxPixels: 100})
	if _, err := c.Rebuild(nil, 10, 11); !errors.Is(err, ErrAllocation) {
		t.Fatalf("expected ErrAllocation, got %v", err)
	}
	if _, err := c.Rebuild(nil, 10, 10); err != nil {
		t.Fatalf("buffer at budget should succeed: %v", err)
	}
	if c.Fits(0, 5) || !c.Fits(5, 20) {
		t.Fatalf("Fits mismatch")
	}
}

func TestCustomAllocatorFailure(t *testing.T) {
	boom := errors.New("out of memory")
	c := New(Options{Allocator: func(w, h int) (*image.RGBA, error) { return nil, boom }})
	if _, err := c.Rebuild(nil, 4, 4); !errors.Is(err, boom) {
		t.Fatalf("expected allocator error, got %v", err)
	}
}

func TestRasterizerByName(t *testing.T) {
	for name, want := range map[string]string{"": RasterX, "rasterx": RasterX, "GG": GG} {
		r, err := RasterizerByName(name)
		if err != nil || r.Name() != want {
			t.Fatalf("RasterizerByName(%q) = %v, %v", name, r, err)
		}
	}
	if _, err := RasterizerByName("skia"); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
