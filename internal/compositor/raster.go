/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package compositor

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/fogleman/gg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/math/fixed"

	"photomark/internal/stroke"
)

// Rasterizer paints one constant-width polyline with round caps and joins
// into dst. The whole polyline is one coverage mask composited "over" dst,
// so a stroke crossing itself is not blended twice.
type Rasterizer interface {
	Name() string
	StrokePath(dst *image.RGBA, pts []stroke.Point, c stroke.Color, width float32)
}

const (
	RasterX = "rasterx"
	GG      = "gg"
)

// RasterizerByName maps a config value to a backend. Empty selects rasterx.
func RasterizerByName(name string) (Rasterizer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", RasterX:
		return VectorRasterizer{}, nil
	case GG:
		return ContextRasterizer{}, nil
	default:
		return nil, fmt.Errorf("unknown rasterizer %q", name)
	}
}

// dotNudge turns a single point into a segment a few 26.6 units long so the round caps
// produce a filled dot of diameter width.
const dotNudge = 1.0 / 16

// VectorRasterizer strokes with the rasterx dasher on a golang.org/x/image/vector scanner.
type VectorRasterizer struct{}

func (VectorRasterizer) Name() string { return RasterX }

func (VectorRasterizer) StrokePath(dst *image.RGBA, pts []stroke.Point, c stroke.Color, width float32) {
	if len(pts) == 0 || width <= 0 {
		return
	}
	b := dst.Bounds()
	scanner := rasterx.NewScannerGV(b.Dx(), b.Dy(), dst, b)
	dasher := rasterx.NewDasher(b.Dx(), b.Dy(), scanner)
	dasher.SetStroke(fixed.Int26_6(width*64), 0, rasterx.RoundCap, rasterx.RoundCap, rasterx.RoundGap, rasterx.ArcClip, nil, 0)
	dasher.SetColor(c.NRGBA())

	ox, oy := float64(b.Min.X), float64(b.Min.Y)
	first := pts[0]
	dasher.Start(rasterx.ToFixedP(float64(first.X)-ox, float64(first.Y)-oy))
	if isDot(pts) {
		dasher.Line(rasterx.ToFixedP(float64(first.X)-ox+dotNudge, float64(first.Y)-oy))
	} else {
		for _, p := range pts[1:] {
			dasher.Line(rasterx.ToFixedP(float64(p.X)-ox, float64(p.Y)-oy))
		}
	}
	dasher.Stop(false)
	dasher.Draw()
}

// ContextRasterizer strokes with a fogleman/gg context wrapped around dst.
type ContextRasterizer struct{}

func (ContextRasterizer) Name() string { return GG }

func (ContextRasterizer) StrokePath(dst *image.RGBA, pts []stroke.Point, c stroke.Color, width float32) {
	if len(pts) == 0 || width <= 0 {
		return
	}
	dc := gg.NewContextForRGBA(dst)
	b := dst.Bounds()
	ox, oy := float64(b.Min.X), float64(b.Min.Y)
	dc.SetColor(c.NRGBA())

	if isDot(pts) {
		dc.DrawCircle(float64(pts[0].X)-ox, float64(pts[0].Y)-oy, math.Max(float64(width)/2, 0.5))
		dc.Fill()
		return
	}
	dc.SetLineWidth(float64(width))
	dc.SetLineCapRound()
	dc.SetLineJoinRound()
	dc.MoveTo(float64(pts[0].X)-ox, float64(pts[0].Y)-oy)
	for _, p := range pts[1:] {
		dc.LineTo(float64(p.X)-ox, float64(p.Y)-oy)
	}
	dc.Stroke()
}

// isDot reports whether every point of the path coincides.
func isDot(pts []stroke.Point) bool {
	for _, p := range pts[1:] {
		if p != pts[0] {
			return false
		}
	}
	return true
}
