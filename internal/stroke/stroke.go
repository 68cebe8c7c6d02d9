/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package stroke holds the immutable freehand stroke record drawn over a photo.
package stroke

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNoPoints     = errors.New("stroke: at least one point required")
	ErrInvalidWidth = errors.New("stroke: width must be positive")
	ErrInvalidPoint = errors.New("stroke: point is not finite")
	ErrInvalidColor = errors.New("stroke: invalid color")
)

// Point is a position in image pixel coordinates.
type Point struct{ X, Y float32 }

func Pt(x, y float32) Point { return Point{X: x, Y: y} }

func (p Point) finite() bool {
	return !math.IsNaN(float64(p.X)) && !math.IsInf(float64(p.X), 0) &&
		!math.IsNaN(float64(p.Y)) && !math.IsInf(float64(p.Y), 0)
}

// Color is a non-premultiplied 8-bit RGBA color.
type Color struct{ R, G, B, A uint8 }

var (
	Black       = Color{0, 0, 0, 255}
	Red         = Color{255, 0, 0, 255}
	Blue        = Color{0, 0, 255, 255}
	White       = Color{255, 255, 255, 255}
	Transparent = Color{0, 0, 0, 0}
)

// NRGBA converts to the image/color representation used by the rasterizers.
func (c Color) NRGBA() color.NRGBA { return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A} }

// RGBA implements color.Color.
func (c Color) RGBA() (r, g, b, a uint32) { return c.NRGBA().RGBA() }

// Hex renders the color as #rrggbb, or #rrggbbaa when not opaque.
func (c Color) Hex() string {
	if c.A == 255 {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// ParseColor accepts #rgb, #rrggbb, #rrggbbaa and a few names.
func ParseColor(s string) (Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "black":
		return Black, nil
	case "red":
		return Red, nil
	case "blue":
		return Blue, nil
	case "white":
		return White, nil
	}
	h := strings.TrimPrefix(s, "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 && len(h) != 8 {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	if len(h) == 6 {
		return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
	}
	return Color{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// Stroke is one committed freehand gesture. It is immutable: the constructor
// copies the points and the accessors hand out copies.
type Stroke struct {
	id     uuid.UUID
	points []Point
	color  Color
	width  float32
}

// New builds a stroke from a gesture path.
func New(points []Point, c Color, width float32) (Stroke, error) {
	if len(points) == 0 {
		return Stroke{}, ErrNoPoints
	}
	if !(width > 0) || math.IsInf(float64(width), 0) {
		return Stroke{}, fmt.Errorf("%w: %v", ErrInvalidWidth, width)
	}
	pts := make([]Point, len(points))
	for i, p := range points {
		if !p.finite() {
			return Stroke{}, fmt.Errorf("%w: index %d", ErrInvalidPoint, i)
		}
		pts[i] = p
	}
	return Stroke{id: uuid.New(), points: pts, color: c, width: width}, nil
}

func (s Stroke) ID() uuid.UUID { return s.id }

// Points returns a copy of the stroke geometry in insertion order.
func (s Stroke) Points() []Point { return append([]Point(nil), s.points...) }

func (s Stroke) Len() int       { return len(s.points) }
func (s Stroke) Color() Color   { return s.color }
func (s Stroke) Width() float32 { return s.width }

// IsZero reports whether s is the zero value rather than a constructed stroke.
func (s Stroke) IsZero() bool { return len(s.points) == 0 }

// Bounds returns the pixel rectangle touched by the stroke, including half
// the width on every side for the round caps.
func (s Stroke) Bounds() image.Rectangle {
	return pathBounds(s.points, s.width)
}

func pathBounds(pts []Point, width float32) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}
	h := width / 2
	return image.Rect(
		int(math.Floor(float64(minX-h))), int(math.Floor(float64(minY-h))),
		int(math.Ceil(float64(maxX+h))), int(math.Ceil(float64(maxY+h))),
	)
}

func (s Stroke) String() string {
	return fmt.Sprintf("stroke(%s, %d pts, %s, w=%g)", s.id.String()[:8], len(s.points), s.color.Hex(), s.width)
}
