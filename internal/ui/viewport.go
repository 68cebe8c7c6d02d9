/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"image"
	"math"

	"photomark/internal/stroke"
)

const (
	minZoom = 1
	maxZoom = 8
)

// viewport maps widget coordinates to image pixels. At zoom 1 the image is
// fitted into the view and centred; higher zooms magnify around center, which
// is kept inside the image so no empty margin scrolls into view.
type viewport struct {
	viewW, viewH float32
	img          image.Point
	zoom         float32
	center       stroke.Point // image coordinates shown at the middle of the view
}

func newViewport() viewport { return viewport{zoom: 1} }

func (v *viewport) valid() bool {
	return v.viewW > 0 && v.viewH > 0 && v.img.X > 0 && v.img.Y > 0
}

// setImage resets zoom and pan for a new picture.
func (v *viewport) setImage(size image.Point) {
	v.img = size
	v.zoom = 1
	v.center = stroke.Pt(float32(size.X)/2, float32(size.Y)/2)
}

func (v *viewport) resize(w, h float32) {
	v.viewW, v.viewH = w, h
	v.clamp()
}

// scale is view units per image pixel.
func (v *viewport) scale() float32 {
	if !v.valid() {
		return 1
	}
	fit := min(v.viewW/float32(v.img.X), v.viewH/float32(v.img.Y))
	return fit * v.zoom
}

func (v *viewport) toImage(x, y float32) stroke.Point {
	s := v.scale()
	return stroke.Pt((x-v.viewW/2)/s+v.center.X, (y-v.viewH/2)/s+v.center.Y)
}

func (v *viewport) toView(p stroke.Point) (x, y float32) {
	s := v.scale()
	return (p.X-v.center.X)*s + v.viewW/2, (p.Y-v.center.Y)*s + v.viewH/2
}

// contains reports whether the view point lies on the picture.
func (v *viewport) contains(x, y float32) bool {
	if !v.valid() {
		return false
	}
	p := v.toImage(x, y)
	return p.X >= 0 && p.Y >= 0 && p.X < float32(v.img.X) && p.Y < float32(v.img.Y)
}

// setZoom clamps z into [minZoom, maxZoom].
func (v *viewport) setZoom(z float32) {
	v.zoom = max(minZoom, min(maxZoom, z))
	v.clamp()
}

// pan moves the picture by a view-space delta.
func (v *viewport) pan(dx, dy float32) {
	s := v.scale()
	v.center.X -= dx / s
	v.center.Y -= dy / s
	v.clamp()
}

func (v *viewport) clamp() {
	if !v.valid() {
		return
	}
	s := v.scale()
	v.center.X = clampAxis(v.center.X, v.viewW/2/s, float32(v.img.X))
	v.center.Y = clampAxis(v.center.Y, v.viewH/2/s, float32(v.img.Y))
}

// clampAxis keeps c within [half, size-half]; when the image is smaller than
// the view on this axis it stays centred.
func clampAxis(c, half, size float32) float32 {
	if 2*half >= size {
		return size / 2
	}
	return max(half, min(size-half, c))
}

// visible is the part of the image currently on screen, in image pixels.
func (v *viewport) visible() image.Rectangle {
	if !v.valid() {
		return image.Rectangle{}
	}
	tl := v.toImage(0, 0)
	br := v.toImage(v.viewW, v.viewH)
	r := image.Rect(
		int(math.Floor(float64(tl.X))), int(math.Floor(float64(tl.Y))),
		int(math.Ceil(float64(br.X))), int(math.Ceil(float64(br.Y))),
	)
	return r.Intersect(image.Rectangle{Max: v.img})
}
