//go:build fyne && cgo

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
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	xdraw "golang.org/x/image/draw"

	"photomark/internal/stroke"
	"photomark/internal/surface"
)

var backdrop = color.NRGBA{R: 30, G: 30, B: 34, A: 255}

// DrawView shows a Surface and forwards pointer input to it. With drawing
// enabled a primary-button drag draws; otherwise it pans. The wheel zooms.
type DrawView struct {
	widget.BaseWidget
	s      *surface.Surface
	vp     viewport
	raster *canvas.Raster

	// OnChange runs after every repaint request from the surface.
	OnChange func()
	// OnError receives commit failures from a released gesture.
	OnError func(error)
}

var (
	_ fyne.Widget       = (*DrawView)(nil)
	_ fyne.Draggable    = (*DrawView)(nil)
	_ fyne.Scrollable   = (*DrawView)(nil)
	_ desktop.Mouseable = (*DrawView)(nil)
)

func NewDrawView(s *surface.Surface) *DrawView {
	v := &DrawView{s: s, vp: newViewport()}
	v.raster = canvas.NewRaster(v.render)
	v.raster.ScaleMode = canvas.ImageScalePixels
	v.ExtendBaseWidget(v)
	s.SetInvalidate(v.invalidate)
	if s.HasImage() {
		v.vp.setImage(s.Size())
	}
	return v
}

func (v *DrawView) invalidate() {
	v.Refresh()
	if v.OnChange != nil {
		v.OnChange()
	}
}

// LoadImage replaces the picture and resets zoom.
func (v *DrawView) LoadImage(img image.Image) error {
	if err := v.s.LoadImage(img); err != nil {
		return err
	}
	v.vp.setImage(v.s.Size())
	v.Refresh()
	return nil
}

// Open loads the photo at path through the surface and resets zoom.
func (v *DrawView) Open(path string, targetW, targetH int) (string, error) {
	format, err := v.s.Open(path, targetW, targetH)
	if err != nil {
		return "", err
	}
	v.vp.setImage(v.s.Size())
	v.Refresh()
	return format, nil
}

// CropToVisible cuts the session down to what is on screen.
func (v *DrawView) CropToVisible() error {
	if err := v.s.Crop(v.vp.visible()); err != nil {
		return err
	}
	v.vp.setImage(v.s.Size())
	v.Refresh()
	return nil
}

func (v *DrawView) ResetZoom() {
	v.vp.setZoom(minZoom)
	v.Refresh()
}

// render paints the current frame letterboxed into a w×h pixel buffer.
func (v *DrawView) render(w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(backdrop), image.Point{}, xdraw.Src)
	if !v.vp.valid() {
		return dst
	}
	frame, err := v.s.Frame()
	if err != nil {
		return dst
	}
	// The raster works in device pixels, the viewport in fyne units.
	px := float32(w) / v.vp.viewW
	x0, y0 := v.vp.toView(stroke.Pt(0, 0))
	x1, y1 := v.vp.toView(stroke.Pt(float32(v.vp.img.X), float32(v.vp.img.Y)))
	target := image.Rect(int(x0*px), int(y0*px), int(x1*px), int(y1*px))
	xdraw.ApproxBiLinear.Scale(dst, target, frame, frame.Bounds(), xdraw.Over, nil)
	return dst
}

func (v *DrawView) point(pos fyne.Position) stroke.Point { return v.vp.toImage(pos.X, pos.Y) }

func (v *DrawView) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary || !v.s.DrawingEnabled() {
		return
	}
	v.s.PressStart(v.point(e.Position))
}

func (v *DrawView) MouseUp(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary || v.s.InProgress() == nil {
		return
	}
	v.release(v.point(e.Position))
}

func (v *DrawView) release(p stroke.Point) {
	if err := v.s.ReleaseAt(p); err != nil && v.OnError != nil {
		v.OnError(err)
	}
}

func (v *DrawView) Dragged(e *fyne.DragEvent) {
	if v.s.InProgress() != nil {
		v.s.DragTo(v.point(e.Position))
		return
	}
	if !v.s.DrawingEnabled() {
		v.vp.pan(e.Dragged.DX, e.Dragged.DY)
		v.Refresh()
	}
}

// DragEnd finishes a gesture whose button came up outside the widget, where
// no MouseUp is delivered.
func (v *DrawView) DragEnd() {
	pts := v.s.InProgress()
	if len(pts) == 0 {
		return
	}
	v.release(pts[len(pts)-1])
}

func (v *DrawView) Scrolled(e *fyne.ScrollEvent) {
	v.vp.setZoom(v.vp.zoom + e.Scrolled.DY*0.01)
	v.Refresh()
}

func (v *DrawView) MinSize() fyne.Size { return fyne.NewSize(320, 240) }

func (v *DrawView) CreateRenderer() fyne.WidgetRenderer {
	return &drawViewRenderer{v: v}
}

type drawViewRenderer struct{ v *DrawView }

func (r *drawViewRenderer) Layout(size fyne.Size) {
	r.v.vp.resize(size.Width, size.Height)
	r.v.raster.Resize(size)
	r.v.raster.Move(fyne.NewPos(0, 0))
}

func (r *drawViewRenderer) MinSize() fyne.Size           { return r.v.MinSize() }
func (r *drawViewRenderer) Refresh()                     { r.v.raster.Refresh() }
func (r *drawViewRenderer) Objects() []fyne.CanvasObject { return []fyne.CanvasObject{r.v.raster} }
func (r *drawViewRenderer) Destroy()                     {}
