/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package surface ties together the base photo, the drawing layer, stroke
// history and pointer capture. It is the single object a view talks to:
// pointer events and commands go in, repaint requests and bitmaps come out.
//
// A Surface is driven from one goroutine (the UI event loop) and has no locks.
package surface

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"log/slog"

	"photomark/internal/capture"
	"photomark/internal/compositor"
	"photomark/internal/config"
	"photomark/internal/history"
	"photomark/internal/imageio"
	applog "photomark/internal/log"
	"photomark/internal/stroke"
)

var (
	// ErrInvalidImage is returned by LoadImage for nil or zero-sized images.
	// The previous image and history stay in place.
	ErrInvalidImage = errors.New("surface: invalid image")
	// ErrNoImage is returned when a bitmap is requested before any image was loaded.
	ErrNoImage = errors.New("surface: no image loaded")
)

const DefaultWidth float32 = 5

type Options struct {
	Compositor *compositor.Compositor
	Color      stroke.Color
	Width      float32
	// Invalidate is called once for every change that affects the rendered frame.
	Invalidate func()
}

// OptionsFromConfig builds a compositor and the starting style from cfg.
func OptionsFromConfig(cfg config.AppConfig) (Options, error) {
	r, err := compositor.RasterizerByName(cfg.Render.Rasterizer)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Compositor: compositor.New(compositor.Options{Rasterizer: r, MaxPixels: cfg.Render.MaxPixels}),
		Color:      cfg.Drawing.StartColor(),
		Width:      cfg.Drawing.Width,
	}, nil
}

type Surface struct {
	base  *image.RGBA
	layer *image.RGBA
	color stroke.Color
	width float32

	hist    *history.History
	capture *capture.Controller
	comp    *compositor.Compositor

	invalidate func()
	batching   int
	pending    bool

	log *slog.Logger
}

func New(opts Options) *Surface {
	if opts.Compositor == nil {
		opts.Compositor = compositor.New(compositor.Options{})
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Color == (stroke.Color{}) {
		opts.Color = stroke.Black
	}
	s := &Surface{
		color:      opts.Color,
		width:      opts.Width,
		hist:       history.New(),
		comp:       opts.Compositor,
		invalidate: opts.Invalidate,
		log:        applog.WithComponent("surface"),
	}
	if s.invalidate == nil {
		s.invalidate = func() {}
	}
	s.capture = capture.New(capture.CommitFunc(s.commit), s, s.requestRepaint)
	return s
}

// SetInvalidate replaces the repaint callback, used by views created after the surface.
func (s *Surface) SetInvalidate(fn func()) {
	if fn == nil {
		fn = func() {}
	}
	s.invalidate = fn
}

func (s *Surface) requestRepaint() {
	if s.batching > 0 {
		s.pending = true
		return
	}
	s.invalidate()
}

// batch coalesces every repaint requested while fn runs into one.
func (s *Surface) batch(fn func()) {
	s.batching++
	defer func() {
		s.batching--
		if s.batching == 0 && s.pending {
			s.pending = false
			s.invalidate()
		}
	}()
	fn()
}

// LoadImage replaces the base photo. The image is copied into an owned RGBA
// buffer at the origin, the drawing layer is reallocated and history is
// cleared. Invalid or unallocatable images leave the current session untouched.
func (s *Surface) LoadImage(img image.Image) error {
	l := applog.WithOperation(s.log, "load_image")
	if img == nil {
		l.Warn("rejected image", slog.String("reason", "nil"))
		return fmt.Errorf("%w: nil image", ErrInvalidImage)
	}
	b := img.Bounds()
	if b.Empty() {
		l.Warn("rejected image", slog.String("reason", "empty"), slog.Any("bounds", b))
		return fmt.Errorf("%w: empty bounds %v", ErrInvalidImage, b)
	}
	base, err := s.comp.Allocate(b.Dx(), b.Dy())
	if err != nil {
		l.Error("base allocation failed", slog.Any("err", err))
		return fmt.Errorf("load image: %w", err)
	}
	layer, err := s.comp.Rebuild(nil, b.Dx(), b.Dy())
	if err != nil {
		return fmt.Errorf("load image: %w", err)
	}
	draw.Draw(base, base.Bounds(), img, b.Min, draw.Src)

	s.batch(func() {
		s.capture.Abandon()
		s.base = base
		s.layer = layer
		s.hist.Reset()
		s.requestRepaint()
	})
	l.Info("image loaded", slog.Int("w", b.Dx()), slog.Int("h", b.Dy()))
	return nil
}

// Open decodes the photo at path, scales it to targetW×targetH when both are
// positive, and loads it. The source and target sizes are checked against the
// pixel budget before anything is decoded or scaled. It returns the source
// format name.
func (s *Surface) Open(path string, targetW, targetH int) (string, error) {
	l := applog.WithOperation(s.log, "open")
	cfg, _, err := imageio.Probe(path)
	if err != nil {
		return "", err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", fmt.Errorf("%w: %s is %dx%d", ErrInvalidImage, path, cfg.Width, cfg.Height)
	}
	if !s.comp.Fits(cfg.Width, cfg.Height) {
		l.Warn("rejected image", slog.String("reason", "budget"), slog.Int("w", cfg.Width), slog.Int("h", cfg.Height))
		return "", fmt.Errorf("%s: %dx%d: %w", path, cfg.Width, cfg.Height, compositor.ErrAllocation)
	}
	if targetW > 0 && targetH > 0 && !s.comp.Fits(targetW, targetH) {
		l.Warn("rejected import size", slog.Int("w", targetW), slog.Int("h", targetH))
		return "", fmt.Errorf("import size %dx%d: %w", targetW, targetH, compositor.ErrAllocation)
	}
	img, format, err := imageio.Open(path)
	if err != nil {
		return "", err
	}
	if err := s.LoadImage(imageio.Fit(img, targetW, targetH)); err != nil {
		return "", err
	}
	return format, nil
}

func (s *Surface) HasImage() bool { return s.base != nil }

// Size returns the base image size, zero before the first load.
func (s *Surface) Size() image.Point {
	if s.base == nil {
		return image.Point{}
	}
	return s.base.Bounds().Size()
}

// Color and Width are the style applied to the next stroke.
func (s *Surface) Color() stroke.Color { return s.color }
func (s *Surface) Width() float32      { return s.width }

// SetColor affects future strokes only. An open gesture is repainted in the new color.
func (s *Surface) SetColor(c stroke.Color) {
	if c == s.color {
		return
	}
	s.color = c
	if s.capture.Active() {
		s.requestRepaint()
	}
}

// SetWidth affects future strokes only.
func (s *Surface) SetWidth(w float32) error {
	if !(w > 0) {
		return fmt.Errorf("%w: %v", stroke.ErrInvalidWidth, w)
	}
	if w == s.width {
		return nil
	}
	s.width = w
	if s.capture.Active() {
		s.requestRepaint()
	}
	return nil
}

// Drawing mode. Toggling alone does not change pixels; disabling in the middle
// of a gesture drops the live path and repaints.

func (s *Surface) EnableDrawing()       { s.capture.Enable() }
func (s *Surface) DisableDrawing()      { s.batch(s.capture.Disable) }
func (s *Surface) DrawingEnabled() bool { return s.capture.Enabled() }

func (s *Surface) ToggleDrawing() bool {
	var on bool
	s.batch(func() { on = s.capture.Toggle() })
	return on
}

// Pointer forwarding. Input is ignored until an image is loaded.

func (s *Surface) PressStart(p stroke.Point) {
	if s.base == nil {
		return
	}
	s.capture.PressStart(p)
}

func (s *Surface) DragTo(p stroke.Point) {
	if s.base == nil {
		return
	}
	s.capture.DragTo(p)
}

// ReleaseAt finishes the gesture. A non-nil error means the stroke could not
// be committed (for example the layer could not be rebuilt); history is unchanged.
func (s *Surface) ReleaseAt(p stroke.Point) error {
	if s.base == nil {
		return nil
	}
	var err error
	s.batch(func() { err = s.capture.ReleaseAt(p) })
	return err
}

// InProgress returns the open gesture path, nil when idle.
func (s *Surface) InProgress() []stroke.Point { return s.capture.InProgress() }

// commit receives strokes from capture. The layer is rebuilt for the
// candidate active list first; history changes only when that succeeds.
func (s *Surface) commit(st stroke.Stroke) error {
	if s.base == nil {
		return ErrNoImage
	}
	if st.IsZero() {
		return stroke.ErrNoPoints
	}
	candidate := append(s.hist.Active(), st)
	layer, err := s.rebuild(candidate)
	if err != nil {
		return err
	}
	s.hist.Commit(st)
	s.layer = layer
	s.requestRepaint()
	s.logChange("commit", st)
	return nil
}

// Undo hides the newest stroke. It reports whether anything changed.
func (s *Surface) Undo() (bool, error) {
	st, ok := s.hist.PeekUndo()
	if !ok {
		return false, nil
	}
	active := s.hist.Active()
	layer, err := s.rebuild(active[:len(active)-1])
	if err != nil {
		return false, err
	}
	s.hist.Undo()
	s.layer = layer
	s.requestRepaint()
	s.logChange("undo", st)
	return true, nil
}

// Redo restores the most recently undone stroke. It reports whether anything changed.
func (s *Surface) Redo() (bool, error) {
	st, ok := s.hist.PeekRedo()
	if !ok {
		return false, nil
	}
	layer, err := s.rebuild(append(s.hist.Active(), st))
	if err != nil {
		return false, err
	}
	s.hist.Redo()
	s.layer = layer
	s.requestRepaint()
	s.logChange("redo", st)
	return true, nil
}

func (s *Surface) CanUndo() bool { return s.hist.CanUndo() }
func (s *Surface) CanRedo() bool { return s.hist.CanRedo() }

// Active and Reverted expose the history for inspection.
func (s *Surface) Active() []stroke.Stroke   { return s.hist.Active() }
func (s *Surface) Reverted() []stroke.Stroke { return s.hist.Reverted() }

func (s *Surface) rebuild(active []stroke.Stroke) (*image.RGBA, error) {
	sz := s.base.Bounds().Size()
	layer, err := s.comp.Rebuild(active, sz.X, sz.Y)
	if err != nil {
		s.log.Error("drawing layer rebuild failed, history unchanged", slog.Any("err", err))
		return nil, err
	}
	return layer, nil
}

func (s *Surface) logChange(op string, st stroke.Stroke) {
	if !s.log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	active, reverted, points := s.hist.Stats()
	applog.WithOperation(s.log, op).Debug("history changed",
		slog.String("stroke", st.ID().String()),
		slog.Any("bounds", st.Bounds()),
		slog.Int("active", active),
		slog.Int("reverted", reverted),
		slog.Int("points", points))
}

// Merged flattens the photo and all active strokes into a new bitmap for
// export. The live gesture is not included.
func (s *Surface) Merged() (*image.RGBA, error) {
	if s.base == nil {
		return nil, ErrNoImage
	}
	return s.comp.Merge(s.base, s.layer)
}

// Frame renders what the view shows: Merged plus the open gesture.
func (s *Surface) Frame() (*image.RGBA, error) {
	if s.base == nil {
		return nil, ErrNoImage
	}
	return s.comp.RenderFrame(s.base, s.layer, s.capture.InProgress(), s.color, s.width)
}

// Crop replaces the session with r cut out of the merged bitmap. Strokes are
// flattened into the new base, so history starts empty.
func (s *Surface) Crop(r image.Rectangle) error {
	merged, err := s.Merged()
	if err != nil {
		return err
	}
	if r.Intersect(merged.Bounds()).Empty() {
		return fmt.Errorf("%w: crop rectangle outside image", ErrInvalidImage)
	}
	return s.LoadImage(imageio.Crop(merged, r))
}
