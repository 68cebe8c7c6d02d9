/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package capture turns pointer press/drag/release sequences into strokes.
//
// A Controller is either Disabled (the initial state) or Enabled. While
// enabled, a press opens an in-progress path, drags extend it and the release
// closes it and hands the finished stroke to a Committer. Disabling in the
// middle of a gesture abandons the path.
package capture

import (
	"fmt"

	"photomark/internal/stroke"
)

// Committer receives finished strokes.
type Committer interface {
	Commit(s stroke.Stroke) error
}

// Style supplies the color and width applied to the next stroke.
type Style interface {
	Color() stroke.Color
	Width() float32
}

// CommitFunc adapts a function to Committer.
type CommitFunc func(stroke.Stroke) error

func (f CommitFunc) Commit(s stroke.Stroke) error { return f(s) }

// Controller is not safe for concurrent use.
type Controller struct {
	committer Committer
	style     Style
	repaint   func()

	enabled bool
	pressed bool
	path    []stroke.Point
}

// New returns a disabled controller. repaint may be nil.
func New(c Committer, st Style, repaint func()) *Controller {
	if repaint == nil {
		repaint = func() {}
	}
	return &Controller{committer: c, style: st, repaint: repaint}
}

func (c *Controller) Enabled() bool { return c.enabled }

// Active reports whether a gesture is open.
func (c *Controller) Active() bool { return c.pressed }

// InProgress returns a copy of the open path, or nil when idle.
func (c *Controller) InProgress() []stroke.Point {
	if !c.pressed {
		return nil
	}
	return append([]stroke.Point(nil), c.path...)
}

func (c *Controller) Enable() { c.enabled = true }

func (c *Controller) Disable() {
	c.enabled = false
	if c.pressed {
		c.abandon()
		c.repaint()
	}
}

// Toggle flips the mode and returns the new state.
func (c *Controller) Toggle() bool {
	if c.enabled {
		c.Disable()
	} else {
		c.Enable()
	}
	return c.enabled
}

// Abandon drops an open gesture without committing it.
func (c *Controller) Abandon() {
	if c.pressed {
		c.abandon()
		c.repaint()
	}
}

func (c *Controller) abandon() {
	c.pressed = false
	c.path = nil
}

// PressStart opens a new path at p. A press while a gesture is already open
// restarts it; the previous path was never released and is dropped.
func (c *Controller) PressStart(p stroke.Point) {
	if !c.enabled {
		return
	}
	c.pressed = true
	c.path = append(c.path[:0:0], p)
	c.repaint()
}

// DragTo extends the open path.
func (c *Controller) DragTo(p stroke.Point) {
	if !c.enabled || !c.pressed {
		return
	}
	c.path = append(c.path, p)
	c.repaint()
}

// ReleaseAt closes the open path at p and commits it. The gesture is consumed
// even when the commit fails.
func (c *Controller) ReleaseAt(p stroke.Point) error {
	if !c.enabled || !c.pressed {
		return nil
	}
	pts := append(c.path, p)
	c.abandon()
	defer c.repaint()
	s, err := stroke.New(pts, c.style.Color(), c.style.Width())
	if err != nil {
		return fmt.Errorf("build stroke: %w", err)
	}
	if err := c.committer.Commit(s); err != nil {
		return fmt.Errorf("commit stroke: %w", err)
	}
	return nil
}
