/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package history

import "photomark/internal/stroke"

// History keeps the committed strokes of a session in two places: the active
// list that is painted (oldest first) and the reverted stack of undone strokes
// (most recently undone first). Undo and redo move a stroke between the two;
// a stroke is never in both.
//
// History is not safe for concurrent use. The surface drives it from the UI
// goroutine only.
type History struct {
	active   []stroke.Stroke
	reverted []stroke.Stroke
}

func New() *History { return &History{} }

// Commit appends s to the active list. Any new stroke invalidates the redo stack.
func (h *History) Commit(s stroke.Stroke) {
	h.active = append(h.active, s)
	h.reverted = nil
}

// Undo moves the newest active stroke to the front of the reverted stack.
func (h *History) Undo() (stroke.Stroke, bool) {
	n := len(h.active)
	if n == 0 {
		return stroke.Stroke{}, false
	}
	s := h.active[n-1]
	h.active[n-1] = stroke.Stroke{}
	h.active = h.active[:n-1]
	// the reverted stack is kept newest-last internally so the front is reverted[len-1]
	h.reverted = append(h.reverted, s)
	return s, true
}

// Redo moves the most recently undone stroke back to the end of the active list.
func (h *History) Redo() (stroke.Stroke, bool) {
	n := len(h.reverted)
	if n == 0 {
		return stroke.Stroke{}, false
	}
	s := h.reverted[n-1]
	h.reverted[n-1] = stroke.Stroke{}
	h.reverted = h.reverted[:n-1]
	h.active = append(h.active, s)
	return s, true
}

// PeekUndo returns the stroke Undo would move, without moving it.
func (h *History) PeekUndo() (stroke.Stroke, bool) {
	if len(h.active) == 0 {
		return stroke.Stroke{}, false
	}
	return h.active[len(h.active)-1], true
}

// PeekRedo returns the stroke Redo would move, without moving it.
func (h *History) PeekRedo() (stroke.Stroke, bool) {
	if len(h.reverted) == 0 {
		return stroke.Stroke{}, false
	}
	return h.reverted[len(h.reverted)-1], true
}

func (h *History) CanUndo() bool { return len(h.active) > 0 }
func (h *History) CanRedo() bool { return len(h.reverted) > 0 }

// Active returns the painted strokes, oldest first.
func (h *History) Active() []stroke.Stroke { return append([]stroke.Stroke(nil), h.active...) }

// Reverted returns the undone strokes, most recently undone first.
func (h *History) Reverted() []stroke.Stroke {
	out := make([]stroke.Stroke, len(h.reverted))
	for i, s := range h.reverted {
		out[len(h.reverted)-1-i] = s
	}
	return out
}

// Reset drops everything, used when a new base image is loaded.
func (h *History) Reset() {
	h.active = nil
	h.reverted = nil
}

// Stats returns current sizes for diagnostics.
func (h *History) Stats() (active int, reverted int, points int) {
	for _, s := range h.active {
		points += s.Len()
	}
	for _, s := range h.reverted {
		points += s.Len()
	}
	return len(h.active), len(h.reverted), points
}
