/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package replay reads annotation scripts and plays them against a drawing
// surface, so a session can be reproduced without a window.
package replay

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	gojsonschema "github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	applog "photomark/internal/log"
	"photomark/internal/surface"
)

//go:embed schema.json
var schemaJSON []byte

var ErrInvalidScript = errors.New("replay: invalid script")

// Parse validates data against the script schema and decodes it.
func Parse(data []byte) (Script, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Script{}, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	if doc == nil {
		return Script{}, fmt.Errorf("%w: empty document", ErrInvalidScript)
	}
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaJSON), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return Script{}, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return Script{}, fmt.Errorf("%w: %s", ErrInvalidScript, strings.Join(msgs, "; "))
	}
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Script{}, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	return s, nil
}

// Load reads and parses a script file.
func Load(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("read script: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return Script{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Stats summarises a run.
type Stats struct {
	Actions  int
	Commits  int
	Undos    int
	Redos    int
	Skipped  int // undo/redo with nothing to move
	Active   int
	Reverted int
}

// Run plays every action against s in order. The surface must already hold
// an image. The first failing action stops the run; the surface keeps
// whatever state the earlier actions produced. ctx is checked between actions.
func Run(ctx context.Context, s *surface.Surface, sc Script) (Stats, error) {
	l := applog.WithOperation(applog.WithComponent("replay"), "run")
	if !s.HasImage() {
		return Stats{}, surface.ErrNoImage
	}
	var st Stats
	for i, a := range sc.Actions {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		if err := apply(s, a, &st); err != nil {
			l.Warn("action failed", slog.Int("index", i), slog.String("action", a.String()), slog.Any("err", err))
			return st, fmt.Errorf("action %d %s: %w", i+1, a, err)
		}
		st.Actions++
	}
	st.Active = len(s.Active())
	st.Reverted = len(s.Reverted())
	l.Debug("script done", slog.Int("actions", st.Actions), slog.Int("active", st.Active), slog.Int("reverted", st.Reverted))
	return st, nil
}

func apply(s *surface.Surface, a Action, st *Stats) error {
	switch a.Op {
	case OpEnable:
		s.EnableDrawing()
	case OpDisable:
		s.DisableDrawing()
	case OpToggle:
		s.ToggleDrawing()
	case OpPress:
		s.PressStart(a.Points[0])
	case OpDrag:
		for _, p := range a.Points {
			s.DragTo(p)
		}
	case OpRelease:
		before := len(s.Active())
		if err := s.ReleaseAt(a.Points[0]); err != nil {
			return err
		}
		if len(s.Active()) > before {
			st.Commits++
		}
	case OpUndo:
		moved, err := s.Undo()
		if err != nil {
			return err
		}
		count(moved, &st.Undos, &st.Skipped)
	case OpRedo:
		moved, err := s.Redo()
		if err != nil {
			return err
		}
		count(moved, &st.Redos, &st.Skipped)
	case OpColor:
		s.SetColor(a.Color)
	case OpWidth:
		return s.SetWidth(a.Width)
	case OpCrop:
		return s.Crop(a.Rect)
	default:
		return fmt.Errorf("unknown action %q", a.Op)
	}
	return nil
}

func count(moved bool, hit, miss *int) {
	if moved {
		*hit++
	} else {
		*miss++
	}
}
