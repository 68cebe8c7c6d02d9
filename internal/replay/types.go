/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package replay

import (
	"fmt"
	"image"

	"gopkg.in/yaml.v3"

	"photomark/internal/stroke"
)

// Script is a recorded annotation session: the gallery title and description
// plus the input events in the order a user would produce them.
//
//	title: Harbour
//	actions:
//	  - enable
//	  - color: red
//	  - press: [10, 10]
//	  - drag: [[20, 20], [30, 25]]
//	  - release: [40, 30]
//	  - undo
type Script struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Actions     []Action `yaml:"actions"`
}

type Op string

const (
	OpEnable  Op = "enable"
	OpDisable Op = "disable"
	OpToggle  Op = "toggle"
	OpPress   Op = "press"
	OpDrag    Op = "drag"
	OpRelease Op = "release"
	OpUndo    Op = "undo"
	OpRedo    Op = "redo"
	OpColor   Op = "color"
	OpWidth   Op = "width"
	OpCrop    Op = "crop"
)

// Action is one step. Only the field matching Op is set.
type Action struct {
	Op     Op
	Points []stroke.Point // press/release: one point; drag: one or more
	Color  stroke.Color
	Width  float32
	Rect   image.Rectangle
	Line   int // 1-based line in the source document
}

func (a Action) String() string {
	return fmt.Sprintf("%s (line %d)", a.Op, a.Line)
}

// UnmarshalYAML accepts either a bare op name or a single-key mapping from op
// to its argument.
func (a *Action) UnmarshalYAML(n *yaml.Node) error {
	a.Line = n.Line
	switch n.Kind {
	case yaml.ScalarNode:
		a.Op = Op(n.Value)
		switch a.Op {
		case OpEnable, OpDisable, OpToggle, OpUndo, OpRedo:
			return nil
		}
		return fmt.Errorf("line %d: action %q needs an argument", n.Line, n.Value)
	case yaml.MappingNode:
		if len(n.Content) != 2 {
			return fmt.Errorf("line %d: an action has exactly one key", n.Line)
		}
		a.Op = Op(n.Content[0].Value)
		return a.decodeArg(n.Content[1])
	default:
		return fmt.Errorf("line %d: unexpected action node", n.Line)
	}
}

func (a *Action) decodeArg(v *yaml.Node) error {
	switch a.Op {
	case OpPress, OpRelease:
		p, err := decodePoint(v)
		if err != nil {
			return err
		}
		a.Points = []stroke.Point{p}
	case OpDrag:
		if v.Kind != yaml.SequenceNode || len(v.Content) == 0 {
			return fmt.Errorf("line %d: drag needs a list of points", v.Line)
		}
		for _, item := range v.Content {
			p, err := decodePoint(item)
			if err != nil {
				return err
			}
			a.Points = append(a.Points, p)
		}
	case OpColor:
		var s string
		if err := v.Decode(&s); err != nil {
			return fmt.Errorf("line %d: %w", v.Line, err)
		}
		c, err := stroke.ParseColor(s)
		if err != nil {
			return fmt.Errorf("line %d: %w", v.Line, err)
		}
		a.Color = c
	case OpWidth:
		if err := v.Decode(&a.Width); err != nil {
			return fmt.Errorf("line %d: %w", v.Line, err)
		}
	case OpCrop:
		var r []int
		if err := v.Decode(&r); err != nil || len(r) != 4 {
			return fmt.Errorf("line %d: crop needs [x0, y0, x1, y1]", v.Line)
		}
		a.Rect = image.Rect(r[0], r[1], r[2], r[3])
	default:
		return fmt.Errorf("line %d: unknown action %q", v.Line, a.Op)
	}
	return nil
}

func decodePoint(v *yaml.Node) (stroke.Point, error) {
	var xy []float32
	if err := v.Decode(&xy); err != nil || len(xy) != 2 {
		return stroke.Point{}, fmt.Errorf("line %d: a point is [x, y]", v.Line)
	}
	return stroke.Point{X: xy[0], Y: xy[1]}, nil
}
