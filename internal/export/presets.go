/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"strings"

	"photomark/internal/imageio"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetOriginal PresetName = "original"
	PresetWeb      PresetName = "web"
	PresetPrint    PresetName = "print"
	PresetArchive  PresetName = "archive"
)

// Preset bundles encoder options with an optional size cap.
type Preset struct {
	Name    PresetName
	Options Options
	// MaxEdge downsizes the longer side to this many pixels; 0 keeps the size.
	MaxEdge int
}

var presets = map[PresetName]Preset{
	PresetOriginal: {Name: PresetOriginal, Options: Options{Format: JPEG, Quality: DefaultJPEGQuality}},
	PresetWeb:      {Name: PresetWeb, Options: Options{Format: JPEG, Quality: 85}, MaxEdge: 2048},
	PresetPrint:    {Name: PresetPrint, Options: Options{Format: PDF}},
	PresetArchive:  {Name: PresetArchive, Options: Options{Format: TIFF}},
}

// LookupPreset returns the named preset. Empty selects original.
func LookupPreset(name string) (Preset, error) {
	n := PresetName(strings.ToLower(strings.TrimSpace(name)))
	if n == "" {
		n = PresetOriginal
	}
	p, ok := presets[n]
	if !ok {
		return Preset{}, fmt.Errorf("unknown export preset %q", name)
	}
	return p, nil
}

// Prepare applies the size cap of the preset.
func (p Preset) Prepare(img image.Image) image.Image {
	if p.MaxEdge <= 0 {
		return img
	}
	return imageio.FitWithin(img, p.MaxEdge, p.MaxEdge)
}
