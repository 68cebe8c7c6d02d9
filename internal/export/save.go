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
	"os"
	"path/filepath"
	"time"
)

var now = time.Now

// Result describes a written export.
type Result struct {
	Path   string
	Format Format
	Bytes  int64
	Width  int
	Height int
}

// Save writes img into dir under a timestamped name and returns what was written.
// The file appears atomically: it is encoded to a temp file and renamed.
func Save(dir string, img image.Image, opt Options) (Result, error) {
	if opt.Format == "" {
		opt.Format = JPEG
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("ensure out dir: %w", err)
	}
	path := uniqueName(dir, "photomark-"+now().Format("20060102-150405"), opt.Format.Ext())
	if err := WriteFile(path, img, opt); err != nil {
		return Result{}, err
	}
	st, err := os.Stat(path)
	if err != nil {
		return Result{}, err
	}
	b := img.Bounds()
	return Result{Path: path, Format: opt.Format, Bytes: st.Size(), Width: b.Dx(), Height: b.Dy()}, nil
}

// WriteFile encodes img to exactly path.
func WriteFile(path string, img image.Image, opt Options) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".photomark-*.tmp")
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	if err := Encode(tmp, img, opt); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close export: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("move export into place: %w", err)
	}
	return nil
}

func uniqueName(dir, stem, ext string) string {
	p := filepath.Join(dir, stem+ext)
	for i := 2; ; i++ {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return p
		}
		p = filepath.Join(dir, fmt.Sprintf("%s-%d%s", stem, i, ext))
	}
}
