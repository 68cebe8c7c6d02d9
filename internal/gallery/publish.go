/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package gallery

import (
	"context"
	"errors"
	"fmt"
	"image"

	"photomark/internal/config"
	"photomark/internal/export"
)

// Publish writes img into the export directory in the configured format and
// records it in the catalog. With the gallery disabled the file is still
// written and the returned entry has ID 0.
func Publish(ctx context.Context, cfg config.AppConfig, secret string, img image.Image, title, description string) (Entry, error) {
	opts, img, err := exportOptions(cfg.Export, img)
	if err != nil {
		return Entry{}, err
	}
	opts.Title, opts.Description = title, description
	res, err := export.Save(cfg.Export.Dir, img, opts)
	if err != nil {
		return Entry{}, fmt.Errorf("export: %w", err)
	}
	e := EntryFor(res, title, description)
	s, err := Open(ctx, cfg, secret)
	if errors.Is(err, ErrDisabled) {
		return e, nil
	}
	if err != nil {
		return e, fmt.Errorf("saved %s but the gallery is unavailable: %w", res.Path, err)
	}
	defer s.Close()
	ins, err := s.Insert(ctx, e)
	if err != nil {
		return e, fmt.Errorf("saved %s but not catalogued: %w", res.Path, err)
	}
	return ins, nil
}

// exportOptions resolves the configured preset or format. A preset may also
// downscale img.
func exportOptions(ec config.ExportConfig, img image.Image) (export.Options, image.Image, error) {
	if ec.Preset != "" {
		p, err := export.LookupPreset(ec.Preset)
		if err != nil {
			return export.Options{}, nil, err
		}
		return p.Options, p.Prepare(img), nil
	}
	format, err := export.ParseFormat(ec.Format)
	if err != nil {
		return export.Options{}, nil, err
	}
	return export.Options{Format: format, Quality: ec.JPEGQuality}, img, nil
}
