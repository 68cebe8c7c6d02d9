/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"

	"photomark/internal/stroke"
)

func TestMain(m *testing.M) {
	keyring.MockInit()
	os.Exit(m.Run())
}

// isolate points the config file at a temp dir and clears PM_* overrides.
func isolate(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvConfigPath, p)
	for _, env := range envKeys {
		t.Setenv(env, "")
	}
	return p
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	isolate(t)
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Drawing.Width != 5 || cfg.Drawing.StartColor() != stroke.Black {
		t.Fatalf("unexpected drawing defaults: %+v", cfg.Drawing)
	}
	if cfg.Export.JPEGQuality != 100 || cfg.Gallery.Driver != "sqlite" || cfg.Render.Rasterizer != "rasterx" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	colors, err := cfg.Drawing.Colors()
	if err != nil || len(colors) != 3 || colors[1] != stroke.Red || colors[2] != stroke.Blue {
		t.Fatalf("default palette = %v, %v", colors, err)
	}
}

func TestLoadMergesFile(t *testing.T) {
	p := isolate(t)
	data := []byte(`
drawing:
  color: "#00ff00"
  width: 12.5
  palette: ["#00ff00", "black"]
render:
  rasterizer: gg
import:
  target_width: 375
  target_height: 599
gallery:
  driver: none
`)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Drawing.StartColor() != (stroke.Color{G: 255, A: 255}) || cfg.Drawing.Width != 12.5 {
		t.Fatalf("drawing not merged: %+v", cfg.Drawing)
	}
	if cfg.Render.Rasterizer != "gg" || cfg.Import.TargetWidth != 375 || cfg.Import.TargetHeight != 599 {
		t.Fatalf("render/import not merged: %+v %+v", cfg.Render, cfg.Import)
	}
	if cfg.Gallery.Driver != "none" {
		t.Fatalf("gallery driver not merged: %q", cfg.Gallery.Driver)
	}
	if cfg.Export.JPEGQuality != 100 {
		t.Fatalf("untouched section lost its default: %d", cfg.Export.JPEGQuality)
	}
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	p := isolate(t)
	if err := os.WriteFile(p, []byte("drawing:\n  width: -3\nrender:\n  rasterizer: skia\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, _, err := Load()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if cfg.Drawing.Width != 5 || cfg.Render.Rasterizer != "rasterx" {
		t.Fatalf("invalid file must not be merged: %+v", cfg)
	}
}

func TestValidateYAML(t *testing.T) {
	if err := ValidateYAML(nil); err != nil {
		t.Fatalf("empty document should be valid: %v", err)
	}
	if err := ValidateYAML([]byte("export:\n  format: png\n  jpeg_quality: 90\n")); err != nil {
		t.Fatalf("valid document rejected: %v", err)
	}
	if err := ValidateYAML([]byte("drawing:\n  color: chartreuse\n")); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("bad color accepted: %v", err)
	}
	if err := ValidateYAML([]byte("export: [unterminated")); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("broken yaml accepted: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv(EnvTelemetryOptIn, "yes")
	t.Setenv(EnvWidth, "9")
	t.Setenv(EnvRasterizer, "GG")
	t.Setenv(EnvJPEGQuality, "85")
	t.Setenv(EnvGalleryDSN, "postgres://pm@db/photos")
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogSource, "1")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.General.TelemetryOptIn || cfg.Drawing.Width != 9 || cfg.Render.Rasterizer != "gg" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.Export.JPEGQuality != 85 || cfg.Gallery.DSN != "postgres://pm@db/photos" {
		t.Fatalf("export/gallery overrides not applied: %+v %+v", cfg.Export, cfg.Gallery)
	}
	if cfg.Logging.Level != "error" || !cfg.Logging.Source {
		t.Fatalf("logging overrides not applied: %+v", cfg.Logging)
	}
	if env, ok := EnvOverrideFor("render.rasterizer"); !ok || env != EnvRasterizer {
		t.Fatalf("EnvOverrideFor mismatch: %q %v", env, ok)
	}
	if _, ok := EnvOverrideFor("export.dir"); ok {
		t.Fatalf("export.dir is not overridden")
	}
}

func TestEnvOverrideIgnoresGarbage(t *testing.T) {
	isolate(t)
	t.Setenv(EnvJPEGQuality, "250")
	t.Setenv(EnvMaxPixels, "lots")
	cfg, _, _ := Load()
	if cfg.Export.JPEGQuality != 100 || cfg.Render.MaxPixels != Defaults().Render.MaxPixels {
		t.Fatalf("garbage env values should be ignored: %+v", cfg)
	}
}

func TestMergeKeepsLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging = LoggingConfig{Level: "DEBUG", Format: "json", Source: true, File: "/tmp/pm.log"}
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/tmp/pm.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestSaveRoundTripAndSecret(t *testing.T) {
	p := isolate(t)
	cfg := Defaults()
	cfg.Drawing.Width = 7
	cfg.Export.Format = "png"
	if err := Save(cfg, "s3cret"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	got, secret, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Drawing.Width != 7 || got.Export.Format != "png" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if secret != "s3cret" {
		t.Fatalf("secret from keyring = %q", secret)
	}
	if err := ForgetSecret(); err != nil {
		t.Fatalf("ForgetSecret: %v", err)
	}
	if _, secret, _ = Load(); secret != "" {
		t.Fatalf("secret should be gone, got %q", secret)
	}
}

type memStore map[string]string

func (m memStore) Get(s, k string) (string, error) {
	v, ok := m[s+"/"+k]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}
func (m memStore) Set(s, k, v string) error { m[s+"/"+k] = v; return nil }
func (m memStore) Delete(s, k string) error { delete(m, s+"/"+k); return nil }

func TestSetTokenStore(t *testing.T) {
	isolate(t)
	ms := memStore{}
	old := SetTokenStore(ms)
	t.Cleanup(func() { SetTokenStore(old) })
	if err := Save(Defaults(), "pw"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ms[keyringService+"/"+keyringGalleryPW] != "pw" {
		t.Fatalf("custom store not used: %v", ms)
	}
}
