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
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"photomark/internal/stroke"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are read-only overrides applied at load time.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	Theme          string `yaml:"theme"` // "system" | "light" | "dark"
}

type DrawingConfig struct {
	Color   string   `yaml:"color"`
	Width   float32  `yaml:"width"`
	Palette []string `yaml:"palette"`
}

type RenderConfig struct {
	Rasterizer string `yaml:"rasterizer"` // "rasterx" | "gg"
	MaxPixels  int    `yaml:"max_pixels"`
}

// ImportConfig scales incoming photos before editing. Zero keeps the source size.
type ImportConfig struct {
	TargetWidth  int `yaml:"target_width"`
	TargetHeight int `yaml:"target_height"`
}

type ExportConfig struct {
	Dir         string `yaml:"dir"`
	Format      string `yaml:"format"`
	JPEGQuality int    `yaml:"jpeg_quality"`
	// Preset, when set, overrides Format and JPEGQuality (see export.LookupPreset).
	Preset string `yaml:"preset"`
}

type GalleryConfig struct {
	Driver string `yaml:"driver"` // "sqlite" | "postgres" | "none"
	// DSN is a file path for sqlite (empty: gallery.db in the export dir) or a
	// postgres URL. The postgres password is not stored here; it lives in the OS keychain.
	DSN string `yaml:"dsn"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Drawing       DrawingConfig `yaml:"drawing"`
	Render        RenderConfig  `yaml:"render"`
	Import        ImportConfig  `yaml:"import"`
	Export        ExportConfig  `yaml:"export"`
	Gallery       GalleryConfig `yaml:"gallery"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false, Theme: "system"},
		Drawing:       DrawingConfig{Color: "#000000", Width: 5, Palette: []string{"#000000", "#ff0000", "#0000ff"}},
		Render:        RenderConfig{Rasterizer: "rasterx", MaxPixels: 64 << 20},
		Import:        ImportConfig{},
		Export:        ExportConfig{Dir: defaultExportDir(), Format: "jpeg", JPEGQuality: 100},
		Gallery:       GalleryConfig{Driver: "sqlite"},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath     = "PM_CONFIG"
	EnvTelemetryOptIn = "PM_TELEMETRY_OPT_IN"
	EnvColor          = "PM_COLOR"
	EnvWidth          = "PM_WIDTH"
	EnvRasterizer     = "PM_RASTERIZER"
	EnvMaxPixels      = "PM_MAX_PIXELS"
	EnvExportDir      = "PM_EXPORT_DIR"
	EnvExportFormat   = "PM_EXPORT_FORMAT"
	EnvJPEGQuality    = "PM_JPEG_QUALITY"
	EnvGalleryDriver  = "PM_GALLERY_DRIVER"
	EnvGalleryDSN     = "PM_GALLERY_DSN"
	EnvLogLevel       = "PM_LOG_LEVEL"
	EnvLogFormat      = "PM_LOG_FORMAT"
	EnvLogSource      = "PM_LOG_SOURCE"
	EnvLogFile        = "PM_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService   = "photomark"
	keyringGalleryPW = "gallery_password"
)

// TokenStore abstracts the OS keyring so tests can stub it.
type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

var tokenStore TokenStore = osKeyring{}

// SetTokenStore swaps the secret backend and returns the previous one.
func SetTokenStore(ts TokenStore) TokenStore {
	old := tokenStore
	tokenStore = ts
	return old
}

// ConfigPath returns the per-user config file path. PM_CONFIG overrides it.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	base, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "config.yaml"), nil
}

func configDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "Photomark")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "Photomark")
	default:
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "photomark")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "photomark")
		}
	}
	if base == "" || base == "photomark" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

func defaultExportDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, "Pictures", "photomark")
	}
	return filepath.Join(os.TempDir(), "photomark")
}

// Load reads the user config file (if present), applies defaults, and merges environment overrides.
// It also loads the gallery password from the keyring (returned separately, never kept in the struct).
//
// A file that fails schema validation is skipped: the returned config still holds
// defaults plus env overrides and the error wraps ErrInvalidConfig.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	var loadErr error
	if data, err := os.ReadFile(path); err == nil {
		if verr := ValidateYAML(data); verr != nil {
			loadErr = fmt.Errorf("%s: %w", path, verr)
		} else {
			var fileCfg AppConfig
			if err := yaml.Unmarshal(data, &fileCfg); err == nil {
				mergeInto(&cfg, &fileCfg)
			}
		}
	}
	applyEnvOverrides(&cfg)
	secret, _ := tokenStore.Get(keyringService, keyringGalleryPW)
	return cfg, secret, loadErr
}

// Save writes the user config YAML and persists the gallery password into the OS keyring (if non-empty).
func Save(cfg AppConfig, secret string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if secret != "" {
		if err := tokenStore.Set(keyringService, keyringGalleryPW, secret); err != nil {
			return fmt.Errorf("store gallery password: %w", err)
		}
	}
	return nil
}

// ForgetSecret removes the stored gallery password.
func ForgetSecret() error { return tokenStore.Delete(keyringService, keyringGalleryPW) }

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.General.Theme != "" {
		dst.General.Theme = src.General.Theme
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn

	if v := strings.TrimSpace(src.Drawing.Color); v != "" {
		dst.Drawing.Color = strings.ToLower(v)
	}
	if src.Drawing.Width > 0 {
		dst.Drawing.Width = src.Drawing.Width
	}
	if len(src.Drawing.Palette) > 0 {
		dst.Drawing.Palette = append([]string(nil), src.Drawing.Palette...)
	}

	if v := strings.TrimSpace(src.Render.Rasterizer); v != "" {
		dst.Render.Rasterizer = strings.ToLower(v)
	}
	if src.Render.MaxPixels > 0 {
		dst.Render.MaxPixels = src.Render.MaxPixels
	}

	dst.Import.TargetWidth = src.Import.TargetWidth
	dst.Import.TargetHeight = src.Import.TargetHeight

	if v := strings.TrimSpace(src.Export.Dir); v != "" {
		dst.Export.Dir = v
	}
	if v := strings.TrimSpace(src.Export.Format); v != "" {
		dst.Export.Format = strings.ToLower(v)
	}
	if src.Export.JPEGQuality != 0 {
		dst.Export.JPEGQuality = src.Export.JPEGQuality
	}
	if v := strings.TrimSpace(src.Export.Preset); v != "" {
		dst.Export.Preset = strings.ToLower(v)
	}

	if v := strings.TrimSpace(src.Gallery.Driver); v != "" {
		dst.Gallery.Driver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(src.Gallery.DSN); v != "" {
		dst.Gallery.DSN = v
	}

	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvColor)); v != "" {
		cfg.Drawing.Color = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvWidth)); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil && f > 0 {
			cfg.Drawing.Width = float32(f)
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvRasterizer)); v != "" {
		cfg.Render.Rasterizer = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvMaxPixels)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Render.MaxPixels = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvExportDir)); v != "" {
		cfg.Export.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvExportFormat)); v != "" {
		cfg.Export.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvJPEGQuality)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= 100 {
			cfg.Export.JPEGQuality = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvGalleryDriver)); v != "" {
		cfg.Gallery.Driver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvGalleryDSN)); v != "" {
		cfg.Gallery.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := envKeys[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

var envKeys = map[string]string{
	"general.telemetry_opt_in": EnvTelemetryOptIn,
	"drawing.color":            EnvColor,
	"drawing.width":            EnvWidth,
	"render.rasterizer":        EnvRasterizer,
	"render.max_pixels":        EnvMaxPixels,
	"export.dir":               EnvExportDir,
	"export.format":            EnvExportFormat,
	"export.jpeg_quality":      EnvJPEGQuality,
	"gallery.driver":           EnvGalleryDriver,
	"gallery.dsn":              EnvGalleryDSN,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// StartColor parses the configured default color, falling back to black.
func (d DrawingConfig) StartColor() stroke.Color {
	if c, err := stroke.ParseColor(d.Color); err == nil {
		return c
	}
	return stroke.Black
}

// Colors parses the palette. Invalid entries are reported, valid ones kept.
func (d DrawingConfig) Colors() ([]stroke.Color, error) {
	var out []stroke.Color
	var errs []error
	for _, s := range d.Palette {
		c, err := stroke.ParseColor(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		out = []stroke.Color{stroke.Black, stroke.Red, stroke.Blue}
	}
	return out, errors.Join(errs...)
}
