//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"photomark/internal/crash"
	"photomark/internal/gallery"
	applog "photomark/internal/log"
	"photomark/internal/stroke"
	"photomark/internal/surface"
	"photomark/internal/telemetry"
	"photomark/internal/version"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// Run opens the annotation window and blocks until it is closed.
func Run(opts Options) error {
	cfg := opts.Config
	l := applog.WithComponent("ui")
	l.Info("starting UI", slog.String("version", version.String()))

	sopts, err := surface.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	s := surface.New(sopts)
	defer crash.Recover(&crash.Rescue{Dir: cfg.Export.Dir, Merged: s.Merged})

	fyneApp := app.NewWithID("photomark")
	w := fyneApp.NewWindow("photomark")
	prefs := fyneApp.Preferences()
	winW := max(800, prefs.IntWithFallback("window.width", 1100))
	winH := max(600, prefs.IntWithFallback("window.height", 800))
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	status := widget.NewLabel("Open a photo to start.")
	view := NewDrawView(s)
	view.OnError = func(err error) {
		l.Error("stroke not committed", slog.Any("err", err))
		dialog.ShowError(err, w)
	}
	refreshStatus := func() {
		if !s.HasImage() {
			return
		}
		sz := s.Size()
		mode := "pan"
		if s.DrawingEnabled() {
			mode = "draw"
		}
		status.SetText(fmt.Sprintf("%d×%d  strokes %d  redo %d  %s",
			sz.X, sz.Y, len(s.Active()), len(s.Reverted()), mode))
	}
	view.OnChange = refreshStatus

	// Drawing mode and style
	drawCheck := widget.NewCheck("Draw", func(on bool) {
		if on {
			s.EnableDrawing()
		} else {
			s.DisableDrawing()
		}
		refreshStatus()
	})
	palette, perr := cfg.Drawing.Colors()
	if perr != nil {
		l.Warn("palette has invalid entries", slog.Any("err", perr))
	}
	names := make([]string, len(palette))
	for i, c := range palette {
		names[i] = colorName(c)
	}
	colorSelect := widget.NewSelect(names, func(name string) {
		for i, n := range names {
			if n == name {
				s.SetColor(palette[i])
				return
			}
		}
	})
	colorSelect.SetSelected(colorName(s.Color()))
	widthLabel := widget.NewLabel(fmt.Sprintf("%.0f px", s.Width()))
	widthSlider := widget.NewSlider(1, 40)
	widthSlider.Step = 1
	widthSlider.SetValue(float64(s.Width()))
	widthSlider.OnChanged = func(v float64) {
		if err := s.SetWidth(float32(v)); err == nil {
			widthLabel.SetText(fmt.Sprintf("%.0f px", v))
		}
	}

	var recentMenu *fyne.Menu
	var mainMenu *fyne.MainMenu

	var loadImage func(path string)
	loadImage = func(path string) {
		format, err := view.Open(path, cfg.Import.TargetWidth, cfg.Import.TargetHeight)
		if err != nil {
			l.Error("open image failed", slog.String("path", path), slog.Any("err", err))
			dialog.ShowError(err, w)
			return
		}
		sz := s.Size()
		telemetry.ImageLoaded(sz.X, sz.Y, format)
		addRecentImage(prefs, path)
		w.SetTitle("photomark - " + filepath.Base(path))
		l.Info("image opened", slog.String("path", path), slog.String("format", format))
		refreshStatus()
		if recentMenu != nil {
			recentMenu.Items = recentItems(prefs, loadImage)
			mainMenu.Refresh()
		}
	}
	openImage := func() {
		fd := dialog.NewFileOpen(func(r fyne.URIReadCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if r == nil {
				return
			}
			path := r.URI().Path()
			_ = r.Close()
			loadImage(path)
		}, w)
		fd.SetFilter(fstorage.NewExtensionFileFilter(imageExtensions))
		fd.Show()
	}
	saveImage := func() {
		if !s.HasImage() {
			dialog.ShowInformation("Save", "Open a photo first.", w)
			return
		}
		titleEntry := widget.NewEntry()
		titleEntry.SetPlaceHolder("Title")
		descEntry := widget.NewMultiLineEntry()
		descEntry.SetPlaceHolder("Description")
		form := dialog.NewForm("Save to gallery", "Save", "Cancel", []*widget.FormItem{
			widget.NewFormItem("Title", titleEntry),
			widget.NewFormItem("Description", descEntry),
		}, func(ok bool) {
			if !ok {
				return
			}
			merged, err := s.Merged()
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			strokes := len(s.Active())
			status.SetText("Saving…")
			go func(title, desc string) {
				ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
				defer cancel()
				e, err := gallery.Publish(ctx, cfg, opts.Secret, merged, title, desc)
				fyne.Do(func() {
					if e.Path == "" {
						l.Error("save failed", slog.Any("err", err))
						dialog.ShowError(err, w)
						refreshStatus()
						return
					}
					telemetry.ImageExported(e.Format, e.Bytes, strokes)
					if err != nil {
						l.Warn("saved without gallery entry", slog.Any("err", err))
						dialog.ShowError(err, w)
					}
					status.SetText("Saved " + e.Path)
				})
			}(titleEntry.Text, descEntry.Text)
		}, w)
		form.Resize(fyne.NewSize(420, 260))
		form.Show()
	}
	undo := func() {
		if _, err := s.Undo(); err != nil {
			dialog.ShowError(err, w)
		}
	}
	redo := func() {
		if _, err := s.Redo(); err != nil {
			dialog.ShowError(err, w)
		}
	}
	crop := func() {
		if err := view.CropToVisible(); err != nil {
			dialog.ShowError(err, w)
		}
	}

	toolbar := widget.NewToolbar(
		widget.NewToolbarAction(theme.FolderOpenIcon(), openImage),
		widget.NewToolbarAction(theme.DocumentSaveIcon(), saveImage),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ContentUndoIcon(), undo),
		widget.NewToolbarAction(theme.ContentRedoIcon(), redo),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ContentCutIcon(), crop),
		widget.NewToolbarAction(theme.ZoomFitIcon(), view.ResetZoom),
	)
	controls := container.NewHBox(toolbar, drawCheck, colorSelect, widthLabel, container.NewGridWrap(fyne.NewSize(160, 36), widthSlider))
	w.SetContent(container.NewBorder(controls, status, nil, nil, view))

	// Menus and shortcuts
	openItem := fyne.NewMenuItem("Open…", openImage)
	saveItem := fyne.NewMenuItem("Save…", saveImage)
	openItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyO, Modifier: fyne.KeyModifierControl}
	saveItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierControl}
	recentMenu = fyne.NewMenu("Open Recent", recentItems(prefs, loadImage)...)
	recentItem := fyne.NewMenuItem("Open Recent", nil)
	recentItem.ChildMenu = recentMenu
	undoItem := fyne.NewMenuItem("Undo", undo)
	redoItem := fyne.NewMenuItem("Redo", redo)
	undoItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierControl}
	redoItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyY, Modifier: fyne.KeyModifierControl}
	toggleItem := fyne.NewMenuItem("Toggle Drawing", func() { drawCheck.SetChecked(!drawCheck.Checked) })
	toggleItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyD, Modifier: fyne.KeyModifierControl}
	mainMenu = fyne.NewMainMenu(
		fyne.NewMenu("File", openItem, recentItem, saveItem),
		fyne.NewMenu("Edit", undoItem, redoItem, fyne.NewMenuItemSeparator(), toggleItem,
			fyne.NewMenuItem("Crop to Visible", crop)),
	)
	w.SetMainMenu(mainMenu)

	w.SetCloseIntercept(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
		w.Close()
	})

	if opts.ImagePath != "" {
		loadImage(opts.ImagePath)
	}
	telemetry.Event(telemetry.EventSessionStart, map[string]any{"rasterizer": cfg.Render.Rasterizer})

	w.ShowAndRun()
	telemetry.Flush(context.Background())
	return nil
}

func colorName(c stroke.Color) string {
	switch c {
	case stroke.Black:
		return "Black"
	case stroke.Red:
		return "Red"
	case stroke.Blue:
		return "Blue"
	case stroke.White:
		return "White"
	}
	return c.Hex()
}

// Recent images persistence
const recentPrefsKey = "recent.images"
const recentMax = 10

func loadRecentImages(p fyne.Preferences) []string {
	raw := p.StringWithFallback(recentPrefsKey, "")
	var items []string
	if strings.TrimSpace(raw) != "" {
		_ = json.Unmarshal([]byte(raw), &items)
	}
	out := make([]string, 0, len(items))
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := os.Stat(s); err == nil {
			out = append(out, s)
		}
	}
	return out
}

func addRecentImage(p fyne.Preferences, path string) {
	if strings.TrimSpace(path) == "" {
		return
	}
	abs, _ := filepath.Abs(path)
	out := []string{abs}
	for _, s := range loadRecentImages(p) {
		if !strings.EqualFold(s, abs) {
			out = append(out, s)
		}
	}
	if len(out) > recentMax {
		out = out[:recentMax]
	}
	b, _ := json.Marshal(out)
	p.SetString(recentPrefsKey, string(b))
}

func recentItems(p fyne.Preferences, open func(string)) []*fyne.MenuItem {
	paths := loadRecentImages(p)
	if len(paths) == 0 {
		it := fyne.NewMenuItem("(none)", nil)
		it.Disabled = true
		return []*fyne.MenuItem{it}
	}
	items := make([]*fyne.MenuItem, 0, len(paths))
	for _, path := range paths {
		items = append(items, fyne.NewMenuItem(filepath.Base(path), func() { open(path) }))
	}
	return items
}
