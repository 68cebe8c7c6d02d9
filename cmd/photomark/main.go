/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"photomark/internal/config"
	"photomark/internal/crash"
	"photomark/internal/export"
	"photomark/internal/gallery"
	applog "photomark/internal/log"
	"photomark/internal/replay"
	"photomark/internal/surface"
	"photomark/internal/telemetry"
	"photomark/internal/ui"
	"photomark/internal/version"
)

// cli carries what every command needs.
type cli struct {
	cfg    config.AppConfig
	secret string
	rescue *crash.Rescue
	out    io.Writer
	log    *slog.Logger
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "photomark: freehand annotation for photos")
	fmt.Fprintf(w, "Version: %s\n", version.String())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  photomark [--verbose] <command>                      Debug logging for this run")
	fmt.Fprintln(w, "  photomark version|-v|--version                       Show version")
	fmt.Fprintln(w, "  photomark annotate <image> <script.yaml> <out> [title]  Replay a script onto an image and save it")
	fmt.Fprintln(w, "  photomark gallery list [limit]                       List saved images, newest first")
	fmt.Fprintln(w, "  photomark ui [<image>]                               Launch desktop UI (build with -tags fyne)")
}

func main() { os.Exit(realMain()) }

func realMain() int {
	// env defaults until the config file has been read
	applog.Init(applog.FromEnv())
	cfg, secret, err := config.Load()
	if err != nil {
		applog.WithComponent("cli").Warn("config not loaded, using defaults", slog.Any("err", err))
	}
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	defer func() { _ = applog.Close() }()

	tc := telemetry.FromEnv()
	tc.OptIn = tc.OptIn || cfg.General.TelemetryOptIn
	tel := telemetry.Install(tc)
	defer tel.Close()

	rescue := &crash.Rescue{Dir: cfg.Export.Dir}
	defer crash.Recover(rescue)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := &cli{cfg: cfg, secret: secret, rescue: rescue, out: os.Stdout, log: applog.WithComponent("cli")}
	code := c.run(ctx, os.Args[1:])
	tel.Flush(ctx)
	return code
}

// run dispatches a command and returns the process exit code:
// 0 success, 1 failure, 2 usage error.
func (c *cli) run(ctx context.Context, args []string) int {
	if len(args) > 0 && args[0] == "--verbose" {
		applog.SetLevel("debug")
		args = args[1:]
	}
	c.log.Debug("start", slog.Int("args", len(args)))
	if len(args) == 0 {
		usage(c.out)
		return 0
	}
	switch args[0] {
	case "version", "--version", "-v":
		fmt.Fprintln(c.out, version.String())
		return 0
	case "annotate":
		if len(args) < 4 {
			fmt.Fprintln(c.out, "annotate requires <image> <script.yaml> <out>")
			usage(c.out)
			return 2
		}
		title := ""
		if len(args) > 4 {
			title = args[4]
		}
		return c.fail(c.annotate(ctx, args[1], args[2], args[3], title))
	case "gallery":
		if len(args) < 2 || args[1] != "list" {
			fmt.Fprintln(c.out, "gallery requires a subcommand: list")
			usage(c.out)
			return 2
		}
		limit := 0
		if len(args) > 2 {
			n, err := strconv.Atoi(args[2])
			if err != nil || n < 0 {
				fmt.Fprintf(c.out, "invalid limit %q\n", args[2])
				return 2
			}
			limit = n
		}
		return c.fail(c.galleryList(ctx, limit))
	case "ui":
		opts := ui.Options{Config: c.cfg, Secret: c.secret}
		if len(args) > 1 {
			opts.ImagePath = args[1]
		}
		return c.fail(ui.Run(opts))
	}
	usage(c.out)
	return 2
}

func (c *cli) fail(err error) int {
	if err == nil {
		return 0
	}
	c.log.Error("command failed", slog.Any("err", err))
	fmt.Fprintln(c.out, "Error:", err)
	return 1
}

// annotate replays a script onto a photo, writes the flattened result to out
// and records it in the gallery when one is configured.
func (c *cli) annotate(ctx context.Context, imagePath, scriptPath, out, title string) error {
	l := applog.WithOperation(c.log, "annotate")
	sc, err := replay.Load(scriptPath)
	if err != nil {
		return err
	}
	if title == "" {
		title = sc.Title
	}
	format, err := export.ParseFormat(strings.TrimPrefix(filepath.Ext(out), "."))
	if err != nil {
		return err
	}

	opts, err := surface.OptionsFromConfig(c.cfg)
	if err != nil {
		return err
	}
	s := surface.New(opts)
	c.rescue.Merged = s.Merged
	srcFormat, err := s.Open(imagePath, c.cfg.Import.TargetWidth, c.cfg.Import.TargetHeight)
	if err != nil {
		return err
	}
	sz := s.Size()
	telemetry.ImageLoaded(sz.X, sz.Y, srcFormat)

	stats, err := replay.Run(ctx, s, sc)
	if err != nil {
		return err
	}
	merged, err := s.Merged()
	if err != nil {
		return err
	}
	if err := export.WriteFile(out, merged, export.Options{
		Format:      format,
		Quality:     c.cfg.Export.JPEGQuality,
		Title:       title,
		Description: sc.Description,
	}); err != nil {
		return err
	}
	st, err := os.Stat(out)
	if err != nil {
		return err
	}
	telemetry.ImageExported(string(format), st.Size(), stats.Active)
	l.Info("annotated", slog.String("out", out), slog.Int("strokes", stats.Active), slog.Int("skipped", stats.Skipped))
	fmt.Fprintf(c.out, "Wrote %s (%d strokes, %d undone)\n", out, stats.Active, stats.Reverted)

	abs, _ := filepath.Abs(out)
	b := merged.Bounds()
	entry := gallery.EntryFor(export.Result{Path: abs, Format: format, Bytes: st.Size(), Width: b.Dx(), Height: b.Dy()}, title, sc.Description)
	store, err := gallery.Open(ctx, c.cfg, c.secret)
	if errors.Is(err, gallery.ErrDisabled) {
		return nil
	}
	if err != nil {
		// the file is already written
		l.Warn("gallery unavailable", slog.Any("err", err))
		fmt.Fprintln(c.out, "Warning: not added to the gallery:", err)
		return nil
	}
	defer store.Close()
	e, err := store.Insert(ctx, entry)
	if err != nil {
		l.Warn("gallery insert failed", slog.Any("err", err))
		fmt.Fprintln(c.out, "Warning: not added to the gallery:", err)
		return nil
	}
	fmt.Fprintf(c.out, "Gallery entry #%d %q\n", e.ID, e.Title)
	return nil
}

func (c *cli) galleryList(ctx context.Context, limit int) error {
	store, err := gallery.Open(ctx, c.cfg, c.secret)
	if err != nil {
		return err
	}
	defer store.Close()
	entries, err := store.List(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.out, "Gallery is empty.")
		return nil
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tTITLE\tSIZE\tFORMAT\tPATH")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%dx%d\t%s\t%s\n",
			e.ID, e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Title, e.Width, e.Height, e.Format, e.Path)
	}
	return tw.Flush()
}
