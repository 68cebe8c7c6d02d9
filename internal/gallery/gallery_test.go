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
	"database/sql"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"photomark/internal/config"
	"photomark/internal/export"
)

func testConfig(t *testing.T) config.AppConfig {
	t.Helper()
	cfg := config.Defaults()
	cfg.Export.Dir = t.TempDir()
	cfg.Gallery = config.GalleryConfig{Driver: DriverSQLite}
	return cfg
}

func openTest(t *testing.T, cfg config.AppConfig) *Store {
	t.Helper()
	s, err := Open(context.Background(), cfg, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// fixedClock makes now() tick one second per call.
func fixedClock(t *testing.T) {
	t.Helper()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	old := now
	now = func() time.Time { n++; return base.Add(time.Duration(n) * time.Second) }
	t.Cleanup(func() { now = old })
}

func TestOpenCreatesCatalogInExportDir(t *testing.T) {
	cfg := testConfig(t)
	s := openTest(t, cfg)
	if _, err := os.Stat(filepath.Join(cfg.Export.Dir, FileName)); err != nil {
		t.Fatalf("catalog file missing: %v", err)
	}
	v, err := s.SchemaVersion(context.Background())
	if err != nil || v != schemaVersion {
		t.Fatalf("schema = %d, %v", v, err)
	}
}

func TestInsertListGetDelete(t *testing.T) {
	fixedClock(t)
	s := openTest(t, testConfig(t))
	ctx := context.Background()

	first, err := s.Insert(ctx, EntryFor(export.Result{Path: "/p/a.jpg", Format: export.JPEG, Bytes: 10, Width: 4, Height: 3}, "Harbour", "red circle around the boat"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	second, err := s.Insert(ctx, Entry{Path: "/p/b.png", Format: "png"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if first.ID == 0 || second.ID == first.ID {
		t.Fatalf("ids not assigned: %d %d", first.ID, second.ID)
	}
	if second.Title != "b.png" {
		t.Fatalf("empty title should fall back to file name, got %q", second.Title)
	}

	list, err := s.List(ctx, 0)
	if err != nil || len(list) != 2 {
		t.Fatalf("List = %v, %v", list, err)
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("List not newest first: %d, %d", list[0].ID, list[1].ID)
	}
	if limited, _ := s.List(ctx, 1); len(limited) != 1 || limited[0].ID != second.ID {
		t.Fatalf("List(1) = %v", limited)
	}

	got, err := s.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Harbour" || got.Description != "red circle around the boat" || got.MIME != "image/jpeg" ||
		got.Width != 4 || got.Height != 3 || got.Bytes != 10 || !got.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("Get mismatch: %+v vs %+v", got, first)
	}

	if err := s.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete should report ErrNotFound, got %v", err)
	}
}

func TestInsertRequiresPath(t *testing.T) {
	s := openTest(t, testConfig(t))
	if _, err := s.Insert(context.Background(), Entry{Title: "x"}); err == nil {
		t.Fatalf("expected error for entry without path")
	}
}

func TestCatalogSurvivesReopen(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	s, err := Open(ctx, cfg, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	e, err := s.Insert(ctx, Entry{Path: "/p/c.tiff", Title: "kept"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	_ = s.Close()

	s2 := openTest(t, cfg)
	got, err := s2.Get(ctx, e.ID)
	if err != nil || got.Title != "kept" {
		t.Fatalf("entry lost across reopen: %+v, %v", got, err)
	}
}

func TestMigratesV1Catalog(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(cfg.Export.Dir, FileName)
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(2000)", filepath.ToSlash(path)))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	ctx := context.Background()
	stmts := []string{
		`CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT NOT NULL);`,
		`CREATE TABLE version (id INTEGER PRIMARY KEY CHECK(id=1), schema INTEGER NOT NULL, app TEXT, created_at TEXT NOT NULL, updated_at TEXT NOT NULL);`,
		`INSERT INTO version(id, schema, app, created_at, updated_at) VALUES(1, 1, 'test', '2020-01-01T00:00:00Z', '2020-01-01T00:00:00Z');`,
		`CREATE TABLE images (id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT NOT NULL, description TEXT NOT NULL DEFAULT '', path TEXT NOT NULL, format TEXT NOT NULL, width INTEGER NOT NULL DEFAULT 0, height INTEGER NOT NULL DEFAULT 0, bytes BIGINT NOT NULL DEFAULT 0, created_at TEXT NOT NULL);`,
		`INSERT INTO images(title, path, format, created_at) VALUES('old', '/p/old.jpg', 'jpeg', '2020-01-01T00:00:00.000000000Z');`,
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			t.Fatalf("seed v1 schema: %v (q=%s)", err, q)
		}
	}
	_ = db.Close()

	s := openTest(t, cfg)
	if v, _ := s.SchemaVersion(ctx); v != schemaVersion {
		t.Fatalf("schema after migration = %d", v)
	}
	list, err := s.List(ctx, 0)
	if err != nil || len(list) != 1 || list[0].Title != "old" || list[0].MIME != "" {
		t.Fatalf("v1 row not readable after migration: %+v, %v", list, err)
	}
}

func TestOpenDriverSelection(t *testing.T) {
	cfg := testConfig(t)
	cfg.Gallery.Driver = DriverNone
	if _, err := Open(context.Background(), cfg, ""); !errors.Is(err, ErrDisabled) {
		t.Fatalf("driver none: %v", err)
	}
	cfg.Gallery.Driver = "mongodb"
	if _, err := Open(context.Background(), cfg, ""); err == nil {
		t.Fatalf("unknown driver accepted")
	}
	cfg.Gallery = config.GalleryConfig{Driver: DriverPostgres}
	if _, err := Open(context.Background(), cfg, ""); err == nil {
		t.Fatalf("postgres without dsn accepted")
	}
}

func TestWithPassword(t *testing.T) {
	cases := []struct{ dsn, secret, want string }{
		{"postgres://pm@db:5432/photos?sslmode=disable", "pw", "postgres://pm:pw@db:5432/photos?sslmode=disable"},
		{"postgres://pm:keep@db/photos", "pw", "postgres://pm:keep@db/photos"},
		{"postgres://db/photos", "pw", "postgres://db/photos"},
		{"host=db user=pm", "pw", "host=db user=pm"},
		{"postgres://pm@db/photos", "", "postgres://pm@db/photos"},
	}
	for _, c := range cases {
		got, err := withPassword(c.dsn, c.secret)
		if err != nil || got != c.want {
			t.Errorf("withPassword(%q) = %q, %v; want %q", c.dsn, got, err, c.want)
		}
	}
}

func TestRebind(t *testing.T) {
	q := `SELECT a FROM t WHERE id=? AND b=?`
	if got := sqliteDialect.rebind(q); got != q {
		t.Fatalf("sqlite rebind changed query: %q", got)
	}
	if got := postgresDialect.rebind(q); !strings.HasSuffix(got, "id=$1 AND b=$2") {
		t.Fatalf("postgres rebind = %q", got)
	}
}

// TestPostgresRoundTrip runs against a live server when PM_TEST_PG_DSN is set.
func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("PM_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("PM_TEST_PG_DSN not set")
	}
	cfg := testConfig(t)
	cfg.Gallery = config.GalleryConfig{Driver: DriverPostgres, DSN: dsn}
	s := openTest(t, cfg)
	ctx := context.Background()
	e, err := s.Insert(ctx, Entry{Path: "/p/pg.jpg", Title: "pg", Format: "jpeg"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	t.Cleanup(func() { _ = s.Delete(ctx, e.ID) })
	got, err := s.Get(ctx, e.ID)
	if err != nil || got.Title != "pg" {
		t.Fatalf("Get = %+v, %v", got, err)
	}
}

func TestPublishWritesFileAndCatalogs(t *testing.T) {
	cfg := testConfig(t)
	cfg.Export.Format = "png"
	img := image.NewRGBA(image.Rect(0, 0, 12, 9))
	ctx := context.Background()

	e, err := Publish(ctx, cfg, "", img, "Harbour", "boats")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if e.ID == 0 || e.MIME != "image/png" || e.Width != 12 || e.Height != 9 || e.Bytes == 0 {
		t.Fatalf("entry = %+v", e)
	}
	if _, err := os.Stat(e.Path); err != nil {
		t.Fatalf("exported file missing: %v", err)
	}
	s := openTest(t, cfg)
	if got, err := s.Get(ctx, e.ID); err != nil || got.Path != e.Path {
		t.Fatalf("catalog row = %+v, %v", got, err)
	}

	cfg.Gallery.Driver = DriverNone
	e, err = Publish(ctx, cfg, "", img, "", "")
	if err != nil || e.ID != 0 || e.Path == "" {
		t.Fatalf("disabled gallery should still export: %+v, %v", e, err)
	}

	cfg.Export.Format = "gif"
	if _, err := Publish(ctx, cfg, "", img, "", ""); err == nil {
		t.Fatalf("unknown export format accepted")
	}
}

func TestPublishAppliesPreset(t *testing.T) {
	cfg := testConfig(t)
	cfg.Export.Format = "png"
	cfg.Export.Preset = "web"
	e, err := Publish(context.Background(), cfg, "", image.NewRGBA(image.Rect(0, 0, 4096, 8)), "wide", "")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if e.Format != "jpeg" || e.Width != 2048 || e.Height != 4 {
		t.Fatalf("preset not applied: %+v", e)
	}

	cfg.Export.Preset = "poster"
	if _, err := Publish(context.Background(), cfg, "", image.NewRGBA(image.Rect(0, 0, 8, 8)), "", ""); err == nil {
		t.Fatalf("unknown preset accepted")
	}
}

// blockInserts makes every catalog insert fail from now on.
func blockInserts(t *testing.T, cfg config.AppConfig) {
	t.Helper()
	s := openTest(t, cfg)
	q := `CREATE TRIGGER block_images BEFORE INSERT ON images BEGIN SELECT RAISE(ABORT, 'catalog full'); END;`
	if _, err := s.db.ExecContext(context.Background(), q); err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	_ = s.Close()
}

func TestPublishKeepsFileWhenInsertFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Export.Format = "png"
	blockInserts(t, cfg)

	e, err := Publish(context.Background(), cfg, "", image.NewRGBA(image.Rect(0, 0, 6, 4)), "Harbour", "")
	if err == nil || !strings.Contains(err.Error(), "not catalogued") {
		t.Fatalf("expected catalog error, got %v", err)
	}
	if e.Path == "" || e.ID != 0 || e.Width != 6 {
		t.Fatalf("entry for the written file lost: %+v", e)
	}
	if _, statErr := os.Stat(e.Path); statErr != nil {
		t.Fatalf("exported file missing: %v", statErr)
	}
}
