/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package gallery keeps a catalog of saved annotated images. Only raster
// metadata is stored (path, title, description, size); strokes never leave
// the editing session.
package gallery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"photomark/internal/config"
	"photomark/internal/export"
	applog "photomark/internal/log"

	// Server catalog over database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"

	// FileName is the sqlite catalog created in the export directory when no DSN is configured.
	FileName = "gallery.db"
)

var (
	ErrNotFound = errors.New("gallery: entry not found")
	// ErrDisabled is returned by Open when the configured driver is "none".
	ErrDisabled = errors.New("gallery: disabled")
)

// Entry is one saved image.
type Entry struct {
	ID          int64
	Title       string
	Description string
	Path        string
	Format      string
	MIME        string
	Width       int
	Height      int
	Bytes       int64
	CreatedAt   time.Time
}

// EntryFor describes an export result for the catalog.
func EntryFor(res export.Result, title, description string) Entry {
	return Entry{
		Title:       title,
		Description: description,
		Path:        res.Path,
		Format:      string(res.Format),
		MIME:        res.Format.MIME(),
		Width:       res.Width,
		Height:      res.Height,
		Bytes:       res.Bytes,
	}
}

// Store is an open catalog. It is safe for concurrent use as far as the
// underlying *sql.DB is.
type Store struct {
	db      *sql.DB
	dialect dialect
	log     *slog.Logger
}

var now = time.Now

// Open connects to the catalog described by cfg.Gallery and brings its schema
// up to date. For sqlite an empty DSN means FileName inside cfg.Export.Dir.
// For postgres, secret (from the OS keychain) is filled in as the password
// when the DSN carries a user without one.
func Open(ctx context.Context, cfg config.AppConfig, secret string) (*Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Gallery.Driver))
	if driver == "" {
		driver = DriverSQLite
	}
	l := applog.WithOperation(applog.WithComponent("gallery"), "open").With(slog.String("driver", driver))
	var (
		s   *Store
		err error
	)
	switch driver {
	case DriverNone:
		return nil, ErrDisabled
	case DriverSQLite:
		path := strings.TrimSpace(cfg.Gallery.DSN)
		if path == "" {
			path = filepath.Join(cfg.Export.Dir, FileName)
		}
		s, err = openSQLite(ctx, path, l)
	case DriverPostgres:
		s, err = openPostgres(ctx, cfg.Gallery.DSN, secret, l)
	default:
		return nil, fmt.Errorf("gallery: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.ensureMetaAndVersion(ctx); err != nil {
		_ = s.db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		_ = s.db.Close()
		l.Error("ensure schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := s.runMigrations(ctx); err != nil {
		_ = s.db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Info("gallery ready")
	return s, nil
}

func openSQLite(ctx context.Context, path string, l *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.Error("create gallery dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create gallery dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	return &Store{db: db, dialect: sqliteDialect, log: applog.WithComponent("gallery")}, nil
}

func openPostgres(ctx context.Context, dsn, secret string, l *slog.Logger) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("gallery: postgres driver needs a dsn")
	}
	dsn, err := withPassword(dsn, secret)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		l.Error("postgres ping failed", slog.Any("err", err))
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &Store{db: db, dialect: postgresDialect, log: applog.WithComponent("gallery")}, nil
}

// withPassword fills secret into a URL-style DSN whose user has no password.
// Keyword/value DSNs and DSNs that already carry a password are left alone.
func withPassword(dsn, secret string) (string, error) {
	if secret == "" || !strings.Contains(dsn, "://") {
		return dsn, nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("gallery: parse dsn: %w", err)
	}
	if u.User == nil {
		return dsn, nil
	}
	if _, set := u.User.Password(); set {
		return dsn, nil
	}
	u.User = url.UserPassword(u.User.Username(), secret)
	return u.String(), nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Insert stores e and returns it with ID and CreatedAt filled in. An empty
// title falls back to the file name.
func (s *Store) Insert(ctx context.Context, e Entry) (Entry, error) {
	if strings.TrimSpace(e.Path) == "" {
		return Entry{}, errors.New("gallery: entry path is required")
	}
	if strings.TrimSpace(e.Title) == "" {
		e.Title = filepath.Base(e.Path)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now()
	}
	e.CreatedAt = e.CreatedAt.UTC()
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(`INSERT INTO images
		(title, description, path, format, mime, width, height, bytes, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		e.Title, e.Description, e.Path, e.Format, e.MIME, e.Width, e.Height, e.Bytes, e.CreatedAt.Format(timeLayout),
	).Scan(&e.ID)
	if err != nil {
		return Entry{}, fmt.Errorf("insert image: %w", err)
	}
	s.log.Info("image saved", slog.Int64("id", e.ID), slog.String("title", e.Title), slog.String("path", e.Path))
	return e, nil
}

const selectColumns = `SELECT id, title, description, path, format, mime, width, height, bytes, created_at FROM images`

// List returns entries newest first. limit <= 0 returns all of them.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	q := selectColumns + ` ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return out, nil
}

// Get returns the entry with id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (Entry, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(selectColumns+` WHERE id=?`), id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return e, err
}

// Delete removes the catalog row; the image file itself stays on disk.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(`DELETE FROM images WHERE id=?`), id)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

type scanner interface{ Scan(dest ...any) error }

func scanEntry(sc scanner) (Entry, error) {
	var (
		e  Entry
		ts string
	)
	if err := sc.Scan(&e.ID, &e.Title, &e.Description, &e.Path, &e.Format, &e.MIME, &e.Width, &e.Height, &e.Bytes, &ts); err != nil {
		return Entry{}, err
	}
	t, err := time.Parse(timeLayout, ts)
	if err != nil {
		return Entry{}, fmt.Errorf("image %d: bad created_at %q: %w", e.ID, ts, err)
	}
	e.CreatedAt = t
	return e, nil
}
