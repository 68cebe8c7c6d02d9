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
	"strconv"
	"strings"
	"time"

	"photomark/internal/version"
)

// schemaVersion tracks the catalog schema. Bump it together with a new
// runMigrations step.
//
//	1: images table
//	2: mime column and created_at index
const schemaVersion = 2

// timeLayout sorts lexically in the same order as the instants it encodes.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type dialect struct {
	name   string
	serial string
}

var (
	sqliteDialect   = dialect{name: DriverSQLite, serial: "INTEGER PRIMARY KEY AUTOINCREMENT"}
	postgresDialect = dialect{name: DriverPostgres, serial: "BIGSERIAL PRIMARY KEY"}
)

// rebind turns ? placeholders into $n for postgres.
func (d dialect) rebind(q string) string {
	if d.name != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) ensureMetaAndVersion(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	ts := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := s.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// A fresh catalog gets the current layout straight from ensureSchema.
		if _, err := s.db.ExecContext(ctx, s.dialect.rebind(`INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`), schemaVersion, appv, ts, ts); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := s.db.ExecContext(ctx, s.dialect.rebind(`UPDATE version SET app=?, updated_at=? WHERE id=1`), appv, ts); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// ensureSchema creates the current layout when the images table is missing.
// Existing tables are left for runMigrations.
func (s *Store) ensureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS images (
			id          ` + s.dialect.serial + `,
			title       TEXT    NOT NULL,
			description TEXT    NOT NULL DEFAULT '',
			path        TEXT    NOT NULL,
			format      TEXT    NOT NULL,
			mime        TEXT    NOT NULL DEFAULT '',
			width       INTEGER NOT NULL DEFAULT 0,
			height      INTEGER NOT NULL DEFAULT 0,
			bytes       BIGINT  NOT NULL DEFAULT 0,
			created_at  TEXT    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_images_created ON images(created_at);`,
	}
	for _, q := range ddl {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure images table: %w", err)
		}
	}
	return nil
}

// SchemaVersion reports the schema number recorded in the version table.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var cur int
	if err := s.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return cur, nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func (s *Store) runMigrations(ctx context.Context) error {
	cur, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if cur > schemaVersion {
		s.log.Warn("catalog schema is newer than this build", "schema", cur, "supported", schemaVersion)
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{
				`ALTER TABLE images ADD COLUMN mime TEXT NOT NULL DEFAULT ''`,
				`CREATE INDEX IF NOT EXISTS idx_images_created ON images(created_at);`,
			}
		}
		if err := s.migrate(ctx, next, stmts); err != nil {
			return err
		}
		s.log.Info("catalog migrated", "schema", next)
		cur = next
	}
	return nil
}

func (s *Store) migrate(ctx context.Context, next int, stmts []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", next, err)
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d stmt failed: %w", next, err)
		}
	}
	if _, err := tx.ExecContext(ctx, s.dialect.rebind(`UPDATE version SET schema=?, updated_at=? WHERE id=1`), next, time.Now().UTC().Format(time.RFC3339)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("migration %d update version: %w", next, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migration %d commit: %w", next, err)
	}
	return nil
}
