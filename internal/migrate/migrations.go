// Package migrate applies the embedded schema migrations in version order,
// tracking progress in a schema_version table. The DDL sticks to the common
// subset of SQLite and Postgres; the caller supplies the placeholder rebind
// for its driver.
package migrate

import (
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed sql/*.sql
var migrationFS embed.FS

type migration struct {
	version int
	name    string
	body    string
}

// Run brings the database schema up to the latest embedded version. Already
// applied migrations are skipped; each pending one runs in its own
// transaction. rebind translates `?` placeholders to the driver's style and
// may be nil for drivers that accept `?`.
func Run(db *sql.DB, rebind func(string) string) error {
	if rebind == nil {
		rebind = func(q string) string { return q }
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version    INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	current := 0
	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	pending, err := load()
	if err != nil {
		return err
	}
	for _, m := range pending {
		if m.version <= current {
			continue
		}
		if err := apply(db, rebind, m); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
	}
	return nil
}

func load() ([]migration, error) {
	entries, err := migrationFS.ReadDir("sql")
	if err != nil {
		return nil, err
	}
	var ms []migration
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".sql") {
			continue
		}
		ver, err := strconv.Atoi(strings.SplitN(name, "_", 2)[0])
		if err != nil {
			return nil, fmt.Errorf("bad migration filename %q", name)
		}
		body, err := migrationFS.ReadFile("sql/" + name)
		if err != nil {
			return nil, err
		}
		ms = append(ms, migration{version: ver, name: name, body: string(body)})
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i].version < ms[j].version })
	return ms, nil
}

func apply(db *sql.DB, rebind func(string) string, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(m.body); err != nil {
		tx.Rollback()
		return err
	}
	stamp := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(rebind(`INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`), m.version, stamp); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
