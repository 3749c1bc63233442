// Package db opens the relational backends and runs migrations on open.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"loadboard/internal/migrate"
)

// OpenSQLite opens (creating if needed) the SQLite database at path and
// brings its schema up to date. WAL keeps readers unblocked during writes.
func OpenSQLite(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// modernc sqlite serializes writes per connection; a single connection
	// avoids SQLITE_BUSY under concurrent handlers.
	conn.SetMaxOpenConns(1)
	if err := migrate.Run(conn, nil); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// OpenPostgres connects via the pgx stdlib driver and brings the schema up to
// date using $n placeholders.
func OpenPostgres(dsn string) (*sql.DB, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := migrate.Run(conn, RebindPostgres); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// RebindPostgres rewrites `?` placeholders as positional $1..$n. Queries here
// never carry `?` inside string literals, so a plain scan suffices.
func RebindPostgres(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
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
