// Package app wires a workspace into a running engine: it resolves the
// workspace directory, loads configuration, opens the configured repository
// backend and the events journal.
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"loadboard/internal/config"
	"loadboard/internal/db"
	"loadboard/internal/engine"
	"loadboard/internal/events"
	"loadboard/internal/repo"
)

type Context struct {
	Workspace string
	Config    config.Config
	Repo      repo.Repository
	Journal   *events.Journal
	Engine    *engine.Engine
}

// ResolveWorkspace picks the workspace directory: the explicit flag value,
// then LOADBOARD_WORKSPACE, then the current directory.
func ResolveWorkspace(flagValue string) (string, error) {
	if flagValue != "" {
		return filepath.Abs(flagValue)
	}
	if env := os.Getenv("LOADBOARD_WORKSPACE"); env != "" {
		return filepath.Abs(env)
	}
	return os.Getwd()
}

// Open loads the workspace config and builds the full command stack on top of
// the configured backend. The caller owns Close.
func Open(workspace string) (*Context, error) {
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, err
	}
	r, err := openRepository(workspace, cfg)
	if err != nil {
		return nil, err
	}
	journal := events.NewJournal(
		filepath.Join(workspace, cfg.Events.Path),
		cfg.Events.MaxSizeMB, cfg.Events.MaxBackups)
	eng := engine.New(r, journal, cfg.Routes)
	return &Context{
		Workspace: workspace,
		Config:    cfg,
		Repo:      r,
		Journal:   journal,
		Engine:    eng,
	}, nil
}

func openRepository(workspace string, cfg config.Config) (repo.Repository, error) {
	switch cfg.Storage.Backend {
	case "json":
		return repo.NewJSONStore(filepath.Join(workspace, cfg.Storage.JSONPath))
	case "sqlite":
		conn, err := db.OpenSQLite(filepath.Join(workspace, cfg.Storage.SQLitePath))
		if err != nil {
			return nil, err
		}
		return repo.NewSQLStore(conn, nil), nil
	case "postgres":
		conn, err := db.OpenPostgres(cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return repo.NewSQLStore(conn, db.RebindPostgres), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func (c *Context) Close() error {
	return c.Repo.Close()
}
