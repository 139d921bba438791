// Package repository opens the archive backend selected by configuration.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/vncsmyrnk/livepoll/internal/adapters/repository/memory"
	"github.com/vncsmyrnk/livepoll/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/livepoll/internal/adapters/repository/sqlite"
	"github.com/vncsmyrnk/livepoll/internal/config"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type Stores struct {
	Polls    ports.PollArchive
	Messages ports.MessageStore
	db       *sql.DB
}

func (s *Stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func Open(ctx context.Context, cfg config.Config) (*Stores, error) {
	switch cfg.DatabaseType {
	case config.DatabaseMemory:
		return &Stores{
			Polls:    memory.NewPollArchive(),
			Messages: memory.NewMessageStore(),
		}, nil

	case config.DatabasePostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to reach postgres: %w", err)
		}
		return &Stores{
			Polls:    postgres.NewPollArchive(db),
			Messages: postgres.NewMessageRepository(db),
			db:       db,
		}, nil

	case config.DatabaseSQLite:
		db, err := sqlite.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Polls:    sqlite.NewPollArchive(db),
			Messages: sqlite.NewMessageRepository(db),
			db:       db,
		}, nil
	}

	return nil, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
}
