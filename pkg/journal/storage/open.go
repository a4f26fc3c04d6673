package storage

import (
	"fmt"
	"log/slog"

	"mercator-hq/turnstile/pkg/config"
	"mercator-hq/turnstile/pkg/journal"
)

// Open builds the backend selected by cfg.Backend.
func Open(cfg *config.JournalConfig, logger *slog.Logger) (journal.Storage, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStorage(), nil
	case "sqlite", "":
		sc := SQLiteConfigFrom(&cfg.SQLite)
		sc.Logger = logger
		return NewSQLiteStorage(sc)
	default:
		return nil, fmt.Errorf("unsupported journal backend %q", cfg.Backend)
	}
}
