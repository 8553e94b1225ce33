package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paywire/paywire/internal/platform/timeouts"
	"github.com/paywire/paywire/internal/services/ledger/storage"
	"github.com/paywire/paywire/internal/services/ledger/storage/memory"
	"github.com/paywire/paywire/internal/services/ledger/storage/postgres"
	"github.com/paywire/paywire/internal/services/ledger/storage/sqlite"
)

// StoreKind selects a storage backend.
type StoreKind string

const (
	StoreSQLite   StoreKind = "sqlite"
	StorePostgres StoreKind = "postgres"
	StoreMemory   StoreKind = "memory"
)

// StoreConfig selects and locates the backing store.
type StoreConfig struct {
	Kind        StoreKind
	Path        string
	PostgresDSN string
}

func openStore(ctx context.Context, cfg StoreConfig) (storage.Store, error) {
	switch StoreKind(strings.ToLower(strings.TrimSpace(string(cfg.Kind)))) {
	case StoreSQLite, "":
		return openSQLiteStore(cfg.Path)
	case StorePostgres:
		connectCtx, cancel := context.WithTimeout(ctx, timeouts.StoreConnect)
		defer cancel()
		store, err := postgres.Open(connectCtx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open ledger postgres store: %w", err)
		}
		return store, nil
	case StoreMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
	}
}

func openSQLiteStore(path string) (*sqlite.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = filepath.Join("data", "ledger.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ledger sqlite store: %w", err)
	}
	return store, nil
}
