// Package store opens the grade record store selected by configuration.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/gradebook/internal/config"
	"github.com/JonMunkholm/gradebook/internal/grade"
	"github.com/JonMunkholm/gradebook/internal/store/mongodb"
	"github.com/JonMunkholm/gradebook/internal/store/postgres"
	"github.com/JonMunkholm/gradebook/internal/store/sqlite"
)

// Store is a grade.Store that holds connections and must be closed.
type Store interface {
	grade.Store
	Close(ctx context.Context) error
}

var (
	_ Store = (*postgres.Store)(nil)
	_ Store = (*sqlite.Store)(nil)
	_ Store = (*mongodb.Store)(nil)
)

// Open connects to the engine named by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch driver := strings.ToLower(cfg.Driver); driver {
	case config.DriverPostgres, "":
		return postgres.Open(ctx, cfg)
	case config.DriverSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath)
	case config.DriverMongo:
		return mongodb.Open(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
