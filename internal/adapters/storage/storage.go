// Package storage holds the RoomStore backends.
package storage

import (
	"context"
	"fmt"

	"github.com/dkeye/Huddle/internal/config"
	"github.com/dkeye/Huddle/internal/core"
)

// Open builds the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (core.RoomStore, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		s, err := NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "mongo":
		s, err := NewMongoStore(ctx, &MongoConfig{
			URI:               cfg.MongoURI,
			Database:          cfg.MongoDatabase,
			ConnectionTimeout: cfg.ConnectTimeout,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownDriver, cfg.Driver)
	}
}
