package storage

import (
	"fmt"
	"time"

	"hawk-go/internal/config"
	"hawk-go/internal/hawk"
	"hawk-go/internal/storage/cache"
	"hawk-go/internal/storage/jsonstore"
	"hawk-go/internal/storage/sqlitestore"
)

// NewStorageFromConfig builds the physical storage named by cfg.Storage and
// puts a cache in front of it when cfg.Cache is enabled. The result is not
// opened.
func NewStorageFromConfig(cfg *config.Config, logger hawk.Logger, clock hawk.Clock, idgen hawk.IDGenerator) (*Combined, error) {
	if cfg.Storage.Path == "" {
		return nil, fmt.Errorf("storage path required for %s storage", cfg.Storage.Type)
	}

	var hard hawk.Storage
	switch cfg.Storage.Type {
	case "json":
		hard = jsonstore.New(cfg.Storage.Path, logger, clock, idgen)
	case "sqlite":
		hard = sqlitestore.New(cfg.Storage.Path, logger, clock, idgen)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}

	var c hawk.CacheStorage
	if cfg.Cache.Enabled {
		c = cache.New(time.Duration(cfg.Cache.Lifetime), time.Duration(cfg.Cache.SweepInterval), logger, clock)
	}
	return NewCombined(hard, c, logger), nil
}
