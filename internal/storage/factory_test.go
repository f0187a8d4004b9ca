package storage

import (
	"path/filepath"
	"testing"

	"hawk-go/internal/config"
	"hawk-go/internal/storage/cache"
	"hawk-go/internal/storage/jsonstore"
	"hawk-go/internal/storage/sqlitestore"
	"hawk-go/internal/testutil"
)

func TestNewStorageFromConfig(t *testing.T) {
	tests := []struct {
		name      string
		storage   config.StorageConfig
		cache     bool
		wantErr   bool
		wantCache bool
	}{
		{name: "json with cache", storage: config.StorageConfig{Type: "json", Path: "hawk.json"}, cache: true, wantCache: true},
		{name: "json without cache", storage: config.StorageConfig{Type: "json", Path: "hawk.json"}},
		{name: "sqlite", storage: config.StorageConfig{Type: "sqlite", Path: "hawk.db"}, cache: true, wantCache: true},
		{name: "sqlite in memory", storage: config.StorageConfig{Type: "sqlite", Path: sqlitestore.MemoryPath}},
		{name: "missing path", storage: config.StorageConfig{Type: "json"}, wantErr: true},
		{name: "unknown type", storage: config.StorageConfig{Type: "mongo", Path: "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cfg := config.NewConfig("node", dir)
			cfg.Storage = tt.storage
			if cfg.Storage.Path != "" && cfg.Storage.Path != sqlitestore.MemoryPath {
				cfg.Storage.Path = filepath.Join(dir, cfg.Storage.Path)
			}
			cfg.Cache.Enabled = tt.cache

			got, err := NewStorageFromConfig(cfg, nil, testutil.FixedClock(), testutil.NewStubIDGenerator())
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewStorageFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if got != nil {
					t.Error("NewStorageFromConfig() should return nil on error")
				}
				return
			}

			if (got.Cache() != nil) != tt.wantCache {
				t.Errorf("Cache() = %v, wantCache %v", got.Cache(), tt.wantCache)
			}
			if tt.wantCache {
				if _, ok := got.Cache().(*cache.Store); !ok {
					t.Errorf("Cache() = %T, want *cache.Store", got.Cache())
				}
			}
			switch tt.storage.Type {
			case "json":
				if _, ok := got.Physical().(*jsonstore.Store); !ok {
					t.Errorf("Physical() = %T, want *jsonstore.Store", got.Physical())
				}
			case "sqlite":
				if _, ok := got.Physical().(*sqlitestore.Store); !ok {
					t.Errorf("Physical() = %T, want *sqlitestore.Store", got.Physical())
				}
			}

			if err := got.Open(); err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer got.Close()
			if _, err := got.FindUserByUUID("id-1"); err != nil {
				t.Errorf("bootstrapped admin not found: %v", err)
			}
		})
	}
}
