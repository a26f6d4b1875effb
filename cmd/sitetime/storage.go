package main

import (
	"fmt"

	"github.com/goodtune/sitetime/internal/config"
	"github.com/goodtune/sitetime/internal/storage"
	"github.com/goodtune/sitetime/internal/storage/badger"
	"github.com/goodtune/sitetime/internal/storage/bolt"
	"github.com/goodtune/sitetime/internal/storage/memory"
	"github.com/goodtune/sitetime/internal/storage/redis"
	"github.com/goodtune/sitetime/internal/storage/sqlite"
	"github.com/rs/zerolog"
)

func openStorage(cfg config.StorageConfig, logger zerolog.Logger) (storage.Store, error) {
	storageType := cfg.Type
	if storageType == "" {
		storageType = config.StorageBolt
	}

	switch storageType {
	case config.StorageBolt:
		return bolt.Open(cfg.Path)
	case config.StorageRedis:
		return redis.Open(cfg.Redis)
	case config.StorageSQLite:
		return sqlite.Open(cfg.Path)
	case config.StorageBadger:
		badgerCfg := badger.DefaultConfig()
		badgerCfg.Path = cfg.Path
		badgerCfg.InMemory = cfg.Badger.InMemory
		badgerCfg.SyncWrites = cfg.Badger.SyncWrites
		badgerCfg.Logger = &logger
		return badger.Open(badgerCfg)
	case config.StorageMemory:
		logger.Warn().Msg("Using in-memory storage, nothing will be persisted")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}
