package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/sizhen/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sizhen/internal/adapters/driven/storage/mongo"
	"github.com/custodia-labs/sizhen/internal/adapters/driven/storage/redis"
	"github.com/custodia-labs/sizhen/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sizhen/internal/core/domain"
	"github.com/custodia-labs/sizhen/internal/core/ports/driven"
	"github.com/custodia-labs/sizhen/internal/logger"
)

// stores holds the configured report and progress stores and whatever
// connections back them.
type stores struct {
	reports  driven.ReportStore
	progress driven.ProgressStore
	closers  []func() error
}

// Close releases every connection, logging failures.
func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logger.Warn("closing store: %v", err)
		}
	}
}

// openStores builds the stores selected in settings. SQLite is opened once
// when both stores use it.
func openStores(ctx context.Context, configDir string, settings *domain.AppSettings) (*stores, error) {
	s := &stores{}

	var sqliteStore *sqlite.Store
	openSQLite := func() (*sqlite.Store, error) {
		if sqliteStore != nil {
			return sqliteStore, nil
		}
		dir := settings.Storage.Dir
		if dir == "" {
			dir = filepath.Join(configDir, "data")
		}
		store, err := sqlite.NewStore(dir)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		sqliteStore = store
		s.closers = append(s.closers, store.Close)
		return store, nil
	}

	switch settings.Storage.Backend {
	case domain.StorageMemory:
		s.reports = memory.NewReportStore()
	case domain.StorageSQLite, "":
		store, err := openSQLite()
		if err != nil {
			return nil, err
		}
		s.reports = store.ReportStore()
	case domain.StorageMongo:
		client, err := mongo.Connect(ctx, settings.Storage.MongoURI)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() error {
			return client.Disconnect(context.Background())
		})
		reports := mongo.NewReportStore(client.Database(settings.Storage.MongoDatabase))
		if err := reports.EnsureIndexes(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("creating mongo indexes: %w", err)
		}
		s.reports = reports
	default:
		return nil, fmt.Errorf("%w: storage backend %q", domain.ErrUnsupportedType, settings.Storage.Backend)
	}

	switch settings.Progress.Backend {
	case domain.ProgressMemory:
		s.progress = memory.NewProgressStore()
	case domain.ProgressSQLite, "":
		store, err := openSQLite()
		if err != nil {
			s.Close()
			return nil, err
		}
		s.progress = store.ProgressStore()
	case domain.ProgressRedis:
		client := redis.NewClient(settings.Progress.RedisAddr, settings.Progress.RedisPassword, settings.Progress.RedisDB)
		s.closers = append(s.closers, client.Close)
		s.progress = redis.NewProgressStore(client, settings.Progress.TTL)
	default:
		s.Close()
		return nil, fmt.Errorf("%w: progress backend %q", domain.ErrUnsupportedType, settings.Progress.Backend)
	}

	logger.Debug("stores: reports=%s progress=%s", settings.Storage.Backend, settings.Progress.Backend)
	return s, nil
}
