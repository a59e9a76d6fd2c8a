package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonhub/booking-sync/internal/config"
	"github.com/salonhub/booking-sync/internal/idempotency"
	"github.com/salonhub/booking-sync/internal/state"
)

func storageConfig(t *testing.T, storageType string) *config.Config {
	t.Helper()
	dataDir := filepath.Join(t.TempDir(), "nested", "data")
	return &config.Config{
		Storage: config.StorageConfig{
			Type:       storageType,
			DataDir:    dataDir,
			SQLitePath: filepath.Join(dataDir, "booking-sync.db"),
		},
	}
}

func TestNewStorageFactory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      func(t *testing.T) *config.Config
		wantType Factory
		errMsg   string
	}{
		{
			name:     "file storage",
			cfg:      func(t *testing.T) *config.Config { return storageConfig(t, config.StorageTypeFile) },
			wantType: &FileFactory{},
		},
		{
			name:     "empty type defaults to file",
			cfg:      func(t *testing.T) *config.Config { return storageConfig(t, "") },
			wantType: &FileFactory{},
		},
		{
			name:     "sqlite storage",
			cfg:      func(t *testing.T) *config.Config { return storageConfig(t, config.StorageTypeSQLite) },
			wantType: &SQLiteFactory{},
		},
		{
			name:   "database storage without settings",
			cfg:    func(t *testing.T) *config.Config { return storageConfig(t, config.StorageTypeDatabase) },
			errMsg: "database configuration is required",
		},
		{
			name:   "unknown storage type",
			cfg:    func(t *testing.T) *config.Config { return storageConfig(t, "s3") },
			errMsg: "unknown storage type: s3",
		},
		{
			name:   "nil config",
			cfg:    func(*testing.T) *config.Config { return nil },
			errMsg: "config cannot be nil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			factory, err := NewStorageFactory(context.Background(), tt.cfg(t))
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			t.Cleanup(factory.Cleanup)
			assert.IsType(t, tt.wantType, factory)
		})
	}
}

// factoryContract checks that a factory's components work and that its
// idempotency store and directory share the factory's backend
func factoryContract(t *testing.T, factory Factory) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, factory.CheckReadiness(ctx))

	store, err := factory.CreateStateStore(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Initialize(ctx))
	_, err = store.Snapshot(ctx)
	assert.ErrorIs(t, err, state.ErrNoSnapshot)

	sent, err := factory.CreateIdempotencyStore(ctx)
	require.NoError(t, err)
	key := idempotency.Key{RecordID: 7, Type: "post_visit", DedupeKey: "2026-03-01:post"}
	require.NoError(t, sent.MarkSent(ctx, key, time.Now()))
	isSent, err := sent.IsSent(ctx, key)
	require.NoError(t, err)
	assert.True(t, isSent)

	links, err := factory.CreateDirectory(ctx)
	require.NoError(t, err)
	require.NoError(t, links.Link(ctx, "+7 (900) 123-45-67", "555"))
	chatID, found, err := links.Lookup(ctx, "89001234567")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "555", chatID)
}

func TestFileFactory(t *testing.T) {
	t.Parallel()

	cfg := storageConfig(t, config.StorageTypeFile)
	factory, err := NewFileFactory(cfg)
	require.NoError(t, err)
	t.Cleanup(factory.Cleanup)

	factoryContract(t, factory)

	assert.FileExists(t, filepath.Join(cfg.Storage.DataDir, idempotency.FileName))
}

func TestSQLiteFactory(t *testing.T) {
	t.Parallel()

	cfg := storageConfig(t, config.StorageTypeSQLite)
	factory, err := NewSQLiteFactory(context.Background(), cfg)
	require.NoError(t, err)

	factoryContract(t, factory)

	// Migrations are idempotent across restarts
	factory.Cleanup()
	reopened, err := NewSQLiteFactory(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(reopened.Cleanup)

	links, err := reopened.CreateDirectory(context.Background())
	require.NoError(t, err)
	_, found, err := links.Lookup(context.Background(), "79001234567")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestDatabaseFactory(t *testing.T) {
	t.Parallel()

	t.Run("readiness pings the pool", func(t *testing.T) {
		t.Parallel()

		mock, err := pgxmock.NewPool()
		require.NoError(t, err)

		factory, err := NewDatabaseFactoryWithPool(storageConfig(t, config.StorageTypeDatabase), mock)
		require.NoError(t, err)

		mock.ExpectPing()
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
		mock.ExpectClose()

		assert.NoError(t, factory.CheckReadiness(context.Background()))
		err = factory.CheckReadiness(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database unreachable")

		factory.Cleanup()
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("components use the pool", func(t *testing.T) {
		t.Parallel()

		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		factory, err := NewDatabaseFactoryWithPool(storageConfig(t, config.StorageTypeDatabase), mock)
		require.NoError(t, err)

		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(int64(7), "post_visit", "2026-03-01:post").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

		sent, err := factory.CreateIdempotencyStore(context.Background())
		require.NoError(t, err)
		isSent, err := sent.IsSent(context.Background(),
			idempotency.Key{RecordID: 7, Type: "post_visit", DedupeKey: "2026-03-01:post"})
		require.NoError(t, err)
		assert.True(t, isSent)

		_, err = factory.CreateDirectory(context.Background())
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil pool", func(t *testing.T) {
		t.Parallel()

		_, err := NewDatabaseFactoryWithPool(storageConfig(t, config.StorageTypeDatabase), nil)
		assert.EqualError(t, err, "connection pool cannot be nil")
	})
}
