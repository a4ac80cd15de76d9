package database

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"quarklog/internal/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSQLiteDSN(t *testing.T) {
	tests := []struct {
		name    string
		config  config.StoreConfig
		want    string
		wantErr bool
	}{
		{
			name:   "relative path with busy timeout",
			config: config.StoreConfig{Path: "app_data.db", BusyTimeoutMS: 5000},
			want:   "file:app_data.db?_pragma=busy_timeout(5000)",
		},
		{
			name:   "absolute path read-only",
			config: config.StoreConfig{Path: "/var/lib/quarklog/app.db", ReadOnly: true, BusyTimeoutMS: 100},
			want:   "file:/var/lib/quarklog/app.db?mode=ro&_pragma=busy_timeout(100)",
		},
		{
			name:   "no params",
			config: config.StoreConfig{Path: "app.db"},
			want:   "file:app.db",
		},
		{
			name:   "reserved characters escaped",
			config: config.StoreConfig{Path: "dir#1/what?.db"},
			want:   "file:dir%231/what%3f.db",
		},
		{
			name:    "missing path",
			config:  config.StoreConfig{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildSQLiteDSN(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNewSQLite(t *testing.T) {
	newConf := func(t *testing.T) config.StoreConfig {
		return config.StoreConfig{
			Path:               filepath.Join(t.TempDir(), "nested", "app.db"),
			BusyTimeoutMS:      5000,
			MaxOpenConns:       1,
			ConnMaxLifetimeSec: 300,
		}
	}

	t.Run("success", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		origSqlOpen := sqlOpen
		var gotDSN string
		sqlOpen = func(driverName, dataSourceName string) (*sql.DB, error) {
			gotDSN = dataSourceName
			return db, nil
		}
		defer func() { sqlOpen = origSqlOpen }()

		mock.ExpectPing()

		conf := newConf(t)
		gotDB, err := NewSQLite(conf)
		assert.NoError(t, err)
		assert.NotNil(t, gotDB)
		assert.Contains(t, gotDSN, "busy_timeout(5000)")
		assert.DirExists(t, filepath.Dir(conf.Path))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sqlOpen error", func(t *testing.T) {
		origSqlOpen := sqlOpen
		sqlOpen = func(driverName, dataSourceName string) (*sql.DB, error) {
			return nil, errors.New("open error")
		}
		defer func() { sqlOpen = origSqlOpen }()

		gotDB, err := NewSQLite(newConf(t))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "sql open: open error")
		assert.Nil(t, gotDB)
	})

	t.Run("ping error", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		// NewSQLite closes db on ping error

		origSqlOpen := sqlOpen
		sqlOpen = func(driverName, dataSourceName string) (*sql.DB, error) {
			return db, nil
		}
		defer func() { sqlOpen = origSqlOpen }()

		mock.ExpectPing().WillReturnError(errors.New("ping failed"))
		mock.ExpectClose()

		gotDB, err := NewSQLite(newConf(t))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "db ping: ping failed")
		assert.Nil(t, gotDB)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("directory cannot be created", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(blocker, nil, 0o600))

		gotDB, err := NewSQLite(config.StoreConfig{Path: filepath.Join(blocker, "app.db")})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "create store directory")
		assert.Nil(t, gotDB)
	})

	t.Run("invalid DSN", func(t *testing.T) {
		gotDB, err := NewSQLite(config.StoreConfig{})
		assert.Error(t, err)
		assert.Nil(t, gotDB)
	})
}

func TestNewSQLite_RealFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")

	db, err := NewSQLite(config.StoreConfig{Path: path, BusyTimeoutMS: 1000, MaxOpenConns: 1})
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("CREATE TABLE t (x INTEGER)")
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestNewSQLite_ReadOnlyMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")

	db, err := NewSQLite(config.StoreConfig{Path: path, ReadOnly: true})
	assert.Error(t, err)
	assert.Nil(t, db)
	assert.NoFileExists(t, path)
}
