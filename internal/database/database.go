package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	_ "modernc.org/sqlite"

	"quarklog/internal/config"
)

var sqlOpen = sql.Open

var uriPathEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// BuildSQLiteDSN constructs a SQLite URI filename for the modernc driver.
// Example: file:app_data.db?_pragma=busy_timeout(5000)
func BuildSQLiteDSN(c config.StoreConfig) (string, error) {
	if c.Path == "" {
		return "", fmt.Errorf("invalid store config: path is required")
	}

	params := make([]string, 0, 2)
	if c.ReadOnly {
		params = append(params, "mode=ro")
	}
	if c.BusyTimeoutMS > 0 {
		params = append(params, fmt.Sprintf("_pragma=busy_timeout(%d)", c.BusyTimeoutMS))
	}

	dsn := "file:" + uriPathEscaper.Replace(filepath.ToSlash(c.Path))
	if len(params) > 0 {
		dsn += "?" + strings.Join(params, "&")
	}
	return dsn, nil
}

// NewSQLite opens a database/sql handle on the SQLite file described by c, wrapped
// with otelsql, and applies pooling settings. The parent directory is created unless
// the store is read-only.
func NewSQLite(c config.StoreConfig) (*sql.DB, error) {
	dsn, err := BuildSQLiteDSN(c)
	if err != nil {
		return nil, err
	}

	if !c.ReadOnly {
		if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	driverName, err := otelsql.Register("sqlite",
		otelsql.WithAttributes(semconv.DBSystemSqlite),
		otelsql.WithSpanOptions(otelsql.SpanOptions{OmitConnResetSession: true}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register otelsql: %w", err)
	}

	db, err := sqlOpen(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}

	if c.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.MaxOpenConns)
		db.SetMaxIdleConns(c.MaxOpenConns)
	}
	if c.ConnMaxLifetimeSec > 0 {
		db.SetConnMaxLifetime(time.Duration(c.ConnMaxLifetimeSec) * time.Second)
	}

	// Opening is lazy; ping so a missing or unreadable file fails here.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return db, nil
}
