package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"k8s.io/klog"

	"github.com/bcaldwell/finimporter/pkg/config"
	"github.com/bcaldwell/finimporter/pkg/postgresutils"
)

// Open connects to the configured database and migrates it.
func Open(ctx context.Context, cfg config.SQLConfig, secrets *config.Secrets) (*SQL, error) {
	var (
		db  *bun.DB
		err error
	)

	switch cfg.Driver {
	case config.DriverPostgres:
		db, err = postgresutils.CreatePostgresClient(ctx, cfg, secrets)
	case config.DriverSQLite, "":
		db, err = OpenSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	s := NewSQL(db)

	err = s.Migrate(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// OpenSQLite opens or creates the database file at path. ":memory:" gives a
// private in-memory database.
func OpenSQLite(path string) (*bun.DB, error) {
	dsn := ":memory:"

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		dsn = "file:" + path + "?_foreign_keys=on&_busy_timeout=5000"
	}

	sqldb, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// one connection keeps an in-memory database alive and serializes writers
	sqldb.SetMaxOpenConns(1)

	if err := sqldb.Ping(); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	klog.V(1).Infof("Opened sqlite database %s", path)

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}
