package postgresutils

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"k8s.io/klog"

	"github.com/bcaldwell/finimporter/pkg/config"
)

const defaultPort = "5432"

// CreatePostgresClient connects to the configured database, creating it first
// when individual SQL secrets are used. Connection attempts are retried until
// cfg.ConnectTimeout runs out.
func CreatePostgresClient(ctx context.Context, cfg config.SQLConfig, secrets *config.Secrets) (*bun.DB, error) {
	var pgconn *pgdriver.Connector

	// bypass creating of db if database_url is set, the database is managed elsewhere then
	if secrets.DatabaseURL == "" {
		err := retry(ctx, cfg.ConnectTimeout.Duration, func() error {
			return ensureDBExists(ctx, cfg.Database, secrets.SQL)
		})
		if err != nil {
			return nil, err
		}

		pgconn = pgdriver.NewConnector(
			pgdriver.WithAddr(hostWithPort(secrets.SQL.SqlHost)),
			pgdriver.WithInsecure(true),
			pgdriver.WithUser(secrets.SQL.SqlUsername),
			pgdriver.WithPassword(secrets.SQL.SqlPassword),
			pgdriver.WithDatabase(cfg.Database),
		)
	} else {
		// this panics if its invalid
		pgconn = pgdriver.NewConnector(pgdriver.WithDSN(secrets.DatabaseURL))
	}

	sqldb := sql.OpenDB(pgconn)
	db := bun.NewDB(sqldb, pgdialect.New())

	err := retry(ctx, cfg.ConnectTimeout.Duration, func() error {
		return db.PingContext(ctx)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return db, nil
}

func ensureDBExists(ctx context.Context, database string, secrets config.SqlSecrets) error {
	pgconn := pgdriver.NewConnector(
		pgdriver.WithAddr(hostWithPort(secrets.SqlHost)),
		pgdriver.WithInsecure(true),
		pgdriver.WithUser(secrets.SqlUsername),
		pgdriver.WithPassword(secrets.SqlPassword),
		pgdriver.WithDatabase("postgres"),
	)

	db := bun.NewDB(sql.OpenDB(pgconn), pgdialect.New())
	defer db.Close()

	exists, err := db.NewSelect().
		TableExpr("pg_database").
		Where("datname = ?", database).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to get list of databases: %w", err)
	}

	if !exists {
		klog.Infof("Creating database %s in postgres", database)
		_, err := db.ExecContext(ctx, "CREATE DATABASE ?", bun.Ident(database))
		if err != nil {
			return fmt.Errorf("failed to create database %s: %w", database, err)
		}
	}

	return nil
}

func retry(ctx context.Context, timeout time.Duration, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = timeout

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err != nil {
			klog.V(1).Infof("database not ready (attempt %d): %v", attempt, err)
		}
		return err
	}, backoff.WithContext(b, ctx))
}

// slightly silly logic to add port if missing
func hostWithPort(host string) string {
	if host == "" {
		host = "localhost"
	}

	if !strings.Contains(host, ":") {
		host += ":" + defaultPort
	}

	return host
}

// TableSetString builds the SET clause of an upsert that overwrites every
// column of model's table with the conflicting row's value.
func TableSetString(db bun.IDB, model interface{}, exclude ...string) string {
	t := db.Dialect().Tables().Get(reflect.TypeOf(model).Elem())
	if t == nil {
		return ""
	}

	parts := []string{}

	for _, f := range t.Fields {
		if isInArray(exclude, f.Name) {
			continue
		}

		parts = append(parts, fmt.Sprintf("%s = EXCLUDED.%s", f.Name, f.Name))
	}

	sort.Strings(parts)

	return strings.Join(parts, ", ")
}

func isInArray(arr []string, s string) bool {
	for _, i := range arr {
		if i == s {
			return true
		}
	}

	return false
}
