// Package store keeps a local history of FAQ score snapshots and pipeline
// action runs. Postgres and SQLite are supported.
package store

import (
	"context"
	"database/sql"
	errs "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultDSN is the SQLite file used when no DSN is configured.
var DefaultDSN = filepath.Join(".faqscorer", "history.db")

var ErrNoChange = errs.New("no change")

// Dialect names match the golang-migrate database drivers.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

// DB wraps gorm.DB for repositories and exposes Close.
type DB struct {
	gorm    *gorm.DB
	sql     *sql.DB
	dialect string
}

func (d *DB) Close() error    { return d.sql.Close() }
func (d *DB) Dialect() string { return d.dialect }

// DialectFor picks the driver for dsn.
func DialectFor(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

// Open connects to the history database. An empty dsn selects DefaultDSN.
func Open(ctx context.Context, dsn string) (*DB, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	dialect := DialectFor(dsn)

	var (
		gdb *gorm.DB
		err error
	)
	switch dialect {
	case DialectPostgres:
		gdb, err = gorm.Open(postgres.Open(dsn), cfg)
	default:
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
		gdb, err = gorm.Open(sqlite.Open(dsn), cfg)
	}
	if err != nil {
		return nil, wrap(err, "open history db")
	}
	sdb, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if dialect == DialectSQLite {
		// one connection keeps :memory: databases shared and writes serialized
		sdb.SetMaxOpenConns(1)
	} else {
		sdb.SetConnMaxLifetime(30 * time.Minute)
		sdb.SetMaxOpenConns(5)
		sdb.SetMaxIdleConns(2)
	}
	if err := sdb.PingContext(ctx); err != nil {
		_ = sdb.Close()
		return nil, wrap(err, "ping history db")
	}
	return &DB{gorm: gdb, sql: sdb, dialect: dialect}, nil
}

func ensureDir(dsn string) error {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create history dir %s: %w", dir, err)
	}
	return nil
}

// OpenMigrated opens the database and applies pending migrations.
func OpenMigrated(ctx context.Context, dsn string) (*DB, error) {
	db, err := Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := NewMigrator(db).Up(ctx); err != nil && !errs.Is(err, ErrNoChange) {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// WithTx executes fn within a database transaction.
func (d *DB) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return d.gorm.WithContext(ctx).Transaction(fn)
}

// lockBackend serializes writers for one backend until tx ends. SQLite runs
// on a single connection, so only postgres needs an explicit lock.
func (d *DB) lockBackend(tx *gorm.DB, backendURL string) error {
	if d.dialect != DialectPostgres {
		return nil
	}
	return wrap(tx.Exec(`SELECT pg_advisory_xact_lock(hashtext(?))`, backendURL).Error, "lock backend")
}

// Helper error wrap
func wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}
