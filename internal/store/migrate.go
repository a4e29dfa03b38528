package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrations embed.FS

// Migrator handles DB schema migrations using golang-migrate.
type Migrator struct {
	db *DB
}

func NewMigrator(db *DB) *Migrator {
	return &Migrator{db: db}
}

func (m *Migrator) Up(ctx context.Context) error {
	return m.run(ctx, func(mig *migrate.Migrate) error { return mig.Up() })
}

func (m *Migrator) Down(ctx context.Context) error {
	return m.run(ctx, func(mig *migrate.Migrate) error { return mig.Steps(-1) })
}

// Version reports the applied schema version; zero when none.
func (m *Migrator) Version(ctx context.Context) (uint, bool, error) {
	var (
		v     uint
		dirty bool
	)
	err := m.run(ctx, func(mig *migrate.Migrate) error {
		var err error
		v, dirty, err = mig.Version()
		if err == migrate.ErrNilVersion {
			return nil
		}
		return err
	})
	return v, dirty, err
}

func (m *Migrator) run(ctx context.Context, step func(*migrate.Migrate) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mig, closer, err := m.migrateInstance(ctx)
	if err != nil {
		return err
	}
	defer closer()
	if err := step(mig); err != nil {
		if err == migrate.ErrNoChange {
			return ErrNoChange
		}
		return wrap(err, "migrate "+m.db.dialect)
	}
	return nil
}

// migrateInstance borrows the DB's pool. Postgres runs on a dedicated
// connection released by the closer; closing the sqlite driver would close
// the shared *sql.DB, so only the source is closed there.
func (m *Migrator) migrateInstance(ctx context.Context) (*migrate.Migrate, func(), error) {
	src, err := iofs.New(migrations, "migrations/"+m.db.dialect)
	if err != nil {
		return nil, func() {}, err
	}
	var (
		drv   database.Driver
		release = func() {}
	)
	switch m.db.dialect {
	case DialectPostgres:
		var conn *sql.Conn
		conn, err = m.db.sql.Conn(ctx)
		if err == nil {
			drv, err = postgres.WithConnection(ctx, conn, &postgres.Config{})
			if err != nil {
				_ = conn.Close()
			}
		}
		release = func() { _ = drv.Close() }
	case DialectSQLite:
		drv, err = sqlite3.WithInstance(m.db.sql, &sqlite3.Config{})
	default:
		err = fmt.Errorf("unsupported dialect %q", m.db.dialect)
	}
	if err != nil {
		_ = src.Close()
		return nil, func() {}, err
	}
	mig, err := migrate.NewWithInstance("iofs", src, m.db.dialect, drv)
	if err != nil {
		_ = src.Close()
		release()
		return nil, func() {}, err
	}
	return mig, func() {
		_ = src.Close()
		release()
	}, nil
}
