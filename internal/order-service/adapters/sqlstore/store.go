// Package sqlstore persists orders and the audit trail through database/sql.
//
// SQLite (modernc.org/sqlite, no CGO) is the default engine; Postgres is
// reached through the pgx stdlib driver. Every registration gets its own
// UnitOfWork, and writes made through it become visible only on Commit.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// Register the pgx database/sql driver as "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"
	// Register the pure-Go SQLite driver as "sqlite".
	_ "modernc.org/sqlite"

	"github.com/jcmexdev/order-registration/internal/order-service/ports"
)

type Store struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
}

var (
	_ ports.UnitOfWorkFactory = (*Store)(nil)
	_ ports.OrderReader       = (*Store)(nil)
)

// Open connects to driver ("sqlite" or "postgres") and applies the schema.
// For SQLite dsn is a file path.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*Store, error) {
	d, ok := dialectFor(driver)
	if !ok {
		return nil, fmt.Errorf("sqlstore: unknown driver %q", driver)
	}
	if logger == nil {
		logger = slog.Default()
	}

	if d.name == DriverSQLite {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", dsn)
	}

	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", d.name, err)
	}
	if d.name == DriverSQLite {
		// one writer at a time; concurrent registrations queue for the connection
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, dialect: d, logger: logger}
	if err := s.applySchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) applySchema(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlstore: apply schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Driver() string { return s.dialect.name }

// NewUnitOfWork hands out a fresh, not yet begun, unit of work.
func (s *Store) NewUnitOfWork() ports.UnitOfWork {
	return &unitOfWork{store: s}
}
