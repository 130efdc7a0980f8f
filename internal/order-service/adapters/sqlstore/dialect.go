package sqlstore

import (
	"strconv"
	"strings"
	"time"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// dialect hides the few differences between the two engines. Queries are
// written once with '?' placeholders.
type dialect struct {
	name       string
	driverName string
	schema     []string
}

var sqliteDialect = dialect{
	name:       DriverSQLite,
	driverName: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			customer_id INTEGER NOT NULL,
			user_name   TEXT    NOT NULL,
			created_at  TEXT    NOT NULL,
			total       TEXT    NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id   INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			product_id INTEGER NOT NULL,
			quantity   INTEGER NOT NULL,
			unit_price TEXT    NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			occurred_at TEXT NOT NULL,
			event       TEXT NOT NULL,
			description TEXT NOT NULL,
			user_name   TEXT,
			level       TEXT NOT NULL
		)`,
	},
}

var postgresDialect = dialect{
	name:       DriverPostgres,
	driverName: "pgx",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id          BIGSERIAL PRIMARY KEY,
			customer_id BIGINT        NOT NULL,
			user_name   VARCHAR(100)  NOT NULL,
			created_at  TIMESTAMPTZ   NOT NULL,
			total       NUMERIC(18,2) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id         BIGSERIAL PRIMARY KEY,
			order_id   BIGINT        NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			product_id BIGINT        NOT NULL,
			quantity   BIGINT        NOT NULL,
			unit_price NUMERIC(18,2) NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id          BIGSERIAL PRIMARY KEY,
			occurred_at TIMESTAMPTZ  NOT NULL,
			event       VARCHAR(100) NOT NULL,
			description VARCHAR(500) NOT NULL,
			user_name   VARCHAR(100),
			level       VARCHAR(10)  NOT NULL
		)`,
	},
}

func dialectFor(driver string) (dialect, bool) {
	switch driver {
	case DriverSQLite, "":
		return sqliteDialect, true
	case DriverPostgres, "pgx":
		return postgresDialect, true
	default:
		return dialect{}, false
	}
}

// rebind rewrites '?' placeholders to $1..$n for Postgres.
func (d dialect) rebind(q string) string {
	if d.name != DriverPostgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

// timeArg binds a timestamp. SQLite has no datetime type, so it gets
// fixed-width RFC3339 TEXT which also sorts chronologically.
func (d dialect) timeArg(t time.Time) any {
	if d.name == DriverSQLite {
		return formatTime(t)
	}
	return t.UTC()
}
