package sqldb

import (
	"fmt"
	"strings"
	"time"

	"github.com/iot2db/iot2db/internal/backend"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect holds the SQL differences between supported databases.
type Dialect interface {
	Name() string
	Driver() string
	// QuoteLiteral renders value as a string literal.
	QuoteLiteral(value string) string
	// PersistentExpr evaluates to TRUE when no persistent row exists or the
	// newest one is at least every older than ts, a rendered literal.
	PersistentExpr(table, ts string, every time.Duration) string
	// DeleteExpired deletes non-persistent rows older than the single
	// cutoff parameter.
	DeleteExpired(table string) string
	CutoffArg(cutoff time.Time) any
}

// QuoteIdentifier double-quotes name. Names containing a double quote are
// rejected rather than escaped.
func QuoteIdentifier(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "\"\x00") {
		return "", fmt.Errorf("%w: %q", backend.ErrInvalidIdentifier, name)
	}
	return `"` + name + `"`, nil
}

func mustQuote(name string) string {
	q, err := QuoteIdentifier(name)
	if err != nil {
		panic(err)
	}
	return q
}

var (
	tsColumn         = mustQuote("timestamp")
	persistentColumn = mustQuote("persistent")
)

// Postgres targets PostgreSQL through lib/pq.
type Postgres struct{}

func (Postgres) Name() string   { return "postgres" }
func (Postgres) Driver() string { return "postgres" }

func (Postgres) QuoteLiteral(value string) string {
	return pq.QuoteLiteral(value)
}

func (Postgres) PersistentExpr(table, ts string, every time.Duration) string {
	return fmt.Sprintf(
		"COALESCE((SELECT p.%s + make_interval(secs => %d) <= %s FROM %s AS p WHERE p.%s ORDER BY p.%s DESC LIMIT 1), TRUE)",
		tsColumn, int64(every/time.Second), ts, table, persistentColumn, tsColumn)
}

func (Postgres) DeleteExpired(table string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE NOT %s AND %s < $1", table, persistentColumn, tsColumn)
}

func (Postgres) CutoffArg(cutoff time.Time) any {
	return cutoff
}

// SQLite targets SQLite through mattn/go-sqlite3. Timestamps are stored as
// ISO 8601 text and compared through unixepoch.
type SQLite struct{}

func (SQLite) Name() string   { return "sqlite" }
func (SQLite) Driver() string { return "sqlite3" }

func (SQLite) QuoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (SQLite) PersistentExpr(table, ts string, every time.Duration) string {
	return fmt.Sprintf(
		"COALESCE((SELECT unixepoch(p.%s) + %d <= unixepoch(%s) FROM %s AS p WHERE p.%s ORDER BY unixepoch(p.%s) DESC LIMIT 1), TRUE)",
		tsColumn, int64(every/time.Second), ts, table, persistentColumn, tsColumn)
}

func (SQLite) DeleteExpired(table string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE NOT %s AND unixepoch(%s) < ?", table, persistentColumn, tsColumn)
}

func (SQLite) CutoffArg(cutoff time.Time) any {
	return cutoff.Unix()
}
