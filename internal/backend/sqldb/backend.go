// Package sqldb implements relational backends.
//
// Each Backend runs its statements through one consumer goroutine on a pool
// capped at a single connection, so statements from all inserters of a
// backend execute one at a time in submission order. A connection the
// driver reports as broken is replaced on the next statement.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/iot2db/iot2db/internal/backend"
	"github.com/iot2db/iot2db/internal/config"
	"go.uber.org/zap"
)

// Options configures a backend.
type Options struct {
	Logger *zap.Logger
	// Now is the clock used for retention cutoffs.
	Now func() time.Time
}

type command struct {
	ctx   context.Context
	query string
	args  []any
	reply chan error
}

// Backend is an opened database.
type Backend struct {
	name    string
	dialect Dialect
	escaper backend.Escaper
	db      *sql.DB
	logger  *zap.Logger
	now     func() time.Time

	commands  chan command
	closed    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// PostgresDSN renders the connection URL for cfg.
func PostgresDSN(cfg *config.PostgresConfig) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(int(cfg.Port))),
		Path:   "/" + cfg.Database,
	}
	if cfg.Username != "" {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	q := url.Values{}
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// OpenPostgres connects to a PostgreSQL server.
func OpenPostgres(ctx context.Context, name string, cfg *config.PostgresConfig, opts Options) (*Backend, error) {
	return Open(ctx, name, Postgres{}, PostgresDSN(cfg), opts)
}

// OpenSQLite opens a SQLite database file.
func OpenSQLite(ctx context.Context, name string, cfg *config.SQLiteConfig, opts Options) (*Backend, error) {
	return Open(ctx, name, SQLite{}, cfg.Path, opts)
}

// Open connects with dialect and starts the consumer goroutine.
func Open(ctx context.Context, name string, dialect Dialect, dsn string, opts Options) (*Backend, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	db, err := sql.Open(dialect.Driver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s backend %q: %w", dialect.Name(), name, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s backend %q: %w", dialect.Name(), name, err)
	}

	b := &Backend{
		name:     name,
		dialect:  dialect,
		escaper:  backend.EscaperFunc(dialect.QuoteLiteral),
		db:       db,
		logger:   opts.Logger.With(zap.String("backend", name)),
		now:      opts.Now,
		commands: make(chan command),
		closed:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go b.serve()

	b.logger.Info("Backend connected", zap.String("dialect", dialect.Name()))
	return b, nil
}

func (b *Backend) serve() {
	defer close(b.done)
	for {
		select {
		case <-b.closed:
			return
		case cmd := <-b.commands:
			_, err := b.db.ExecContext(cmd.ctx, cmd.query, cmd.args...)
			cmd.reply <- err
		}
	}
}

// exec hands a statement to the consumer and waits for its result.
func (b *Backend) exec(ctx context.Context, query string, args ...any) error {
	reply := make(chan error, 1)
	select {
	case b.commands <- command{ctx: ctx, query: query, args: args, reply: reply}:
	case <-b.closed:
		return backend.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Escaper quotes values as string literals of the dialect.
func (b *Backend) Escaper() backend.Escaper {
	return b.escaper
}

// Inserter validates the table name and returns an inserter for it.
func (b *Backend) Inserter(ref config.BackendRef) (backend.Inserter, error) {
	table, err := QuoteIdentifier(ref.TableName())
	if err != nil {
		return nil, fmt.Errorf("backend %q table: %w", b.name, err)
	}
	return &inserter{
		backend: b,
		table:   table,
		logger:  b.logger.With(zap.String("data", ref.Data), zap.String("table", ref.TableName())),
	}, nil
}

// Close stops the consumer and releases the connection.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.closed)
		<-b.done
		err = b.db.Close()
	})
	return err
}

type inserter struct {
	backend *Backend
	table   string
	logger  *zap.Logger
}

func (i *inserter) Insert(ctx context.Context, directive backend.InsertDirective) error {
	query, err := buildInsert(i.backend.dialect, i.table, directive)
	if err != nil {
		return err
	}
	i.logger.Debug("Inserting record", zap.String("query", query))
	return i.backend.exec(ctx, query)
}

func (i *inserter) DeleteOldNonPersistent(ctx context.Context, days uint32) error {
	cutoff := i.backend.now().Add(-time.Duration(days) * 24 * time.Hour)
	d := i.backend.dialect
	if err := i.backend.exec(ctx, d.DeleteExpired(i.table), d.CutoffArg(cutoff)); err != nil {
		return fmt.Errorf("delete rows before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return nil
}
