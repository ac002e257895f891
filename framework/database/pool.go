// Package database is the data-access context: a pgx connection pool
// shared by the process and a per-request DataContext that is both the
// unit of work and the entity store.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker"
)

// ConnectionName is the configuration key of the connection string.
const ConnectionName = "DefaultConnection"

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("database: unavailable")

// DB is the subset of *pgxpool.Pool the data context uses. Declaring it
// as an interface lets tests inject a fake without a real database.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is the process-wide connection pool behind a circuit breaker.
type Pool struct {
	db    DB
	cb    *gobreaker.CircuitBreaker
	close func()
}

// Open parses connString and creates a pool. No connection is made until
// the first query, so a down database does not block startup; a malformed
// connection string does.
func Open(ctx context.Context, connString string, maxConns int32) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}
	p := NewPool(pool, NewCircuitBreaker("postgres"))
	p.close = pool.Close
	return p, nil
}

// NewPool wraps db with cb.
func NewPool(db DB, cb *gobreaker.CircuitBreaker) *Pool {
	return &Pool{db: db, cb: cb}
}

// NewCircuitBreaker returns a gobreaker configured to trip after 3 consecutive
// failures and reset after 30 seconds in the open state.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
}

// Close releases every pooled connection.
func (p *Pool) Close() error {
	if p.close != nil {
		p.close()
	}
	return nil
}

// guard runs fn through the circuit breaker. Not-found outcomes do not
// count as failures.
func (p *Pool) guard(fn func() error) error {
	var notFound error
	_, err := p.cb.Execute(func() (any, error) {
		err := fn()
		if errors.Is(err, ErrNotFound) {
			notFound = err
			return nil, nil
		}
		return nil, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return err
	}
	return notFound
}

func (p *Pool) begin(ctx context.Context) (pgx.Tx, error) {
	var tx pgx.Tx
	err := p.guard(func() error {
		var err error
		tx, err = p.db.Begin(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return tx, nil
}

const schema = `CREATE TABLE IF NOT EXISTS entities (
	set_name   text        NOT NULL,
	id         text        NOT NULL,
	body       jsonb       NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (set_name, id)
)`

// Migrate creates the entities table if it does not exist.
func (p *Pool) Migrate(ctx context.Context) error {
	return p.guard(func() error {
		if _, err := p.db.Exec(ctx, schema); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		return nil
	})
}
