package database

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when an entity does not exist.
var ErrNotFound = errors.New("database: entity not found")

// UnitOfWork commits or discards the writes of one request.
type UnitOfWork interface {
	SaveChanges(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Row is one stored entity.
type Row struct {
	ID   string
	Body []byte
}

// Store is entity-set access: JSON documents grouped in named sets.
type Store interface {
	Find(ctx context.Context, set, id string) ([]byte, error)
	List(ctx context.Context, set string) ([]Row, error)
	Upsert(ctx context.Context, set, id string, body []byte) error
	Delete(ctx context.Context, set, id string) error
}

// queryer is what both the pool and a transaction offer.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DataContext is the per-request data-access context. Writes open a
// transaction lazily; SaveChanges commits it and Close rolls back whatever
// was not saved. Reads see the request's own pending writes.
type DataContext struct {
	pool *Pool

	mu sync.Mutex
	tx pgx.Tx
}

// NewDataContext creates a data context over pool.
func NewDataContext(pool *Pool) *DataContext {
	return &DataContext{pool: pool}
}

func (d *DataContext) reader() queryer {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tx != nil {
		return d.tx
	}
	return d.pool.db
}

func (d *DataContext) writer(ctx context.Context) (queryer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tx == nil {
		tx, err := d.pool.begin(ctx)
		if err != nil {
			return nil, err
		}
		d.tx = tx
	}
	return d.tx, nil
}

func (d *DataContext) take() pgx.Tx {
	d.mu.Lock()
	defer d.mu.Unlock()
	tx := d.tx
	d.tx = nil
	return tx
}

// ── UnitOfWork ────────────────────────────────────────────────────────────────

// SaveChanges commits the pending transaction. It is a no-op when nothing
// was written.
func (d *DataContext) SaveChanges(ctx context.Context) error {
	tx := d.take()
	if tx == nil {
		return nil
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("save changes: %w", err)
	}
	return nil
}

// Rollback discards the pending transaction.
func (d *DataContext) Rollback(ctx context.Context) error {
	tx := d.take()
	if tx == nil {
		return nil
	}
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// Close rolls back unsaved work. The request scope calls it when the
// request ends.
func (d *DataContext) Close() error {
	return d.Rollback(context.Background())
}

// ── Store ─────────────────────────────────────────────────────────────────────

// Find returns the JSON body of one entity.
func (d *DataContext) Find(ctx context.Context, set, id string) ([]byte, error) {
	var body []byte
	err := d.pool.guard(func() error {
		err := d.reader().QueryRow(ctx,
			"SELECT body FROM entities WHERE set_name = $1 AND id = $2", set, id,
		).Scan(&body)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, set, id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// List returns every entity of a set ordered by id.
func (d *DataContext) List(ctx context.Context, set string) ([]Row, error) {
	var out []Row
	err := d.pool.guard(func() error {
		rows, err := d.reader().Query(ctx,
			"SELECT id, body FROM entities WHERE set_name = $1 ORDER BY id", set)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r Row
			if err := rows.Scan(&r.ID, &r.Body); err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", set, err)
	}
	return out, nil
}

// Upsert inserts or replaces an entity inside the request transaction.
func (d *DataContext) Upsert(ctx context.Context, set, id string, body []byte) error {
	q, err := d.writer(ctx)
	if err != nil {
		return err
	}
	return d.pool.guard(func() error {
		_, err := q.Exec(ctx, `INSERT INTO entities (set_name, id, body) VALUES ($1, $2, $3)
ON CONFLICT (set_name, id) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`, set, id, body)
		if err != nil {
			return fmt.Errorf("upsert %s/%s: %w", set, id, err)
		}
		return nil
	})
}

// Delete removes an entity inside the request transaction.
func (d *DataContext) Delete(ctx context.Context, set, id string) error {
	q, err := d.writer(ctx)
	if err != nil {
		return err
	}
	return d.pool.guard(func() error {
		tag, err := q.Exec(ctx, "DELETE FROM entities WHERE set_name = $1 AND id = $2", set, id)
		if err != nil {
			return fmt.Errorf("delete %s/%s: %w", set, id, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, set, id)
		}
		return nil
	})
}
