package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/optica-engine/internal/apperr"
	"github.com/ariefcatur/optica-engine/internal/invoices"
	"github.com/ariefcatur/optica-engine/internal/notify"
	"github.com/ariefcatur/optica-engine/internal/stock"
	"github.com/ariefcatur/optica-engine/internal/subscriptions"
	"github.com/ariefcatur/optica-engine/internal/tenant"
	"github.com/ariefcatur/optica-engine/internal/txn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements the read side directly on the pool and hands out Tx for
// units of work.
type Store struct{ DB *pgxpool.Pool }

func New(pool *pgxpool.Pool) *Store { return &Store{DB: pool} }

// Tx wraps one database transaction.
type Tx struct{ q querier }

var (
	_ stock.ServiceTx  = (*Tx)(nil)
	_ invoices.Tx      = (*Tx)(nil)
	_ subscriptions.Tx = (*Tx)(nil)
	_ notify.Store     = (*Store)(nil)
)

func (s *Store) run(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &Tx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Runner adapts the store to a txn.Runner for the interface T a service expects.
func Runner[T any](s *Store) txn.Runner[T] {
	return txn.RunnerFunc[T](func(ctx context.Context, fn func(ctx context.Context, tx T) error) error {
		return s.run(ctx, func(ctx context.Context, tx *Tx) error {
			t, ok := any(tx).(T)
			if !ok {
				return fmt.Errorf("postgres: %T does not satisfy the requested transaction interface", tx)
			}
			return fn(ctx, t)
		})
	})
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func (t *Tx) GetStore(ctx context.Context, id string) (tenant.Store, error) {
	return getStore(ctx, t.q, id)
}

func (s *Store) GetStore(ctx context.Context, id string) (tenant.Store, error) {
	return getStore(ctx, s.DB, id)
}

func getStore(ctx context.Context, q querier, id string) (tenant.Store, error) {
	var st tenant.Store
	err := q.QueryRow(ctx, `
		SELECT id, owner_id, name, prefix, notification_email
		FROM stores WHERE id=$1`, id).
		Scan(&st.ID, &st.OwnerID, &st.Name, &st.Prefix, &st.NotificationEmail)
	if err != nil {
		return tenant.Store{}, notFound(err)
	}
	return st, nil
}
