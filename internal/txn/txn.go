// Package txn defines the unit-of-work boundary shared by the domain services.
package txn

import "context"

// Runner executes fn inside one atomic transaction. A non-nil error from fn
// rolls back every write made through tx.
type Runner[T any] interface {
	Run(ctx context.Context, fn func(ctx context.Context, tx T) error) error
}

type RunnerFunc[T any] func(ctx context.Context, fn func(ctx context.Context, tx T) error) error

func (f RunnerFunc[T]) Run(ctx context.Context, fn func(ctx context.Context, tx T) error) error {
	return f(ctx, fn)
}
