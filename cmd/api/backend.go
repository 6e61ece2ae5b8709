package main

import (
	"context"
	"fmt"

	"github.com/ariefcatur/optica-engine/internal/config"
	"github.com/ariefcatur/optica-engine/internal/invoices"
	"github.com/ariefcatur/optica-engine/internal/memstore"
	"github.com/ariefcatur/optica-engine/internal/notify"
	"github.com/ariefcatur/optica-engine/internal/postgres"
	"github.com/ariefcatur/optica-engine/internal/stock"
	"github.com/ariefcatur/optica-engine/internal/subscriptions"
	"github.com/ariefcatur/optica-engine/internal/txn"
	"go.uber.org/zap"
)

// backend is the storage the engines run on: postgres when a DSN is set,
// otherwise the in-memory store seeded with a demo tenant.
type backend struct {
	kind string

	invoiceRunner txn.Runner[invoices.Tx]
	invoiceReader invoices.Reader
	stockRunner   txn.Runner[stock.ServiceTx]
	stockReader   stock.Reader
	subRunner     txn.Runner[subscriptions.Tx]
	subReader     subscriptions.Reader
	notify        notify.Store

	close func()
}

func openBackend(ctx context.Context, cfg config.Config, log *zap.Logger, migrateOnly bool) (*backend, error) {
	if cfg.PostgresDSN == "" {
		if migrateOnly {
			return nil, fmt.Errorf("-migrate-only needs POSTGRES_DSN")
		}
		log.Warn("POSTGRES_DSN not set, using in-memory store")
		ms := memstore.New()
		seedDemo(ms)
		return &backend{
			kind:          "memory",
			invoiceRunner: memstore.Runner[invoices.Tx](ms),
			invoiceReader: ms,
			stockRunner:   memstore.Runner[stock.ServiceTx](ms),
			stockReader:   ms,
			subRunner:     memstore.Runner[subscriptions.Tx](ms),
			subReader:     ms,
			notify:        ms,
			close:         func() {},
		}, nil
	}

	pool, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if err := postgres.Migrate(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	pg := postgres.New(pool)
	return &backend{
		kind:          "postgres",
		invoiceRunner: postgres.Runner[invoices.Tx](pg),
		invoiceReader: pg,
		stockRunner:   postgres.Runner[stock.ServiceTx](pg),
		stockReader:   pg,
		subRunner:     postgres.Runner[subscriptions.Tx](pg),
		subReader:     pg,
		notify:        pg,
		close:         pool.Close,
	}, nil
}
