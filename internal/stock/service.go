package stock

import (
	"context"

	"github.com/ariefcatur/optica-engine/internal/events"
	"github.com/ariefcatur/optica-engine/internal/logger"
	"github.com/ariefcatur/optica-engine/internal/tenant"
	"github.com/ariefcatur/optica-engine/internal/txn"
	"go.uber.org/zap"
)

// ServiceTx is what a standalone stock movement needs from a unit of work.
type ServiceTx interface {
	Tx
	tenant.StoreReader
}

type Reader interface {
	tenant.StoreReader
	ListMovements(ctx context.Context, storeID, productID string, limit int) ([]Movement, error)
	ListLowStock(ctx context.Context, storeID string) ([]Product, error)
}

// Service is the request-level entry point for manual stock movements.
type Service struct {
	runner txn.Runner[ServiceTx]
	reader Reader
	ledger *Ledger
	events events.Sink
	log    *zap.Logger
}

func NewService(runner txn.Runner[ServiceTx], reader Reader, ledger *Ledger, sink events.Sink, log *zap.Logger) *Service {
	if ledger == nil {
		ledger = NewLedger()
	}
	if sink == nil {
		sink = events.Nop{}
	}
	return &Service{runner: runner, reader: reader, ledger: ledger, events: sink, log: logger.OrNop(log)}
}

// Record applies one movement for the active store. For transfers the target
// store must belong to the same owner.
func (s *Service) Record(ctx context.Context, tc tenant.Context, in Input) (Result, error) {
	if err := tc.RequireStore(); err != nil {
		return Result{}, err
	}
	in.StoreID = tc.StoreID
	in.Actor = tc.UserID

	var res Result
	err := s.runner.Run(ctx, func(ctx context.Context, tx ServiceTx) error {
		if _, err := tenant.Authorize(ctx, tx, tc, tc.StoreID); err != nil {
			return err
		}
		if in.Type != MovementTransfer {
			var err error
			res, err = s.ledger.Record(ctx, tx, in)
			return err
		}
		if in.ToStoreID != "" {
			if _, err := tenant.Authorize(ctx, tx, tc, in.ToStoreID); err != nil {
				return err
			}
		}
		src, _, err := s.ledger.Transfer(ctx, tx, in)
		res = src
		return err
	})
	if err != nil {
		return Result{}, err
	}

	if res.Crossed {
		ev, err := LowStockEvent(res.Product)
		s.publish(ctx, ev, err)
	}
	return res, nil
}

func (s *Service) ListMovements(ctx context.Context, tc tenant.Context, productID string, limit int) ([]Movement, error) {
	if err := tc.RequireStore(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if _, err := tenant.Authorize(ctx, s.reader, tc, tc.StoreID); err != nil {
		return nil, err
	}
	return s.reader.ListMovements(ctx, tc.StoreID, productID, limit)
}

func (s *Service) ListLowStock(ctx context.Context, tc tenant.Context) ([]Product, error) {
	if err := tc.RequireStore(); err != nil {
		return nil, err
	}
	if _, err := tenant.Authorize(ctx, s.reader, tc, tc.StoreID); err != nil {
		return nil, err
	}
	return s.reader.ListLowStock(ctx, tc.StoreID)
}

func (s *Service) publish(ctx context.Context, ev events.Envelope, err error) {
	if err != nil {
		s.log.Warn("build low stock event", zap.Error(err))
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("publish low stock event", zap.String("store_id", ev.StoreID), zap.Error(err))
	}
}

// LowStockEvent builds the alert for a threshold crossing, deduplicated per product.
func LowStockEvent(p Product) (events.Envelope, error) {
	ev, err := events.New(events.TypeLowStock, p.StoreID, p.ID, events.LowStockPayload{
		ProductID:    p.ID,
		ProductName:  p.Name,
		Reference:    p.Reference,
		CurrentStock: p.CurrentStock,
		MinimumStock: p.MinimumStock,
	})
	if err != nil {
		return events.Envelope{}, err
	}
	ev.Dedupe = &events.DedupeKey{EntityType: "product", EntityID: p.ID}
	return ev, nil
}
