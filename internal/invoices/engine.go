package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/optica-engine/internal/apperr"
	"github.com/ariefcatur/optica-engine/internal/events"
	"github.com/ariefcatur/optica-engine/internal/logger"
	"github.com/ariefcatur/optica-engine/internal/stock"
	"github.com/ariefcatur/optica-engine/internal/tenant"
	"github.com/ariefcatur/optica-engine/internal/txn"
	"github.com/ariefcatur/optica-engine/internal/validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Tx is one unit of work as seen by the engine. Stock writes go through the
// embedded stock.Tx so they commit or roll back with the invoice.
type Tx interface {
	stock.Tx
	PaymentTx
	tenant.StoreReader
	ClientInStore(ctx context.Context, storeID, clientID string) (bool, error)
	InvoiceNumberExists(ctx context.Context, storeID, number string) (bool, error)
	InsertInvoice(ctx context.Context, inv Invoice) error
	InsertItem(ctx context.Context, it Item) error
	LockInvoice(ctx context.Context, storeID, invoiceID string) (Invoice, error)
}

// Reader serves the read paths. GetStore backs the ownership check that runs
// before every query.
type Reader interface {
	tenant.StoreReader
	GetInvoice(ctx context.Context, storeID, invoiceID string) (Invoice, error)
	ListItems(ctx context.Context, invoiceID string) ([]Item, error)
	ListPayments(ctx context.Context, invoiceID string) ([]Payment, error)
	ListInvoices(ctx context.Context, storeID string, f ListFilter) ([]Invoice, error)
}

const maxCreateAttempts = 3

type Engine struct {
	runner   txn.Runner[Tx]
	reader   Reader
	stock    *stock.Ledger
	payments *PaymentLedger
	numbers  *NumberGenerator
	events   events.Sink
	log      *zap.Logger
	now      func() time.Time
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
		e.payments.now = now
		e.numbers.now = now
		e.stock.WithClock(now)
	}
}

func WithNumberGenerator(g *NumberGenerator) Option { return func(e *Engine) { e.numbers = g } }

func NewEngine(runner txn.Runner[Tx], reader Reader, sink events.Sink, log *zap.Logger, opts ...Option) *Engine {
	if sink == nil {
		sink = events.Nop{}
	}
	e := &Engine{
		runner:   runner,
		reader:   reader,
		stock:    stock.NewLedger(),
		payments: NewPaymentLedger(),
		numbers:  NewNumberGenerator(),
		events:   sink,
		log:      logger.OrNop(log),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Create prices the cart and, in one transaction, persists the invoice and
// its lines, deducts stock for lines whose product exists in the store and
// applies the optional initial payment. Events go out after commit.
func (e *Engine) Create(ctx context.Context, tc tenant.Context, in CreateInput) (Detail, error) {
	if err := tc.RequireStore(); err != nil {
		return Detail{}, err
	}
	if err := validation.Struct(in); err != nil {
		return Detail{}, err
	}
	totals := Price(in.Items, in.TaxRate)

	var (
		out     Detail
		crossed []stock.Product
		err     error
	)
	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		out, crossed, err = e.create(ctx, tc, in, totals)
		if !errors.Is(err, ErrDuplicateNumber) {
			break
		}
		e.log.Info("invoice number collision, retrying", zap.String("store_id", tc.StoreID), zap.Int("attempt", attempt))
	}
	if err != nil {
		return Detail{}, err
	}

	e.publishCreated(ctx, out, crossed)
	return out, nil
}

func (e *Engine) create(ctx context.Context, tc tenant.Context, in CreateInput, totals Totals) (Detail, []stock.Product, error) {
	var (
		out     Detail
		crossed []stock.Product
	)
	err := e.runner.Run(ctx, func(ctx context.Context, tx Tx) error {
		out, crossed = Detail{}, nil

		st, err := tenant.Authorize(ctx, tx, tc, tc.StoreID)
		if err != nil {
			return err
		}
		ok, err := tx.ClientInStore(ctx, tc.StoreID, in.ClientID)
		if err != nil {
			return fmt.Errorf("check client: %w", err)
		}
		if !ok {
			return apperr.Field("clientId", "client not found in store")
		}
		number, err := e.numbers.Next(ctx, tx, tc.StoreID, st.Prefix)
		if err != nil {
			return err
		}

		now := e.now()
		inv := Invoice{
			ID:            uuid.NewString(),
			StoreID:       tc.StoreID,
			InvoiceNumber: number,
			ClientID:      in.ClientID,
			Subtotal:      totals.Subtotal,
			DiscountTotal: totals.DiscountTotal,
			TaxRate:       totals.TaxRate,
			TaxAmount:     totals.TaxAmount,
			Total:         totals.Total,
			AmountPaid:    decimal.Zero,
			AmountDue:     totals.Total,
			Status:        StatusDraft,
			Notes:         in.Notes,
			CreatedBy:     tc.UserID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if in.ValidateOnly {
			inv.Status = StatusPending
			inv.ValidatedAt = &now
		}
		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return err
		}

		for _, line := range totals.Lines {
			item := Item{
				ID:          uuid.NewString(),
				InvoiceID:   inv.ID,
				Name:        line.Input.ProductName,
				Reference:   line.Input.ProductReference,
				Quantity:    line.Input.Quantity,
				UnitPrice:   line.Input.UnitPrice,
				DiscountPct: line.Input.Discount,
				LineTotal:   line.Total,
			}
			if pid := line.Input.ProductID; pid != nil && *pid != "" {
				res, err := e.stock.Record(ctx, tx, stock.Input{
					StoreID:   tc.StoreID,
					ProductID: *pid,
					Type:      stock.MovementOut,
					Quantity:  line.Input.Quantity,
					Reason:    "Sale " + inv.InvoiceNumber,
					Reference: inv.ID,
					Actor:     tc.UserID,
				})
				switch {
				case errors.Is(err, apperr.ErrNotFound):
					// unknown product: keep the line, skip stock
				case err != nil:
					return err
				default:
					id := *pid
					item.ProductID = &id
					if res.Crossed {
						crossed = append(crossed, res.Product)
					}
				}
			}
			if err := tx.InsertItem(ctx, item); err != nil {
				return fmt.Errorf("insert item: %w", err)
			}
			out.Items = append(out.Items, item)
		}

		if p := in.Payment; p != nil && p.Amount.Sign() > 0 {
			next, pay, err := e.payments.Apply(ctx, tx, inv, *p, tc.UserID)
			if err != nil {
				return err
			}
			inv = next
			out.Payments = append(out.Payments, pay)
		}
		out.Invoice = inv
		return nil
	})
	if err != nil {
		return Detail{}, nil, err
	}
	if out.Payments == nil {
		out.Payments = []Payment{}
	}
	return out, crossed, nil
}

// AddPayment applies a payment to an existing invoice under a row lock.
func (e *Engine) AddPayment(ctx context.Context, tc tenant.Context, invoiceID string, in PaymentInput) (Invoice, error) {
	if err := tc.RequireStore(); err != nil {
		return Invoice{}, err
	}
	if err := validation.Struct(in); err != nil {
		return Invoice{}, err
	}
	var (
		inv Invoice
		pay Payment
	)
	err := e.runner.Run(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tenant.Authorize(ctx, tx, tc, tc.StoreID); err != nil {
			return err
		}
		cur, err := tx.LockInvoice(ctx, tc.StoreID, invoiceID)
		if err != nil {
			return err
		}
		inv, pay, err = e.payments.Apply(ctx, tx, cur, in, tc.UserID)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}

	ev, err := events.New(events.TypePaymentReceived, inv.StoreID, inv.ID, events.PaymentReceivedPayload{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		Amount:        pay.Amount,
		AmountDue:     inv.AmountDue,
		Method:        pay.Method,
		Status:        string(inv.Status),
	})
	e.publish(ctx, []events.Envelope{ev}, err)
	return inv, nil
}

// Cancel marks the invoice cancelled. Stock already deducted is not returned.
// Cancelling a cancelled invoice is a no-op. Paid is terminal, so a paid
// invoice is rejected rather than cancelled unconditionally.
func (e *Engine) Cancel(ctx context.Context, tc tenant.Context, invoiceID string) (Invoice, error) {
	if err := tc.RequireStore(); err != nil {
		return Invoice{}, err
	}
	var inv Invoice
	err := e.runner.Run(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tenant.Authorize(ctx, tx, tc, tc.StoreID); err != nil {
			return err
		}
		cur, err := tx.LockInvoice(ctx, tc.StoreID, invoiceID)
		if err != nil {
			return err
		}
		if cur.Status == StatusCancelled {
			inv = cur
			return nil
		}
		if !CanTransition(cur.Status, StatusCancelled) {
			return apperr.Field("status", fmt.Sprintf("cannot cancel a %s invoice", cur.Status))
		}
		cur.Status = StatusCancelled
		cur.UpdatedAt = e.now()
		if err := tx.UpdateInvoiceState(ctx, cur); err != nil {
			return fmt.Errorf("update invoice %s: %w", cur.ID, err)
		}
		inv = cur
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (e *Engine) Get(ctx context.Context, tc tenant.Context, invoiceID string) (Detail, error) {
	if err := tc.RequireStore(); err != nil {
		return Detail{}, err
	}
	if _, err := tenant.Authorize(ctx, e.reader, tc, tc.StoreID); err != nil {
		return Detail{}, err
	}
	inv, err := e.reader.GetInvoice(ctx, tc.StoreID, invoiceID)
	if err != nil {
		return Detail{}, err
	}
	items, err := e.reader.ListItems(ctx, inv.ID)
	if err != nil {
		return Detail{}, fmt.Errorf("list items: %w", err)
	}
	pays, err := e.reader.ListPayments(ctx, inv.ID)
	if err != nil {
		return Detail{}, fmt.Errorf("list payments: %w", err)
	}
	return Detail{Invoice: inv, Items: items, Payments: pays}, nil
}

func (e *Engine) List(ctx context.Context, tc tenant.Context, f ListFilter) ([]Invoice, error) {
	if err := tc.RequireStore(); err != nil {
		return nil, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Field("status", "unknown invoice status")
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if _, err := tenant.Authorize(ctx, e.reader, tc, tc.StoreID); err != nil {
		return nil, err
	}
	return e.reader.ListInvoices(ctx, tc.StoreID, f)
}

func (e *Engine) publishCreated(ctx context.Context, d Detail, crossed []stock.Product) {
	inv := d.Invoice
	ev, err := events.New(events.TypeInvoiceCreated, inv.StoreID, inv.ID, events.InvoiceCreatedPayload{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		ClientID:      inv.ClientID,
		Total:         inv.Total,
		Status:        string(inv.Status),
	})
	if err != nil {
		e.log.Warn("build invoice event", zap.String("invoice_id", inv.ID), zap.Error(err))
	}
	evs := []events.Envelope{}
	if err == nil {
		evs = append(evs, ev)
	}
	for _, p := range crossed {
		low, err := stock.LowStockEvent(p)
		if err != nil {
			e.log.Warn("build low stock event", zap.String("product_id", p.ID), zap.Error(err))
			continue
		}
		low.CorrelationID = inv.ID
		evs = append(evs, low)
	}
	e.publish(ctx, evs, nil)
}

// publish never fails the caller; the write it reports on is committed.
func (e *Engine) publish(ctx context.Context, evs []events.Envelope, buildErr error) {
	if buildErr != nil {
		e.log.Warn("build event", zap.Error(buildErr))
		return
	}
	if len(evs) == 0 {
		return
	}
	if err := e.events.Publish(ctx, evs...); err != nil {
		e.log.Warn("publish events", zap.Int("events", len(evs)), zap.String("event_type", evs[0].EventType), zap.Error(err))
	}
}
