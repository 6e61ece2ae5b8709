package invoices

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/optica-engine/internal/apperr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentTx interface {
	InsertPayment(ctx context.Context, p Payment) error
	UpdateInvoiceState(ctx context.Context, inv Invoice) error
}

// PaymentLedger keeps amountPaid as the running sum of applied payments.
type PaymentLedger struct {
	now   func() time.Time
	newID func() string
}

func NewPaymentLedger() *PaymentLedger {
	return &PaymentLedger{now: func() time.Time { return time.Now().UTC() }, newID: uuid.NewString}
}

// Settle adds amount to inv and recomputes amountDue and status.
// Overpayment is accepted and leaves amountDue at zero.
func Settle(inv Invoice, amount decimal.Decimal, at time.Time) Invoice {
	inv.AmountPaid = inv.AmountPaid.Add(amount)
	inv.AmountDue = decimal.Max(decimal.Zero, inv.Total.Sub(inv.AmountPaid))
	switch {
	case inv.AmountDue.Sign() <= 0:
		inv.Status = StatusPaid
		if inv.PaidAt == nil {
			t := at
			inv.PaidAt = &t
		}
	case inv.AmountPaid.Sign() > 0:
		inv.Status = StatusPartial
	}
	inv.UpdatedAt = at
	return inv
}

// Apply records one payment against inv within tx and returns the new state.
func (l *PaymentLedger) Apply(ctx context.Context, tx PaymentTx, inv Invoice, in PaymentInput, actor string) (Invoice, Payment, error) {
	if in.Amount.Sign() < 0 {
		return inv, Payment{}, apperr.Field("amount", "must be >= 0")
	}
	if inv.Status == StatusCancelled {
		return inv, Payment{}, apperr.Field("status", "cannot pay a cancelled invoice")
	}

	now := l.now()
	next := Settle(inv, in.Amount, now)
	if next.Status != inv.Status && !CanTransition(inv.Status, next.Status) {
		return inv, Payment{}, apperr.Field("status", fmt.Sprintf("cannot move from %s to %s", inv.Status, next.Status))
	}

	p := Payment{
		ID:        l.newID(),
		InvoiceID: inv.ID,
		Amount:    in.Amount,
		Method:    in.Method,
		Date:      now,
		Reference: in.Reference,
		Notes:     in.Notes,
		CreatedBy: actor,
	}
	if err := tx.InsertPayment(ctx, p); err != nil {
		return inv, Payment{}, fmt.Errorf("insert payment: %w", err)
	}
	if err := tx.UpdateInvoiceState(ctx, next); err != nil {
		return inv, Payment{}, fmt.Errorf("update invoice %s: %w", inv.ID, err)
	}
	return next, p, nil
}
