package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/optica-engine/internal/apperr"
	"github.com/ariefcatur/optica-engine/internal/validation"
	"github.com/google/uuid"
)

// Tx is the slice of a unit of work the ledger writes through.
// LockProduct and LockProductByReference must hold a row lock until the
// surrounding transaction ends.
type Tx interface {
	LockProduct(ctx context.Context, storeID, productID string) (Product, error)
	LockProductByReference(ctx context.Context, storeID, reference string) (Product, error)
	SetProductStock(ctx context.Context, productID string, stock int, lowAlerted bool, at time.Time) error
	InsertMovement(ctx context.Context, m Movement) error
}

// Input describes one movement. Quantity is the absolute target for
// adjustments and a positive delta for every other type.
type Input struct {
	StoreID   string       `json:"storeId" validate:"required"`
	ProductID string       `json:"productId" validate:"required"`
	Type      MovementType `json:"type" validate:"required,oneof=in out transfer adjustment"`
	Quantity  int          `json:"quantity" validate:"gte=0,required_unless=Type adjustment"`
	Reason    string       `json:"reason" validate:"max=255"`
	Reference string       `json:"referenceId" validate:"max=100"`
	ToStoreID string       `json:"toStoreId" validate:"required_if=Type transfer,nefield=StoreID"`
	Actor     string       `json:"-"`
}

type Result struct {
	Movement Movement `json:"movement"`
	Product  Product  `json:"product"`
	// Crossed is true when this movement took the product into low stock.
	Crossed bool `json:"-"`
}

type Ledger struct {
	now   func() time.Time
	newID func() string
}

func NewLedger() *Ledger {
	return &Ledger{now: func() time.Time { return time.Now().UTC() }, newID: uuid.NewString}
}

// WithClock overrides the time source.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Record locks the product, appends one movement and updates the projection.
// For out and transfer it fails with ErrInsufficientStock, writing nothing,
// when quantity exceeds current stock. Adjustment sets the stock absolutely.
// Transfer only debits the source here; use Transfer to credit the target.
func (l *Ledger) Record(ctx context.Context, tx Tx, in Input) (Result, error) {
	if err := validation.Struct(in); err != nil {
		return Result{}, err
	}
	p, err := tx.LockProduct(ctx, in.StoreID, in.ProductID)
	if err != nil {
		return Result{}, err
	}
	return l.apply(ctx, tx, p, in, nil)
}

// Transfer debits the product in the source store and credits the product
// carrying the same reference in in.ToStoreID.
func (l *Ledger) Transfer(ctx context.Context, tx Tx, in Input) (src Result, dst Result, err error) {
	in.Type = MovementTransfer
	if err := validation.Struct(in); err != nil {
		return Result{}, Result{}, err
	}
	p, err := tx.LockProduct(ctx, in.StoreID, in.ProductID)
	if err != nil {
		return Result{}, Result{}, err
	}
	if p.Reference == "" {
		return Result{}, Result{}, apperr.Field("productId", "product has no reference to match in the target store")
	}
	target, err := tx.LockProductByReference(ctx, in.ToStoreID, p.Reference)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Result{}, Result{}, apperr.Field("toStoreId", "no product with reference "+p.Reference+" in target store")
		}
		return Result{}, Result{}, err
	}

	if src, err = l.apply(ctx, tx, p, in, nil); err != nil {
		return Result{}, Result{}, err
	}
	from := in.StoreID
	dst, err = l.apply(ctx, tx, target, Input{
		StoreID:   in.ToStoreID,
		ProductID: target.ID,
		Type:      MovementIn,
		Quantity:  in.Quantity,
		Reason:    in.Reason,
		Reference: in.Reference,
		Actor:     in.Actor,
	}, &from)
	if err != nil {
		return Result{}, Result{}, err
	}
	return src, dst, nil
}

func (l *Ledger) apply(ctx context.Context, tx Tx, p Product, in Input, fromStore *string) (Result, error) {
	prev := p.CurrentStock
	var next int
	switch in.Type {
	case MovementIn:
		next = prev + in.Quantity
	case MovementOut, MovementTransfer:
		if in.Quantity > prev {
			return Result{}, apperr.ErrInsufficientStock
		}
		next = prev - in.Quantity
	case MovementAdjustment:
		next = in.Quantity
	}

	now := l.now()
	m := Movement{
		ID:            l.newID(),
		StoreID:       p.StoreID,
		ProductID:     p.ID,
		Type:          in.Type,
		Quantity:      in.Quantity,
		PreviousStock: prev,
		NewStock:      next,
		Reason:        in.Reason,
		FromStoreID:   fromStore,
		Actor:         in.Actor,
		CreatedAt:     now,
	}
	if in.Type == MovementTransfer {
		to := in.ToStoreID
		m.ToStoreID = &to
	}
	if in.Reference != "" {
		ref := in.Reference
		m.Reference = &ref
	}

	fire, alerted := LowAlert(prev, next, p.MinimumStock, p.LowAlerted)
	if err := tx.SetProductStock(ctx, p.ID, next, alerted, now); err != nil {
		return Result{}, fmt.Errorf("update stock of %s: %w", p.ID, err)
	}
	if err := tx.InsertMovement(ctx, m); err != nil {
		return Result{}, fmt.Errorf("insert movement for %s: %w", p.ID, err)
	}

	p.CurrentStock = next
	p.LowAlerted = alerted
	p.UpdatedAt = now
	return Result{
		Movement: m,
		Product:  p,
		Crossed:  fire,
	}, nil
}

// LowAlert decides the low-stock signal for a move from prev to next given
// the product's stored alert flag. It fires once per descent to or below the
// minimum and re-arms only after stock rises above it again.
func LowAlert(prev, next, minimum int, alerted bool) (fire, stillAlerted bool) {
	switch {
	case next > minimum:
		return false, false
	case alerted:
		return false, true
	case next < prev:
		return true, true
	}
	return false, false
}
