package stock

import "time"

type MovementType string

const (
	MovementIn         MovementType = "in"
	MovementOut        MovementType = "out"
	MovementTransfer   MovementType = "transfer"
	MovementAdjustment MovementType = "adjustment"
)

// Decrements reports whether the type removes quantity from the product.
func (t MovementType) Decrements() bool {
	return t == MovementOut || t == MovementTransfer
}

type Product struct {
	ID           string    `json:"id"`
	StoreID      string    `json:"storeId"`
	Name         string    `json:"name"`
	Reference    string    `json:"reference,omitempty"`
	CurrentStock int       `json:"currentStock"`
	MinimumStock int       `json:"minimumStock"`
	UpdatedAt    time.Time `json:"updatedAt"`

	// LowAlerted is set when a low-stock alert fires and cleared once stock
	// climbs back above MinimumStock.
	LowAlerted bool `json:"lowAlerted"`
}

// IsLow reports whether the product sits at or below its threshold.
func (p Product) IsLow() bool { return p.CurrentStock <= p.MinimumStock }

// Movement is an immutable ledger fact; it is never updated after insert.
type Movement struct {
	ID            string       `json:"id"`
	StoreID       string       `json:"storeId"`
	ProductID     string       `json:"productId"`
	Type          MovementType `json:"type"`
	Quantity      int          `json:"quantity"`
	PreviousStock int          `json:"previousStock"`
	NewStock      int          `json:"newStock"`
	Reason        string       `json:"reason"`
	FromStoreID   *string      `json:"fromStoreId,omitempty"`
	ToStoreID     *string      `json:"toStoreId,omitempty"`
	Reference     *string      `json:"reference,omitempty"`
	Actor         string       `json:"actor"`
	CreatedAt     time.Time    `json:"createdAt"`
}
