package invoices

import (
	"time"

	"github.com/shopspring/decimal"
)

type Invoice struct {
	ID            string          `json:"id"`
	StoreID       string          `json:"storeId"`
	InvoiceNumber string          `json:"invoiceNumber"`
	ClientID      string          `json:"clientId"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DiscountTotal decimal.Decimal `json:"discountTotal"`
	TaxRate       decimal.Decimal `json:"taxRate"`
	TaxAmount     decimal.Decimal `json:"taxAmount"`
	Total         decimal.Decimal `json:"total"`
	AmountPaid    decimal.Decimal `json:"amountPaid"`
	AmountDue     decimal.Decimal `json:"amountDue"`
	Status        Status          `json:"status"`
	Notes         string          `json:"notes,omitempty"`
	CreatedBy     string          `json:"createdBy"`
	ValidatedAt   *time.Time      `json:"validatedAt,omitempty"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Item is a priced snapshot of one cart line; it is never updated.
type Item struct {
	ID          string          `json:"id"`
	InvoiceID   string          `json:"invoiceId"`
	ProductID   *string         `json:"productId,omitempty"`
	Name        string          `json:"name"`
	Reference   string          `json:"reference,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	DiscountPct decimal.Decimal `json:"discountPct"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

type Payment struct {
	ID        string          `json:"id"`
	InvoiceID string          `json:"invoiceId"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Date      time.Time       `json:"date"`
	Reference string          `json:"reference,omitempty"`
	Notes     string          `json:"notes,omitempty"`
	CreatedBy string          `json:"createdBy,omitempty"`
}

// Detail is an invoice together with its lines and payments.
type Detail struct {
	Invoice  Invoice   `json:"invoice"`
	Items    []Item    `json:"items"`
	Payments []Payment `json:"payments"`
}

type ItemInput struct {
	ProductID        *string         `json:"productId"`
	ProductName      string          `json:"productName" validate:"required,max=255"`
	ProductReference string          `json:"productReference" validate:"max=100"`
	Quantity         int             `json:"quantity" validate:"gt=0"`
	UnitPrice        decimal.Decimal `json:"unitPrice" validate:"gte=0"`
	Discount         decimal.Decimal `json:"discount" validate:"gte=0,lte=100"`
}

type PaymentInput struct {
	Amount    decimal.Decimal `json:"amount" validate:"gte=0"`
	Method    string          `json:"method" validate:"required,oneof=cash card transfer check other"`
	Reference string          `json:"reference" validate:"max=100"`
	Notes     string          `json:"notes" validate:"max=1000"`
}

type CreateInput struct {
	ClientID     string          `json:"clientId" validate:"required"`
	Items        []ItemInput     `json:"items" validate:"required,min=1,dive"`
	TaxRate      decimal.Decimal `json:"taxRate" validate:"gte=0,lte=100"`
	Notes        string          `json:"notes" validate:"max=2000"`
	Payment      *PaymentInput   `json:"payment"`
	ValidateOnly bool            `json:"validateOnly"`
}

type ListFilter struct {
	Status Status
	Limit  int
}
