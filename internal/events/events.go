package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TypeInvoiceCreated  = "invoice_created"
	TypeLowStock        = "low_stock"
	TypePaymentReceived = "payment_received"
)

const Version = 1

// DedupeKey identifies "the same alert" for one ongoing condition.
type DedupeKey struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
}

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	StoreID       string          `json:"store_id"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Dedupe        *DedupeKey      `json:"dedupe,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// New wraps payload in a versioned envelope for storeID.
func New(eventType, storeID, correlationID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  Version,
		OccurredAt:    time.Now().UTC(),
		StoreID:       storeID,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

// Decode unmarshals the envelope payload into T.
func Decode[T any](env Envelope) (T, error) {
	var t T
	if err := json.Unmarshal(env.Payload, &t); err != nil {
		return t, fmt.Errorf("decode %s payload: %w", env.EventType, err)
	}
	return t, nil
}

// ---- payloads ----

type InvoiceCreatedPayload struct {
	InvoiceID     string          `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	ClientID      string          `json:"client_id"`
	Total         decimal.Decimal `json:"total"`
	Status        string          `json:"status"`
}

type LowStockPayload struct {
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	Reference    string `json:"reference,omitempty"`
	CurrentStock int    `json:"current_stock"`
	MinimumStock int    `json:"minimum_stock"`
}

type PaymentReceivedPayload struct {
	InvoiceID     string          `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Amount        decimal.Decimal `json:"amount"`
	AmountDue     decimal.Decimal `json:"amount_due"`
	Method        string          `json:"method"`
	Status        string          `json:"status"`
}
