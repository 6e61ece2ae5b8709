package subscriptions

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusPending Status = "pending"
)

type Unit string

const (
	UnitDays   Unit = "days"
	UnitMonths Unit = "months"
)

type Mode string

const (
	// ModeAdd stacks new time on top of an unexpired window.
	ModeAdd Mode = "add"
	// ModeSet restarts the window from now.
	ModeSet Mode = "set"
)

// Subscription is one paid window for a tenant (owner account). The row with
// the latest ExpiryDate is the current one.
type Subscription struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	StartDate  time.Time `json:"startDate"`
	ExpiryDate time.Time `json:"expiryDate"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// EffectiveStatus reports expired once the window has passed, whatever is stored.
func (s Subscription) EffectiveStatus(now time.Time) Status {
	if s.Status == StatusActive && s.ExpiryDate.Before(now) {
		return StatusExpired
	}
	return s.Status
}

type Offer struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Months    int             `json:"months"`
	MaxStores int             `json:"maxStores"`
	Price     decimal.Decimal `json:"price"`
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

type PaymentRequest struct {
	ID              string          `json:"id"`
	TenantID        string          `json:"tenantId"`
	OfferID         *string         `json:"offerId,omitempty"`
	MonthsRequested int             `json:"monthsRequested"`
	Amount          decimal.Decimal `json:"amount"`
	Method          string          `json:"method"`
	Reference       string          `json:"reference,omitempty"`
	Status          RequestStatus   `json:"status"`
	RejectReason    string          `json:"rejectReason,omitempty"`
	ReviewedBy      string          `json:"reviewedBy,omitempty"`
	ReviewedAt      *time.Time      `json:"reviewedAt,omitempty"`
	CreatedBy       string          `json:"createdBy"`
	CreatedAt       time.Time       `json:"createdAt"`
}

type ExtendInput struct {
	Unit   Unit `json:"unit" validate:"required,oneof=days months"`
	Amount int  `json:"amount" validate:"gt=0"`
	Mode   Mode `json:"mode" validate:"required,oneof=add set"`
}

type CreateRequestInput struct {
	MonthsRequested int             `json:"monthsRequested" validate:"gt=0,lte=36"`
	OfferID         *string         `json:"offerId"`
	Amount          decimal.Decimal `json:"amount" validate:"gte=0"`
	Method          string          `json:"method" validate:"required,max=50"`
	Reference       string          `json:"reference" validate:"max=100"`
}
