package notify

import (
	"encoding/json"
	"time"

	"github.com/ariefcatur/optica-engine/internal/events"
)

type Notification struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	StoreID   string            `json:"storeId"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Link      string            `json:"link,omitempty"`
	Data      json.RawMessage   `json:"data,omitempty"`
	Dedupe    *events.DedupeKey `json:"dedupe,omitempty"`
	ReadAt    *time.Time        `json:"readAt,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Setting toggles the channels for one event type in one store.
type Setting struct {
	EventType string `json:"eventType" validate:"required,max=64"`
	InApp     bool   `json:"inApp"`
	Email     bool   `json:"email"`
}

type SettingsInput struct {
	Settings          []Setting `json:"settings" validate:"dive"`
	NotificationEmail *string   `json:"notificationEmail" validate:"omitempty,email"`
}

var defaults = map[string]Setting{
	events.TypeInvoiceCreated:  {EventType: events.TypeInvoiceCreated, InApp: true},
	events.TypeLowStock:        {EventType: events.TypeLowStock, InApp: true, Email: true},
	events.TypePaymentReceived: {EventType: events.TypePaymentReceived, InApp: true},
}

// Resolve picks the store override for eventType, then the built-in default.
// Unknown types go to in-app only.
func Resolve(overrides []Setting, eventType string) Setting {
	for _, s := range overrides {
		if s.EventType == eventType {
			return s
		}
	}
	if d, ok := defaults[eventType]; ok {
		return d
	}
	return Setting{EventType: eventType, InApp: true}
}
