package tenant

import (
	"context"
	"fmt"

	"github.com/ariefcatur/optica-engine/internal/apperr"
)

// Store is one physical shop. Inventory, invoices and settings are scoped to it.
type Store struct {
	ID                string `json:"id"`
	OwnerID           string `json:"ownerId"`
	Name              string `json:"name"`
	Prefix            string `json:"prefix"`
	NotificationEmail string `json:"notificationEmail,omitempty"`
}

type StoreReader interface {
	GetStore(ctx context.Context, storeID string) (Store, error)
}

// Authorize loads the store and checks it belongs to the caller's owner account.
func Authorize(ctx context.Context, r StoreReader, c Context, storeID string) (Store, error) {
	s, err := r.GetStore(ctx, storeID)
	if err != nil {
		return Store{}, fmt.Errorf("load store %s: %w", storeID, err)
	}
	if s.OwnerID != c.OwnerID {
		return Store{}, apperr.ErrForbidden
	}
	return s, nil
}
