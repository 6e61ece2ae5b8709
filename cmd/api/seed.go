package main

import (
	"time"

	"github.com/ariefcatur/optica-engine/internal/memstore"
	"github.com/ariefcatur/optica-engine/internal/stock"
	"github.com/ariefcatur/optica-engine/internal/subscriptions"
	"github.com/ariefcatur/optica-engine/internal/tenant"
	"github.com/shopspring/decimal"
)

// seedDemo gives the in-memory backend one owner with a store, a client and
// a few products so the API can be tried without a database.
func seedDemo(ms *memstore.Store) {
	now := time.Now().UTC()
	ms.PutStore(tenant.Store{ID: "store-demo", OwnerID: "owner-demo", Name: "Demo Optics", Prefix: "DEMO"})
	ms.AddStoreUser("store-demo", "user-demo")
	ms.PutClient("store-demo", "client-demo")
	ms.PutProduct(stock.Product{ID: "prod-frame", StoreID: "store-demo", Name: "Acetate frame", Reference: "FR-001", CurrentStock: 12, MinimumStock: 3, UpdatedAt: now})
	ms.PutProduct(stock.Product{ID: "prod-lens", StoreID: "store-demo", Name: "Single vision lens", Reference: "LN-001", CurrentStock: 5, MinimumStock: 5, UpdatedAt: now})
	ms.PutOffer(subscriptions.Offer{ID: "offer-annual", Name: "Annual", Months: 12, MaxStores: 3, Price: decimal.NewFromInt(240)})
	ms.PutSubscription(subscriptions.Subscription{
		ID:         "sub-demo",
		TenantID:   "owner-demo",
		StartDate:  now,
		ExpiryDate: now.AddDate(0, 1, 0),
		Status:     subscriptions.StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}
