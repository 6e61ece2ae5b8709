// Package memstore keeps every repository in process memory. It backs the API
// when no database is configured and serves as the transactional fake in tests.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ariefcatur/optica-engine/internal/invoices"
	"github.com/ariefcatur/optica-engine/internal/notify"
	"github.com/ariefcatur/optica-engine/internal/stock"
	"github.com/ariefcatur/optica-engine/internal/subscriptions"
	"github.com/ariefcatur/optica-engine/internal/tenant"
	"github.com/ariefcatur/optica-engine/internal/txn"
)

type Account struct {
	ID         string
	StoreQuota int
}

type state struct {
	stores        map[string]tenant.Store
	clients       map[string]string // client id -> store id
	accounts      map[string]Account
	storeUsers    map[string][]string
	products      map[string]stock.Product
	movements     []stock.Movement
	invoices      map[string]invoices.Invoice
	invoiceOrder  []string
	items         map[string][]invoices.Item
	payments      map[string][]invoices.Payment
	subs          []subscriptions.Subscription
	offers        map[string]subscriptions.Offer
	requests      map[string]subscriptions.PaymentRequest
	requestOrder  []string
	notifications []notify.Notification
	settings      map[string][]notify.Setting
}

func newState() *state {
	return &state{
		stores:     map[string]tenant.Store{},
		clients:    map[string]string{},
		accounts:   map[string]Account{},
		storeUsers: map[string][]string{},
		products:   map[string]stock.Product{},
		invoices:   map[string]invoices.Invoice{},
		items:      map[string][]invoices.Item{},
		payments:   map[string][]invoices.Payment{},
		offers:     map[string]subscriptions.Offer{},
		requests:   map[string]subscriptions.PaymentRequest{},
		settings:   map[string][]notify.Setting{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneSlices[K comparable, V any](m map[K][]V) map[K][]V {
	out := make(map[K][]V, len(m))
	for k, v := range m {
		out[k] = append([]V(nil), v...)
	}
	return out
}

// clone copies the containers. Values are stored by value, so rows are
// never shared between a snapshot and the live state.
func (s *state) clone() *state {
	return &state{
		stores:        cloneMap(s.stores),
		clients:       cloneMap(s.clients),
		accounts:      cloneMap(s.accounts),
		storeUsers:    cloneSlices(s.storeUsers),
		products:      cloneMap(s.products),
		movements:     append([]stock.Movement(nil), s.movements...),
		invoices:      cloneMap(s.invoices),
		invoiceOrder:  append([]string(nil), s.invoiceOrder...),
		items:         cloneSlices(s.items),
		payments:      cloneSlices(s.payments),
		subs:          append([]subscriptions.Subscription(nil), s.subs...),
		offers:        cloneMap(s.offers),
		requests:      cloneMap(s.requests),
		requestOrder:  append([]string(nil), s.requestOrder...),
		notifications: append([]notify.Notification(nil), s.notifications...),
		settings:      cloneSlices(s.settings),
	}
}

// Store serializes all transactions under one mutex; a failed transaction
// restores the snapshot taken when it began.
type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store { return &Store{st: newState()} }

func (s *Store) run(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.st.clone()
	if err := fn(ctx, &Tx{st: s.st}); err != nil {
		s.st = snap
		return err
	}
	return nil
}

// Runner adapts the store to a txn.Runner for the interface T a service expects.
func Runner[T any](s *Store) txn.Runner[T] {
	return txn.RunnerFunc[T](func(ctx context.Context, fn func(ctx context.Context, tx T) error) error {
		return s.run(ctx, func(ctx context.Context, tx *Tx) error {
			t, ok := any(tx).(T)
			if !ok {
				return fmt.Errorf("memstore: %T does not satisfy the requested transaction interface", tx)
			}
			return fn(ctx, t)
		})
	})
}

func (s *Store) locked(fn func(st *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.st)
}

// Tx is a handle on the live state, valid only inside Store.run.
type Tx struct{ st *state }

var (
	_ stock.ServiceTx  = (*Tx)(nil)
	_ invoices.Tx      = (*Tx)(nil)
	_ subscriptions.Tx = (*Tx)(nil)
)

// ---- seeding ----

func (s *Store) PutStore(st tenant.Store) {
	s.locked(func(x *state) {
		x.stores[st.ID] = st
		if _, ok := x.accounts[st.OwnerID]; !ok {
			x.accounts[st.OwnerID] = Account{ID: st.OwnerID, StoreQuota: 1}
		}
	})
}

func (s *Store) PutClient(storeID, clientID string) {
	s.locked(func(x *state) { x.clients[clientID] = storeID })
}

func (s *Store) AddStoreUser(storeID, userID string) {
	s.locked(func(x *state) { x.storeUsers[storeID] = append(x.storeUsers[storeID], userID) })
}

func (s *Store) PutProduct(p stock.Product) {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	s.locked(func(x *state) { x.products[p.ID] = p })
}

func (s *Store) PutOffer(o subscriptions.Offer) {
	s.locked(func(x *state) { x.offers[o.ID] = o })
}

func (s *Store) PutSubscription(sub subscriptions.Subscription) {
	s.locked(func(x *state) { x.subs = append(x.subs, sub) })
}

// ---- inspection ----

func (s *Store) Product(id string) (stock.Product, bool) {
	var (
		p  stock.Product
		ok bool
	)
	s.locked(func(x *state) { p, ok = x.products[id] })
	return p, ok
}

func (s *Store) Movements(productID string) []stock.Movement {
	var out []stock.Movement
	s.locked(func(x *state) {
		for _, m := range x.movements {
			if m.ProductID == productID {
				out = append(out, m)
			}
		}
	})
	return out
}

func (s *Store) Account(id string) (Account, bool) {
	var (
		a  Account
		ok bool
	)
	s.locked(func(x *state) { a, ok = x.accounts[id] })
	return a, ok
}
