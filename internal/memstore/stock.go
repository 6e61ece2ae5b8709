package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/ariefcatur/optica-engine/internal/apperr"
	"github.com/ariefcatur/optica-engine/internal/stock"
	"github.com/ariefcatur/optica-engine/internal/tenant"
)

func (t *Tx) GetStore(_ context.Context, id string) (tenant.Store, error) {
	s, ok := t.st.stores[id]
	if !ok {
		return tenant.Store{}, apperr.ErrNotFound
	}
	return s, nil
}

func (t *Tx) LockProduct(_ context.Context, storeID, productID string) (stock.Product, error) {
	p, ok := t.st.products[productID]
	if !ok || p.StoreID != storeID {
		return stock.Product{}, apperr.ErrNotFound
	}
	return p, nil
}

func (t *Tx) LockProductByReference(_ context.Context, storeID, reference string) (stock.Product, error) {
	for _, p := range t.st.products {
		if p.StoreID == storeID && p.Reference == reference {
			return p, nil
		}
	}
	return stock.Product{}, apperr.ErrNotFound
}

func (t *Tx) SetProductStock(_ context.Context, productID string, n int, lowAlerted bool, at time.Time) error {
	p, ok := t.st.products[productID]
	if !ok {
		return apperr.ErrNotFound
	}
	p.CurrentStock = n
	p.LowAlerted = lowAlerted
	p.UpdatedAt = at
	t.st.products[productID] = p
	return nil
}

func (t *Tx) InsertMovement(_ context.Context, m stock.Movement) error {
	t.st.movements = append(t.st.movements, m)
	return nil
}

func (s *Store) GetStore(ctx context.Context, id string) (st tenant.Store, err error) {
	s.locked(func(x *state) { st, err = (&Tx{st: x}).GetStore(ctx, id) })
	return st, err
}

func (s *Store) ListMovements(_ context.Context, storeID, productID string, limit int) ([]stock.Movement, error) {
	out := []stock.Movement{}
	s.locked(func(x *state) {
		for i := len(x.movements) - 1; i >= 0 && len(out) < limit; i-- {
			m := x.movements[i]
			if m.StoreID == storeID && m.ProductID == productID {
				out = append(out, m)
			}
		}
	})
	return out, nil
}

func (s *Store) ListLowStock(_ context.Context, storeID string) ([]stock.Product, error) {
	out := []stock.Product{}
	s.locked(func(x *state) {
		for _, p := range x.products {
			if p.StoreID == storeID && p.IsLow() {
				out = append(out, p)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
