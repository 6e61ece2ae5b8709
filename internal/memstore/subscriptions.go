package memstore

import (
	"context"

	"github.com/ariefcatur/optica-engine/internal/apperr"
	"github.com/ariefcatur/optica-engine/internal/subscriptions"
)

func (t *Tx) LockAccount(_ context.Context, tenantID string) error {
	if _, ok := t.st.accounts[tenantID]; !ok {
		return apperr.ErrNotFound
	}
	return nil
}

func latest(subs []subscriptions.Subscription, tenantID string) (int, bool) {
	idx := -1
	for i, s := range subs {
		if s.TenantID != tenantID {
			continue
		}
		if idx < 0 || s.ExpiryDate.After(subs[idx].ExpiryDate) {
			idx = i
		}
	}
	return idx, idx >= 0
}

func (t *Tx) CurrentSubscription(_ context.Context, tenantID string) (subscriptions.Subscription, error) {
	i, ok := latest(t.st.subs, tenantID)
	if !ok {
		return subscriptions.Subscription{}, apperr.ErrNotFound
	}
	return t.st.subs[i], nil
}

func (t *Tx) InsertSubscription(_ context.Context, s subscriptions.Subscription) error {
	t.st.subs = append(t.st.subs, s)
	return nil
}

func (t *Tx) UpdateSubscription(_ context.Context, s subscriptions.Subscription) error {
	for i := range t.st.subs {
		if t.st.subs[i].ID == s.ID {
			t.st.subs[i] = s
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (t *Tx) GetOffer(_ context.Context, id string) (subscriptions.Offer, error) {
	o, ok := t.st.offers[id]
	if !ok {
		return subscriptions.Offer{}, apperr.ErrNotFound
	}
	return o, nil
}

func (t *Tx) InsertPaymentRequest(_ context.Context, pr subscriptions.PaymentRequest) error {
	t.st.requests[pr.ID] = pr
	t.st.requestOrder = append(t.st.requestOrder, pr.ID)
	return nil
}

func (t *Tx) LockPaymentRequest(_ context.Context, id string) (subscriptions.PaymentRequest, error) {
	pr, ok := t.st.requests[id]
	if !ok {
		return subscriptions.PaymentRequest{}, apperr.ErrNotFound
	}
	return pr, nil
}

func (t *Tx) UpdatePaymentRequest(_ context.Context, pr subscriptions.PaymentRequest) error {
	if _, ok := t.st.requests[pr.ID]; !ok {
		return apperr.ErrNotFound
	}
	t.st.requests[pr.ID] = pr
	return nil
}

func (t *Tx) RaiseStoreQuota(_ context.Context, tenantID string, maxStores int) error {
	a, ok := t.st.accounts[tenantID]
	if !ok {
		return apperr.ErrNotFound
	}
	if maxStores > a.StoreQuota {
		a.StoreQuota = maxStores
		t.st.accounts[tenantID] = a
	}
	return nil
}

func (s *Store) LatestSubscription(_ context.Context, tenantID string) (sub subscriptions.Subscription, err error) {
	s.locked(func(x *state) {
		i, ok := latest(x.subs, tenantID)
		if !ok {
			err = apperr.ErrNotFound
			return
		}
		sub = x.subs[i]
	})
	return sub, err
}

func (s *Store) ListPaymentRequests(_ context.Context, tenantID string, status subscriptions.RequestStatus) ([]subscriptions.PaymentRequest, error) {
	out := []subscriptions.PaymentRequest{}
	s.locked(func(x *state) {
		for i := len(x.requestOrder) - 1; i >= 0; i-- {
			pr := x.requests[x.requestOrder[i]]
			if pr.TenantID == tenantID && (status == "" || pr.Status == status) {
				out = append(out, pr)
			}
		}
	})
	return out, nil
}
