package memstore

import (
	"context"

	"github.com/ariefcatur/optica-engine/internal/apperr"
	"github.com/ariefcatur/optica-engine/internal/invoices"
)

func (t *Tx) ClientInStore(_ context.Context, storeID, clientID string) (bool, error) {
	return t.st.clients[clientID] == storeID, nil
}

func (t *Tx) InvoiceNumberExists(_ context.Context, storeID, number string) (bool, error) {
	for _, inv := range t.st.invoices {
		if inv.StoreID == storeID && inv.InvoiceNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (t *Tx) InsertInvoice(ctx context.Context, inv invoices.Invoice) error {
	taken, _ := t.InvoiceNumberExists(ctx, inv.StoreID, inv.InvoiceNumber)
	if taken {
		return invoices.ErrDuplicateNumber
	}
	t.st.invoices[inv.ID] = inv
	t.st.invoiceOrder = append(t.st.invoiceOrder, inv.ID)
	return nil
}

func (t *Tx) InsertItem(_ context.Context, it invoices.Item) error {
	if _, ok := t.st.invoices[it.InvoiceID]; !ok {
		return apperr.ErrNotFound
	}
	t.st.items[it.InvoiceID] = append(t.st.items[it.InvoiceID], it)
	return nil
}

func (t *Tx) LockInvoice(_ context.Context, storeID, id string) (invoices.Invoice, error) {
	inv, ok := t.st.invoices[id]
	if !ok || inv.StoreID != storeID {
		return invoices.Invoice{}, apperr.ErrNotFound
	}
	return inv, nil
}

func (t *Tx) UpdateInvoiceState(_ context.Context, inv invoices.Invoice) error {
	cur, ok := t.st.invoices[inv.ID]
	if !ok {
		return apperr.ErrNotFound
	}
	cur.AmountPaid = inv.AmountPaid
	cur.AmountDue = inv.AmountDue
	cur.Status = inv.Status
	cur.PaidAt = inv.PaidAt
	cur.UpdatedAt = inv.UpdatedAt
	t.st.invoices[inv.ID] = cur
	return nil
}

func (t *Tx) InsertPayment(_ context.Context, p invoices.Payment) error {
	if _, ok := t.st.invoices[p.InvoiceID]; !ok {
		return apperr.ErrNotFound
	}
	t.st.payments[p.InvoiceID] = append(t.st.payments[p.InvoiceID], p)
	return nil
}

func (s *Store) GetInvoice(_ context.Context, storeID, id string) (inv invoices.Invoice, err error) {
	s.locked(func(x *state) {
		var ok bool
		inv, ok = x.invoices[id]
		if !ok || inv.StoreID != storeID {
			inv, err = invoices.Invoice{}, apperr.ErrNotFound
		}
	})
	return inv, err
}

func (s *Store) ListItems(_ context.Context, invoiceID string) ([]invoices.Item, error) {
	var out []invoices.Item
	s.locked(func(x *state) { out = append([]invoices.Item{}, x.items[invoiceID]...) })
	return out, nil
}

func (s *Store) ListPayments(_ context.Context, invoiceID string) ([]invoices.Payment, error) {
	var out []invoices.Payment
	s.locked(func(x *state) { out = append([]invoices.Payment{}, x.payments[invoiceID]...) })
	return out, nil
}

// ListInvoices returns newest first.
func (s *Store) ListInvoices(_ context.Context, storeID string, f invoices.ListFilter) ([]invoices.Invoice, error) {
	out := []invoices.Invoice{}
	s.locked(func(x *state) {
		for i := len(x.invoiceOrder) - 1; i >= 0 && (f.Limit <= 0 || len(out) < f.Limit); i-- {
			inv := x.invoices[x.invoiceOrder[i]]
			if inv.StoreID != storeID || (f.Status != "" && inv.Status != f.Status) {
				continue
			}
			out = append(out, inv)
		}
	})
	return out, nil
}
