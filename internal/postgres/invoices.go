package postgres

import (
	"context"

	"github.com/ariefcatur/optica-engine/internal/apperr"
	"github.com/ariefcatur/optica-engine/internal/invoices"
	"github.com/jackc/pgx/v5"
)

const invoiceCols = `id, store_id, invoice_number, client_id, subtotal, discount_total, tax_rate, tax_amount,
	total, amount_paid, amount_due, status, notes, created_by, validated_at, paid_at, created_at, updated_at`

func scanInvoice(row pgx.Row) (invoices.Invoice, error) {
	var (
		inv    invoices.Invoice
		status string
	)
	err := row.Scan(&inv.ID, &inv.StoreID, &inv.InvoiceNumber, &inv.ClientID, &inv.Subtotal, &inv.DiscountTotal,
		&inv.TaxRate, &inv.TaxAmount, &inv.Total, &inv.AmountPaid, &inv.AmountDue, &status, &inv.Notes,
		&inv.CreatedBy, &inv.ValidatedAt, &inv.PaidAt, &inv.CreatedAt, &inv.UpdatedAt)
	inv.Status = invoices.Status(status)
	return inv, notFound(err)
}

func (t *Tx) ClientInStore(ctx context.Context, storeID, clientID string) (bool, error) {
	var ok bool
	err := t.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM clients WHERE id=$1 AND store_id=$2)`, clientID, storeID).Scan(&ok)
	return ok, err
}

func (t *Tx) InvoiceNumberExists(ctx context.Context, storeID, number string) (bool, error) {
	var ok bool
	err := t.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM invoices WHERE store_id=$1 AND invoice_number=$2)`, storeID, number).Scan(&ok)
	return ok, err
}

// InsertInvoice maps a race on the per-store number index to ErrDuplicateNumber.
// The failed statement aborts the transaction, so the caller must restart it.
func (t *Tx) InsertInvoice(ctx context.Context, inv invoices.Invoice) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO invoices(`+invoiceCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		inv.ID, inv.StoreID, inv.InvoiceNumber, inv.ClientID, inv.Subtotal, inv.DiscountTotal, inv.TaxRate,
		inv.TaxAmount, inv.Total, inv.AmountPaid, inv.AmountDue, string(inv.Status), inv.Notes, inv.CreatedBy,
		inv.ValidatedAt, inv.PaidAt, inv.CreatedAt, inv.UpdatedAt)
	if isUniqueViolation(err, "invoices_store_number_key") {
		return invoices.ErrDuplicateNumber
	}
	return err
}

func (t *Tx) InsertItem(ctx context.Context, it invoices.Item) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO invoice_items(id, invoice_id, product_id, name, reference, quantity, unit_price, discount_pct, line_total)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		it.ID, it.InvoiceID, it.ProductID, it.Name, it.Reference, it.Quantity, it.UnitPrice, it.DiscountPct, it.LineTotal)
	return err
}

func (t *Tx) LockInvoice(ctx context.Context, storeID, id string) (invoices.Invoice, error) {
	return scanInvoice(t.q.QueryRow(ctx, `
		SELECT `+invoiceCols+` FROM invoices
		WHERE id=$1 AND store_id=$2 FOR UPDATE`, id, storeID))
}

func (t *Tx) UpdateInvoiceState(ctx context.Context, inv invoices.Invoice) error {
	ct, err := t.q.Exec(ctx, `
		UPDATE invoices
		SET amount_paid=$2, amount_due=$3, status=$4, paid_at=$5, updated_at=$6
		WHERE id=$1`,
		inv.ID, inv.AmountPaid, inv.AmountDue, string(inv.Status), inv.PaidAt, inv.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return apperr.ErrNotFound
	}
	return nil
}

func (t *Tx) InsertPayment(ctx context.Context, p invoices.Payment) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO payments(id, invoice_id, amount, method, paid_on, reference, notes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.InvoiceID, p.Amount, p.Method, p.Date, p.Reference, p.Notes, p.CreatedBy)
	return err
}

func (s *Store) GetInvoice(ctx context.Context, storeID, id string) (invoices.Invoice, error) {
	return scanInvoice(s.DB.QueryRow(ctx, `
		SELECT `+invoiceCols+` FROM invoices WHERE id=$1 AND store_id=$2`, id, storeID))
}

func (s *Store) ListItems(ctx context.Context, invoiceID string) ([]invoices.Item, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, invoice_id, product_id, name, reference, quantity, unit_price, discount_pct, line_total
		FROM invoice_items WHERE invoice_id=$1 ORDER BY position`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []invoices.Item{}
	for rows.Next() {
		var it invoices.Item
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.ProductID, &it.Name, &it.Reference, &it.Quantity,
			&it.UnitPrice, &it.DiscountPct, &it.LineTotal); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) ListPayments(ctx context.Context, invoiceID string) ([]invoices.Payment, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, invoice_id, amount, method, paid_on, reference, notes, created_by
		FROM payments WHERE invoice_id=$1 ORDER BY paid_on, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []invoices.Payment{}
	for rows.Next() {
		var p invoices.Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.Date, &p.Reference, &p.Notes, &p.CreatedBy); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ListInvoices(ctx context.Context, storeID string, f invoices.ListFilter) ([]invoices.Invoice, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+invoiceCols+` FROM invoices
		WHERE store_id=$1 AND ($2::text = '' OR status = $2::text)
		ORDER BY created_at DESC, id
		LIMIT $3`, storeID, string(f.Status), f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []invoices.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}
