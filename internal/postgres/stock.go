package postgres

import (
	"context"
	"time"

	"github.com/ariefcatur/optica-engine/internal/apperr"
	"github.com/ariefcatur/optica-engine/internal/stock"
	"github.com/jackc/pgx/v5"
)

const productCols = `id, store_id, name, reference, current_stock, minimum_stock, low_alerted, updated_at`

func scanProduct(row pgx.Row) (stock.Product, error) {
	var p stock.Product
	err := row.Scan(&p.ID, &p.StoreID, &p.Name, &p.Reference, &p.CurrentStock, &p.MinimumStock, &p.LowAlerted, &p.UpdatedAt)
	return p, notFound(err)
}

// LockProduct takes the row lock that serializes every stock write on the product.
func (t *Tx) LockProduct(ctx context.Context, storeID, productID string) (stock.Product, error) {
	return scanProduct(t.q.QueryRow(ctx, `
		SELECT `+productCols+` FROM products
		WHERE id=$1 AND store_id=$2 FOR UPDATE`, productID, storeID))
}

func (t *Tx) LockProductByReference(ctx context.Context, storeID, reference string) (stock.Product, error) {
	return scanProduct(t.q.QueryRow(ctx, `
		SELECT `+productCols+` FROM products
		WHERE store_id=$1 AND reference=$2
		ORDER BY id LIMIT 1 FOR UPDATE`, storeID, reference))
}

func (t *Tx) SetProductStock(ctx context.Context, productID string, n int, lowAlerted bool, at time.Time) error {
	ct, err := t.q.Exec(ctx, `
		UPDATE products SET current_stock=$2, low_alerted=$3, updated_at=$4
		WHERE id=$1`, productID, n, lowAlerted, at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return apperr.ErrNotFound
	}
	return nil
}

func (t *Tx) InsertMovement(ctx context.Context, m stock.Movement) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO stock_movements(id, store_id, product_id, type, quantity, previous_stock, new_stock,
		                            reason, from_store_id, to_store_id, reference, actor, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		m.ID, m.StoreID, m.ProductID, string(m.Type), m.Quantity, m.PreviousStock, m.NewStock,
		m.Reason, m.FromStoreID, m.ToStoreID, m.Reference, m.Actor, m.CreatedAt)
	return err
}

func (s *Store) ListMovements(ctx context.Context, storeID, productID string, limit int) ([]stock.Movement, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, store_id, product_id, type, quantity, previous_stock, new_stock,
		       reason, from_store_id, to_store_id, reference, actor, created_at
		FROM stock_movements
		WHERE store_id=$1 AND product_id=$2
		ORDER BY created_at DESC, id
		LIMIT $3`, storeID, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []stock.Movement{}
	for rows.Next() {
		var (
			m   stock.Movement
			typ string
		)
		if err := rows.Scan(&m.ID, &m.StoreID, &m.ProductID, &typ, &m.Quantity, &m.PreviousStock, &m.NewStock,
			&m.Reason, &m.FromStoreID, &m.ToStoreID, &m.Reference, &m.Actor, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Type = stock.MovementType(typ)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) ListLowStock(ctx context.Context, storeID string) ([]stock.Product, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+productCols+` FROM products
		WHERE store_id=$1 AND current_stock <= minimum_stock
		ORDER BY name`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []stock.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
