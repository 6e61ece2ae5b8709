package postgres

import (
	"context"

	"github.com/ariefcatur/optica-engine/internal/apperr"
	"github.com/ariefcatur/optica-engine/internal/subscriptions"
	"github.com/jackc/pgx/v5"
)

const subCols = `id, tenant_id, start_date, expiry_date, status, created_at, updated_at`

func scanSubscription(row pgx.Row) (subscriptions.Subscription, error) {
	var (
		s      subscriptions.Subscription
		status string
	)
	err := row.Scan(&s.ID, &s.TenantID, &s.StartDate, &s.ExpiryDate, &status, &s.CreatedAt, &s.UpdatedAt)
	s.Status = subscriptions.Status(status)
	return s, notFound(err)
}

const requestCols = `id, tenant_id, offer_id, months_requested, amount, method, reference, status,
	reject_reason, reviewed_by, reviewed_at, created_by, created_at`

func scanRequest(row pgx.Row) (subscriptions.PaymentRequest, error) {
	var (
		pr     subscriptions.PaymentRequest
		status string
	)
	err := row.Scan(&pr.ID, &pr.TenantID, &pr.OfferID, &pr.MonthsRequested, &pr.Amount, &pr.Method, &pr.Reference,
		&status, &pr.RejectReason, &pr.ReviewedBy, &pr.ReviewedAt, &pr.CreatedBy, &pr.CreatedAt)
	pr.Status = subscriptions.RequestStatus(status)
	return pr, notFound(err)
}

func (t *Tx) LockAccount(ctx context.Context, tenantID string) error {
	var id string
	err := t.q.QueryRow(ctx, `SELECT id FROM accounts WHERE id=$1 FOR UPDATE`, tenantID).Scan(&id)
	return notFound(err)
}

func (t *Tx) CurrentSubscription(ctx context.Context, tenantID string) (subscriptions.Subscription, error) {
	return scanSubscription(t.q.QueryRow(ctx, `
		SELECT `+subCols+` FROM subscriptions
		WHERE tenant_id=$1
		ORDER BY expiry_date DESC LIMIT 1 FOR UPDATE`, tenantID))
}

func (t *Tx) InsertSubscription(ctx context.Context, s subscriptions.Subscription) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO subscriptions(`+subCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		s.ID, s.TenantID, s.StartDate, s.ExpiryDate, string(s.Status), s.CreatedAt, s.UpdatedAt)
	return err
}

func (t *Tx) UpdateSubscription(ctx context.Context, s subscriptions.Subscription) error {
	ct, err := t.q.Exec(ctx, `
		UPDATE subscriptions SET expiry_date=$2, status=$3, updated_at=$4 WHERE id=$1`,
		s.ID, s.ExpiryDate, string(s.Status), s.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return apperr.ErrNotFound
	}
	return nil
}

func (t *Tx) GetOffer(ctx context.Context, id string) (subscriptions.Offer, error) {
	var o subscriptions.Offer
	err := t.q.QueryRow(ctx, `
		SELECT id, name, months, max_stores, price FROM subscription_offers WHERE id=$1`, id).
		Scan(&o.ID, &o.Name, &o.Months, &o.MaxStores, &o.Price)
	return o, notFound(err)
}

func (t *Tx) InsertPaymentRequest(ctx context.Context, pr subscriptions.PaymentRequest) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO payment_requests(`+requestCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		pr.ID, pr.TenantID, pr.OfferID, pr.MonthsRequested, pr.Amount, pr.Method, pr.Reference, string(pr.Status),
		pr.RejectReason, pr.ReviewedBy, pr.ReviewedAt, pr.CreatedBy, pr.CreatedAt)
	return err
}

func (t *Tx) LockPaymentRequest(ctx context.Context, id string) (subscriptions.PaymentRequest, error) {
	return scanRequest(t.q.QueryRow(ctx, `
		SELECT `+requestCols+` FROM payment_requests WHERE id=$1 FOR UPDATE`, id))
}

func (t *Tx) UpdatePaymentRequest(ctx context.Context, pr subscriptions.PaymentRequest) error {
	ct, err := t.q.Exec(ctx, `
		UPDATE payment_requests
		SET status=$2, reject_reason=$3, reviewed_by=$4, reviewed_at=$5
		WHERE id=$1`,
		pr.ID, string(pr.Status), pr.RejectReason, pr.ReviewedBy, pr.ReviewedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return apperr.ErrNotFound
	}
	return nil
}

func (t *Tx) RaiseStoreQuota(ctx context.Context, tenantID string, maxStores int) error {
	ct, err := t.q.Exec(ctx, `UPDATE accounts SET store_quota = GREATEST(store_quota, $2) WHERE id=$1`, tenantID, maxStores)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *Store) LatestSubscription(ctx context.Context, tenantID string) (subscriptions.Subscription, error) {
	return scanSubscription(s.DB.QueryRow(ctx, `
		SELECT `+subCols+` FROM subscriptions
		WHERE tenant_id=$1 ORDER BY expiry_date DESC LIMIT 1`, tenantID))
}

func (s *Store) ListPaymentRequests(ctx context.Context, tenantID string, status subscriptions.RequestStatus) ([]subscriptions.PaymentRequest, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+requestCols+` FROM payment_requests
		WHERE tenant_id=$1 AND ($2::text = '' OR status = $2::text)
		ORDER BY created_at DESC`, tenantID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []subscriptions.PaymentRequest{}
	for rows.Next() {
		pr, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}
