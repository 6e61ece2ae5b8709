package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/optica-engine/internal/apperr"
	"github.com/ariefcatur/optica-engine/internal/logger"
	"github.com/ariefcatur/optica-engine/internal/tenant"
	"github.com/ariefcatur/optica-engine/internal/txn"
	"github.com/ariefcatur/optica-engine/internal/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Tx interface {
	// LockAccount holds the tenant account row for the rest of the transaction.
	LockAccount(ctx context.Context, tenantID string) error
	// CurrentSubscription returns the row with the latest expiry, or ErrNotFound.
	CurrentSubscription(ctx context.Context, tenantID string) (Subscription, error)
	InsertSubscription(ctx context.Context, s Subscription) error
	UpdateSubscription(ctx context.Context, s Subscription) error
	GetOffer(ctx context.Context, offerID string) (Offer, error)
	InsertPaymentRequest(ctx context.Context, pr PaymentRequest) error
	LockPaymentRequest(ctx context.Context, id string) (PaymentRequest, error)
	UpdatePaymentRequest(ctx context.Context, pr PaymentRequest) error
	// RaiseStoreQuota sets the account quota to max(current, maxStores).
	RaiseStoreQuota(ctx context.Context, tenantID string, maxStores int) error
}

type Reader interface {
	LatestSubscription(ctx context.Context, tenantID string) (Subscription, error)
	ListPaymentRequests(ctx context.Context, tenantID string, status RequestStatus) ([]PaymentRequest, error)
}

// Locker serializes work on one tenant across API instances.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, err error)
}

const lockTTL = 10 * time.Second

type Manager struct {
	runner txn.Runner[Tx]
	reader Reader
	locker Locker
	log    *zap.Logger
	now    func() time.Time
}

func NewManager(runner txn.Runner[Tx], reader Reader, locker Locker, log *zap.Logger) *Manager {
	return &Manager{
		runner: runner,
		reader: reader,
		locker: locker,
		log:    logger.OrNop(log),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func requireAdmin(tc tenant.Context) error {
	if !tc.IsAdmin() {
		return apperr.ErrForbidden
	}
	return nil
}

// Extend is the admin entry point for manual time changes on a tenant.
func (m *Manager) Extend(ctx context.Context, tc tenant.Context, tenantID string, in ExtendInput) (Subscription, error) {
	if err := requireAdmin(tc); err != nil {
		return Subscription{}, err
	}
	if strings.TrimSpace(tenantID) == "" {
		return Subscription{}, apperr.Field("tenant", "is required")
	}
	if err := validation.Struct(in); err != nil {
		return Subscription{}, err
	}

	var out Subscription
	err := m.withTenantLock(ctx, tenantID, func(ctx context.Context) error {
		return m.runner.Run(ctx, func(ctx context.Context, tx Tx) error {
			var err error
			out, err = m.extend(ctx, tx, tenantID, in)
			return err
		})
	})
	if err != nil {
		return Subscription{}, err
	}
	m.log.Info("subscription extended",
		zap.String("tenant_id", tenantID),
		zap.String("mode", string(in.Mode)),
		zap.Int("amount", in.Amount),
		zap.String("unit", string(in.Unit)),
		zap.Time("expiry", out.ExpiryDate))
	return out, nil
}

func (m *Manager) extend(ctx context.Context, tx Tx, tenantID string, in ExtendInput) (Subscription, error) {
	if err := tx.LockAccount(ctx, tenantID); err != nil {
		return Subscription{}, fmt.Errorf("lock account %s: %w", tenantID, err)
	}
	now := m.now()
	cur, err := tx.CurrentSubscription(ctx, tenantID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		next := Extend(nil, in, now)
		next.ID = uuid.NewString()
		next.TenantID = tenantID
		if err := tx.InsertSubscription(ctx, next); err != nil {
			return Subscription{}, fmt.Errorf("insert subscription: %w", err)
		}
		return next, nil
	case err != nil:
		return Subscription{}, fmt.Errorf("load subscription: %w", err)
	}
	next := Extend(&cur, in, now)
	if err := tx.UpdateSubscription(ctx, next); err != nil {
		return Subscription{}, fmt.Errorf("update subscription: %w", err)
	}
	return next, nil
}

// Current returns the caller's latest window with its status derived from now.
func (m *Manager) Current(ctx context.Context, tc tenant.Context) (Subscription, error) {
	if tc.OwnerID == "" {
		return Subscription{}, apperr.Field("ownerId", "missing owner context")
	}
	s, err := m.reader.LatestSubscription(ctx, tc.OwnerID)
	if err != nil {
		return Subscription{}, err
	}
	s.Status = s.EffectiveStatus(m.now())
	return s, nil
}

func (m *Manager) CreatePaymentRequest(ctx context.Context, tc tenant.Context, in CreateRequestInput) (PaymentRequest, error) {
	if tc.OwnerID == "" {
		return PaymentRequest{}, apperr.Field("ownerId", "missing owner context")
	}
	if err := validation.Struct(in); err != nil {
		return PaymentRequest{}, err
	}
	pr := PaymentRequest{
		ID:              uuid.NewString(),
		TenantID:        tc.OwnerID,
		OfferID:         in.OfferID,
		MonthsRequested: in.MonthsRequested,
		Amount:          in.Amount,
		Method:          in.Method,
		Reference:       in.Reference,
		Status:          RequestPending,
		CreatedBy:       tc.UserID,
		CreatedAt:       m.now(),
	}
	err := m.runner.Run(ctx, func(ctx context.Context, tx Tx) error {
		if pr.OfferID != nil {
			if _, err := tx.GetOffer(ctx, *pr.OfferID); err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					return apperr.Field("offerId", "unknown subscription offer")
				}
				return err
			}
		}
		return tx.InsertPaymentRequest(ctx, pr)
	})
	if err != nil {
		return PaymentRequest{}, err
	}
	return pr, nil
}

func (m *Manager) ListPaymentRequests(ctx context.Context, tc tenant.Context, status RequestStatus) ([]PaymentRequest, error) {
	if tc.OwnerID == "" {
		return nil, apperr.Field("ownerId", "missing owner context")
	}
	return m.reader.ListPaymentRequests(ctx, tc.OwnerID, status)
}

// ApprovePaymentRequest extends the tenant by MonthsRequested in add mode and
// raises the store quota to the matched offer when that is larger.
func (m *Manager) ApprovePaymentRequest(ctx context.Context, tc tenant.Context, id string) (PaymentRequest, error) {
	if err := requireAdmin(tc); err != nil {
		return PaymentRequest{}, err
	}
	var out PaymentRequest
	tenantID, err := m.requestTenant(ctx, id)
	if err != nil {
		return PaymentRequest{}, err
	}
	err = m.withTenantLock(ctx, tenantID, func(ctx context.Context) error {
		return m.runner.Run(ctx, func(ctx context.Context, tx Tx) error {
			pr, err := tx.LockPaymentRequest(ctx, id)
			if err != nil {
				return err
			}
			if pr.Status != RequestPending {
				return apperr.Field("status", "payment request is already "+string(pr.Status))
			}
			if _, err := m.extend(ctx, tx, pr.TenantID, ExtendInput{Unit: UnitMonths, Amount: pr.MonthsRequested, Mode: ModeAdd}); err != nil {
				return err
			}
			if pr.OfferID != nil {
				offer, err := tx.GetOffer(ctx, *pr.OfferID)
				if err != nil && !errors.Is(err, apperr.ErrNotFound) {
					return fmt.Errorf("load offer: %w", err)
				}
				if err == nil && offer.MaxStores > 0 {
					if err := tx.RaiseStoreQuota(ctx, pr.TenantID, offer.MaxStores); err != nil {
						return fmt.Errorf("raise store quota: %w", err)
					}
				}
			}
			now := m.now()
			pr.Status = RequestApproved
			pr.ReviewedBy = tc.UserID
			pr.ReviewedAt = &now
			if err := tx.UpdatePaymentRequest(ctx, pr); err != nil {
				return fmt.Errorf("update payment request: %w", err)
			}
			out = pr
			return nil
		})
	})
	if err != nil {
		return PaymentRequest{}, err
	}
	m.log.Info("payment request approved", zap.String("tenant_id", out.TenantID), zap.String("request_id", out.ID))
	return out, nil
}

func (m *Manager) RejectPaymentRequest(ctx context.Context, tc tenant.Context, id, reason string) (PaymentRequest, error) {
	if err := requireAdmin(tc); err != nil {
		return PaymentRequest{}, err
	}
	var out PaymentRequest
	err := m.runner.Run(ctx, func(ctx context.Context, tx Tx) error {
		pr, err := tx.LockPaymentRequest(ctx, id)
		if err != nil {
			return err
		}
		if pr.Status != RequestPending {
			return apperr.Field("status", "payment request is already "+string(pr.Status))
		}
		now := m.now()
		pr.Status = RequestRejected
		pr.RejectReason = reason
		pr.ReviewedBy = tc.UserID
		pr.ReviewedAt = &now
		if err := tx.UpdatePaymentRequest(ctx, pr); err != nil {
			return fmt.Errorf("update payment request: %w", err)
		}
		out = pr
		return nil
	})
	if err != nil {
		return PaymentRequest{}, err
	}
	return out, nil
}

// requestTenant resolves the tenant so the cross-instance lock can be taken
// before the transaction starts.
func (m *Manager) requestTenant(ctx context.Context, id string) (string, error) {
	var tenantID string
	err := m.runner.Run(ctx, func(ctx context.Context, tx Tx) error {
		pr, err := tx.LockPaymentRequest(ctx, id)
		if err != nil {
			return err
		}
		tenantID = pr.TenantID
		return nil
	})
	return tenantID, err
}

func (m *Manager) withTenantLock(ctx context.Context, tenantID string, fn func(context.Context) error) error {
	if m.locker == nil {
		return fn(ctx)
	}
	unlock, err := m.locker.Lock(ctx, "subscription:"+tenantID, lockTTL)
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			m.log.Warn("release tenant lock", zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}()
	return fn(ctx)
}
