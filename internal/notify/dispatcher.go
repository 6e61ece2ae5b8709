package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/optica-engine/internal/apperr"
	"github.com/ariefcatur/optica-engine/internal/events"
	"github.com/ariefcatur/optica-engine/internal/logger"
	"github.com/ariefcatur/optica-engine/internal/tenant"
	"github.com/ariefcatur/optica-engine/internal/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Store interface {
	tenant.StoreReader
	StoreUsers(ctx context.Context, storeID string) ([]string, error)
	ChannelSettings(ctx context.Context, storeID string) ([]Setting, error)
	// InsertNotification reports false when n.Dedupe is set and the user
	// already has an unread notification of the same type for that entity.
	InsertNotification(ctx context.Context, n Notification) (bool, error)
	ListNotifications(ctx context.Context, storeID, userID string, unreadOnly bool, limit int) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, storeID, userID, id string, at time.Time) (Notification, error)
	SaveChannelSettings(ctx context.Context, storeID string, settings []Setting, email *string) error
}

// Result summarizes one dispatch.
type Result struct {
	InApp     int
	Deduped   int
	EmailSent bool
}

// Dispatcher fans a committed event out to the store's enabled channels.
type Dispatcher struct {
	store  Store
	mailer Mailer
	log    *zap.Logger
	now    func() time.Time
}

func NewDispatcher(store Store, mailer Mailer, log *zap.Logger) *Dispatcher {
	log = logger.OrNop(log)
	if mailer == nil {
		mailer = LogMailer{Log: log}
	}
	return &Dispatcher{store: store, mailer: mailer, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Publish lets the dispatcher stand in as an events.Sink.
func (d *Dispatcher) Publish(ctx context.Context, evs ...events.Envelope) error {
	var errs []error
	for _, ev := range evs {
		if _, err := d.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Notify delivers env. Email failures are logged and never returned.
func (d *Dispatcher) Notify(ctx context.Context, env events.Envelope) (Result, error) {
	if env.StoreID == "" {
		return Result{}, apperr.Field("storeId", "event carries no store")
	}
	st, err := d.store.GetStore(ctx, env.StoreID)
	if err != nil {
		return Result{}, fmt.Errorf("load store %s: %w", env.StoreID, err)
	}
	overrides, err := d.store.ChannelSettings(ctx, env.StoreID)
	if err != nil {
		return Result{}, fmt.Errorf("load channel settings: %w", err)
	}
	setting := Resolve(overrides, env.EventType)
	msg, err := render(env)
	if err != nil {
		return Result{}, err
	}

	var res Result
	g, gctx := errgroup.WithContext(ctx)
	if setting.Email && st.NotificationEmail != "" {
		g.Go(func() error {
			if err := d.mailer.Send(gctx, st.NotificationEmail, msg.Title, msg.Body); err != nil {
				d.log.Warn("notification email failed",
					zap.String("store_id", st.ID),
					zap.String("event_type", env.EventType),
					zap.Error(apperr.Dependency("mail", err)))
				return nil
			}
			res.EmailSent = true
			return nil
		})
	}
	if setting.InApp {
		g.Go(func() error {
			inserted, deduped, err := d.inApp(gctx, env, msg)
			res.InApp, res.Deduped = inserted, deduped
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	d.log.Debug("event dispatched",
		zap.String("store_id", env.StoreID),
		zap.String("event_type", env.EventType),
		zap.Int("in_app", res.InApp),
		zap.Int("deduped", res.Deduped),
		zap.Bool("email", res.EmailSent))
	return res, nil
}

func (d *Dispatcher) inApp(ctx context.Context, env events.Envelope, msg message) (inserted, deduped int, err error) {
	users, err := d.store.StoreUsers(ctx, env.StoreID)
	if err != nil {
		return 0, 0, fmt.Errorf("list store users: %w", err)
	}
	now := d.now()
	for _, u := range users {
		ok, err := d.store.InsertNotification(ctx, Notification{
			ID:        uuid.NewString(),
			UserID:    u,
			StoreID:   env.StoreID,
			Type:      env.EventType,
			Title:     msg.Title,
			Message:   msg.Body,
			Link:      msg.Link,
			Data:      env.Payload,
			Dedupe:    env.Dedupe,
			CreatedAt: now,
		})
		if err != nil {
			return inserted, deduped, fmt.Errorf("insert notification for %s: %w", u, err)
		}
		if ok {
			inserted++
		} else {
			deduped++
		}
	}
	return inserted, deduped, nil
}

func (d *Dispatcher) List(ctx context.Context, tc tenant.Context, unreadOnly bool, limit int) ([]Notification, error) {
	if err := tc.RequireStore(); err != nil {
		return nil, err
	}
	if tc.UserID == "" {
		return nil, apperr.Field("userId", "missing user context")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if _, err := tenant.Authorize(ctx, d.store, tc, tc.StoreID); err != nil {
		return nil, err
	}
	return d.store.ListNotifications(ctx, tc.StoreID, tc.UserID, unreadOnly, limit)
}

func (d *Dispatcher) MarkRead(ctx context.Context, tc tenant.Context, id string) (Notification, error) {
	if err := tc.RequireStore(); err != nil {
		return Notification{}, err
	}
	if tc.UserID == "" {
		return Notification{}, apperr.Field("userId", "missing user context")
	}
	if _, err := tenant.Authorize(ctx, d.store, tc, tc.StoreID); err != nil {
		return Notification{}, err
	}
	return d.store.MarkNotificationRead(ctx, tc.StoreID, tc.UserID, id, d.now())
}

func (d *Dispatcher) UpdateSettings(ctx context.Context, tc tenant.Context, in SettingsInput) ([]Setting, error) {
	if err := tc.RequireStore(); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if _, err := tenant.Authorize(ctx, d.store, tc, tc.StoreID); err != nil {
		return nil, err
	}
	if err := d.store.SaveChannelSettings(ctx, tc.StoreID, in.Settings, in.NotificationEmail); err != nil {
		return nil, fmt.Errorf("save channel settings: %w", err)
	}
	return d.Settings(ctx, tc)
}

// Settings lists the effective toggles for every known type plus overrides.
func (d *Dispatcher) Settings(ctx context.Context, tc tenant.Context) ([]Setting, error) {
	if err := tc.RequireStore(); err != nil {
		return nil, err
	}
	if _, err := tenant.Authorize(ctx, d.store, tc, tc.StoreID); err != nil {
		return nil, err
	}
	overrides, err := d.store.ChannelSettings(ctx, tc.StoreID)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	out := make([]Setting, 0, len(defaults)+len(overrides))
	for _, t := range []string{events.TypeInvoiceCreated, events.TypeLowStock, events.TypePaymentReceived} {
		out = append(out, Resolve(overrides, t))
		seen[t] = true
	}
	for _, s := range overrides {
		if !seen[s.EventType] {
			out = append(out, s)
			seen[s.EventType] = true
		}
	}
	return out, nil
}
