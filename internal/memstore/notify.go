package memstore

import (
	"context"
	"time"

	"github.com/ariefcatur/optica-engine/internal/apperr"
	"github.com/ariefcatur/optica-engine/internal/notify"
)

var _ notify.Store = (*Store)(nil)

func (s *Store) StoreUsers(_ context.Context, storeID string) ([]string, error) {
	var out []string
	s.locked(func(x *state) { out = append([]string(nil), x.storeUsers[storeID]...) })
	return out, nil
}

func (s *Store) ChannelSettings(_ context.Context, storeID string) ([]notify.Setting, error) {
	var out []notify.Setting
	s.locked(func(x *state) { out = append([]notify.Setting(nil), x.settings[storeID]...) })
	return out, nil
}

func (s *Store) InsertNotification(_ context.Context, n notify.Notification) (inserted bool, err error) {
	s.locked(func(x *state) {
		if n.Dedupe != nil {
			for _, cur := range x.notifications {
				if cur.ReadAt == nil && cur.UserID == n.UserID && cur.Type == n.Type &&
					cur.Dedupe != nil && *cur.Dedupe == *n.Dedupe {
					return
				}
			}
		}
		x.notifications = append(x.notifications, n)
		inserted = true
	})
	return inserted, nil
}

func (s *Store) ListNotifications(_ context.Context, storeID, userID string, unreadOnly bool, limit int) ([]notify.Notification, error) {
	out := []notify.Notification{}
	s.locked(func(x *state) {
		for i := len(x.notifications) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
			n := x.notifications[i]
			if n.StoreID != storeID || n.UserID != userID || (unreadOnly && n.ReadAt != nil) {
				continue
			}
			out = append(out, n)
		}
	})
	return out, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, storeID, userID, id string, at time.Time) (n notify.Notification, err error) {
	err = apperr.ErrNotFound
	s.locked(func(x *state) {
		for i := range x.notifications {
			cur := &x.notifications[i]
			if cur.ID != id || cur.StoreID != storeID || cur.UserID != userID {
				continue
			}
			if cur.ReadAt == nil {
				t := at
				cur.ReadAt = &t
			}
			n, err = *cur, nil
			return
		}
	})
	return n, err
}

// SaveChannelSettings upserts by event type and optionally replaces the
// store's notification address.
func (s *Store) SaveChannelSettings(_ context.Context, storeID string, settings []notify.Setting, email *string) (err error) {
	s.locked(func(x *state) {
		st, ok := x.stores[storeID]
		if !ok {
			err = apperr.ErrNotFound
			return
		}
		cur := x.settings[storeID]
		for _, in := range settings {
			replaced := false
			for i := range cur {
				if cur[i].EventType == in.EventType {
					cur[i], replaced = in, true
				}
			}
			if !replaced {
				cur = append(cur, in)
			}
		}
		x.settings[storeID] = cur
		if email != nil {
			st.NotificationEmail = *email
			x.stores[storeID] = st
		}
	})
	return err
}
