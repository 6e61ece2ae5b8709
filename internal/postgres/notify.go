package postgres

import (
	"context"
	"time"

	"github.com/ariefcatur/optica-engine/internal/events"
	"github.com/ariefcatur/optica-engine/internal/notify"
	"github.com/jackc/pgx/v5"
)

func (s *Store) StoreUsers(ctx context.Context, storeID string) ([]string, error) {
	rows, err := s.DB.Query(ctx, `SELECT user_id FROM store_users WHERE store_id=$1 ORDER BY user_id`, storeID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *Store) ChannelSettings(ctx context.Context, storeID string) ([]notify.Setting, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT event_type, in_app, email FROM store_notification_settings
		WHERE store_id=$1 ORDER BY event_type`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []notify.Setting
	for rows.Next() {
		var st notify.Setting
		if err := rows.Scan(&st.EventType, &st.InApp, &st.Email); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// InsertNotification relies on the partial unique index over unread rows, so
// two concurrent dispatches of the same alert produce one row.
func (s *Store) InsertNotification(ctx context.Context, n notify.Notification) (bool, error) {
	var entityType, entityID *string
	if n.Dedupe != nil {
		entityType, entityID = &n.Dedupe.EntityType, &n.Dedupe.EntityID
	}
	var data any
	if len(n.Data) > 0 {
		data = string(n.Data)
	}
	ct, err := s.DB.Exec(ctx, `
		INSERT INTO notifications(id, store_id, user_id, type, title, message, link, data,
		                          dedupe_entity_type, dedupe_entity_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8::jsonb,$9,$10,$11)
		ON CONFLICT (user_id, type, dedupe_entity_type, dedupe_entity_id)
		    WHERE read_at IS NULL AND dedupe_entity_id IS NOT NULL
		DO NOTHING`,
		n.ID, n.StoreID, n.UserID, n.Type, n.Title, n.Message, n.Link, data, entityType, entityID, n.CreatedAt)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

const notificationCols = `id, store_id, user_id, type, title, message, link, data, dedupe_entity_type, dedupe_entity_id, read_at, created_at`

func scanNotification(row pgx.Row) (notify.Notification, error) {
	var (
		n                    notify.Notification
		data                 []byte
		entityType, entityID *string
	)
	err := row.Scan(&n.ID, &n.StoreID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Link, &data,
		&entityType, &entityID, &n.ReadAt, &n.CreatedAt)
	if err != nil {
		return notify.Notification{}, notFound(err)
	}
	n.Data = data
	if entityType != nil && entityID != nil {
		n.Dedupe = &events.DedupeKey{EntityType: *entityType, EntityID: *entityID}
	}
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context, storeID, userID string, unreadOnly bool, limit int) ([]notify.Notification, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+notificationCols+` FROM notifications
		WHERE store_id=$1 AND user_id=$2 AND (NOT $3 OR read_at IS NULL)
		ORDER BY created_at DESC
		LIMIT $4`, storeID, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []notify.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) MarkNotificationRead(ctx context.Context, storeID, userID, id string, at time.Time) (notify.Notification, error) {
	return scanNotification(s.DB.QueryRow(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, $4)
		WHERE id=$1 AND store_id=$2 AND user_id=$3
		RETURNING `+notificationCols, id, storeID, userID, at))
}

func (s *Store) SaveChannelSettings(ctx context.Context, storeID string, settings []notify.Setting, email *string) error {
	return s.run(ctx, func(ctx context.Context, tx *Tx) error {
		for _, st := range settings {
			if _, err := tx.q.Exec(ctx, `
				INSERT INTO store_notification_settings(store_id, event_type, in_app, email)
				VALUES ($1,$2,$3,$4)
				ON CONFLICT (store_id, event_type) DO UPDATE SET in_app=EXCLUDED.in_app, email=EXCLUDED.email`,
				storeID, st.EventType, st.InApp, st.Email); err != nil {
				return err
			}
		}
		if email != nil {
			if _, err := tx.q.Exec(ctx, `UPDATE stores SET notification_email=$2 WHERE id=$1`, storeID, *email); err != nil {
				return err
			}
		}
		return nil
	})
}
