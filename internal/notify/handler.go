package notify

import (
	"context"

	"github.com/ariefcatur/optica-engine/internal/events"
	kafkax "github.com/ariefcatur/optica-engine/internal/kafka"
	"github.com/ariefcatur/optica-engine/internal/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Seen tracks processed event ids across redeliveries.
type Seen interface {
	First(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

// Handler adapts the dispatcher to the kafka consumer. Malformed messages are
// logged and skipped so they do not block the partition. seen may be nil; the
// in-app dedupe key still protects against duplicates then.
func Handler(d *Dispatcher, seen Seen, log *zap.Logger) kafkax.Handler {
	log = logger.OrNop(log)
	return func(ctx context.Context, m kafka.Message) error {
		env, err := kafkax.Unmarshal[events.Envelope](m.Value)
		if err != nil {
			log.Warn("skip malformed event", zap.Int64("offset", m.Offset), zap.Error(err))
			return nil
		}
		if v := kafkax.Header(m.Headers, "x-event-version"); v != "" && v != "1" {
			log.Warn("skip unsupported event version", zap.String("version", v), zap.String("event_type", env.EventType))
			return nil
		}

		if seen != nil && env.EventID != "" {
			first, err := seen.First(ctx, env.EventID)
			if err != nil {
				// fall through: dispatching twice is safer than dropping
				log.Warn("dedup lookup failed", zap.String("event_id", env.EventID), zap.Error(err))
			} else if !first {
				log.Debug("skip duplicate event", zap.String("event_id", env.EventID))
				return nil
			}
		}

		if _, err := d.Notify(ctx, env); err != nil {
			if seen != nil && env.EventID != "" {
				if ferr := seen.Forget(ctx, env.EventID); ferr != nil {
					log.Warn("dedup forget failed", zap.String("event_id", env.EventID), zap.Error(ferr))
				}
			}
			return err
		}
		return nil
	}
}
