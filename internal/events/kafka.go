package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	kafkax "github.com/ariefcatur/optica-engine/internal/kafka"
	kafkago "github.com/segmentio/kafka-go"
)

// Kafka publishes envelopes to the store events topic, keyed by store id so
// all events of one store keep their order.
type Kafka struct {
	Producer *kafkax.Producer
	Service  string
}

func (k *Kafka) Publish(_ context.Context, evs ...Envelope) error {
	for _, ev := range evs {
		if ev.Producer == "" {
			ev.Producer = k.Service
		}
		b, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal envelope %s: %w", ev.EventID, err)
		}
		k.Producer.Publish(kafkax.PartitionKey(ev.StoreID), b,
			kafkago.Header{Key: "x-event-type", Value: []byte(ev.EventType)},
			kafkago.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(ev.EventVersion))},
		)
	}
	return nil
}
