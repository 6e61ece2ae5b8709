package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ariefcatur/optica-engine/internal/logger"
	"go.uber.org/zap"
)

// Sink receives committed domain events. Implementations must not be used
// inside a transaction: publishing happens after commit.
type Sink interface {
	Publish(ctx context.Context, evs ...Envelope) error
}

type SinkFunc func(ctx context.Context, evs ...Envelope) error

func (f SinkFunc) Publish(ctx context.Context, evs ...Envelope) error { return f(ctx, evs...) }

// Log writes one debug line per event. It never fails.
func Log(log *zap.Logger) Sink {
	log = logger.OrNop(log)
	return SinkFunc(func(_ context.Context, evs ...Envelope) error {
		for _, ev := range evs {
			log.Debug("event published",
				zap.String("event_id", ev.EventID),
				zap.String("event_type", ev.EventType),
				zap.String("store_id", ev.StoreID))
		}
		return nil
	})
}

type Nop struct{}

func (Nop) Publish(context.Context, ...Envelope) error { return nil }

// Multi publishes to every sink and joins their errors.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, evs ...Envelope) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, evs...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Async hands events to next on a background goroutine and returns at once.
// Failures are logged, never returned to the caller.
type Async struct {
	next    Sink
	log     *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsync(next Sink, log *zap.Logger, timeout time.Duration) *Async {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Async{next: next, log: logger.OrNop(log), timeout: timeout}
}

func (a *Async) Publish(ctx context.Context, evs ...Envelope) error {
	if len(evs) == 0 {
		return nil
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		// detached from the request: the response may already be written
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		if err := a.next.Publish(dctx, evs...); err != nil {
			a.log.Warn("event dispatch failed", zap.Int("events", len(evs)), zap.Error(err))
		}
	}()
	return nil
}

// Wait blocks until in-flight dispatches finish.
func (a *Async) Wait() { a.wg.Wait() }
