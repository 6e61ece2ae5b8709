package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

func testConsumer(attempts int) *Consumer {
	return &Consumer{workers: 1, attempts: attempts, backoff: time.Millisecond, log: zap.NewNop()}
}

func TestProcessRetriesUntilSuccess(t *testing.T) {
	calls := 0
	h := func(context.Context, kafka.Message) error {
		calls++
		if calls < 3 {
			return errors.New("db down")
		}
		return nil
	}
	if !testConsumer(5).process(context.Background(), 0, h, kafka.Message{}) {
		t.Fatal("expected commit after eventual success")
	}
	if calls != 3 {
		t.Fatalf("handler calls = %d, want 3", calls)
	}
}

func TestProcessGivesUpAfterAttempts(t *testing.T) {
	calls := 0
	h := func(context.Context, kafka.Message) error {
		calls++
		return errors.New("always")
	}
	if !testConsumer(3).process(context.Background(), 0, h, kafka.Message{}) {
		t.Fatal("exhausted message must be committed to unblock the partition")
	}
	if calls != 3 {
		t.Fatalf("handler calls = %d, want 3", calls)
	}
}

func TestProcessStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := func(context.Context, kafka.Message) error {
		cancel()
		return errors.New("fail")
	}
	if testConsumer(5).process(ctx, 0, h, kafka.Message{}) {
		t.Fatal("cancelled retry must not commit")
	}
}

func TestWorkerFor(t *testing.T) {
	for p := 0; p < 10; p++ {
		if a, b := workerFor(p, 4), workerFor(p, 4); a != b || a < 0 || a >= 4 {
			t.Fatalf("workerFor(%d, 4) = %d, %d", p, a, b)
		}
	}
	if workerFor(3, 1) != 0 {
		t.Fatal("single worker takes every partition")
	}
}
