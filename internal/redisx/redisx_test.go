package redisx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/optica-engine/internal/apperr"
	"github.com/go-redis/redismock/v9"
)

func TestIdempotencyClaim(t *testing.T) {
	ctx := context.Background()
	ttl := time.Hour
	key := "idem:invoice:create:s1:abc"

	tests := []struct {
		name      string
		expect    func(m redismock.ClientMock)
		wantID    string
		wantOwned bool
		wantErr   error
	}{
		{
			name: "fresh key is claimed",
			expect: func(m redismock.ClientMock) {
				m.ExpectSetNX(key, "pending", ttl).SetVal(true)
			},
			wantOwned: true,
		},
		{
			name: "completed key replays invoice",
			expect: func(m redismock.ClientMock) {
				m.ExpectSetNX(key, "pending", ttl).SetVal(false)
				m.ExpectGet(key).SetVal("inv-1")
			},
			wantID: "inv-1",
		},
		{
			name: "pending key conflicts",
			expect: func(m redismock.ClientMock) {
				m.ExpectSetNX(key, "pending", ttl).SetVal(false)
				m.ExpectGet(key).SetVal("pending")
			},
			wantErr: apperr.ErrConflict,
		},
		{
			name: "redis down",
			expect: func(m redismock.ClientMock) {
				m.ExpectSetNX(key, "pending", ttl).SetErr(errors.New("connection refused"))
			},
			wantErr: errors.New("any"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := redismock.NewClientMock()
			tt.expect(mock)
			id, owned, err := NewIdempotency(db, ttl).Claim(ctx, "s1", "abc")
			switch {
			case tt.wantErr == nil && err != nil:
				t.Fatalf("unexpected error: %v", err)
			case tt.wantErr != nil && err == nil:
				t.Fatalf("expected error")
			case errors.Is(tt.wantErr, apperr.ErrConflict) && !errors.Is(err, apperr.ErrConflict):
				t.Fatalf("err = %v, want ErrConflict", err)
			}
			if id != tt.wantID || owned != tt.wantOwned {
				t.Fatalf("Claim = (%q, %v), want (%q, %v)", id, owned, tt.wantID, tt.wantOwned)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestIdempotencyCompleteAndRelease(t *testing.T) {
	db, mock := redismock.NewClientMock()
	idem := NewIdempotency(db, time.Minute)
	mock.ExpectSet("idem:invoice:create:s1:k", "inv-9", time.Minute).SetVal("OK")
	mock.ExpectDel("idem:invoice:create:s1:k").SetVal(1)

	if err := idem.Complete(context.Background(), "s1", "k", "inv-9"); err != nil {
		t.Fatal(err)
	}
	if err := idem.Release(context.Background(), "s1", "k"); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDedupFirst(t *testing.T) {
	db, mock := redismock.NewClientMock()
	d := NewDedup(db, "notifier")
	mock.ExpectSetNX("dedup:notifier:ev1", 1, TTLDedup).SetVal(true)
	mock.ExpectSetNX("dedup:notifier:ev1", 1, TTLDedup).SetVal(false)

	ctx := context.Background()
	if first, err := d.First(ctx, "ev1"); err != nil || !first {
		t.Fatalf("first call = %v, %v", first, err)
	}
	if first, err := d.First(ctx, "ev1"); err != nil || first {
		t.Fatalf("second call = %v, %v", first, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
