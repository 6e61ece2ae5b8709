package stock_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ariefcatur/optica-engine/internal/apperr"
	"github.com/ariefcatur/optica-engine/internal/events"
	"github.com/ariefcatur/optica-engine/internal/memstore"
	"github.com/ariefcatur/optica-engine/internal/stock"
	"github.com/ariefcatur/optica-engine/internal/tenant"
)

var owner = tenant.Context{StoreID: "s1", OwnerID: "o1", UserID: "u1"}

type recorder struct{ evs []events.Envelope }

func (r *recorder) Publish(_ context.Context, evs ...events.Envelope) error {
	r.evs = append(r.evs, evs...)
	return nil
}

func setup(t *testing.T, products ...stock.Product) (*memstore.Store, *stock.Service, *recorder) {
	t.Helper()
	ms := memstore.New()
	ms.PutStore(tenant.Store{ID: "s1", OwnerID: "o1", Name: "Main", Prefix: "MAIN"})
	ms.PutStore(tenant.Store{ID: "s2", OwnerID: "o1", Name: "Branch", Prefix: "BR"})
	ms.PutStore(tenant.Store{ID: "x1", OwnerID: "o2", Name: "Other", Prefix: "OT"})
	for _, p := range products {
		ms.PutProduct(p)
	}
	rec := &recorder{}
	svc := stock.NewService(memstore.Runner[stock.ServiceTx](ms), ms, nil, rec, nil)
	return ms, svc, rec
}

func TestRecordMovementTypes(t *testing.T) {
	tests := []struct {
		name      string
		start     int
		typ       stock.MovementType
		qty       int
		wantStock int
		wantErr   error
	}{
		{"in adds", 5, stock.MovementIn, 3, 8, nil},
		{"out subtracts", 5, stock.MovementOut, 2, 3, nil},
		{"out to zero", 5, stock.MovementOut, 5, 0, nil},
		{"out over stock", 5, stock.MovementOut, 6, 5, apperr.ErrInsufficientStock},
		{"adjustment is absolute", 5, stock.MovementAdjustment, 12, 12, nil},
		{"adjustment to zero", 5, stock.MovementAdjustment, 0, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms, svc, _ := setup(t, stock.Product{ID: "p1", StoreID: "s1", Name: "Frame", CurrentStock: tt.start, MinimumStock: 1})
			res, err := svc.Record(context.Background(), owner, stock.Input{ProductID: "p1", Type: tt.typ, Quantity: tt.qty, Reason: "test"})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if n := len(ms.Movements("p1")); n != 0 {
					t.Fatalf("movements recorded on failure: %d", n)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			} else {
				if res.Movement.PreviousStock != tt.start || res.Movement.NewStock != tt.wantStock {
					t.Fatalf("movement %d -> %d, want %d -> %d", res.Movement.PreviousStock, res.Movement.NewStock, tt.start, tt.wantStock)
				}
				if res.Movement.Actor != "u1" {
					t.Errorf("actor = %q", res.Movement.Actor)
				}
			}
			p, _ := ms.Product("p1")
			if p.CurrentStock != tt.wantStock {
				t.Fatalf("currentStock = %d, want %d", p.CurrentStock, tt.wantStock)
			}
		})
	}
}

func TestRecordValidation(t *testing.T) {
	_, svc, _ := setup(t, stock.Product{ID: "p1", StoreID: "s1", CurrentStock: 5})
	tests := []struct {
		name  string
		in    stock.Input
		field string
	}{
		{"out of zero", stock.Input{ProductID: "p1", Type: stock.MovementOut, Quantity: 0}, "quantity"},
		{"negative in", stock.Input{ProductID: "p1", Type: stock.MovementIn, Quantity: -1}, "quantity"},
		{"negative adjustment", stock.Input{ProductID: "p1", Type: stock.MovementAdjustment, Quantity: -3}, "quantity"},
		{"unknown type", stock.Input{ProductID: "p1", Type: "steal", Quantity: 1}, "type"},
		{"no product", stock.Input{Type: stock.MovementIn, Quantity: 1}, "productId"},
		{"transfer without target", stock.Input{ProductID: "p1", Type: stock.MovementTransfer, Quantity: 1}, "toStoreId"},
		{"transfer to itself", stock.Input{ProductID: "p1", Type: stock.MovementTransfer, Quantity: 1, ToStoreID: "s1"}, "toStoreId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Record(context.Background(), owner, tt.in)
			var ve *apperr.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want validation error", err)
			}
			if _, ok := ve.Fields[tt.field]; !ok {
				t.Fatalf("fields = %v, want key %q", ve.Fields, tt.field)
			}
		})
	}
}

func TestRecordNotFoundAcrossStores(t *testing.T) {
	_, svc, _ := setup(t, stock.Product{ID: "p9", StoreID: "x1", CurrentStock: 5})
	_, err := svc.Record(context.Background(), owner, stock.Input{ProductID: "p9", Type: stock.MovementOut, Quantity: 1})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRecordForeignStoreForbidden(t *testing.T) {
	_, svc, _ := setup(t)
	_, err := svc.Record(context.Background(), tenant.Context{StoreID: "x1", OwnerID: "o1"}, stock.Input{ProductID: "p1", Type: stock.MovementIn, Quantity: 1})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestLowAlert(t *testing.T) {
	tests := []struct {
		prev, next, min int
		alerted         bool
		fire, keep      bool
	}{
		{7, 6, 5, false, false, false},
		{6, 5, 5, false, true, true},
		{5, 4, 5, true, false, true},
		{5, 4, 5, false, true, true},
		{4, 3, 5, true, false, true},
		{14, 2, 5, false, true, true},
		{3, 9, 5, true, false, false},
		{3, 4, 5, true, false, true},
		{5, 5, 5, false, false, false},
		{0, 0, 0, false, false, false},
		{1, 0, 0, false, true, true},
	}
	for _, tt := range tests {
		fire, keep := stock.LowAlert(tt.prev, tt.next, tt.min, tt.alerted)
		if fire != tt.fire || keep != tt.keep {
			t.Errorf("LowAlert(%d, %d, min %d, alerted %v) = (%v, %v), want (%v, %v)",
				tt.prev, tt.next, tt.min, tt.alerted, fire, keep, tt.fire, tt.keep)
		}
	}
}

func TestLowStockFiresOncePerDescent(t *testing.T) {
	ms, svc, rec := setup(t, stock.Product{ID: "p1", StoreID: "s1", Name: "Lens", CurrentStock: 6, MinimumStock: 5})
	ctx := context.Background()
	for i := 0; i < 2; i++ { // 6 -> 5 -> 4
		if _, err := svc.Record(ctx, owner, stock.Input{ProductID: "p1", Type: stock.MovementOut, Quantity: 1}); err != nil {
			t.Fatal(err)
		}
	}
	if len(rec.evs) != 1 {
		t.Fatalf("low stock events = %d, want 1", len(rec.evs))
	}
	if p, _ := ms.Product("p1"); p.CurrentStock != 4 || !p.LowAlerted {
		t.Fatalf("product = %+v, want stock 4 with alert raised", p)
	}
}

func TestLowStockEventsOnlyOnCrossing(t *testing.T) {
	ms, svc, rec := setup(t, stock.Product{ID: "p1", StoreID: "s1", Name: "Lens", CurrentStock: 9, MinimumStock: 5})
	ctx := context.Background()
	out := func(q int) stock.Result {
		t.Helper()
		res, err := svc.Record(ctx, owner, stock.Input{ProductID: "p1", Type: stock.MovementOut, Quantity: q})
		if err != nil {
			t.Fatalf("out %d: %v", q, err)
		}
		return res
	}

	if out(1).Crossed { // 9 -> 8
		t.Fatal("8 > 5 must not cross")
	}
	if !out(4).Crossed { // 8 -> 4
		t.Fatal("8 -> 4 must cross")
	}
	if out(1).Crossed || out(1).Crossed { // 4 -> 3 -> 2
		t.Fatal("already low: must not cross again")
	}
	if _, err := svc.Record(ctx, owner, stock.Input{ProductID: "p1", Type: stock.MovementIn, Quantity: 10}); err != nil {
		t.Fatal(err)
	}
	if !out(7).Crossed { // 12 -> 5
		t.Fatal("refill then drop must cross again")
	}

	if len(rec.evs) != 2 {
		t.Fatalf("low stock events = %d, want 2", len(rec.evs))
	}
	for _, ev := range rec.evs {
		if ev.EventType != events.TypeLowStock || ev.Dedupe == nil || ev.Dedupe.EntityID != "p1" {
			t.Fatalf("unexpected event %+v", ev)
		}
	}
	if p, _ := ms.Product("p1"); p.CurrentStock != 5 {
		t.Fatalf("currentStock = %d", p.CurrentStock)
	}
}

func TestStockEqualsSumOfMovements(t *testing.T) {
	ms, svc, _ := setup(t, stock.Product{ID: "p1", StoreID: "s1", CurrentStock: 10})
	ctx := context.Background()
	steps := []stock.Input{
		{Type: stock.MovementIn, Quantity: 4},
		{Type: stock.MovementOut, Quantity: 3},
		{Type: stock.MovementOut, Quantity: 20}, // rejected
		{Type: stock.MovementIn, Quantity: 1},
		{Type: stock.MovementOut, Quantity: 12},
	}
	for _, in := range steps {
		in.ProductID = "p1"
		_, _ = svc.Record(ctx, owner, in)
	}

	want := 10
	for _, m := range ms.Movements("p1") {
		if m.Type.Decrements() && m.Quantity > m.PreviousStock {
			t.Fatalf("movement %s took %d from %d", m.ID, m.Quantity, m.PreviousStock)
		}
		if m.Type == stock.MovementIn {
			want += m.Quantity
		} else {
			want -= m.Quantity
		}
	}
	if p, _ := ms.Product("p1"); p.CurrentStock != want || want != 0 {
		t.Fatalf("currentStock = %d, sum = %d, want both 0", p.CurrentStock, want)
	}
}

func TestTransfer(t *testing.T) {
	ms, svc, _ := setup(t,
		stock.Product{ID: "a", StoreID: "s1", Name: "Frame", Reference: "FR-1", CurrentStock: 5},
		stock.Product{ID: "b", StoreID: "s2", Name: "Frame", Reference: "FR-1", CurrentStock: 1},
		stock.Product{ID: "c", StoreID: "x1", Name: "Frame", Reference: "FR-1", CurrentStock: 0},
	)
	ctx := context.Background()

	res, err := svc.Record(ctx, owner, stock.Input{ProductID: "a", Type: stock.MovementTransfer, Quantity: 2, ToStoreID: "s2"})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if res.Movement.ToStoreID == nil || *res.Movement.ToStoreID != "s2" {
		t.Fatalf("toStoreId = %v", res.Movement.ToStoreID)
	}
	a, _ := ms.Product("a")
	b, _ := ms.Product("b")
	if a.CurrentStock != 3 || b.CurrentStock != 3 {
		t.Fatalf("after transfer a=%d b=%d, want 3 and 3", a.CurrentStock, b.CurrentStock)
	}
	in := ms.Movements("b")
	if len(in) != 1 || in[0].Type != stock.MovementIn || in[0].FromStoreID == nil || *in[0].FromStoreID != "s1" {
		t.Fatalf("destination movement = %+v", in)
	}

	if _, err := svc.Record(ctx, owner, stock.Input{ProductID: "a", Type: stock.MovementTransfer, Quantity: 2, ToStoreID: "x1"}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("transfer to foreign owner: err = %v, want ErrForbidden", err)
	}
	if _, err := svc.Record(ctx, owner, stock.Input{ProductID: "a", Type: stock.MovementTransfer, Quantity: 9, ToStoreID: "s2"}); !errors.Is(err, apperr.ErrInsufficientStock) {
		t.Fatalf("over transfer: err = %v", err)
	}
	if b, _ := ms.Product("b"); b.CurrentStock != 3 {
		t.Fatalf("failed transfer leaked into destination: %d", b.CurrentStock)
	}
}

func TestReadsRejectForeignOwner(t *testing.T) {
	_, svc, _ := setup(t, stock.Product{ID: "p1", StoreID: "s1", CurrentStock: 1, MinimumStock: 3})
	ctx := context.Background()
	if _, err := svc.Record(ctx, owner, stock.Input{ProductID: "p1", Type: stock.MovementIn, Quantity: 1}); err != nil {
		t.Fatal(err)
	}

	intruder := tenant.Context{StoreID: "s1", OwnerID: "o2", UserID: "u9"}
	if _, err := svc.ListMovements(ctx, intruder, "p1", 0); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("ListMovements: err = %v, want ErrForbidden", err)
	}
	if _, err := svc.ListLowStock(ctx, intruder); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("ListLowStock: err = %v, want ErrForbidden", err)
	}

	low, err := svc.ListLowStock(ctx, owner)
	if err != nil || len(low) != 1 {
		t.Fatalf("owner ListLowStock = %v, %v", low, err)
	}
}
