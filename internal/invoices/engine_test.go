package invoices_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/optica-engine/internal/apperr"
	"github.com/ariefcatur/optica-engine/internal/events"
	"github.com/ariefcatur/optica-engine/internal/invoices"
	"github.com/ariefcatur/optica-engine/internal/memstore"
	"github.com/ariefcatur/optica-engine/internal/notify"
	"github.com/ariefcatur/optica-engine/internal/stock"
	"github.com/ariefcatur/optica-engine/internal/tenant"
	"github.com/ariefcatur/optica-engine/internal/txn"
	"github.com/shopspring/decimal"
)

var (
	tc    = tenant.Context{StoreID: "s1", OwnerID: "o1", UserID: "u1"}
	fixed = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(s string) *string { return &s }

type recorder struct{ evs []events.Envelope }

func (r *recorder) Publish(_ context.Context, evs ...events.Envelope) error {
	r.evs = append(r.evs, evs...)
	return nil
}

func (r *recorder) types() []string {
	out := make([]string, 0, len(r.evs))
	for _, ev := range r.evs {
		out = append(out, ev.EventType)
	}
	return out
}

func newStore() *memstore.Store {
	ms := memstore.New()
	ms.PutStore(tenant.Store{ID: "s1", OwnerID: "o1", Name: "Main", Prefix: "MAIN"})
	ms.PutStore(tenant.Store{ID: "s2", OwnerID: "o2", Name: "Other", Prefix: "MAIN"})
	ms.PutClient("s1", "c1")
	ms.PutClient("s2", "c2")
	ms.AddStoreUser("s1", "u1")
	return ms
}

func newEngine(ms *memstore.Store, sink events.Sink, opts ...invoices.Option) *invoices.Engine {
	opts = append([]invoices.Option{invoices.WithClock(func() time.Time { return fixed })}, opts...)
	return invoices.NewEngine(memstore.Runner[invoices.Tx](ms), ms, sink, nil, opts...)
}

func scenarioCart() invoices.CreateInput {
	return invoices.CreateInput{
		ClientID: "c1",
		Items:    []invoices.ItemInput{{ProductName: "Progressive lens", Quantity: 2, UnitPrice: d("100"), Discount: d("10")}},
		TaxRate:  d("20"),
	}
}

func TestCreateScenarioA(t *testing.T) {
	rec := &recorder{}
	e := newEngine(newStore(), rec)

	got, err := e.Create(context.Background(), tc, scenarioCart())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	inv := got.Invoice
	for field, pair := range map[string][2]decimal.Decimal{
		"subtotal":      {inv.Subtotal, d("200")},
		"discountTotal": {inv.DiscountTotal, d("20")},
		"taxAmount":     {inv.TaxAmount, d("36")},
		"total":         {inv.Total, d("216")},
		"amountDue":     {inv.AmountDue, d("216")},
	} {
		if !pair[0].Equal(pair[1]) {
			t.Errorf("%s = %s, want %s", field, pair[0], pair[1])
		}
	}
	if inv.Status != invoices.StatusDraft {
		t.Errorf("status = %s, want draft", inv.Status)
	}
	if len(got.Items) != 1 || !got.Items[0].LineTotal.Equal(d("180")) {
		t.Errorf("items = %+v", got.Items)
	}
	if len(got.Payments) != 0 {
		t.Errorf("payments = %+v", got.Payments)
	}
	if ts := rec.types(); len(ts) != 1 || ts[0] != events.TypeInvoiceCreated {
		t.Errorf("events = %v", ts)
	}
}

func TestCreateScenarioB(t *testing.T) {
	e := newEngine(newStore(), nil)
	in := scenarioCart()
	in.Payment = &invoices.PaymentInput{Amount: d("216"), Method: "cash"}

	got, err := e.Create(context.Background(), tc, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.Invoice.Status != invoices.StatusPaid || !got.Invoice.AmountDue.IsZero() {
		t.Fatalf("status = %s amountDue = %s", got.Invoice.Status, got.Invoice.AmountDue)
	}
	if got.Invoice.PaidAt == nil || !got.Invoice.PaidAt.Equal(fixed) {
		t.Fatalf("paidAt = %v", got.Invoice.PaidAt)
	}
	if len(got.Payments) != 1 {
		t.Fatalf("payments = %d", len(got.Payments))
	}
}

func TestAddPaymentScenarioC(t *testing.T) {
	rec := &recorder{}
	e := newEngine(newStore(), rec)
	ctx := context.Background()

	created, err := e.Create(ctx, tc, scenarioCart())
	if err != nil {
		t.Fatal(err)
	}
	inv, err := e.AddPayment(ctx, tc, created.Invoice.ID, invoices.PaymentInput{Amount: d("100"), Method: "card"})
	if err != nil {
		t.Fatalf("AddPayment: %v", err)
	}
	if inv.Status != invoices.StatusPartial || !inv.AmountPaid.Equal(d("100")) || !inv.AmountDue.Equal(d("116")) {
		t.Fatalf("got status=%s paid=%s due=%s", inv.Status, inv.AmountPaid, inv.AmountDue)
	}

	// overpay
	inv, err = e.AddPayment(ctx, tc, inv.ID, invoices.PaymentInput{Amount: d("500"), Method: "cash"})
	if err != nil {
		t.Fatal(err)
	}
	if inv.Status != invoices.StatusPaid || !inv.AmountDue.IsZero() {
		t.Fatalf("overpay: status=%s due=%s", inv.Status, inv.AmountDue)
	}

	detail, err := e.Get(ctx, tc, inv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(detail.Payments) != 2 {
		t.Fatalf("payments = %d, want 2", len(detail.Payments))
	}
	if ts := rec.types(); len(ts) != 3 || ts[1] != events.TypePaymentReceived {
		t.Fatalf("events = %v", ts)
	}
}

func TestCreateValidateOnlyIsPending(t *testing.T) {
	e := newEngine(newStore(), nil)
	in := scenarioCart()
	in.ValidateOnly = true
	in.Payment = &invoices.PaymentInput{Amount: decimal.Zero, Method: "cash"}

	got, err := e.Create(context.Background(), tc, in)
	if err != nil {
		t.Fatal(err)
	}
	if got.Invoice.Status != invoices.StatusPending || got.Invoice.ValidatedAt == nil {
		t.Fatalf("status = %s validatedAt = %v", got.Invoice.Status, got.Invoice.ValidatedAt)
	}
	if len(got.Payments) != 0 {
		t.Fatalf("zero payment must not be recorded, got %d", len(got.Payments))
	}
}

func TestCreateValidation(t *testing.T) {
	e := newEngine(newStore(), nil)
	ctx := context.Background()
	tests := []struct {
		name string
		tc   tenant.Context
		in   invoices.CreateInput
	}{
		{"missing store", tenant.Context{OwnerID: "o1"}, scenarioCart()},
		{"no items", tc, invoices.CreateInput{ClientID: "c1"}},
		{"zero quantity", tc, invoices.CreateInput{ClientID: "c1", Items: []invoices.ItemInput{{ProductName: "x", UnitPrice: d("1")}}}},
		{"discount over 100", tc, invoices.CreateInput{ClientID: "c1", Items: []invoices.ItemInput{{ProductName: "x", Quantity: 1, UnitPrice: d("1"), Discount: d("150")}}}},
		{"client of other store", tc, invoices.CreateInput{ClientID: "c2", Items: []invoices.ItemInput{{ProductName: "x", Quantity: 1, UnitPrice: d("1")}}}},
		{"payment without method", tc, func() invoices.CreateInput {
			in := scenarioCart()
			in.Payment = &invoices.PaymentInput{Amount: d("1")}
			return in
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Create(ctx, tt.tc, tt.in); !apperr.IsValidation(err) {
				t.Fatalf("err = %v, want validation error", err)
			}
		})
	}
}

func TestCreateDeductsStockAndSkipsUnknownProducts(t *testing.T) {
	ms := newStore()
	ms.PutProduct(stock.Product{ID: "p1", StoreID: "s1", Name: "Frame", CurrentStock: 10, MinimumStock: 2})
	ms.PutProduct(stock.Product{ID: "px", StoreID: "s2", Name: "Foreign", CurrentStock: 10})
	e := newEngine(ms, nil)

	got, err := e.Create(context.Background(), tc, invoices.CreateInput{
		ClientID: "c1",
		Items: []invoices.ItemInput{
			{ProductID: ptr("p1"), ProductName: "Frame", Quantity: 3, UnitPrice: d("50")},
			{ProductID: ptr("ghost"), ProductName: "Old stock", Quantity: 1, UnitPrice: d("5")},
			{ProductID: ptr("px"), ProductName: "Foreign", Quantity: 1, UnitPrice: d("5")},
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p, _ := ms.Product("p1"); p.CurrentStock != 7 {
		t.Fatalf("p1 stock = %d, want 7", p.CurrentStock)
	}
	if p, _ := ms.Product("px"); p.CurrentStock != 10 {
		t.Fatalf("product of another store was touched: %d", p.CurrentStock)
	}
	if got.Items[1].ProductID != nil || got.Items[2].ProductID != nil {
		t.Fatalf("unresolved lines must drop product link: %+v", got.Items)
	}
	mv := ms.Movements("p1")
	if len(mv) != 1 || mv[0].Type != stock.MovementOut || mv[0].Reference == nil || *mv[0].Reference != got.Invoice.ID {
		t.Fatalf("movements = %+v", mv)
	}
}

func TestCreateRollsBackOnInsufficientStock(t *testing.T) {
	ms := newStore()
	ms.PutProduct(stock.Product{ID: "p1", StoreID: "s1", CurrentStock: 10})
	ms.PutProduct(stock.Product{ID: "p2", StoreID: "s1", CurrentStock: 1})
	rec := &recorder{}
	e := newEngine(ms, rec)

	_, err := e.Create(context.Background(), tc, invoices.CreateInput{
		ClientID: "c1",
		Items: []invoices.ItemInput{
			{ProductID: ptr("p1"), ProductName: "a", Quantity: 4, UnitPrice: d("1")},
			{ProductID: ptr("p2"), ProductName: "b", Quantity: 2, UnitPrice: d("1")},
		},
	})
	if !errors.Is(err, apperr.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
	if p, _ := ms.Product("p1"); p.CurrentStock != 10 {
		t.Fatalf("p1 stock = %d, rollback expected", p.CurrentStock)
	}
	if len(ms.Movements("p1")) != 0 {
		t.Fatal("movement survived rollback")
	}
	list, _ := e.List(context.Background(), tc, invoices.ListFilter{})
	if len(list) != 0 {
		t.Fatalf("invoice survived rollback: %+v", list)
	}
	if len(rec.evs) != 0 {
		t.Fatalf("events published for failed create: %v", rec.types())
	}
}

func TestLowStockNotifiedOnceScenarioD(t *testing.T) {
	ms := newStore()
	ms.PutProduct(stock.Product{ID: "p1", StoreID: "s1", Name: "Contact lens", CurrentStock: 5, MinimumStock: 5})
	dispatcher := notify.NewDispatcher(ms, nil, nil)
	e := newEngine(ms, dispatcher)
	ctx := context.Background()

	sell := func(want int) {
		t.Helper()
		_, err := e.Create(ctx, tc, invoices.CreateInput{
			ClientID: "c1",
			Items:    []invoices.ItemInput{{ProductID: ptr("p1"), ProductName: "Contact lens", Quantity: 1, UnitPrice: d("20")}},
		})
		if err != nil {
			t.Fatal(err)
		}
		if p, _ := ms.Product("p1"); p.CurrentStock != want {
			t.Fatalf("stock = %d, want %d", p.CurrentStock, want)
		}
	}
	countLow := func() int {
		ns, err := dispatcher.List(ctx, tc, true, 0)
		if err != nil {
			t.Fatal(err)
		}
		n := 0
		for _, x := range ns {
			if x.Type == events.TypeLowStock {
				n++
			}
		}
		return n
	}

	sell(4)
	if n := countLow(); n != 1 {
		t.Fatalf("after first sale: %d low stock notifications, want 1", n)
	}
	sell(3)
	sell(2)
	if n := countLow(); n != 1 {
		t.Fatalf("while unread: %d low stock notifications, want 1", n)
	}
}

func TestInvoiceNumbersUniquePerStore(t *testing.T) {
	ms := newStore()
	ms.AddStoreUser("s2", "u2")
	counter := 0
	intn := func(int) int {
		counter++
		return (counter / 3) % 50 // every value drawn three times in a row
	}
	gen := invoices.NewNumberGeneratorFunc(func() time.Time { return fixed }, intn)
	e := newEngine(ms, nil, invoices.WithNumberGenerator(gen))
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		got, err := e.Create(ctx, tc, scenarioCart())
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		n := got.Invoice.InvoiceNumber
		if seen[n] {
			t.Fatalf("duplicate number %s in store", n)
		}
		seen[n] = true
	}

	// a second store with the same prefix may reuse a number
	other := tenant.Context{StoreID: "s2", OwnerID: "o2", UserID: "u2"}
	counter = 0
	in := scenarioCart()
	in.ClientID = "c2"
	got, err := e.Create(ctx, other, in)
	if err != nil {
		t.Fatal(err)
	}
	if !seen[got.Invoice.InvoiceNumber] {
		t.Fatalf("expected %s to collide with a number of store s1", got.Invoice.InvoiceNumber)
	}
}

type flakyTx struct {
	invoices.Tx
	fail *int
}

func (f flakyTx) InsertInvoice(ctx context.Context, inv invoices.Invoice) error {
	if *f.fail > 0 {
		*f.fail--
		return invoices.ErrDuplicateNumber
	}
	return f.Tx.InsertInvoice(ctx, inv)
}

func TestCreateRetriesOnNumberRace(t *testing.T) {
	ms := newStore()
	inner := memstore.Runner[invoices.Tx](ms)
	tests := []struct {
		name    string
		fail    int
		wantErr bool
	}{
		{"one collision", 1, false},
		{"two collisions", 2, false},
		{"gives up", 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fail := tt.fail
			runner := txn.RunnerFunc[invoices.Tx](func(ctx context.Context, fn func(context.Context, invoices.Tx) error) error {
				return inner.Run(ctx, func(ctx context.Context, tx invoices.Tx) error {
					return fn(ctx, flakyTx{Tx: tx, fail: &fail})
				})
			})
			e := invoices.NewEngine(runner, ms, nil, nil)
			_, err := e.Create(context.Background(), tc, scenarioCart())
			if tt.wantErr != (err != nil) {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, invoices.ErrDuplicateNumber) {
				t.Fatalf("err = %v, want ErrDuplicateNumber", err)
			}
		})
	}
}

func TestCancel(t *testing.T) {
	ms := newStore()
	ms.PutProduct(stock.Product{ID: "p1", StoreID: "s1", CurrentStock: 5})
	e := newEngine(ms, nil)
	ctx := context.Background()

	created, err := e.Create(ctx, tc, invoices.CreateInput{
		ClientID: "c1",
		Items:    []invoices.ItemInput{{ProductID: ptr("p1"), ProductName: "Frame", Quantity: 2, UnitPrice: d("10")}},
	})
	if err != nil {
		t.Fatal(err)
	}
	inv, err := e.Cancel(ctx, tc, created.Invoice.ID)
	if err != nil || inv.Status != invoices.StatusCancelled {
		t.Fatalf("Cancel = %+v, %v", inv, err)
	}
	if p, _ := ms.Product("p1"); p.CurrentStock != 3 {
		t.Fatalf("cancel must not return stock, got %d", p.CurrentStock)
	}
	if _, err := e.Cancel(ctx, tc, inv.ID); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if _, err := e.AddPayment(ctx, tc, inv.ID, invoices.PaymentInput{Amount: d("1"), Method: "cash"}); !apperr.IsValidation(err) {
		t.Fatalf("payment on cancelled: err = %v", err)
	}

	paid := scenarioCart()
	paid.Payment = &invoices.PaymentInput{Amount: d("216"), Method: "cash"}
	p, err := e.Create(ctx, tc, paid)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Cancel(ctx, tc, p.Invoice.ID); !apperr.IsValidation(err) {
		t.Fatalf("cancel paid: err = %v, want validation error", err)
	}
	if _, err := e.Cancel(ctx, tenant.Context{StoreID: "s2", OwnerID: "o2"}, p.Invoice.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("cancel from other store: err = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	e := newEngine(newStore(), nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := e.Create(ctx, tc, scenarioCart()); err != nil {
			t.Fatal(err)
		}
	}
	all, err := e.List(ctx, tc, invoices.ListFilter{})
	if err != nil || len(all) != 3 {
		t.Fatalf("List = %d, %v", len(all), err)
	}
	if _, err := e.Cancel(ctx, tc, all[0].ID); err != nil {
		t.Fatal(err)
	}
	cancelled, _ := e.List(ctx, tc, invoices.ListFilter{Status: invoices.StatusCancelled})
	if len(cancelled) != 1 {
		t.Fatalf("cancelled = %d", len(cancelled))
	}
	if _, err := e.List(ctx, tc, invoices.ListFilter{Status: "lost"}); !apperr.IsValidation(err) {
		t.Fatalf("bad status filter: %v", err)
	}
}

type countingMailer struct {
	mu   sync.Mutex
	sent int
}

func (m *countingMailer) Send(context.Context, string, string, string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent++
	return nil
}

func TestLowStockAlertsOncePerDescentEvenWhenRead(t *testing.T) {
	ms := newStore()
	ms.PutStore(tenant.Store{ID: "s1", OwnerID: "o1", Name: "Main", Prefix: "MAIN", NotificationEmail: "shop@example.com"})
	ms.PutProduct(stock.Product{ID: "p1", StoreID: "s1", Name: "Contact lens", CurrentStock: 6, MinimumStock: 5})
	mail := &countingMailer{}
	dispatcher := notify.NewDispatcher(ms, mail, nil)
	e := newEngine(ms, dispatcher)
	ctx := context.Background()

	lows := 0
	for i := 0; i < 2; i++ { // 6 -> 5 -> 4
		_, err := e.Create(ctx, tc, invoices.CreateInput{
			ClientID: "c1",
			Items:    []invoices.ItemInput{{ProductID: ptr("p1"), ProductName: "Contact lens", Quantity: 1, UnitPrice: d("20")}},
		})
		if err != nil {
			t.Fatal(err)
		}
		unread, err := dispatcher.List(ctx, tc, true, 0)
		if err != nil {
			t.Fatal(err)
		}
		for _, n := range unread {
			if n.Type != events.TypeLowStock {
				continue
			}
			lows++
			if _, err := dispatcher.MarkRead(ctx, tc, n.ID); err != nil {
				t.Fatal(err)
			}
		}
	}
	if lows != 1 || mail.sent != 1 {
		t.Fatalf("low stock notifications = %d, emails = %d, want 1 and 1", lows, mail.sent)
	}
}

func TestConcurrentCreatesNeverOversell(t *testing.T) {
	const (
		buyers = 12
		onHand = 5
	)
	ms := newStore()
	ms.PutProduct(stock.Product{ID: "p1", StoreID: "s1", Name: "Frame", CurrentStock: onHand})
	e := newEngine(ms, nil)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ok   int
		errs []error
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Create(context.Background(), tc, invoices.CreateInput{
				ClientID: "c1",
				Items:    []invoices.ItemInput{{ProductID: ptr("p1"), ProductName: "Frame", Quantity: 1, UnitPrice: d("10")}},
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			ok++
		}()
	}
	wg.Wait()

	if ok != onHand {
		t.Fatalf("successful creates = %d, want %d", ok, onHand)
	}
	for _, err := range errs {
		if !errors.Is(err, apperr.ErrInsufficientStock) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	p, _ := ms.Product("p1")
	sum := onHand
	for _, m := range ms.Movements("p1") {
		sum -= m.Quantity
	}
	if p.CurrentStock != 0 || sum != 0 {
		t.Fatalf("currentStock = %d, onHand minus movements = %d, want 0 and 0", p.CurrentStock, sum)
	}
}

func TestReadsRejectForeignOwner(t *testing.T) {
	ms := newStore()
	e := newEngine(ms, nil)
	ctx := context.Background()
	created, err := e.Create(ctx, tc, scenarioCart())
	if err != nil {
		t.Fatal(err)
	}

	intruder := tenant.Context{StoreID: "s1", OwnerID: "o2", UserID: "u2"}
	if _, err := e.Get(ctx, intruder, created.Invoice.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("Get: err = %v, want ErrForbidden", err)
	}
	if _, err := e.List(ctx, intruder, invoices.ListFilter{}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("List: err = %v, want ErrForbidden", err)
	}
	if _, err := e.Get(ctx, tenant.Context{StoreID: "nope", OwnerID: "o1"}, created.Invoice.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Get on unknown store: err = %v, want ErrNotFound", err)
	}
}
