package httpx

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/optica-engine/internal/invoices"
	"github.com/ariefcatur/optica-engine/internal/tenant"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const HeaderIdempotencyKey = "Idempotency-Key"

func (a *API) createInvoice(w http.ResponseWriter, r *http.Request) {
	var in invoices.CreateInput
	if !decode(w, r, &in) {
		return
	}
	tc := tenant.From(r.Context())
	ctx := r.Context()

	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	if key == "" || a.Idem == nil {
		d, err := a.Invoices.Create(ctx, tc, in)
		if err != nil {
			writeError(w, a.log(), err)
			return
		}
		writeJSON(w, http.StatusCreated, d)
		return
	}
	if err := tc.RequireStore(); err != nil {
		writeError(w, a.log(), err)
		return
	}

	existing, owned, err := a.Idem.Claim(ctx, tc.StoreID, key)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	if !owned {
		d, err := a.Invoices.Get(ctx, tc, existing)
		if err != nil {
			writeError(w, a.log(), err)
			return
		}
		writeJSON(w, http.StatusOK, d)
		return
	}

	d, err := a.Invoices.Create(ctx, tc, in)
	if err != nil {
		// detached so a client disconnect still frees the key
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if rerr := a.Idem.Release(rctx, tc.StoreID, key); rerr != nil {
			a.log().Warn("release idempotency key", zap.String("key", key), zap.Error(rerr))
		}
		writeError(w, a.log(), err)
		return
	}
	if err := a.Idem.Complete(ctx, tc.StoreID, key, d.Invoice.ID); err != nil {
		a.log().Warn("complete idempotency key", zap.String("key", key), zap.Error(err))
	}
	writeJSON(w, http.StatusCreated, d)
}

func (a *API) listInvoices(w http.ResponseWriter, r *http.Request) {
	f := invoices.ListFilter{
		Status: invoices.Status(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit", 0),
	}
	out, err := a.Invoices.List(r.Context(), tenant.From(r.Context()), f)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": out})
}

func (a *API) getInvoice(w http.ResponseWriter, r *http.Request) {
	d, err := a.Invoices.Get(r.Context(), tenant.From(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) addPayment(w http.ResponseWriter, r *http.Request) {
	var in invoices.PaymentInput
	if !decode(w, r, &in) {
		return
	}
	inv, err := a.Invoices.AddPayment(r.Context(), tenant.From(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (a *API) cancelInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := a.Invoices.Cancel(r.Context(), tenant.From(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}
