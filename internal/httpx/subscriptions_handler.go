package httpx

import (
	"net/http"

	"github.com/ariefcatur/optica-engine/internal/subscriptions"
	"github.com/ariefcatur/optica-engine/internal/tenant"
	"github.com/go-chi/chi/v5"
)

// extendReq is the admin body: action is add or set, with either days or months.
type extendReq struct {
	Action subscriptions.Mode `json:"action"`
	Days   int                `json:"days"`
	Months int                `json:"months"`
}

func (req extendReq) input() subscriptions.ExtendInput {
	if req.Months > 0 {
		return subscriptions.ExtendInput{Mode: req.Action, Unit: subscriptions.UnitMonths, Amount: req.Months}
	}
	return subscriptions.ExtendInput{Mode: req.Action, Unit: subscriptions.UnitDays, Amount: req.Days}
}

type rejectReq struct {
	Reason string `json:"reason"`
}

func (a *API) extendSubscription(w http.ResponseWriter, r *http.Request) {
	var req extendReq
	if !decode(w, r, &req) {
		return
	}
	s, err := a.Subscriptions.Extend(r.Context(), tenant.From(r.Context()), chi.URLParam(r, "tenant"), req.input())
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (a *API) currentSubscription(w http.ResponseWriter, r *http.Request) {
	s, err := a.Subscriptions.Current(r.Context(), tenant.From(r.Context()))
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (a *API) createPaymentRequest(w http.ResponseWriter, r *http.Request) {
	var in subscriptions.CreateRequestInput
	if !decode(w, r, &in) {
		return
	}
	pr, err := a.Subscriptions.CreatePaymentRequest(r.Context(), tenant.From(r.Context()), in)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusCreated, pr)
}

func (a *API) listPaymentRequests(w http.ResponseWriter, r *http.Request) {
	status := subscriptions.RequestStatus(r.URL.Query().Get("status"))
	out, err := a.Subscriptions.ListPaymentRequests(r.Context(), tenant.From(r.Context()), status)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"paymentRequests": out})
}

func (a *API) approvePaymentRequest(w http.ResponseWriter, r *http.Request) {
	pr, err := a.Subscriptions.ApprovePaymentRequest(r.Context(), tenant.From(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, pr)
}

func (a *API) rejectPaymentRequest(w http.ResponseWriter, r *http.Request) {
	var req rejectReq
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	pr, err := a.Subscriptions.RejectPaymentRequest(r.Context(), tenant.From(r.Context()), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, pr)
}
