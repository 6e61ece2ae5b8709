package httpx

import (
	"net/http"

	"github.com/ariefcatur/optica-engine/internal/stock"
	"github.com/ariefcatur/optica-engine/internal/tenant"
	"github.com/go-chi/chi/v5"
)

// movementReq accepts the older "reference" name next to referenceId.
type movementReq struct {
	ProductID   string             `json:"productId"`
	Type        stock.MovementType `json:"type"`
	Quantity    int                `json:"quantity"`
	Reason      string             `json:"reason"`
	ReferenceID string             `json:"referenceId"`
	Reference   string             `json:"reference"`
	ToStoreID   string             `json:"toStoreId"`
}

func (req movementReq) reference() string {
	if req.ReferenceID != "" {
		return req.ReferenceID
	}
	return req.Reference
}

func (a *API) recordMovement(w http.ResponseWriter, r *http.Request) {
	var req movementReq
	if !decode(w, r, &req) {
		return
	}
	res, err := a.Stock.Record(r.Context(), tenant.From(r.Context()), stock.Input{
		ProductID: req.ProductID,
		Type:      req.Type,
		Quantity:  req.Quantity,
		Reason:    req.Reason,
		Reference: req.reference(),
		ToStoreID: req.ToStoreID,
	})
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusCreated, res.Movement)
}

func (a *API) listMovements(w http.ResponseWriter, r *http.Request) {
	out, err := a.Stock.ListMovements(r.Context(), tenant.From(r.Context()), chi.URLParam(r, "id"), queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"movements": out})
}

func (a *API) listLowStock(w http.ResponseWriter, r *http.Request) {
	out, err := a.Stock.ListLowStock(r.Context(), tenant.From(r.Context()))
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": out})
}
