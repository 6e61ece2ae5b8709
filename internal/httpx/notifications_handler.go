package httpx

import (
	"net/http"

	"github.com/ariefcatur/optica-engine/internal/notify"
	"github.com/ariefcatur/optica-engine/internal/tenant"
	"github.com/go-chi/chi/v5"
)

func (a *API) listNotifications(w http.ResponseWriter, r *http.Request) {
	unread := r.URL.Query().Get("unread") == "true"
	out, err := a.Notify.List(r.Context(), tenant.From(r.Context()), unread, queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": out})
}

func (a *API) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	n, err := a.Notify.MarkRead(r.Context(), tenant.From(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (a *API) notificationSettings(w http.ResponseWriter, r *http.Request) {
	out, err := a.Notify.Settings(r.Context(), tenant.From(r.Context()))
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": out})
}

func (a *API) updateNotificationSettings(w http.ResponseWriter, r *http.Request) {
	var in notify.SettingsInput
	if !decode(w, r, &in) {
		return
	}
	out, err := a.Notify.UpdateSettings(r.Context(), tenant.From(r.Context()), in)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": out})
}
