package httpx

import (
	"net/http"

	"github.com/ariefcatur/optica-engine/internal/tenant"
)

// Headers set by the authenticating gateway in front of the API.
const (
	HeaderStoreID = "X-Store-ID"
	HeaderOwnerID = "X-Owner-ID"
	HeaderUserID  = "X-User-ID"
	HeaderRole    = "X-Role"
)

// WithTenant lifts the gateway headers into a tenant.Context. Missing values
// are left empty; each operation decides what it requires.
func WithTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := tenant.Context{
			StoreID: r.Header.Get(HeaderStoreID),
			OwnerID: r.Header.Get(HeaderOwnerID),
			UserID:  r.Header.Get(HeaderUserID),
			Role:    r.Header.Get(HeaderRole),
		}
		next.ServeHTTP(w, r.WithContext(tenant.With(r.Context(), tc)))
	})
}
