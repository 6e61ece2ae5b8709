package httpx

import (
	"github.com/ariefcatur/optica-engine/internal/invoices"
	"github.com/ariefcatur/optica-engine/internal/logger"
	"github.com/ariefcatur/optica-engine/internal/notify"
	"github.com/ariefcatur/optica-engine/internal/redisx"
	"github.com/ariefcatur/optica-engine/internal/stock"
	"github.com/ariefcatur/optica-engine/internal/subscriptions"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// API binds the engines to the REST surface. Idem is optional; without it
// Idempotency-Key headers are ignored.
type API struct {
	Invoices      *invoices.Engine
	Stock         *stock.Service
	Subscriptions *subscriptions.Manager
	Notify        *notify.Dispatcher
	Idem          *redisx.Idempotency
	Log           *zap.Logger
}

func (a *API) log() *zap.Logger { return logger.OrNop(a.Log) }

func (a *API) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(WithTenant)

		r.Route("/invoices", func(r chi.Router) {
			r.Post("/", a.createInvoice)
			r.Get("/", a.listInvoices)
			r.Get("/{id}", a.getInvoice)
			r.Post("/{id}/payments", a.addPayment)
			r.Patch("/{id}/cancel", a.cancelInvoice)
		})

		r.Route("/stock", func(r chi.Router) {
			r.Post("/movements", a.recordMovement)
			r.Get("/products/{id}/movements", a.listMovements)
			r.Get("/low", a.listLowStock)
		})

		r.Get("/subscription", a.currentSubscription)
		r.Patch("/admin/{tenant}/subscription", a.extendSubscription)
		r.Route("/payment-requests", func(r chi.Router) {
			r.Post("/", a.createPaymentRequest)
			r.Get("/", a.listPaymentRequests)
			r.Patch("/{id}/approve", a.approvePaymentRequest)
			r.Patch("/{id}/reject", a.rejectPaymentRequest)
		})

		r.Get("/notifications", a.listNotifications)
		r.Patch("/notifications/{id}/read", a.markNotificationRead)
		r.Get("/settings/notifications", a.notificationSettings)
		r.Put("/settings/notifications", a.updateNotificationSettings)
	})
}
