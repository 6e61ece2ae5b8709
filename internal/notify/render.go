package notify

import (
	"fmt"

	"github.com/ariefcatur/optica-engine/internal/events"
)

type message struct {
	Title string
	Body  string
	Link  string
}

func render(env events.Envelope) (message, error) {
	switch env.EventType {
	case events.TypeInvoiceCreated:
		p, err := events.Decode[events.InvoiceCreatedPayload](env)
		if err != nil {
			return message{}, err
		}
		return message{
			Title: "New invoice " + p.InvoiceNumber,
			Body:  fmt.Sprintf("Invoice %s was created for %s (%s).", p.InvoiceNumber, p.Total.StringFixed(2), p.Status),
			Link:  "/invoices/" + p.InvoiceID,
		}, nil
	case events.TypeLowStock:
		p, err := events.Decode[events.LowStockPayload](env)
		if err != nil {
			return message{}, err
		}
		return message{
			Title: "Low stock: " + p.ProductName,
			Body:  fmt.Sprintf("%s is down to %d (minimum %d).", p.ProductName, p.CurrentStock, p.MinimumStock),
			Link:  "/stock/products/" + p.ProductID,
		}, nil
	case events.TypePaymentReceived:
		p, err := events.Decode[events.PaymentReceivedPayload](env)
		if err != nil {
			return message{}, err
		}
		return message{
			Title: "Payment on " + p.InvoiceNumber,
			Body:  fmt.Sprintf("%s received by %s, %s still due.", p.Amount.StringFixed(2), p.Method, p.AmountDue.StringFixed(2)),
			Link:  "/invoices/" + p.InvoiceID,
		}, nil
	}
	return message{Title: env.EventType, Body: "Event " + env.EventType + " for your store."}, nil
}
