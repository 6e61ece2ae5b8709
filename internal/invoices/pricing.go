package invoices

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// round2 rounds half away from zero to cents.
func round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

type PricedLine struct {
	Input    ItemInput
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

type Totals struct {
	Lines         []PricedLine
	Subtotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	TaxRate       decimal.Decimal
	TaxAmount     decimal.Decimal
	Total         decimal.Decimal
}

// Price computes line and header amounts. Each line is rounded to cents
// before it is summed; tax applies to the discounted subtotal.
func Price(items []ItemInput, taxRate decimal.Decimal) Totals {
	t := Totals{Lines: make([]PricedLine, 0, len(items)), TaxRate: taxRate}
	for _, it := range items {
		sub := round2(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		disc := round2(sub.Mul(it.Discount).Div(hundred))
		t.Lines = append(t.Lines, PricedLine{Input: it, Subtotal: sub, Discount: disc, Total: sub.Sub(disc)})
		t.Subtotal = t.Subtotal.Add(sub)
		t.DiscountTotal = t.DiscountTotal.Add(disc)
	}
	net := t.Subtotal.Sub(t.DiscountTotal)
	t.TaxAmount = round2(net.Mul(taxRate).Div(hundred))
	t.Total = net.Add(t.TaxAmount)
	return t
}
