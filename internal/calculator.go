package internal

import (
	"github.com/shopspring/decimal"
)

// Round rounds v to the given number of decimal places, half away from zero.
func Round(v float64, places int32) float64 {
	v = finite(v)
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// CalculateServiceAmount returns quantity times the resolved price, rounded to cents.
func CalculateServiceAmount(s Service) float64 {
	price := decimal.NewFromFloat(finite(ResolvePrice(s)))
	qty := decimal.NewFromFloat(finite(s.Quantity))
	return price.Mul(qty).Round(2).InexactFloat64()
}

// RecalculateTotals returns a copy of q with every service amount, the
// subtotal, the GST amount and the grand total recomputed. The GST
// percentage is kept as is.
func RecalculateTotals(q Quotation) Quotation {
	out := q.Clone()
	if len(out.Services) == 0 {
		out.Services = []Service{}
		out.Subtotal = 0
		out.GSTAmount = 0
		out.GrandTotal = 0
		return out
	}

	subtotal := decimal.Zero
	for i := range out.Services {
		out.Services[i].Amount = CalculateServiceAmount(out.Services[i])
		subtotal = subtotal.Add(decimal.NewFromFloat(out.Services[i].Amount))
	}
	subtotal = subtotal.Round(2)

	gst := decimal.Zero
	if pct := finite(out.GSTPercentage); pct > 0 {
		gst = subtotal.Mul(decimal.NewFromFloat(pct)).Div(decimal.NewFromInt(100)).Round(2)
	}

	out.Subtotal = subtotal.InexactFloat64()
	out.GSTAmount = gst.InexactFloat64()
	out.GrandTotal = subtotal.Add(gst).Round(2).InexactFloat64()
	return out
}
