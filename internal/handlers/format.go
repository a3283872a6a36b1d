package handlers

import (
	"strings"

	"github.com/shopspring/decimal"
)

// formatMoney renders an amount as "$1,234.50".
func formatMoney(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	fixed := d.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + "$" + b.String() + "." + frac
}

func formatPct(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2) + "%"
}
