package main

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	printer = message.NewPrinter(language.English)
	title   = cases.Title(language.English)
)

// formatAmount renders a money amount with grouping and two decimals, e.g. 1,234,567.50
func formatAmount(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	d = d.Round(2)
	whole := d.Truncate(0)
	frac := d.Sub(whole).StringFixed(2)
	return sign + printer.Sprintf("%d", whole.IntPart()) + frac[strings.Index(frac, "."):]
}

// label turns an enum value such as INTERRUPTED or payment_application into "Interrupted" or "Payment Application"
func label(s string) string {
	return title.String(strings.ReplaceAll(s, "_", " "))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
