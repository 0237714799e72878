package core

import "github.com/shopspring/decimal"

// InvoiceTotals is the recomputed money summary of an invoice.
type InvoiceTotals struct {
	SubtotalMinor int64 `json:"subtotal_minor"`
	TaxMinor      int64 `json:"tax_minor"`
	TotalMinor    int64 `json:"total_minor"`
}

// ComputeInvoiceTotals derives an invoice's subtotal, tax and total from its
// line items. Per line:
//
//	lineSubtotal = quantity × unitPrice
//	lineTax      = floor(lineSubtotal × taxRate)
//
// Tax is floored per line BEFORE summing. This matches the legal rounding
// convention; flooring once on the aggregate diverges whenever per-line
// fractional parts would have accumulated.
//
// The function is pure and order-independent. Zero lines yield zero totals.
// Stored totals must be fully replaced with this result after every line
// add, edit or delete — never patched incrementally.
func ComputeInvoiceTotals(lines []InvoiceLine) InvoiceTotals {
	var t InvoiceTotals
	for _, line := range lines {
		sub := line.Quantity * line.UnitPriceMinor
		t.SubtotalMinor += sub
		t.TaxMinor += LineTaxMinor(sub, line.TaxRate)
	}
	t.TotalMinor = t.SubtotalMinor + t.TaxMinor
	return t
}

// LineTaxMinor computes the floored tax for a single line subtotal.
func LineTaxMinor(subtotalMinor int64, rate decimal.Decimal) int64 {
	if rate.IsZero() {
		return 0
	}
	return decimal.NewFromInt(subtotalMinor).Mul(rate).Floor().IntPart()
}

// LineAmountMinor computes the stored per-line amount.
func LineAmountMinor(quantity, unitPriceMinor int64) int64 {
	return quantity * unitPriceMinor
}
