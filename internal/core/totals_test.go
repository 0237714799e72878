package core_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"invoice-agent/internal/core"
)

func rate(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeInvoiceTotals(t *testing.T) {
	tests := []struct {
		name     string
		lines    []core.InvoiceLine
		subtotal int64
		tax      int64
		total    int64
	}{
		{
			name:     "no lines",
			lines:    nil,
			subtotal: 0, tax: 0, total: 0,
		},
		{
			name: "single line zero rate",
			lines: []core.InvoiceLine{
				{Quantity: 3, UnitPriceMinor: 1500, TaxRate: decimal.Zero},
			},
			subtotal: 4500, tax: 0, total: 4500,
		},
		{
			name: "mixed rates",
			lines: []core.InvoiceLine{
				{Quantity: 5, UnitPriceMinor: 20000, TaxRate: rate("0.10")}, // 100000, tax 10000
				{Quantity: 1, UnitPriceMinor: 12500, TaxRate: decimal.Zero}, // 12500, tax 0
				{Quantity: 2, UnitPriceMinor: 12000, TaxRate: rate("0.08")}, // 24000, tax 1920
			},
			subtotal: 136500, tax: 11920, total: 148420,
		},
		{
			name: "per-line floor loses fractional tax",
			lines: []core.InvoiceLine{
				// 111 × 0.08 = 8.88 → 8 per line
				{Quantity: 1, UnitPriceMinor: 111, TaxRate: rate("0.08")},
				{Quantity: 1, UnitPriceMinor: 111, TaxRate: rate("0.08")},
				{Quantity: 1, UnitPriceMinor: 111, TaxRate: rate("0.08")},
			},
			subtotal: 333, tax: 24, total: 357,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := core.ComputeInvoiceTotals(tc.lines)
			if got.SubtotalMinor != tc.subtotal {
				t.Errorf("subtotal: expected %d, got %d", tc.subtotal, got.SubtotalMinor)
			}
			if got.TaxMinor != tc.tax {
				t.Errorf("tax: expected %d, got %d", tc.tax, got.TaxMinor)
			}
			if got.TotalMinor != tc.total {
				t.Errorf("total: expected %d, got %d", tc.total, got.TotalMinor)
			}
			if got.TotalMinor != got.SubtotalMinor+got.TaxMinor {
				t.Errorf("total %d != subtotal %d + tax %d", got.TotalMinor, got.SubtotalMinor, got.TaxMinor)
			}
		})
	}
}

func TestComputeInvoiceTotals_OrderIndependent(t *testing.T) {
	lines := []core.InvoiceLine{
		{Quantity: 7, UnitPriceMinor: 999, TaxRate: rate("0.10")},
		{Quantity: 1, UnitPriceMinor: 12345, TaxRate: rate("0.08")},
		{Quantity: 3, UnitPriceMinor: 250, TaxRate: decimal.Zero},
	}
	reversed := []core.InvoiceLine{lines[2], lines[1], lines[0]}

	a := core.ComputeInvoiceTotals(lines)
	b := core.ComputeInvoiceTotals(reversed)
	if a != b {
		t.Errorf("totals depend on line order: %+v vs %+v", a, b)
	}
}

func TestComputeInvoiceTotals_FlooredPerLineNotAggregate(t *testing.T) {
	// Two lines each carrying a .5 fractional tax part. Per-line flooring
	// drops both halves; flooring the aggregate once would keep one unit.
	lines := []core.InvoiceLine{
		{Quantity: 1, UnitPriceMinor: 1025, TaxRate: rate("0.10")}, // 102.5 → 102
		{Quantity: 1, UnitPriceMinor: 1025, TaxRate: rate("0.10")}, // 102.5 → 102
	}
	got := core.ComputeInvoiceTotals(lines)
	if got.TaxMinor != 204 {
		t.Errorf("expected per-line floored tax 204, got %d", got.TaxMinor)
	}
}

func TestLineTaxMinor(t *testing.T) {
	tests := []struct {
		subtotal int64
		rate     decimal.Decimal
		want     int64
	}{
		{100000, rate("0.10"), 10000},
		{12345, rate("0.08"), 987}, // 987.6 floors down
		{12345, decimal.Zero, 0},
		{1, rate("0.08"), 0},
	}
	for _, tc := range tests {
		if got := core.LineTaxMinor(tc.subtotal, tc.rate); got != tc.want {
			t.Errorf("LineTaxMinor(%d, %s): expected %d, got %d", tc.subtotal, tc.rate, tc.want, got)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to core.InvoiceStatus
		want     bool
	}{
		{core.InvoiceStatusDraft, core.InvoiceStatusSent, true},
		{core.InvoiceStatusDraft, core.InvoiceStatusPaid, true},
		{core.InvoiceStatusSent, core.InvoiceStatusPaid, true},
		{core.InvoiceStatusSent, core.InvoiceStatusDraft, false},
		{core.InvoiceStatusPaid, core.InvoiceStatusSent, false},
		{core.InvoiceStatusPaid, core.InvoiceStatusPaid, false},
		{core.InvoiceStatusDraft, core.InvoiceStatus("void"), false},
	}
	for _, tc := range tests {
		if got := core.CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s): expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestAllowedTaxRate(t *testing.T) {
	if !core.AllowedTaxRate(decimal.Zero) {
		t.Error("0 should be allowed")
	}
	if !core.AllowedTaxRate(rate("0.08")) {
		t.Error("0.08 should be allowed")
	}
	if !core.AllowedTaxRate(rate("0.1")) {
		t.Error("0.1 should compare equal to 0.10")
	}
	if core.AllowedTaxRate(rate("0.05")) {
		t.Error("0.05 must be rejected, not clamped")
	}
	if core.AllowedTaxRate(rate("0.0800001")) {
		t.Error("near-miss rates must be rejected")
	}
}
