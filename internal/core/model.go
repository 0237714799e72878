package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionDirection string

const (
	DirectionIncome  TransactionDirection = "income"
	DirectionExpense TransactionDirection = "expense"
)

// Transaction is a single income or expense record.
// AmountMinor is a positive count of the smallest currency unit — money is
// never represented as a float.
type Transaction struct {
	ID               int64                `json:"id"`
	Direction        TransactionDirection `json:"direction"`
	Date             string               `json:"date"` // YYYY-MM-DD
	Category         string               `json:"category"`
	CounterpartyName string               `json:"counterparty_name"`
	AmountMinor      int64                `json:"amount_minor"`
	Memo             string               `json:"memo,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
}

// Client is a billing counterparty master record.
type Client struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email,omitempty"`
	Address           string    `json:"address,omitempty"`
	TaxRegistrationID string    `json:"tax_registration_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

type InvoiceStatus string

const (
	InvoiceStatusDraft InvoiceStatus = "draft"
	InvoiceStatusSent  InvoiceStatus = "sent"
	InvoiceStatusPaid  InvoiceStatus = "paid"
)

// statusRank orders invoice statuses for the forward-only transition check.
var statusRank = map[InvoiceStatus]int{
	InvoiceStatusDraft: 0,
	InvoiceStatusSent:  1,
	InvoiceStatusPaid:  2,
}

// ValidStatus reports whether s is a known invoice status.
func ValidStatus(s InvoiceStatus) bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransition reports whether an invoice may move from one status to
// another. Transitions are strictly forward:
//
//	draft → sent → paid
//
// and never reversed.
func CanTransition(from, to InvoiceStatus) bool {
	fr, ok1 := statusRank[from]
	tr, ok2 := statusRank[to]
	return ok1 && ok2 && tr > fr
}

// Invoice is an invoice header. SubtotalMinor, TaxMinor and TotalMinor are
// always the output of ComputeInvoiceTotals over the current lines; callers
// never set them independently, and TotalMinor == SubtotalMinor + TaxMinor
// holds at all times.
type Invoice struct {
	ID            int64         `json:"id"`
	ClientID      int64         `json:"client_id"`
	ClientName    string        `json:"client_name,omitempty"` // joined from clients
	IssueDate     string        `json:"issue_date"`            // YYYY-MM-DD
	DueDate       string        `json:"due_date"`              // YYYY-MM-DD
	Status        InvoiceStatus `json:"status"`
	SubtotalMinor int64         `json:"subtotal_minor"`
	TaxMinor      int64         `json:"tax_minor"`
	TotalMinor    int64         `json:"total_minor"`
	Notes         string        `json:"notes,omitempty"`
	BankAccount   string        `json:"bank_account,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// InvoiceLine is one line item on an invoice.
// AmountMinor is always Quantity × UnitPriceMinor.
type InvoiceLine struct {
	ID             int64           `json:"id"`
	InvoiceID      int64           `json:"invoice_id"`
	Description    string          `json:"description"`
	Quantity       int64           `json:"quantity"`
	UnitPriceMinor int64           `json:"unit_price_minor"`
	TaxRate        decimal.Decimal `json:"tax_rate"` // one of 0, 0.08, 0.10
	AmountMinor    int64           `json:"amount_minor"`
}

// AllowedTaxRates is the closed set of per-line tax rates the system accepts.
// Any other value is a validation failure, never a silent clamp.
var AllowedTaxRates = []decimal.Decimal{
	decimal.Zero,
	decimal.RequireFromString("0.08"),
	decimal.RequireFromString("0.10"),
}

// AllowedTaxRate reports whether r is exactly one of the whitelisted rates.
func AllowedTaxRate(r decimal.Decimal) bool {
	for _, allowed := range AllowedTaxRates {
		if r.Equal(allowed) {
			return true
		}
	}
	return false
}
