package agent

import (
	"github.com/shopspring/decimal"

	"invoice-agent/internal/core"
)

// Arguments is the closed union of typed action payloads, one variant per
// catalog kind. Values are constructed only by the Validator — untyped
// interpreter output never crosses that boundary.
type Arguments interface {
	isArguments()
}

type RecordTransactionArgs struct {
	Direction        core.TransactionDirection
	Date             string
	Category         string
	CounterpartyName string
	AmountMinor      int64
	Memo             string
}

// AmendTransactionArgs carries a transaction amendment. Nil fields are left
// unchanged; at least one must be set.
type AmendTransactionArgs struct {
	TransactionID    int64
	Direction        *core.TransactionDirection
	Date             *string
	Category         *string
	CounterpartyName *string
	AmountMinor      *int64
	Memo             *string
}

type DraftInvoiceArgs struct {
	ClientName  string
	IssueDate   string
	DueDate     string
	Notes       string
	BankAccount string
}

type AddInvoiceLineArgs struct {
	InvoiceID      int64
	Description    string
	Quantity       int64
	UnitPriceMinor int64
	TaxRate        decimal.Decimal
}

type FindClientArgs struct {
	Query string
}

type CreateClientArgs struct {
	Name              string
	Email             string
	Address           string
	TaxRegistrationID string
}

type SetInvoiceStatusArgs struct {
	InvoiceID int64
	Status    core.InvoiceStatus
}

func (RecordTransactionArgs) isArguments() {}
func (AmendTransactionArgs) isArguments()  {}
func (DraftInvoiceArgs) isArguments()      {}
func (AddInvoiceLineArgs) isArguments()    {}
func (FindClientArgs) isArguments()        {}
func (CreateClientArgs) isArguments()      {}
func (SetInvoiceStatusArgs) isArguments()  {}

// Patch converts an amendment into the store's patch shape.
func (a AmendTransactionArgs) Patch() core.TransactionPatch {
	return core.TransactionPatch{
		Direction:        a.Direction,
		Date:             a.Date,
		Category:         a.Category,
		CounterpartyName: a.CounterpartyName,
		AmountMinor:      a.AmountMinor,
		Memo:             a.Memo,
	}
}
