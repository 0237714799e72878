package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// ActionKind names one entry of the closed action catalog.
type ActionKind string

const (
	KindRecordTransaction ActionKind = "record-transaction"
	KindDraftInvoice      ActionKind = "draft-invoice"
	KindAddInvoiceLine    ActionKind = "add-invoice-line"
	KindFindClient        ActionKind = "find-client"
	KindCreateClient      ActionKind = "create-client"
	KindSetInvoiceStatus  ActionKind = "set-invoice-status"
	KindAmendTransaction  ActionKind = "amend-transaction"
)

// ActionSpec describes a single catalog entry: the kind, its argument schema,
// and a human-readable preview formatter shown before approval.
type ActionSpec struct {
	Kind        ActionKind
	Description string
	InputSchema map[string]any // JSON Schema for the action's arguments
	Preview     func(args Arguments) string
}

// Catalog is the closed set of action kinds the agent may propose.
// Static, defined at build time.
type Catalog struct {
	specs []ActionSpec
}

func (c *Catalog) Get(kind ActionKind) (ActionSpec, bool) {
	for _, s := range c.specs {
		if s.Kind == kind {
			return s, true
		}
	}
	return ActionSpec{}, false
}

func (c *Catalog) All() []ActionSpec {
	return c.specs
}

// PromptDescription renders the catalog for an interpreter prompt: one block
// per kind with its description and argument schema.
func (c *Catalog) PromptDescription() string {
	var b strings.Builder
	for _, s := range c.specs {
		schemaJSON, _ := json.Marshal(s.InputSchema)
		fmt.Fprintf(&b, "- %s: %s\n  arguments schema: %s\n", s.Kind, s.Description, schemaJSON)
	}
	return b.String()
}

// ── Argument schema structs ──────────────────────────────────────────────────
// These exist only to generate the catalog's JSON Schemas. The Validator owns
// the authoritative constraints; keep the two in sync when adding a kind.

type recordTransactionSchema struct {
	Direction        string `json:"direction" jsonschema:"enum=income,enum=expense" jsonschema_description:"Whether money came in or went out"`
	Date             string `json:"date" jsonschema_description:"Transaction date in YYYY-MM-DD format"`
	Category         string `json:"category" jsonschema_description:"Bookkeeping category, e.g. 'office supplies'"`
	CounterpartyName string `json:"counterparty_name" jsonschema_description:"Who was paid or who paid"`
	AmountMinor      int64  `json:"amount_minor" jsonschema:"minimum=1" jsonschema_description:"Positive amount in the smallest currency unit (never a float)"`
	Memo             string `json:"memo,omitempty" jsonschema_description:"Optional free-text note"`
}

type amendTransactionSchema struct {
	TransactionID    int64  `json:"transaction_id" jsonschema:"minimum=1" jsonschema_description:"ID of the transaction to amend"`
	Direction        string `json:"direction,omitempty" jsonschema:"enum=income,enum=expense"`
	Date             string `json:"date,omitempty" jsonschema_description:"New date in YYYY-MM-DD format"`
	Category         string `json:"category,omitempty"`
	CounterpartyName string `json:"counterparty_name,omitempty"`
	AmountMinor      int64  `json:"amount_minor,omitempty" jsonschema:"minimum=1" jsonschema_description:"New amount in the smallest currency unit"`
	Memo             string `json:"memo,omitempty"`
}

type draftInvoiceSchema struct {
	ClientName  string `json:"client_name" jsonschema_description:"Client name; matched case-insensitively, created if no match"`
	IssueDate   string `json:"issue_date" jsonschema_description:"Issue date in YYYY-MM-DD format"`
	DueDate     string `json:"due_date" jsonschema_description:"Due date in YYYY-MM-DD format"`
	Notes       string `json:"notes,omitempty"`
	BankAccount string `json:"bank_account,omitempty" jsonschema_description:"Bank account shown on the invoice"`
}

type addInvoiceLineSchema struct {
	InvoiceID      int64   `json:"invoice_id" jsonschema:"minimum=1"`
	Description    string  `json:"description"`
	Quantity       int64   `json:"quantity" jsonschema:"minimum=1"`
	UnitPriceMinor int64   `json:"unit_price_minor" jsonschema:"minimum=1" jsonschema_description:"Unit price in the smallest currency unit"`
	TaxRate        float64 `json:"tax_rate" jsonschema:"enum=0,enum=0.08,enum=0.1" jsonschema_description:"Exactly 0, 0.08 or 0.10 — no other rate is accepted"`
}

type findClientSchema struct {
	Query string `json:"query" jsonschema_description:"Name fragment to search for, case-insensitive"`
}

type createClientSchema struct {
	Name              string `json:"name"`
	Email             string `json:"email,omitempty"`
	Address           string `json:"address,omitempty"`
	TaxRegistrationID string `json:"tax_registration_id,omitempty"`
}

type setInvoiceStatusSchema struct {
	InvoiceID int64  `json:"invoice_id" jsonschema:"minimum=1"`
	Status    string `json:"status" jsonschema:"enum=sent,enum=paid" jsonschema_description:"Target status; invoices only move forward draft→sent→paid"`
}

// generateSchema reflects a JSON Schema map from a schema struct.
func generateSchema(v any) map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schemaJSON, err := json.Marshal(reflector.Reflect(v))
	if err != nil {
		panic("catalog schema marshal failed: " + err.Error())
	}
	var m map[string]any
	if err := json.Unmarshal(schemaJSON, &m); err != nil {
		panic("catalog schema unmarshal failed: " + err.Error())
	}
	return m
}

// DefaultCatalog builds the seven-kind catalog.
func DefaultCatalog() *Catalog {
	return &Catalog{specs: []ActionSpec{
		{
			Kind:        KindRecordTransaction,
			Description: "Record a single income or expense transaction",
			InputSchema: generateSchema(recordTransactionSchema{}),
			Preview: func(args Arguments) string {
				a := args.(RecordTransactionArgs)
				return fmt.Sprintf("Record %s of %s for %q (%s) on %s",
					a.Direction, formatMinor(a.AmountMinor), a.CounterpartyName, a.Category, a.Date)
			},
		},
		{
			Kind:        KindAmendTransaction,
			Description: "Amend fields of an existing transaction",
			InputSchema: generateSchema(amendTransactionSchema{}),
			Preview: func(args Arguments) string {
				a := args.(AmendTransactionArgs)
				var changes []string
				if a.Direction != nil {
					changes = append(changes, fmt.Sprintf("direction→%s", *a.Direction))
				}
				if a.Date != nil {
					changes = append(changes, fmt.Sprintf("date→%s", *a.Date))
				}
				if a.Category != nil {
					changes = append(changes, fmt.Sprintf("category→%s", *a.Category))
				}
				if a.CounterpartyName != nil {
					changes = append(changes, fmt.Sprintf("counterparty→%s", *a.CounterpartyName))
				}
				if a.AmountMinor != nil {
					changes = append(changes, fmt.Sprintf("amount→%s", formatMinor(*a.AmountMinor)))
				}
				if a.Memo != nil {
					changes = append(changes, "memo updated")
				}
				return fmt.Sprintf("Amend transaction #%d: %s", a.TransactionID, strings.Join(changes, ", "))
			},
		},
		{
			Kind:        KindDraftInvoice,
			Description: "Create a draft invoice for a client (client is created if no name matches)",
			InputSchema: generateSchema(draftInvoiceSchema{}),
			Preview: func(args Arguments) string {
				a := args.(DraftInvoiceArgs)
				return fmt.Sprintf("Draft invoice for %q, issued %s, due %s", a.ClientName, a.IssueDate, a.DueDate)
			},
		},
		{
			Kind:        KindAddInvoiceLine,
			Description: "Add a line item to an invoice and recompute its totals",
			InputSchema: generateSchema(addInvoiceLineSchema{}),
			Preview: func(args Arguments) string {
				a := args.(AddInvoiceLineArgs)
				return fmt.Sprintf("Add line to invoice #%d: %d × %s %q, tax %s%%",
					a.InvoiceID, a.Quantity, formatMinor(a.UnitPriceMinor), a.Description,
					a.TaxRate.Mul(hundred).String())
			},
		},
		{
			Kind:        KindFindClient,
			Description: "Look up clients by name fragment (read-only)",
			InputSchema: generateSchema(findClientSchema{}),
			Preview: func(args Arguments) string {
				a := args.(FindClientArgs)
				return fmt.Sprintf("Find clients matching %q", a.Query)
			},
		},
		{
			Kind:        KindCreateClient,
			Description: "Create a new client record",
			InputSchema: generateSchema(createClientSchema{}),
			Preview: func(args Arguments) string {
				a := args.(CreateClientArgs)
				return fmt.Sprintf("Create client %q", a.Name)
			},
		},
		{
			Kind:        KindSetInvoiceStatus,
			Description: "Move an invoice forward to sent or paid",
			InputSchema: generateSchema(setInvoiceStatusSchema{}),
			Preview: func(args Arguments) string {
				a := args.(SetInvoiceStatusArgs)
				return fmt.Sprintf("Mark invoice #%d as %s", a.InvoiceID, a.Status)
			},
		},
	}}
}

// formatMinor renders a minor-unit amount with thousands separators.
func formatMinor(v int64) string {
	s := fmt.Sprintf("%d", v)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}
