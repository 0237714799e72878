package agent

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"invoice-agent/internal/core"
)

var hundred = decimal.NewFromInt(100)

// RawAction is an untrusted candidate action as produced by an interpreter
// backend: text-derived structured data with no guarantee of validity.
type RawAction struct {
	Kind      string         `json:"kind"`
	Arguments map[string]any `json:"arguments"`
}

// Validator checks raw candidate actions against the catalog and constructs
// typed arguments. It is pure: validation never touches the repository.
//
// Loosely-typed input is normalized only where unambiguous — integral JSON
// numbers and digit-only strings for integer fields; everything else fails
// closed. All violations on an action are collected, not just the first.
type Validator struct {
	catalog *Catalog
}

func NewValidator(catalog *Catalog) *Validator {
	return &Validator{catalog: catalog}
}

// Validate returns the typed arguments for a raw action, or a
// *ValidationError listing every violation.
func (v *Validator) Validate(raw RawAction) (Arguments, error) {
	spec, ok := v.catalog.Get(ActionKind(raw.Kind))
	if !ok {
		return nil, &ValidationError{
			Kind:       raw.Kind,
			Violations: []FieldViolation{{Field: "kind", Reason: fmt.Sprintf("unknown action kind %q", raw.Kind)}},
		}
	}

	r := &argReader{args: raw.Arguments}
	var parsed Arguments
	switch spec.Kind {
	case KindRecordTransaction:
		parsed = v.recordTransaction(r)
	case KindAmendTransaction:
		parsed = v.amendTransaction(r)
	case KindDraftInvoice:
		parsed = v.draftInvoice(r)
	case KindAddInvoiceLine:
		parsed = v.addInvoiceLine(r)
	case KindFindClient:
		parsed = v.findClient(r)
	case KindCreateClient:
		parsed = v.createClient(r)
	case KindSetInvoiceStatus:
		parsed = v.setInvoiceStatus(r)
	}

	if len(r.violations) > 0 {
		return nil, &ValidationError{Kind: raw.Kind, Violations: r.violations}
	}
	return parsed, nil
}

// Preview renders the human-readable description of a validated action.
func (v *Validator) Preview(kind ActionKind, args Arguments) string {
	spec, ok := v.catalog.Get(kind)
	if !ok {
		return string(kind)
	}
	return spec.Preview(args)
}

// ── Per-kind parsing ─────────────────────────────────────────────────────────

func (v *Validator) recordTransaction(r *argReader) Arguments {
	return RecordTransactionArgs{
		Direction:        core.TransactionDirection(r.requireEnum("direction", string(core.DirectionIncome), string(core.DirectionExpense))),
		Date:             r.requireDate("date"),
		Category:         r.requireString("category"),
		CounterpartyName: r.requireString("counterparty_name"),
		AmountMinor:      r.requirePositiveInt("amount_minor"),
		Memo:             r.optionalString("memo"),
	}
}

func (v *Validator) amendTransaction(r *argReader) Arguments {
	args := AmendTransactionArgs{
		TransactionID: r.requirePositiveInt("transaction_id"),
	}
	if s, ok := r.optionalEnum("direction", string(core.DirectionIncome), string(core.DirectionExpense)); ok {
		d := core.TransactionDirection(s)
		args.Direction = &d
	}
	if s, ok := r.optionalDate("date"); ok {
		args.Date = &s
	}
	if s, ok := r.optionalNonEmptyString("category"); ok {
		args.Category = &s
	}
	if s, ok := r.optionalNonEmptyString("counterparty_name"); ok {
		args.CounterpartyName = &s
	}
	if n, ok := r.optionalPositiveInt("amount_minor"); ok {
		args.AmountMinor = &n
	}
	if _, present := r.args["memo"]; present {
		s := r.optionalString("memo")
		args.Memo = &s
	}
	if args.Direction == nil && args.Date == nil && args.Category == nil &&
		args.CounterpartyName == nil && args.AmountMinor == nil && args.Memo == nil {
		r.addViolation("arguments", "at least one field to amend is required")
	}
	return args
}

func (v *Validator) draftInvoice(r *argReader) Arguments {
	return DraftInvoiceArgs{
		ClientName:  r.requireString("client_name"),
		IssueDate:   r.requireDate("issue_date"),
		DueDate:     r.requireDate("due_date"),
		Notes:       r.optionalString("notes"),
		BankAccount: r.optionalString("bank_account"),
	}
}

func (v *Validator) addInvoiceLine(r *argReader) Arguments {
	return AddInvoiceLineArgs{
		InvoiceID:      r.requirePositiveInt("invoice_id"),
		Description:    r.requireString("description"),
		Quantity:       r.requirePositiveInt("quantity"),
		UnitPriceMinor: r.requirePositiveInt("unit_price_minor"),
		TaxRate:        r.requireTaxRate("tax_rate"),
	}
}

func (v *Validator) findClient(r *argReader) Arguments {
	return FindClientArgs{Query: r.requireString("query")}
}

func (v *Validator) createClient(r *argReader) Arguments {
	return CreateClientArgs{
		Name:              r.requireString("name"),
		Email:             r.optionalString("email"),
		Address:           r.optionalString("address"),
		TaxRegistrationID: r.optionalString("tax_registration_id"),
	}
}

func (v *Validator) setInvoiceStatus(r *argReader) Arguments {
	return SetInvoiceStatusArgs{
		InvoiceID: r.requirePositiveInt("invoice_id"),
		Status:    core.InvoiceStatus(r.requireEnum("status", string(core.InvoiceStatusSent), string(core.InvoiceStatusPaid))),
	}
}

// ── Field readers ────────────────────────────────────────────────────────────

// argReader pulls typed values out of an untyped argument map, collecting
// every violation it encounters.
type argReader struct {
	args       map[string]any
	violations []FieldViolation
}

func (r *argReader) addViolation(field, reason string) {
	r.violations = append(r.violations, FieldViolation{Field: field, Reason: reason})
}

func (r *argReader) requireString(field string) string {
	raw, present := r.args[field]
	if !present {
		r.addViolation(field, "required")
		return ""
	}
	s, ok := raw.(string)
	if !ok {
		r.addViolation(field, "must be a string")
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		r.addViolation(field, "must not be empty")
	}
	return s
}

func (r *argReader) optionalString(field string) string {
	raw, present := r.args[field]
	if !present || raw == nil {
		return ""
	}
	s, ok := raw.(string)
	if !ok {
		r.addViolation(field, "must be a string")
		return ""
	}
	return strings.TrimSpace(s)
}

// optionalNonEmptyString returns the value only if present and non-blank.
func (r *argReader) optionalNonEmptyString(field string) (string, bool) {
	raw, present := r.args[field]
	if !present || raw == nil {
		return "", false
	}
	s, ok := raw.(string)
	if !ok {
		r.addViolation(field, "must be a string")
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

func (r *argReader) requireDate(field string) string {
	s := r.requireString(field)
	if s == "" {
		return s
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		r.addViolation(field, "must be a date in YYYY-MM-DD format")
	}
	return s
}

func (r *argReader) optionalDate(field string) (string, bool) {
	s, ok := r.optionalNonEmptyString(field)
	if !ok {
		return "", false
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		r.addViolation(field, "must be a date in YYYY-MM-DD format")
		return "", false
	}
	return s, true
}

func (r *argReader) requirePositiveInt(field string) int64 {
	raw, present := r.args[field]
	if !present {
		r.addViolation(field, "required")
		return 0
	}
	n, ok := coerceInt(raw)
	if !ok {
		r.addViolation(field, "must be an integer")
		return 0
	}
	if n <= 0 {
		r.addViolation(field, "must be positive")
		return 0
	}
	return n
}

func (r *argReader) optionalPositiveInt(field string) (int64, bool) {
	raw, present := r.args[field]
	if !present || raw == nil {
		return 0, false
	}
	n, ok := coerceInt(raw)
	if !ok {
		r.addViolation(field, "must be an integer")
		return 0, false
	}
	if n <= 0 {
		r.addViolation(field, "must be positive")
		return 0, false
	}
	return n, true
}

func (r *argReader) requireEnum(field string, allowed ...string) string {
	s := r.requireString(field)
	if s == "" {
		return s
	}
	for _, a := range allowed {
		if s == a {
			return s
		}
	}
	r.addViolation(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
	return ""
}

func (r *argReader) optionalEnum(field string, allowed ...string) (string, bool) {
	s, ok := r.optionalNonEmptyString(field)
	if !ok {
		return "", false
	}
	for _, a := range allowed {
		if s == a {
			return s, true
		}
	}
	r.addViolation(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
	return "", false
}

// requireTaxRate accepts exactly 0, 0.08 or 0.10 — as a JSON number or a
// numeric string. Any other value is a violation, never a clamp.
func (r *argReader) requireTaxRate(field string) decimal.Decimal {
	raw, present := r.args[field]
	if !present {
		r.addViolation(field, "required")
		return decimal.Zero
	}

	var rate decimal.Decimal
	switch t := raw.(type) {
	case float64:
		rate = decimal.NewFromFloat(t)
	case int:
		rate = decimal.NewFromInt(int64(t))
	case int64:
		rate = decimal.NewFromInt(t)
	case json.Number:
		parsed, err := decimal.NewFromString(t.String())
		if err != nil {
			r.addViolation(field, "must be a number")
			return decimal.Zero
		}
		rate = parsed
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(t))
		if err != nil {
			r.addViolation(field, "must be a number")
			return decimal.Zero
		}
		rate = parsed
	default:
		r.addViolation(field, "must be a number")
		return decimal.Zero
	}

	if !core.AllowedTaxRate(rate) {
		r.addViolation(field, "must be exactly 0, 0.08 or 0.10")
		return decimal.Zero
	}
	return rate
}

// coerceInt normalizes the integer encodings a JSON-speaking backend can
// produce. Fractional numbers and non-digit strings fail: ambiguity fails
// closed.
func coerceInt(raw any) (int64, bool) {
	switch t := raw.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
