package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates that a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrStatusRegression indicates an attempt to move an invoice status backwards.
var ErrStatusRegression = errors.New("invoice status cannot move backwards")

// TransactionPatch carries the fields of a transaction amendment.
// Nil fields are left unchanged.
type TransactionPatch struct {
	Direction        *TransactionDirection
	Date             *string
	Category         *string
	CounterpartyName *string
	AmountMinor      *int64
	Memo             *string
}

// Store is the pgx-backed persistence layer for transactions, clients,
// invoices and invoice lines. Line mutations and the totals recomputation
// they trigger run inside one database transaction, so an invoice's stored
// totals are always consistent with its lines.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared
// query helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ── Transactions ─────────────────────────────────────────────────────────────

func (s *Store) CreateTransaction(ctx context.Context, t Transaction) (*Transaction, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO transactions (direction, date, category, counterparty_name, amount_minor, memo)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, t.Direction, t.Date, t.Category, t.CounterpartyName, t.AmountMinor, t.Memo).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return &t, nil
}

func (s *Store) GetTransaction(ctx context.Context, id int64) (*Transaction, error) {
	var t Transaction
	err := s.pool.QueryRow(ctx, `
		SELECT id, direction, date, category, counterparty_name, amount_minor, memo, created_at
		FROM transactions WHERE id = $1
	`, id).Scan(&t.ID, &t.Direction, &t.Date, &t.Category, &t.CounterpartyName, &t.AmountMinor, &t.Memo, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch transaction %d: %w", id, err)
	}
	return &t, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, id int64, patch TransactionPatch) (*Transaction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var t Transaction
	err = tx.QueryRow(ctx, `
		SELECT id, direction, date, category, counterparty_name, amount_minor, memo, created_at
		FROM transactions WHERE id = $1 FOR UPDATE
	`, id).Scan(&t.ID, &t.Direction, &t.Date, &t.Category, &t.CounterpartyName, &t.AmountMinor, &t.Memo, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch transaction %d: %w", id, err)
	}

	if patch.Direction != nil {
		t.Direction = *patch.Direction
	}
	if patch.Date != nil {
		t.Date = *patch.Date
	}
	if patch.Category != nil {
		t.Category = *patch.Category
	}
	if patch.CounterpartyName != nil {
		t.CounterpartyName = *patch.CounterpartyName
	}
	if patch.AmountMinor != nil {
		t.AmountMinor = *patch.AmountMinor
	}
	if patch.Memo != nil {
		t.Memo = *patch.Memo
	}

	_, err = tx.Exec(ctx, `
		UPDATE transactions
		SET direction = $2, date = $3, category = $4, counterparty_name = $5, amount_minor = $6, memo = $7
		WHERE id = $1
	`, t.ID, t.Direction, t.Date, t.Category, t.CounterpartyName, t.AmountMinor, t.Memo)
	if err != nil {
		return nil, fmt.Errorf("failed to update transaction %d: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction update: %w", err)
	}
	return &t, nil
}

func (s *Store) ListTransactions(ctx context.Context, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, direction, date, category, counterparty_name, amount_minor, memo, created_at
		FROM transactions
		ORDER BY date DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.Direction, &t.Date, &t.Category, &t.CounterpartyName,
			&t.AmountMinor, &t.Memo, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ── Clients ──────────────────────────────────────────────────────────────────

func (s *Store) CreateClient(ctx context.Context, c Client) (*Client, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO clients (name, email, address, tax_registration_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, c.Name, c.Email, c.Address, c.TaxRegistrationID).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return &c, nil
}

// FindClientsByName returns up to limit clients whose name contains query,
// case-insensitively, ordered by name.
func (s *Store) FindClientsByName(ctx context.Context, query string, limit int) ([]Client, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, address, tax_registration_id, created_at
		FROM clients
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY name
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search clients: %w", err)
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Address, &c.TaxRegistrationID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ListClients(ctx context.Context) ([]Client, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, address, tax_registration_id, created_at
		FROM clients ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Address, &c.TaxRegistrationID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ── Invoices ─────────────────────────────────────────────────────────────────

// CreateInvoice inserts a new invoice in draft status with zero totals.
// Totals only ever change through line mutations.
func (s *Store) CreateInvoice(ctx context.Context, inv Invoice) (*Invoice, error) {
	inv.Status = InvoiceStatusDraft
	inv.SubtotalMinor, inv.TaxMinor, inv.TotalMinor = 0, 0, 0
	err := s.pool.QueryRow(ctx, `
		INSERT INTO invoices (client_id, issue_date, due_date, status, subtotal_minor, tax_minor, total_minor, notes, bank_account)
		VALUES ($1, $2, $3, $4, 0, 0, 0, $5, $6)
		RETURNING id, created_at
	`, inv.ClientID, inv.IssueDate, inv.DueDate, inv.Status, inv.Notes, inv.BankAccount).Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}
	return &inv, nil
}

func (s *Store) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	return s.getInvoice(ctx, s.pool, id, false)
}

func (s *Store) getInvoice(ctx context.Context, q pgxQuerier, id int64, forUpdate bool) (*Invoice, error) {
	lock := ""
	if forUpdate {
		lock = " FOR UPDATE OF i"
	}
	var inv Invoice
	err := q.QueryRow(ctx, `
		SELECT i.id, i.client_id, c.name, i.issue_date, i.due_date, i.status,
		       i.subtotal_minor, i.tax_minor, i.total_minor, i.notes, i.bank_account, i.created_at
		FROM invoices i
		JOIN clients c ON c.id = i.client_id
		WHERE i.id = $1`+lock, id,
	).Scan(&inv.ID, &inv.ClientID, &inv.ClientName, &inv.IssueDate, &inv.DueDate, &inv.Status,
		&inv.SubtotalMinor, &inv.TaxMinor, &inv.TotalMinor, &inv.Notes, &inv.BankAccount, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch invoice %d: %w", id, err)
	}
	return &inv, nil
}

func (s *Store) ListInvoices(ctx context.Context, status *InvoiceStatus) ([]Invoice, error) {
	query := `
		SELECT i.id, i.client_id, c.name, i.issue_date, i.due_date, i.status,
		       i.subtotal_minor, i.tax_minor, i.total_minor, i.notes, i.bank_account, i.created_at
		FROM invoices i
		JOIN clients c ON c.id = i.client_id`
	args := []any{}
	if status != nil {
		query += " WHERE i.status = $1"
		args = append(args, *status)
	}
	query += " ORDER BY i.id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.ClientID, &inv.ClientName, &inv.IssueDate, &inv.DueDate, &inv.Status,
			&inv.SubtotalMinor, &inv.TaxMinor, &inv.TotalMinor, &inv.Notes, &inv.BankAccount, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// SetInvoiceStatus moves an invoice to a new status. Transitions are
// forward-only; a regression returns ErrStatusRegression.
func (s *Store) SetInvoiceStatus(ctx context.Context, id int64, status InvoiceStatus) (*Invoice, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("invalid invoice status %q", status)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inv, err := s.getInvoice(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	if !CanTransition(inv.Status, status) {
		return nil, fmt.Errorf("invoice %d is %s, cannot set %s: %w", id, inv.Status, status, ErrStatusRegression)
	}

	if _, err := tx.Exec(ctx, "UPDATE invoices SET status = $2 WHERE id = $1", id, status); err != nil {
		return nil, fmt.Errorf("failed to update invoice status: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit status update: %w", err)
	}

	inv.Status = status
	return inv, nil
}

// ── Invoice lines ────────────────────────────────────────────────────────────

func (s *Store) GetInvoiceLines(ctx context.Context, invoiceID int64) ([]InvoiceLine, error) {
	return s.fetchLines(ctx, s.pool, invoiceID)
}

func (s *Store) fetchLines(ctx context.Context, q pgxQuerier, invoiceID int64) ([]InvoiceLine, error) {
	rows, err := q.Query(ctx, `
		SELECT id, invoice_id, description, quantity, unit_price_minor, tax_rate, amount_minor
		FROM invoice_lines
		WHERE invoice_id = $1
		ORDER BY id
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice lines: %w", err)
	}
	defer rows.Close()

	var out []InvoiceLine
	for rows.Next() {
		var l InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.Description, &l.Quantity,
			&l.UnitPriceMinor, &l.TaxRate, &l.AmountMinor); err != nil {
			return nil, fmt.Errorf("failed to scan invoice line: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// AddInvoiceLine inserts a line and recomputes the parent invoice's totals in
// the same database transaction. The recomputed totals come straight from the
// atomic write — no refetch, no window for a read-after-write race.
func (s *Store) AddInvoiceLine(ctx context.Context, line InvoiceLine) (*InvoiceTotals, error) {
	line.AmountMinor = LineAmountMinor(line.Quantity, line.UnitPriceMinor)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the parent row so concurrent line mutations on the same invoice
	// serialize around the recomputation.
	if _, err := s.getInvoice(ctx, tx, line.InvoiceID, true); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO invoice_lines (invoice_id, description, quantity, unit_price_minor, tax_rate, amount_minor)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, line.InvoiceID, line.Description, line.Quantity, line.UnitPriceMinor, line.TaxRate, line.AmountMinor)
	if err != nil {
		return nil, fmt.Errorf("failed to insert invoice line: %w", err)
	}

	totals, err := s.recomputeTx(ctx, tx, line.InvoiceID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit line insert: %w", err)
	}
	return totals, nil
}

// UpdateInvoiceLine replaces a line's fields and recomputes the parent
// invoice's totals atomically.
func (s *Store) UpdateInvoiceLine(ctx context.Context, line InvoiceLine) (*InvoiceTotals, error) {
	line.AmountMinor = LineAmountMinor(line.Quantity, line.UnitPriceMinor)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var invoiceID int64
	err = tx.QueryRow(ctx, "SELECT invoice_id FROM invoice_lines WHERE id = $1", line.ID).Scan(&invoiceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice line %d: %w", line.ID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch invoice line %d: %w", line.ID, err)
	}
	if _, err := s.getInvoice(ctx, tx, invoiceID, true); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE invoice_lines
		SET description = $2, quantity = $3, unit_price_minor = $4, tax_rate = $5, amount_minor = $6
		WHERE id = $1
	`, line.ID, line.Description, line.Quantity, line.UnitPriceMinor, line.TaxRate, line.AmountMinor)
	if err != nil {
		return nil, fmt.Errorf("failed to update invoice line %d: %w", line.ID, err)
	}

	totals, err := s.recomputeTx(ctx, tx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit line update: %w", err)
	}
	return totals, nil
}

// DeleteInvoiceLine removes a line and recomputes the parent invoice's totals
// atomically.
func (s *Store) DeleteInvoiceLine(ctx context.Context, lineID int64) (*InvoiceTotals, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var invoiceID int64
	err = tx.QueryRow(ctx, "SELECT invoice_id FROM invoice_lines WHERE id = $1", lineID).Scan(&invoiceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice line %d: %w", lineID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch invoice line %d: %w", lineID, err)
	}
	if _, err := s.getInvoice(ctx, tx, invoiceID, true); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, "DELETE FROM invoice_lines WHERE id = $1", lineID); err != nil {
		return nil, fmt.Errorf("failed to delete invoice line %d: %w", lineID, err)
	}

	totals, err := s.recomputeTx(ctx, tx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit line delete: %w", err)
	}
	return totals, nil
}

// RecomputeInvoiceTotals rebuilds an invoice's stored totals from its current
// lines in one transaction. Used to settle a partially completed line write.
func (s *Store) RecomputeInvoiceTotals(ctx context.Context, invoiceID int64) (*InvoiceTotals, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := s.getInvoice(ctx, tx, invoiceID, true); err != nil {
		return nil, err
	}
	totals, err := s.recomputeTx(ctx, tx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit totals recompute: %w", err)
	}
	return totals, nil
}

// recomputeTx recomputes and stores invoice totals inside an open transaction.
// Stored totals are fully replaced with the engine's output.
func (s *Store) recomputeTx(ctx context.Context, tx pgx.Tx, invoiceID int64) (*InvoiceTotals, error) {
	lines, err := s.fetchLines(ctx, tx, invoiceID)
	if err != nil {
		return nil, err
	}

	totals := ComputeInvoiceTotals(lines)
	_, err = tx.Exec(ctx, `
		UPDATE invoices SET subtotal_minor = $2, tax_minor = $3, total_minor = $4 WHERE id = $1
	`, invoiceID, totals.SubtotalMinor, totals.TaxMinor, totals.TotalMinor)
	if err != nil {
		return nil, fmt.Errorf("failed to store invoice totals: %w", err)
	}
	return &totals, nil
}

// ── Audit log ────────────────────────────────────────────────────────────────

// RecordAudit appends an audit row. Callers treat this as fire-and-forget;
// an error here must never abort the action that produced it.
func (s *Store) RecordAudit(ctx context.Context, actorID, actionKind, entityID, detail string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (actor_id, action_kind, entity_id, detail)
		VALUES ($1, $2, $3, $4)
	`, actorID, actionKind, entityID, detail)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}
