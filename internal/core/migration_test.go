package core_test

import (
	"os"
	"regexp"
	"strings"
	"testing"
)

// The store's SQL and the migration DDL are maintained by hand; this keeps
// them from drifting apart. Every column the store names must be defined by
// the table that owns it.
func TestMigrationDefinesStoreColumns(t *testing.T) {
	ddl, err := os.ReadFile("../../migrations/001_init.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}

	tables := map[string][]string{
		"transactions":  {"id", "direction", "date", "category", "counterparty_name", "amount_minor", "memo", "created_at"},
		"clients":       {"id", "name", "email", "address", "tax_registration_id", "created_at"},
		"invoices":      {"id", "client_id", "status", "issue_date", "due_date", "notes", "bank_account", "subtotal_minor", "tax_minor", "total_minor", "created_at"},
		"invoice_lines": {"id", "invoice_id", "description", "quantity", "unit_price_minor", "tax_rate", "amount_minor"},
		"audit_log":     {"actor_id", "action_kind", "entity_id", "detail"},
	}

	for table, columns := range tables {
		t.Run(table, func(t *testing.T) {
			block := tableDDL(t, string(ddl), table)
			for _, col := range columns {
				matched, err := regexp.MatchString(`(?m)^\s+`+col+`\s`, block)
				if err != nil {
					t.Fatalf("column pattern %q: %v", col, err)
				}
				if !matched {
					t.Errorf("table %s does not define column %s used by the store", table, col)
				}
			}
		})
	}
}

// tableDDL extracts one CREATE TABLE body from the migration.
func tableDDL(t *testing.T, ddl, table string) string {
	t.Helper()
	marker := "CREATE TABLE IF NOT EXISTS " + table + " ("
	start := strings.Index(ddl, marker)
	if start < 0 {
		t.Fatalf("migration does not create table %s", table)
	}
	rest := ddl[start:]
	end := strings.Index(rest, ");")
	if end < 0 {
		t.Fatalf("unterminated CREATE TABLE for %s", table)
	}
	return rest[:end]
}
