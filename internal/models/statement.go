package models

import (
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// StatementType identifies one of the three financial statements.
type StatementType string

const (
	IncomeStatement StatementType = "income_statement"
	BalanceSheet    StatementType = "balance_sheet"
	CashFlow        StatementType = "cash_flow"
)

// StatementTypes lists every statement type in ingestion order.
var StatementTypes = []StatementType{IncomeStatement, BalanceSheet, CashFlow}

// Valid reports whether t is a known statement type.
func (t StatementType) Valid() bool {
	switch t {
	case IncomeStatement, BalanceSheet, CashFlow:
		return true
	}
	return false
}

// LineItems maps a provider line-item name to its value.
type LineItems map[string]float64

// FinancialStatement is one persisted statement for a (ticker, type, period) triple.
// Records are insert-only.
type FinancialStatement struct {
	Ticker        string        `json:"ticker"`
	StatementType StatementType `json:"statement_type"`
	Period        time.Time     `json:"period"`
	Data          LineItems     `json:"data"`
	SchemaVersion string        `json:"schema_version"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Key returns the statement's identity within one ticker.
func (s *FinancialStatement) Key() StatementKey {
	return NewStatementKey(s.StatementType, s.Period)
}

// StatementKey identifies a statement within one ticker.
type StatementKey struct {
	Type   StatementType
	Period string // YYYY-MM-DD
}

// NewStatementKey builds a key from a type and period date.
func NewStatementKey(t StatementType, period time.Time) StatementKey {
	return StatementKey{Type: t, Period: period.Format("2006-01-02")}
}

// RawStatement is a statement as returned by a provider, before normalization.
// Item values are whatever the provider's decoder produced (json.Number, string, nil, ...).
type RawStatement struct {
	Type   StatementType
	Period time.Time
	Items  map[string]any
}

// IngestResult reports the outcome of a statement ingestion run.
type IngestResult struct {
	Ticker     string `json:"ticker"`
	NewRecords int    `json:"new_records"`
	Skipped    int    `json:"skipped"`
	Message    string `json:"message"`
}
