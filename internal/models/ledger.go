package models

import "github.com/shopspring/decimal"

// EntryType is the direction of a ledger entry from the user's point of view.
type EntryType string

const (
	EntryDebit  EntryType = "debit"
	EntryCredit EntryType = "credit"
)

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	return t == EntryDebit || t == EntryCredit
}

// EntrySource records what produced a ledger entry.
type EntrySource string

const (
	SourceManual    EntrySource = "manual"
	SourceGroupBill EntrySource = "group-bill"
)

// LedgerSummary totals a user's ledger.
type LedgerSummary struct {
	Credits decimal.Decimal
	Debits  decimal.Decimal
	Count   int
}

// Net is credits minus debits.
func (s LedgerSummary) Net() decimal.Decimal {
	return s.Credits.Sub(s.Debits)
}

// LedgerEntry is one line of a user's personal transaction history.
type LedgerEntry struct {
	ID          string
	UserID      string
	Type        EntryType
	Amount      decimal.Decimal
	Description string
	Source      EntrySource

	// RelatedID points at the record that produced the entry (e.g. a group ID).
	RelatedID string

	CreatedAt int64
}
