package models

import "github.com/shopspring/decimal"

// Bill represents a shared expense recorded against a group.
// A bill mutates member balances exactly once, when it is created.
type Bill struct {
	// ID is the unique identifier for the bill (UUID format).
	ID string

	// Description is the human-readable name of the expense.
	Description string

	// Total is the full amount paid.
	Total decimal.Decimal

	// PayerID is the member who paid the bill.
	PayerID string

	// Splits is each member's share, in the order they were given.
	Splits []Split

	// CreatedAt is the Unix timestamp when the bill was recorded.
	CreatedAt int64
}

// Split is one member's share of a bill.
type Split struct {
	MemberID string
	Amount   decimal.Decimal

	// IsPaid is true for the payer's own share.
	IsPaid bool

	// PaidAt is the Unix timestamp the share was paid, 0 if unpaid.
	PaidAt int64
}
