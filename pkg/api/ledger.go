package api

import "github.com/shopspring/decimal"

// Transaction is one entry in the caller's personal ledger.
type Transaction struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	Source      string          `json:"source"`
	RelatedID   string          `json:"related_id,omitempty"`
	CreatedAt   int64           `json:"created_at"`
}

// ListTransactionsRequest filters the caller's ledger. From and To are Unix
// seconds bounding created_at, From inclusive and To exclusive; zero leaves
// that side open.
type ListTransactionsRequest struct {
	Type   string `json:"type,omitempty" validate:"omitempty,oneof=debit credit"`
	From   int64  `json:"from,omitempty" validate:"gte=0"`
	To     int64  `json:"to,omitempty" validate:"gte=0"`
	Limit  int    `json:"limit" validate:"gte=0,lte=500"`
	Offset int    `json:"offset,omitempty" validate:"gte=0"`
}

type ListTransactionsResponse struct {
	Transactions []*Transaction `json:"transactions"`
}

type GetSummaryRequest struct{}

// GetSummaryResponse totals the caller's whole ledger. Net is credits minus debits.
type GetSummaryResponse struct {
	Credits decimal.Decimal `json:"credits"`
	Debits  decimal.Decimal `json:"debits"`
	Net     decimal.Decimal `json:"net"`
	Count   int             `json:"count"`
}

type RecordTransactionRequest struct {
	Type        string          `json:"type" validate:"required,oneof=debit credit"`
	Amount      decimal.Decimal `json:"amount" validate:"positive_decimal"`
	Description string          `json:"description" validate:"max=500"`
}

type RecordTransactionResponse struct {
	Transaction *Transaction `json:"transaction"`
}
