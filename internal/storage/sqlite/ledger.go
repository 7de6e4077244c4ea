package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/storage"
)

// CreateLedgerEntry persists a single ledger entry.
func (s *SQLiteStore) CreateLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	return insertLedgerEntry(ctx, s.db, entry)
}

func insertLedgerEntry(ctx context.Context, q querier, entry *models.LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt == 0 {
		entry.CreatedAt = time.Now().Unix()
	}

	_, err := q.ExecContext(ctx,
		`INSERT INTO ledger_entries (id, user_id, type, amount, description, source, related_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, string(entry.Type), entry.Amount.String(), entry.Description,
		string(entry.Source), entry.RelatedID, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

// ListLedgerEntries returns the user's entries matching filter, newest first.
func (s *SQLiteStore) ListLedgerEntries(ctx context.Context, userID string, filter storage.LedgerFilter) ([]*models.LedgerEntry, error) {
	query := `SELECT id, user_id, type, amount, description, source, related_id, created_at
		FROM ledger_entries WHERE user_id = ?`
	args := []any{userID}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, string(filter.Type))
	}
	if filter.From > 0 {
		query += " AND created_at >= ?"
		args = append(args, filter.From)
	}
	if filter.To > 0 {
		query += " AND created_at < ?"
		args = append(args, filter.To)
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1 // SQLite: no limit
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		e := &models.LedgerEntry{}
		var typ, source string
		if err := rows.Scan(&e.ID, &e.UserID, &typ, &e.Amount, &e.Description, &source, &e.RelatedID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.Type = models.EntryType(typ)
		e.Source = models.EntrySource(source)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}
	return entries, nil
}

// SummarizeLedger totals the user's credits and debits. Amounts are TEXT, so
// they are summed as decimals here rather than with SQL SUM.
func (s *SQLiteStore) SummarizeLedger(ctx context.Context, userID string) (*models.LedgerSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, amount FROM ledger_entries WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize ledger: %w", err)
	}
	defer rows.Close()

	summary := &models.LedgerSummary{Credits: decimal.Zero, Debits: decimal.Zero}
	for rows.Next() {
		var typ string
		var amount decimal.Decimal
		if err := rows.Scan(&typ, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan ledger amount: %w", err)
		}
		switch models.EntryType(typ) {
		case models.EntryCredit:
			summary.Credits = summary.Credits.Add(amount)
		case models.EntryDebit:
			summary.Debits = summary.Debits.Add(amount)
		}
		summary.Count++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger amounts: %w", err)
	}
	return summary, nil
}
