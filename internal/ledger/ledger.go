// Package ledger manages each user's personal transaction history.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/groupledger/internal/calculator"
	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/storage"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

var (
	ErrInvalidEntryType = errors.New("entry type must be debit or credit")
	ErrInvalidRange     = errors.New("invalid time range or offset")
)

// Service records and lists ledger entries.
type Service struct {
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a ledger Service.
func NewService(store storage.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// ListEntries returns the user's entries matching filter, newest first.
// filter.Limit is clamped to [1, MaxLimit]; zero means DefaultLimit.
func (s *Service) ListEntries(ctx context.Context, userID string, filter storage.LedgerFilter) ([]*models.LedgerEntry, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, ErrInvalidEntryType
	}
	if filter.From < 0 || filter.To < 0 || filter.Offset < 0 {
		return nil, ErrInvalidRange
	}
	if filter.From > 0 && filter.To > 0 && filter.From >= filter.To {
		return nil, ErrInvalidRange
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = DefaultLimit
	case filter.Limit > MaxLimit:
		filter.Limit = MaxLimit
	}

	entries, err := s.store.ListLedgerEntries(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, nil
}

// Summary totals every entry the user has, ignoring pagination.
func (s *Service) Summary(ctx context.Context, userID string) (*models.LedgerSummary, error) {
	summary, err := s.store.SummarizeLedger(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize ledger: %w", err)
	}
	return summary, nil
}

// RecordManual records a debit or credit the user entered by hand.
func (s *Service) RecordManual(ctx context.Context, userID string, typ models.EntryType, amount decimal.Decimal, description string) (*models.LedgerEntry, error) {
	if !typ.Valid() {
		return nil, ErrInvalidEntryType
	}
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, calculator.ErrInvalidAmount
	}

	entry := &models.LedgerEntry{
		UserID:      userID,
		Type:        typ,
		Amount:      amount,
		Description: strings.TrimSpace(description),
		Source:      models.SourceManual,
		CreatedAt:   s.now().Unix(),
	}
	if err := s.store.CreateLedgerEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record ledger entry: %w", err)
	}

	s.logger.Info("Ledger entry recorded", "user_id", userID, "entry_id", entry.ID, "type", typ)
	return entry, nil
}
