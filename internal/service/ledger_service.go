package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/groupledger/internal/ledger"
	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/storage"
	"github.com/mmynk/groupledger/pkg/api"
	"github.com/mmynk/groupledger/pkg/api/apiconnect"
)

var _ apiconnect.LedgerServiceHandler = (*LedgerService)(nil)

// LedgerService exposes the caller's personal transaction history.
type LedgerService struct {
	ledger *ledger.Service
	logger *slog.Logger
}

// NewLedgerService wraps the ledger domain service for Connect.
func NewLedgerService(svc *ledger.Service, logger *slog.Logger) *LedgerService {
	return &LedgerService{ledger: svc, logger: logger}
}

func (s *LedgerService) ListTransactions(ctx context.Context, req *connect.Request[api.ListTransactionsRequest]) (*connect.Response[api.ListTransactionsResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := s.ledger.ListEntries(ctx, caller, storage.LedgerFilter{
		Type:   models.EntryType(req.Msg.Type),
		From:   req.Msg.From,
		To:     req.Msg.To,
		Limit:  req.Msg.Limit,
		Offset: req.Msg.Offset,
	})
	if err != nil {
		return nil, toConnectError(s.logger, "ListTransactions", err)
	}

	out := make([]*api.Transaction, len(entries))
	for i, e := range entries {
		out[i] = toAPITransaction(e)
	}
	return connect.NewResponse(&api.ListTransactionsResponse{Transactions: out}), nil
}

func (s *LedgerService) RecordTransaction(ctx context.Context, req *connect.Request[api.RecordTransactionRequest]) (*connect.Response[api.RecordTransactionResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	entry, err := s.ledger.RecordManual(ctx, caller, models.EntryType(req.Msg.Type), req.Msg.Amount, req.Msg.Description)
	if err != nil {
		return nil, toConnectError(s.logger, "RecordTransaction", err)
	}
	return connect.NewResponse(&api.RecordTransactionResponse{Transaction: toAPITransaction(entry)}), nil
}

// GetSummary returns the caller's credit and debit totals across all entries.
func (s *LedgerService) GetSummary(ctx context.Context, _ *connect.Request[api.GetSummaryRequest]) (*connect.Response[api.GetSummaryResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	summary, err := s.ledger.Summary(ctx, caller)
	if err != nil {
		return nil, toConnectError(s.logger, "GetSummary", err)
	}
	return connect.NewResponse(&api.GetSummaryResponse{
		Credits: summary.Credits,
		Debits:  summary.Debits,
		Net:     summary.Net(),
		Count:   summary.Count,
	}), nil
}
