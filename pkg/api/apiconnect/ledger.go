package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/groupledger/pkg/api"
)

const LedgerServiceName = "ledger.v1.LedgerService"

const (
	LedgerServiceListTransactionsProcedure  = "/ledger.v1.LedgerService/ListTransactions"
	LedgerServiceRecordTransactionProcedure = "/ledger.v1.LedgerService/RecordTransaction"
	LedgerServiceGetSummaryProcedure        = "/ledger.v1.LedgerService/GetSummary"
)

type LedgerServiceHandler interface {
	ListTransactions(context.Context, *connect.Request[api.ListTransactionsRequest]) (*connect.Response[api.ListTransactionsResponse], error)
	RecordTransaction(context.Context, *connect.Request[api.RecordTransactionRequest]) (*connect.Response[api.RecordTransactionResponse], error)
	GetSummary(context.Context, *connect.Request[api.GetSummaryRequest]) (*connect.Response[api.GetSummaryResponse], error)
}

// NewLedgerServiceHandler returns the mount path and handler for svc.
func NewLedgerServiceHandler(svc LedgerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	return "/" + LedgerServiceName + "/", route(map[string]http.Handler{
		LedgerServiceListTransactionsProcedure:  connect.NewUnaryHandler(LedgerServiceListTransactionsProcedure, svc.ListTransactions, opts...),
		LedgerServiceRecordTransactionProcedure: connect.NewUnaryHandler(LedgerServiceRecordTransactionProcedure, svc.RecordTransaction, opts...),
		LedgerServiceGetSummaryProcedure:        connect.NewUnaryHandler(LedgerServiceGetSummaryProcedure, svc.GetSummary, opts...),
	})
}

// LedgerServiceClient calls LedgerService.
type LedgerServiceClient struct {
	listTransactions  *connect.Client[api.ListTransactionsRequest, api.ListTransactionsResponse]
	recordTransaction *connect.Client[api.RecordTransactionRequest, api.RecordTransactionResponse]
	getSummary        *connect.Client[api.GetSummaryRequest, api.GetSummaryResponse]
}

func NewLedgerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *LedgerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &LedgerServiceClient{
		listTransactions:  connect.NewClient[api.ListTransactionsRequest, api.ListTransactionsResponse](httpClient, baseURL+LedgerServiceListTransactionsProcedure, opts...),
		recordTransaction: connect.NewClient[api.RecordTransactionRequest, api.RecordTransactionResponse](httpClient, baseURL+LedgerServiceRecordTransactionProcedure, opts...),
		getSummary:        connect.NewClient[api.GetSummaryRequest, api.GetSummaryResponse](httpClient, baseURL+LedgerServiceGetSummaryProcedure, opts...),
	}
}

func (c *LedgerServiceClient) ListTransactions(ctx context.Context, req *connect.Request[api.ListTransactionsRequest]) (*connect.Response[api.ListTransactionsResponse], error) {
	return c.listTransactions.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) RecordTransaction(ctx context.Context, req *connect.Request[api.RecordTransactionRequest]) (*connect.Response[api.RecordTransactionResponse], error) {
	return c.recordTransaction.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) GetSummary(ctx context.Context, req *connect.Request[api.GetSummaryRequest]) (*connect.Response[api.GetSummaryResponse], error) {
	return c.getSummary.CallUnary(ctx, req)
}
