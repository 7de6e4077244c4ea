package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/groupledger/internal/auth"
	"github.com/mmynk/groupledger/internal/calculator"
	"github.com/mmynk/groupledger/internal/groups"
	"github.com/mmynk/groupledger/internal/ledger"
	"github.com/mmynk/groupledger/internal/middleware"
	"github.com/mmynk/groupledger/internal/storage"
	"github.com/mmynk/groupledger/pkg/api"
)

var errInternal = errors.New("internal error")

var codeFor = []struct {
	code connect.Code
	errs []error
}{
	{connect.CodeInvalidArgument, []error{
		calculator.ErrSplitMismatch,
		calculator.ErrInvalidAmount,
		calculator.ErrSameMember,
		calculator.ErrEmptySplits,
		calculator.ErrDuplicateSplitMember,
		calculator.ErrNoParticipants,
		calculator.ErrZeroSubtotal,
		calculator.ErrSubtotalMismatch,
		groups.ErrInvalidName,
		ledger.ErrInvalidEntryType,
		ledger.ErrInvalidRange,
		auth.ErrWeakPassword,
		auth.ErrInvalidEmail,
		api.ErrValidationFailed,
		errSplitMode,
	}},
	{connect.CodeNotFound, []error{
		storage.ErrGroupNotFound,
		calculator.ErrMemberNotFound,
		storage.ErrUserNotFound,
	}},
	{connect.CodeAlreadyExists, []error{
		groups.ErrMemberAlreadyExists,
		storage.ErrEmailExists,
	}},
	{connect.CodeFailedPrecondition, []error{
		groups.ErrMemberHasOutstandingBalance,
		groups.ErrOwnerCannotLeave,
	}},
	{connect.CodePermissionDenied, []error{groups.ErrNotGroupOwner}},
	{connect.CodeAborted, []error{storage.ErrConflict}},
	{connect.CodeUnauthenticated, []error{
		auth.ErrInvalidCredentials,
		auth.ErrMissingToken,
		auth.ErrInvalidToken,
	}},
	{connect.CodeCanceled, []error{context.Canceled}},
	{connect.CodeDeadlineExceeded, []error{context.DeadlineExceeded}},
}

// toConnectError maps domain errors to Connect codes. Unrecognized errors are
// logged and reported as a bare internal error.
func toConnectError(logger *slog.Logger, op string, err error) error {
	for _, c := range codeFor {
		for _, target := range c.errs {
			if errors.Is(err, target) {
				return connect.NewError(c.code, err)
			}
		}
	}
	logger.Error(op+" failed", "error", err)
	return connect.NewError(connect.CodeInternal, errInternal)
}

// callerID returns the authenticated user, set by middleware.RequireAuth.
func callerID(ctx context.Context) (string, error) {
	id := middleware.GetUserID(ctx)
	if id == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	return id, nil
}
