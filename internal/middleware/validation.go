package middleware

import (
	"context"

	"connectrpc.com/connect"

	"github.com/mmynk/groupledger/pkg/api"
)

// ValidationInterceptor rejects requests whose message fails its struct tags.
func ValidationInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if msg := req.Any(); msg != nil {
				if err := api.Validate(msg); err != nil {
					return nil, connect.NewError(connect.CodeInvalidArgument, err)
				}
			}
			return next(ctx, req)
		}
	}
}
