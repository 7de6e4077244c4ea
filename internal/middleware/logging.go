package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/groupledger/internal/metrics"
)

// LoggingInterceptor logs every RPC with its procedure, caller, result code
// and duration, and records the same in the RPC metrics.
func LoggingInterceptor(logger *slog.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			procedure := req.Spec().Procedure

			c := &caller{}
			resp, err := next(context.WithValue(ctx, callerKey{}, c), req)

			elapsed := time.Since(start)
			userID := c.userID // empty on public procedures and auth failures
			metrics.RPCDuration.WithLabelValues(procedure).Observe(elapsed.Seconds())

			if err == nil {
				metrics.RPCRequests.WithLabelValues(procedure, "ok").Inc()
				logger.Info("RPC ok",
					"procedure", procedure,
					"user_id", userID,
					"duration_ms", elapsed.Milliseconds(),
				)
				return resp, nil
			}

			code := connect.CodeOf(err)
			metrics.RPCRequests.WithLabelValues(procedure, code.String()).Inc()

			var connectErr *connect.Error
			if errors.As(err, &connectErr) && code != connect.CodeInternal && code != connect.CodeUnknown {
				logger.Warn("RPC error",
					"procedure", procedure,
					"code", code,
					"error", connectErr.Message(),
					"user_id", userID,
					"duration_ms", elapsed.Milliseconds(),
				)
			} else {
				logger.Error("RPC error",
					"procedure", procedure,
					"code", code,
					"error", err,
					"user_id", userID,
					"duration_ms", elapsed.Milliseconds(),
				)
			}
			return resp, err
		}
	}
}
