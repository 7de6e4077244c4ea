package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/groupledger/internal/auth"
	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/pkg/api"
)

type fakeRequest[T any] struct {
	*connect.Request[T]
	procedure string
}

func (r fakeRequest[T]) Spec() connect.Spec {
	return connect.Spec{Procedure: r.procedure}
}

func newRequest[T any](procedure string, msg *T) connect.AnyRequest {
	return fakeRequest[T]{Request: connect.NewRequest(msg), procedure: procedure}
}

func okHandler(ctx context.Context, _ connect.AnyRequest) (connect.AnyResponse, error) {
	return connect.NewResponse(&api.GetCurrentUserResponse{User: &api.User{ID: GetUserID(ctx), Email: GetEmail(ctx)}}), nil
}

func TestRequireAuth(t *testing.T) {
	jwtManager := auth.NewJWTManager("0123456789abcdef0123456789abcdef", time.Hour)
	token, err := jwtManager.Generate(&models.User{ID: "user-1", Email: "a@example.com"})
	require.NoError(t, err)

	interceptor := RequireAuth(jwtManager, map[string]bool{"/public": true})
	handler := interceptor(okHandler)

	tests := []struct {
		name      string
		procedure string
		header    string
		wantCode  connect.Code
		wantUser  string
	}{
		{name: "valid token", procedure: "/private", header: "Bearer " + token, wantUser: "user-1"},
		{name: "missing token", procedure: "/private", wantCode: connect.CodeUnauthenticated},
		{name: "wrong scheme", procedure: "/private", header: "Basic " + token, wantCode: connect.CodeUnauthenticated},
		{name: "tampered token", procedure: "/private", header: "Bearer " + token + "x", wantCode: connect.CodeUnauthenticated},
		{name: "public procedure", procedure: "/public"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := connect.NewRequest(&api.GetCurrentUserRequest{})
			if tt.header != "" {
				inner.Header().Set("Authorization", tt.header)
			}
			req := fakeRequest[api.GetCurrentUserRequest]{Request: inner, procedure: tt.procedure}

			resp, err := handler(context.Background(), req)
			if tt.wantCode != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, connect.CodeOf(err))
				return
			}
			require.NoError(t, err)
			msg := resp.Any().(*api.GetCurrentUserResponse)
			assert.Equal(t, tt.wantUser, msg.User.ID)
		})
	}
}

func TestValidationInterceptor(t *testing.T) {
	handler := ValidationInterceptor()(okHandler)

	_, err := handler(context.Background(), newRequest("/x", &api.GetGroupRequest{}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	assert.ErrorIs(t, err, api.ErrValidationFailed)

	_, err = handler(context.Background(), newRequest("/x", &api.GetGroupRequest{GroupID: "g"}))
	require.NoError(t, err)
}

func TestLoggingInterceptorPassesThrough(t *testing.T) {
	boom := connect.NewError(connect.CodeNotFound, errors.New("missing"))
	failing := func(context.Context, connect.AnyRequest) (connect.AnyResponse, error) { return nil, boom }

	logger := discardLogger()
	_, err := LoggingInterceptor(logger)(failing)(context.Background(), newRequest("/x", &api.GetGroupRequest{}))
	assert.Same(t, boom, err)

	resp, err := LoggingInterceptor(logger)(okHandler)(context.Background(), newRequest("/x", &api.GetGroupRequest{}))
	require.NoError(t, err)
	assert.NotNil(t, resp)
}

func TestLoggingInterceptorLogsAuthenticatedUser(t *testing.T) {
	jwtManager := auth.NewJWTManager("0123456789abcdef0123456789abcdef", time.Hour)
	token, err := jwtManager.Generate(&models.User{ID: "user-1", Email: "a@example.com"})
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	handler := LoggingInterceptor(logger)(RequireAuth(jwtManager, map[string]bool{"/public": true})(okHandler))

	tests := []struct {
		name      string
		procedure string
		header    string
		wantUser  string
	}{
		{name: "authenticated", procedure: "/private", header: "Bearer " + token, wantUser: "user_id=user-1"},
		{name: "public", procedure: "/public", wantUser: `user_id=""`},
		{name: "rejected", procedure: "/private", wantUser: `user_id=""`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			inner := connect.NewRequest(&api.GetCurrentUserRequest{})
			if tt.header != "" {
				inner.Header().Set("Authorization", tt.header)
			}
			_, _ = handler(context.Background(), fakeRequest[api.GetCurrentUserRequest]{Request: inner, procedure: tt.procedure})

			assert.Contains(t, buf.String(), "procedure="+tt.procedure)
			assert.Contains(t, buf.String(), tt.wantUser)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(1, 2)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"), "burst exhausted")
	assert.True(t, rl.Allow("b"), "buckets are per client")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("a"), "refilled")

	now = now.Add(time.Hour)
	rl.Allow("c")
	rl.mu.Lock()
	_, kept := rl.clients["a"]
	rl.mu.Unlock()
	assert.False(t, kept, "idle buckets are swept")
}

func TestRateLimiterHandler(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func() int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, do())
	assert.Equal(t, http.StatusTooManyRequests, do())
}
