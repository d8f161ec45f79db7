package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"

	"github.com/hazyhaar/galaxy-registry/pkg/kit"
)

// withRequestID assigns a request ID when the caller did not provide one.
func withRequestID() kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, request any) (any, error) {
			if kit.GetRequestID(ctx) == "" {
				ctx = kit.WithRequestID(ctx, newRequestID())
			}
			return next(ctx, request)
		}
	}
}

// logErrors logs failed endpoint calls with their transport and request ID.
func logErrors(name string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, request any) (any, error) {
			response, err := next(ctx, request)
			if err != nil {
				slog.Warn("endpoint failed",
					"endpoint", name,
					"transport", kit.GetTransport(ctx),
					"request_id", kit.GetRequestID(ctx),
					"error", err,
				)
			}
			return response, err
		}
	}
}

// instrument applies the standard middleware stack to an endpoint.
// Shared by the HTTP router and the MCP tool registrations.
func instrument(name string, e kit.Endpoint) kit.Endpoint {
	return kit.Chain(withRequestID(), logErrors(name))(e)
}

func newRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
