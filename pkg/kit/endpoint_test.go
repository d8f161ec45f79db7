package kit

import (
	"context"
	"testing"
)

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, request any) (any, error) {
				order = append(order, name)
				return next(ctx, request)
			}
		}
	}

	e := Chain(mw("outer"), mw("middle"), mw("inner"))(func(_ context.Context, _ any) (any, error) {
		order = append(order, "endpoint")
		return nil, nil
	})

	if _, err := e(context.Background(), nil); err != nil {
		t.Fatalf("endpoint: %v", err)
	}

	want := []string{"outer", "middle", "inner", "endpoint"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestTransportContext(t *testing.T) {
	ctx := context.Background()

	// Default transport when nothing is set.
	if got := GetTransport(ctx); got != "http" {
		t.Errorf("GetTransport = %q, want %q", got, "http")
	}

	ctx = WithTransport(ctx, "mcp_quic")
	if got := GetTransport(ctx); got != "mcp_quic" {
		t.Errorf("GetTransport = %q, want %q", got, "mcp_quic")
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()

	if got := GetRequestID(ctx); got != "" {
		t.Errorf("GetRequestID = %q, want empty", got)
	}

	ctx = WithRequestID(ctx, "abc123")
	if got := GetRequestID(ctx); got != "abc123" {
		t.Errorf("GetRequestID = %q, want %q", got, "abc123")
	}
}
