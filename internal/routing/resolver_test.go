package routing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/SIMPLYBOYS/pay_usdc/internal/errors"
	"github.com/SIMPLYBOYS/pay_usdc/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	osmo = types.Token{Denom: "uosmo", Symbol: "OSMO", Decimals: 6}
	usdc = types.Token{Denom: "uusdc", Symbol: "USDC", Decimals: 6}
)

func newRouterServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestResolveRouteFromRouter(t *testing.T) {
	srv, calls := newRouterServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req routeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, routeRequest{TokenIn: "uosmo", TokenOut: "uusdc", TokenInAmount: "1000000"}, req)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"amount_in": {"denom": "uosmo", "amount": "1000000"},
			"amount_out": "498211",
			"price_impact": "-0.000123",
			"route": [{"pools": [
				{"id": 1, "token_out_denom": "uatom"},
				{"id": "1135", "token_out_denom": "uusdc"}
			]}]
		}`))
	})

	resolver := NewResolver(srv.URL, time.Second, srv.Client())
	route, err := resolver.ResolveRoute(context.Background(), osmo, usdc, "1", 0.5)

	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Equal(t, types.RouteSourceRouter, route.Source)
	assert.False(t, route.Approximate)
	assert.Equal(t, "uosmo", route.SourceToken)
	assert.Equal(t, "uusdc", route.DestinationToken)
	assert.Equal(t, "1000000", route.InputAmount)
	assert.Equal(t, "498211", route.OutputAmount)
	assert.Equal(t, "-0.000123", route.PriceImpact)
	assert.Equal(t, []types.PoolHop{
		{PoolID: "1", TokenOutDenom: "uatom"},
		{PoolID: "1135", TokenOutDenom: "uusdc"},
	}, route.PoolPath)
}

func TestResolverDefaultsTimeout(t *testing.T) {
	srv, calls := newRouterServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"amount_out": "498211", "route": [{"pools": [{"id": 1135, "token_out_denom": "uusdc"}]}]}`))
	})

	resolver := NewResolver(srv.URL, 0, srv.Client())
	assert.Equal(t, DefaultTimeout, resolver.timeout)

	route, err := resolver.ResolveRoute(context.Background(), osmo, usdc, "1", 0.5)

	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Equal(t, types.RouteSourceRouter, route.Source)
	assert.Equal(t, "498211", route.OutputAmount)
}

func TestResolveRouteAcceptsTokenOutAmount(t *testing.T) {
	srv, _ := newRouterServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tokenOutAmount": "7"}`))
	})

	route, err := NewResolver(srv.URL, time.Second, srv.Client()).
		ResolveRoute(context.Background(), osmo, usdc, "0.000010", 0.5)

	require.NoError(t, err)
	assert.Equal(t, "10", route.InputAmount)
	assert.Equal(t, "7", route.OutputAmount)
	assert.Equal(t, types.RouteSourceRouter, route.Source)
}

func TestResolveRouteFallsBack(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "internal error", http.StatusInternalServerError)
		}},
		{"not found", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}},
		{"malformed payload", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"amount_out": `))
		}},
		{"zero output", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"amount_out": "0"}`))
		}},
		{"non numeric output", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"amount_out": "lots"}`))
		}},
		{"slow router", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls := newRouterServer(t, tt.handler)
			resolver := NewResolver(srv.URL, 100*time.Millisecond, srv.Client())

			route, err := resolver.ResolveRoute(context.Background(), osmo, usdc, "1", 0.5)

			require.NoError(t, err)
			require.NotNil(t, route)
			assert.Equal(t, int32(1), atomic.LoadInt32(calls), "router must be called exactly once")
			assert.Equal(t, types.RouteSourceFallback, route.Source)
			assert.True(t, route.Approximate)
			assert.Equal(t, "uosmo", route.SourceToken)
			assert.Equal(t, "uusdc", route.DestinationToken)
			assert.Equal(t, "1000000", route.InputAmount)
			assert.Equal(t, "500000", route.OutputAmount)
			assert.Empty(t, route.PoolPath)
		})
	}
}

func TestResolveRouteUnreachableRouter(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	route, err := NewResolver(url, time.Second, nil).
		ResolveRoute(context.Background(), osmo, usdc, "2", 0.5)

	require.NoError(t, err)
	assert.Equal(t, "1000000", route.OutputAmount)
	assert.Equal(t, types.RouteSourceFallback, route.Source)
}

func TestResolveRouteTotalFailure(t *testing.T) {
	srv, _ := newRouterServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	route, err := NewResolver(srv.URL, time.Second, srv.Client()).
		ResolveRoute(context.Background(), osmo, usdc, "1", 0)

	assert.Nil(t, route)
	var fallbackErr *apperrors.FallbackComputationFailed
	require.True(t, errors.As(err, &fallbackErr))
	assert.NotEmpty(t, fallbackErr.Reason)

	var routingErr *apperrors.RoutingServiceUnavailable
	assert.False(t, errors.As(err, &routingErr), "router failures must not surface")
}

func TestResolveRouteRejectsBadAmountWithoutCallingRouter(t *testing.T) {
	srv, calls := newRouterServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"amount_out": "1"}`))
	})

	route, err := NewResolver(srv.URL, time.Second, srv.Client()).
		ResolveRoute(context.Background(), osmo, usdc, "-3", 0.5)

	assert.Nil(t, route)
	var fallbackErr *apperrors.FallbackComputationFailed
	assert.True(t, errors.As(err, &fallbackErr))
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}
