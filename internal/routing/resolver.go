package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/SIMPLYBOYS/pay_usdc/internal/errors"
	"github.com/SIMPLYBOYS/pay_usdc/internal/types"
	"github.com/SIMPLYBOYS/pay_usdc/internal/units"
	"github.com/SIMPLYBOYS/pay_usdc/pkg/logger"
)

// HTTPClient is satisfied by *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Resolver asks the routing service for a swap route and falls back to a
// reference-price estimate when the service cannot answer.
type Resolver struct {
	endpoint string
	timeout  time.Duration
	client   HTTPClient
}

// DefaultTimeout bounds a router call when the caller passes no timeout.
const DefaultTimeout = 10 * time.Second

func NewResolver(endpoint string, timeout time.Duration, client HTTPClient) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Resolver{endpoint: endpoint, timeout: timeout, client: client}
}

type routeRequest struct {
	TokenIn       string `json:"tokenIn"`
	TokenOut      string `json:"tokenOut"`
	TokenInAmount string `json:"tokenInAmount"`
}

type routePool struct {
	ID            json.Number `json:"id"`
	TokenOutDenom string      `json:"token_out_denom"`
}

type routeResponse struct {
	AmountOut      string `json:"amount_out"`
	TokenOutAmount string `json:"tokenOutAmount"`
	PriceImpact    string `json:"price_impact"`
	Route          []struct {
		Pools []routePool `json:"pools"`
	} `json:"route"`
}

// ResolveRoute quotes amount (a decimal string in tokenIn units) into tokenOut.
// The routing service is called once; any failure there is logged and the
// fallback pricer is used with referencePrice, the price of one tokenIn in
// tokenOut. Only a failed fallback is returned as an error.
func (r *Resolver) ResolveRoute(ctx context.Context, tokenIn, tokenOut types.Token, amount string, referencePrice float64) (*types.SwapRoute, error) {
	amountIn, err := units.ToSmallestUnit(amount, tokenIn.Decimals)
	if err != nil {
		return nil, &apperrors.FallbackComputationFailed{Reason: "the amount is not a valid quantity of " + tokenIn.Symbol, Err: err}
	}

	route, err := r.queryRouter(ctx, tokenIn, tokenOut, amountIn.String())
	if err == nil {
		return route, nil
	}
	logger.Warn("Routing %s -> %s fell back to reference price: %v", tokenIn.Denom, tokenOut.Denom, err)

	route, err = ApproximateSwap(tokenOut.Denom, referencePrice, amount, tokenOut.Decimals)
	if err != nil {
		logger.Error("Fallback quote for %s -> %s failed: %v", tokenIn.Denom, tokenOut.Denom, err)
		return nil, err
	}
	route.SourceToken = tokenIn.Denom
	route.InputAmount = amountIn.String()
	return route, nil
}

func (r *Resolver) queryRouter(ctx context.Context, tokenIn, tokenOut types.Token, amountIn string) (*types.SwapRoute, error) {
	unavailable := func(status int, err error) error {
		return &apperrors.RoutingServiceUnavailable{Endpoint: r.endpoint, StatusCode: status, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	body, err := json.Marshal(routeRequest{
		TokenIn:       tokenIn.Denom,
		TokenOut:      tokenOut.Denom,
		TokenInAmount: amountIn,
	})
	if err != nil {
		return nil, unavailable(0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, unavailable(0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, unavailable(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		detail := strings.TrimSpace(string(msg))
		if detail == "" {
			detail = "empty response body"
		}
		return nil, unavailable(resp.StatusCode, errors.New(detail))
	}

	var payload routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, unavailable(0, fmt.Errorf("malformed route payload: %w", err))
	}

	outRaw := payload.AmountOut
	if outRaw == "" {
		outRaw = payload.TokenOutAmount
	}
	out, ok := units.ParseInteger(outRaw)
	if !ok || out.Sign() <= 0 {
		return nil, unavailable(0, fmt.Errorf("route payload has no positive output amount: %q", outRaw))
	}

	route := &types.SwapRoute{
		SourceToken:      tokenIn.Denom,
		DestinationToken: tokenOut.Denom,
		InputAmount:      amountIn,
		OutputAmount:     out.String(),
		PriceImpact:      payload.PriceImpact,
		Source:           types.RouteSourceRouter,
	}
	for _, leg := range payload.Route {
		for _, pool := range leg.Pools {
			route.PoolPath = append(route.PoolPath, types.PoolHop{
				PoolID:        pool.ID.String(),
				TokenOutDenom: pool.TokenOutDenom,
			})
		}
	}

	logger.Debug("Router quoted %s %s -> %s %s over %d pools",
		amountIn, tokenIn.Denom, route.OutputAmount, tokenOut.Denom, len(route.PoolPath))
	return route, nil
}
