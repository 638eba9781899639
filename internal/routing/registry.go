package routing

import (
	"fmt"
	"strings"

	"github.com/SIMPLYBOYS/pay_usdc/internal/config"
	apperrors "github.com/SIMPLYBOYS/pay_usdc/internal/errors"
	"github.com/SIMPLYBOYS/pay_usdc/internal/types"
)

// Registry maps symbols and denoms to tokens and their USD reference prices.
type Registry struct {
	bySymbol map[string]config.TokenConfig
	byDenom  map[string]config.TokenConfig
}

func NewRegistry(tokens []config.TokenConfig) *Registry {
	r := &Registry{
		bySymbol: make(map[string]config.TokenConfig, len(tokens)),
		byDenom:  make(map[string]config.TokenConfig, len(tokens)),
	}
	for _, t := range tokens {
		r.bySymbol[strings.ToUpper(t.Symbol)] = t
		r.byDenom[t.Denom] = t
	}
	return r
}

// Lookup accepts a symbol in any case or an exact denom.
func (r *Registry) Lookup(name string) (types.Token, error) {
	name = strings.TrimSpace(name)
	t, ok := r.bySymbol[strings.ToUpper(name)]
	if !ok {
		t, ok = r.byDenom[name]
	}
	if !ok {
		return types.Token{}, &apperrors.NotFoundError{Resource: "token", Identifier: name}
	}
	return types.Token{Denom: t.Denom, Symbol: t.Symbol, Decimals: t.Decimals}, nil
}

// ReferencePrice returns the price of one unit of in expressed in out, derived
// from the configured USD prices.
func (r *Registry) ReferencePrice(in, out types.Token) (float64, error) {
	pin, ok := r.byDenom[in.Denom]
	if !ok || pin.USDPrice <= 0 {
		return 0, fmt.Errorf("no reference price for %s", in.Symbol)
	}
	pout, ok := r.byDenom[out.Denom]
	if !ok || pout.USDPrice <= 0 {
		return 0, fmt.Errorf("no reference price for %s", out.Symbol)
	}
	return pin.USDPrice / pout.USDPrice, nil
}
