package routing

import (
	"math"

	apperrors "github.com/SIMPLYBOYS/pay_usdc/internal/errors"
	"github.com/SIMPLYBOYS/pay_usdc/internal/types"
	"github.com/SIMPLYBOYS/pay_usdc/internal/units"
	"github.com/shopspring/decimal"
)

// ApproximateSwap estimates the output of swapping amountInDecimal at
// referencePrice into tokenSymbol, a token with the given decimals. The result
// is amountIn * referencePrice scaled to the smallest unit and truncated. It
// models no slippage and no pools.
//
// The returned route leaves SourceToken and InputAmount empty; the caller
// knows the input token and fills them in.
func ApproximateSwap(tokenSymbol string, referencePrice float64, amountInDecimal string, decimals int) (*types.SwapRoute, error) {
	if math.IsNaN(referencePrice) || math.IsInf(referencePrice, 0) || referencePrice <= 0 {
		return nil, &apperrors.FallbackComputationFailed{Reason: "no valid reference price is available"}
	}
	if decimals < 0 || decimals > units.MaxDecimals {
		return nil, &apperrors.FallbackComputationFailed{Reason: "token decimals are out of range", Err: units.ErrDecimalsOutOfRange}
	}

	amountIn, err := units.ParseDecimal(amountInDecimal)
	if err != nil {
		return nil, &apperrors.FallbackComputationFailed{Reason: "the amount is not a positive number", Err: err}
	}

	out, err := units.Scale(amountIn.Mul(decimal.NewFromFloat(referencePrice)), decimals)
	if err != nil {
		return nil, &apperrors.FallbackComputationFailed{Reason: "the amount is too small to quote", Err: err}
	}

	return &types.SwapRoute{
		DestinationToken: tokenSymbol,
		OutputAmount:     out.String(),
		Source:           types.RouteSourceFallback,
		Approximate:      true,
	}, nil
}
