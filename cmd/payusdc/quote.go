package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/SIMPLYBOYS/pay_usdc/internal/routing"
	"github.com/SIMPLYBOYS/pay_usdc/internal/units"
	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var quotePrice float64

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <token-in> to <token-out>",
	Short: "Quote a swap through the routing service",
	Long: `Quote a swap through the routing service. When the router is unavailable
the quote is estimated from the configured reference prices and marked as
approximate.

Examples:
  pay-usdc quote 10 OSMO to USDC
  pay-usdc quote 2.5 ATOM to USDC --price 6.1`,
	Args: cobra.MinimumNArgs(4),
	RunE: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
	quoteCmd.Flags().Float64Var(&quotePrice, "price", 0, "Reference price of one input token in the output token (default: from config)")
}

func runQuote(cmd *cobra.Command, args []string) error {
	req, err := routing.ParseQuoteCommand(strings.Join(args, " "))
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	resolver, registry := newResolver(cfg)

	tokenIn, err := registry.Lookup(req.TokenIn)
	if err != nil {
		return err
	}
	tokenOut, err := registry.Lookup(req.TokenOut)
	if err != nil {
		return err
	}

	price := quotePrice
	if price == 0 {
		price, _ = registry.ReferencePrice(tokenIn, tokenOut)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching route..."
		s.Start()
	}

	route, err := resolver.ResolveRoute(context.Background(), tokenIn, tokenOut, req.Amount, price)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		out, err := json.MarshalIndent(route, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	amountOut, ok := units.ParseInteger(route.OutputAmount)
	if !ok {
		amountOut = new(big.Int)
	}

	bold := color.New(color.Bold).SprintFunc()
	fmt.Printf("\n%s %s %s = %s %s\n", bold("Quote:"), req.Amount, tokenIn.Symbol,
		color.GreenString(units.FromSmallestUnit(amountOut, tokenOut.Decimals)), tokenOut.Symbol)
	if route.PriceImpact != "" {
		fmt.Printf("  Price impact: %s\n", route.PriceImpact)
	}
	for i, hop := range route.PoolPath {
		fmt.Printf("  Hop %d: pool %s -> %s\n", i+1, hop.PoolID, hop.TokenOutDenom)
	}
	if route.Approximate {
		color.Yellow("  Approximate: the routing service was unavailable, estimated at %g %s per %s\n",
			price, tokenOut.Symbol, tokenIn.Symbol)
	}
	fmt.Println()
	return nil
}
