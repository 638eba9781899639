package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "pay-usdc",
	Short: "Quote swaps into USDC and pay recipients in batches",
	Long: `pay-usdc runs the Pay USDC backend and its operator tools.

Examples:
  pay-usdc serve
  pay-usdc quote 10 OSMO to USDC
  pay-usdc send --chain noble --from noble1... --file recipients.json
  pay-usdc send --chain noble --from noble1... --list 7 --total 1500
  pay-usdc profile claim noble1... alice
  pay-usdc profile show noble1...
  pay-usdc contact add noble1... noble1... Bob`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: .pay-usdc.yaml in $HOME or the working directory)")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\n%s %v\n\n", color.RedString("Error:"), err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", color.GreenString(message))
}
