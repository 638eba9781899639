package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/SIMPLYBOYS/pay_usdc/internal/db"
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage profile URLs",
}

var profileClaimCmd = &cobra.Command{
	Use:   "claim <owner-address> <slug>",
	Short: "Claim a profile slug for a wallet address",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		owner, slug := args[0], strings.ToLower(args[1])
		if err := store.ClaimProfile(owner, slug); err != nil {
			return err
		}
		printSuccess(fmt.Sprintf("Claimed /%s for %s", slug, owner))
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show <owner-address>",
	Short: "Show the profile slug claimed by a wallet address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		profile, err := store.GetProfile(args[0])
		if err != nil {
			return err
		}
		out, err := formatProfile(profile, jsonOutput)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

func formatProfile(p db.Profile, jsonOutput bool) (string, error) {
	if jsonOutput {
		out, err := json.MarshalIndent(map[string]string{
			"owner":     p.OwnerAddress,
			"slug":      p.Slug,
			"claimedAt": p.ClaimedAt.UTC().Format(time.RFC3339),
		}, "", "  ")
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
	return fmt.Sprintf("/%s  %s  (claimed %s)", p.Slug, p.OwnerAddress, p.ClaimedAt.UTC().Format("2006-01-02 15:04 MST")), nil
}

func init() {
	profileCmd.AddCommand(profileClaimCmd)
	profileCmd.AddCommand(profileShowCmd)
	rootCmd.AddCommand(profileCmd)
}
