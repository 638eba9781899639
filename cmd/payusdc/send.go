package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/SIMPLYBOYS/pay_usdc/internal/db"
	"github.com/SIMPLYBOYS/pay_usdc/internal/settlement"
	"github.com/SIMPLYBOYS/pay_usdc/internal/types"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	sendChain    string
	sendFrom     string
	sendFile     string
	sendListID   int
	sendMemo     string
	sendTotal    string
	sendSaveList string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Pay a batch of recipients in USDC",
	Long: `Pay a batch of recipients one at a time. A failed recipient is reported
and the batch moves on to the next one. Interrupting the command stops new
transfers; the remaining recipients are reported as failed.

The recipients file is a JSON array:
  [{"address": "noble1...", "amount": "12.5", "name": "Alice"},
   {"address": "noble1...", "percentage": "40"}]

Memo templates may use {name}, {address}, {amount} and {index}.

Examples:
  pay-usdc send --chain noble --from noble1... --file march.json --memo "March payroll {index}"
  pay-usdc send --chain noble --from noble1... --file split.json --total 1000 --save-list "Team split"
  pay-usdc send --chain noble --from noble1... --list 7 --total 1000`,
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&sendChain, "chain", chainNoble, "Settlement chain (noble or evm)")
	sendCmd.Flags().StringVar(&sendFrom, "from", "", "Sender address (REQUIRED)")
	sendCmd.Flags().StringVarP(&sendFile, "file", "f", "", "JSON file with recipients")
	sendCmd.Flags().IntVar(&sendListID, "list", 0, "ID of a saved recipient list")
	sendCmd.Flags().StringVar(&sendMemo, "memo", "", "Memo template (default: recipient name or address)")
	sendCmd.Flags().StringVar(&sendTotal, "total", "", "Total amount that percentage entries are taken from")
	sendCmd.Flags().StringVar(&sendSaveList, "save-list", "", "Save the recipients file as a named list before sending")
	sendCmd.MarkFlagRequired("from")
}

func runSend(cmd *cobra.Command, args []string) error {
	if (sendFile == "") == (sendListID == 0) {
		return errors.New("exactly one of --file or --list is required")
	}
	if sendSaveList != "" && sendFile == "" {
		return errors.New("--save-list needs --file")
	}

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

	var progress settlement.Broadcaster
	if !jsonOutput {
		progress = consoleProgress{}
	}
	svc, cleanup, err := newSettlementService(cfg, store, progress)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var report *settlement.BatchReport
	if sendFile != "" {
		recipients, err := readRecipients(sendFile)
		if err != nil {
			return err
		}
		if sendSaveList != "" {
			id, err := store.SaveRecipientList(newRecipientList(sendFrom, sendSaveList, recipients))
			if err != nil {
				return err
			}
			fmt.Printf("Saved recipient list %q as #%d\n", sendSaveList, id)
		}
		report, err = svc.Send(ctx, settlement.BatchRequest{
			Chain:        sendChain,
			Sender:       sendFrom,
			Recipients:   recipients,
			MemoTemplate: sendMemo,
			TotalAmount:  sendTotal,
		})
		if err != nil {
			return err
		}
	} else {
		report, err = svc.SendList(ctx, settlement.ListRequest{
			ListID:       sendListID,
			Chain:        sendChain,
			Sender:       sendFrom,
			MemoTemplate: sendMemo,
			TotalAmount:  sendTotal,
		})
		if err != nil {
			return err
		}
	}

	if jsonOutput {
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	summary := fmt.Sprintf("Batch %s: %d succeeded, %d failed", report.ID, report.Succeeded, report.Failed)
	if report.Failed > 0 {
		color.Yellow("\n%s\n\n", summary)
	} else {
		printSuccess(summary)
	}
	return nil
}

func readRecipients(path string) ([]types.RecipientEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var recipients []types.RecipientEntry
	if err := json.Unmarshal(data, &recipients); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return recipients, nil
}

func newRecipientList(owner, name string, recipients []types.RecipientEntry) db.RecipientList {
	list := db.RecipientList{OwnerAddress: owner, Name: name}
	for i, r := range recipients {
		list.Entries = append(list.Entries, db.RecipientListEntry{
			Position:   i,
			Address:    r.Address,
			Name:       r.Name,
			Amount:     r.Amount,
			Percentage: r.Percentage,
		})
	}
	return list
}

// consoleProgress prints each settlement result as it finalises.
type consoleProgress struct{}

func (consoleProgress) BroadcastSettlementResult(batchID string, index int, result types.SettlementResult) error {
	label := result.Recipient.Address
	if result.Recipient.Name != "" {
		label = fmt.Sprintf("%s (%s)", result.Recipient.Name, result.Recipient.Address)
	}
	if result.Success {
		fmt.Printf("%s #%d %s %s\n", color.GreenString("✓"), index+1, label, result.TransactionHash)
	} else {
		fmt.Printf("%s #%d %s %s\n", color.RedString("✗"), index+1, label, result.Error)
	}
	return nil
}

func (consoleProgress) BroadcastBatchCompleted(batchID string, succeeded, failed int) error {
	return nil
}
