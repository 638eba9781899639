package main

import (
	"fmt"
	"strings"

	"github.com/SIMPLYBOYS/pay_usdc/internal/db"
	"github.com/SIMPLYBOYS/pay_usdc/internal/noble"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var contactChain string

var contactCmd = &cobra.Command{
	Use:   "contact",
	Short: "Manage the address book used to name batch recipients",
}

var contactAddCmd = &cobra.Command{
	Use:   "add <owner-address> <address> <name>",
	Short: "Save a named recipient address for an owner",
	Args:  cobra.ExactArgs(3),
	RunE:  runContactAdd,
}

func init() {
	contactAddCmd.Flags().StringVar(&contactChain, "chain", chainNoble, "Chain of the contact address (noble or evm)")
	contactCmd.AddCommand(contactAddCmd)
	rootCmd.AddCommand(contactCmd)
}

func runContactAdd(cmd *cobra.Command, args []string) error {
	contact, err := newContact(args[0], args[1], args[2], contactChain)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	id, err := store.SaveContact(contact)
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Saved %s as %q for %s (contact #%d)", contact.Address, contact.Name, contact.OwnerAddress, id))
	return nil
}

// newContact checks address against the chain's format before it is stored.
func newContact(owner, address, name, chain string) (db.Contact, error) {
	chain = strings.ToLower(strings.TrimSpace(chain))
	address = strings.TrimSpace(address)
	name = strings.TrimSpace(name)
	if owner == "" {
		return db.Contact{}, fmt.Errorf("owner address is required")
	}
	if name == "" {
		return db.Contact{}, fmt.Errorf("contact name is required")
	}

	switch chain {
	case chainNoble:
		if err := noble.ValidateAddress(address); err != nil {
			return db.Contact{}, err
		}
	case chainEVM:
		if !common.IsHexAddress(address) {
			return db.Contact{}, fmt.Errorf("invalid EVM address: %s", address)
		}
	default:
		return db.Contact{}, fmt.Errorf("unsupported chain %q", chain)
	}

	return db.Contact{OwnerAddress: owner, Name: name, Address: address, Chain: chain}, nil
}
