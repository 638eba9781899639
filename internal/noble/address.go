package noble

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// AddressPrefix is the bech32 human readable part of Noble accounts.
const AddressPrefix = "noble"

// ValidateAddress checks that address is a lowercase bech32 Noble account
// with a 20 or 32 byte payload.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address is empty")
	}
	if address != strings.ToLower(address) {
		return fmt.Errorf("address %q must be lowercase", address)
	}
	hrp, data, err := bech32.Decode(address)
	if err != nil {
		return fmt.Errorf("address %q is not valid bech32: %w", address, err)
	}
	if hrp != AddressPrefix {
		return fmt.Errorf("address %q has prefix %q, want %q", address, hrp, AddressPrefix)
	}
	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return fmt.Errorf("address %q has a malformed payload: %w", address, err)
	}
	if len(payload) != 20 && len(payload) != 32 {
		return fmt.Errorf("address %q has a %d byte payload", address, len(payload))
	}
	return nil
}

// EncodeAddress renders raw account bytes as a Noble address.
func EncodeAddress(payload []byte) (string, error) {
	conv, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(AddressPrefix, conv)
}
