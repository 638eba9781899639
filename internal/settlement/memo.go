package settlement

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/SIMPLYBOYS/pay_usdc/internal/types"
)

// MaxMemoLength matches the default Cosmos SDK memo limit.
const MaxMemoLength = 256

// renderMemo fills {name}, {address}, {amount} and {index} (1-based). Without
// a template the memo is the recipient's name, or its address.
func renderMemo(template string, index int, recipient types.RecipientEntry, amount string) string {
	var memo string
	if template == "" {
		memo = recipient.Name
		if memo == "" {
			memo = recipient.Address
		}
	} else {
		name := recipient.Name
		if name == "" {
			name = recipient.Address
		}
		memo = strings.NewReplacer(
			"{name}", name,
			"{address}", recipient.Address,
			"{amount}", amount,
			"{index}", strconv.Itoa(index+1),
		).Replace(template)
	}
	return truncateRunes(memo, MaxMemoLength)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
