package routing

import (
	"fmt"
	"regexp"
	"strings"
)

// QuoteRequest is a parsed "<amount> <token> to <token>" command.
type QuoteRequest struct {
	Amount   string
	TokenIn  string
	TokenOut string
}

var quotePattern = regexp.MustCompile(`(?i)^(\d+\.?\d*)\s+([a-z0-9/]+)\s+to\s+([a-z0-9/]+)$`)

// ParseQuoteCommand parses commands such as
//   - "10 OSMO to USDC"
//   - "quote 2.5 uosmo to uusdc"
func ParseQuoteCommand(command string) (*QuoteRequest, error) {
	command = strings.Join(strings.Fields(command), " ")
	if len(command) >= 6 && strings.EqualFold(command[:6], "quote ") {
		command = command[6:]
	}

	matches := quotePattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid quote command. Expected: '<amount> <token> to <token>' (e.g., '10 OSMO to USDC')")
	}

	return &QuoteRequest{
		Amount:   matches[1],
		TokenIn:  matches[2],
		TokenOut: matches[3],
	}, nil
}
