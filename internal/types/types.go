package types

// Token describes an asset the caller wants to quote or send.
type Token struct {
	Denom    string `json:"denom"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

type RouteSource string

const (
	RouteSourceRouter   RouteSource = "router"
	RouteSourceFallback RouteSource = "fallback"
)

// PoolHop is one pool of a multi-hop route.
type PoolHop struct {
	PoolID        string `json:"poolId"`
	TokenOutDenom string `json:"tokenOutDenom"`
}

// SwapRoute is built fresh for every quote and never persisted. Amounts are
// integer strings in the token's smallest unit.
type SwapRoute struct {
	SourceToken      string      `json:"sourceToken"`
	DestinationToken string      `json:"destinationToken"`
	InputAmount      string      `json:"inputAmount"`
	OutputAmount     string      `json:"outputAmount"`
	PriceImpact      string      `json:"priceImpact,omitempty"`
	PoolPath         []PoolHop   `json:"poolPath,omitempty"`
	Source           RouteSource `json:"source"`
	Approximate      bool        `json:"approximate"`
}

// RecipientEntry is one line of a batch. Exactly one of Amount or Percentage
// is set; both are decimal strings.
type RecipientEntry struct {
	Address    string `json:"address"`
	Amount     string `json:"amount,omitempty"`
	Percentage string `json:"percentage,omitempty"`
	Name       string `json:"name,omitempty"`
}

type SettlementState string

const (
	StatePending            SettlementState = "pending"
	StateSubmitted          SettlementState = "submitted"
	StateConfirmed          SettlementState = "confirmed"
	StateRejected           SettlementState = "rejected"
	StateConstructionFailed SettlementState = "construction-failed"
)

// Final reports whether no further transition is possible from s.
func (s SettlementState) Final() bool {
	switch s {
	case StateConfirmed, StateRejected, StateConstructionFailed:
		return true
	}
	return false
}

type SettlementResult struct {
	Recipient       RecipientEntry  `json:"recipient"`
	Success         bool            `json:"success"`
	TransactionHash string          `json:"transactionHash,omitempty"`
	Error           string          `json:"error,omitempty"`
	State           SettlementState `json:"state"`
}
