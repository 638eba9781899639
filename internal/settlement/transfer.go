package settlement

import (
	"context"
	"math/big"
)

// Transfer is one fully constructed payment.
type Transfer struct {
	From   string
	To     string
	Amount *big.Int
	Memo   string
}

// Transferer is the chain collaborator used by the settlement loop.
type Transferer interface {
	// ValidateAddress reports whether address can receive a transfer.
	ValidateAddress(address string) error
	// Open starts a session for sender that lasts one batch.
	Open(ctx context.Context, sender string) (Session, error)
}

// Session owns the sender's account sequence (or nonce) for one batch.
// Transfer broadcasts and returns the transaction hash; Confirm blocks until
// the transaction is included successfully or ctx ends.
type Session interface {
	Transfer(ctx context.Context, t Transfer) (string, error)
	Confirm(ctx context.Context, txHash string) error
}
