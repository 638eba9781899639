package noble

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/SIMPLYBOYS/pay_usdc/internal/settlement"
	"github.com/SIMPLYBOYS/pay_usdc/internal/units"
	"github.com/SIMPLYBOYS/pay_usdc/pkg/logger"
)

var ErrInsufficientFunds = errors.New("insufficient funds")

// codeWrongSequence is the Cosmos SDK ErrWrongSequence code in the "sdk"
// codespace.
const codeWrongSequence = 32

type TransfererConfig struct {
	ChainID      string
	Denom        string
	FeeAmount    string
	GasLimit     uint64
	PollInterval time.Duration
}

// Transferer sends USDC on Noble with bank MsgSend transactions.
type Transferer struct {
	client *Client
	signer Signer
	cfg    TransfererConfig
	fee    *big.Int
}

func NewTransferer(client *Client, signer Signer, cfg TransfererConfig) (*Transferer, error) {
	fee, ok := units.ParseInteger(cfg.FeeAmount)
	if !ok || fee.Sign() < 0 {
		return nil, fmt.Errorf("invalid noble fee amount %q", cfg.FeeAmount)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Transferer{client: client, signer: signer, cfg: cfg, fee: fee}, nil
}

func (t *Transferer) ValidateAddress(address string) error {
	return ValidateAddress(address)
}

// Open reads the sender's account number, sequence and balance. The session
// advances the sequence locally after every accepted broadcast.
func (t *Transferer) Open(ctx context.Context, sender string) (settlement.Session, error) {
	acct, err := t.client.Account(ctx, sender)
	if err != nil {
		return nil, err
	}
	balance, err := t.client.Balance(ctx, sender, t.cfg.Denom)
	if err != nil {
		return nil, err
	}
	logger.Debug("Opened noble session for %s: account %d, sequence %d, balance %s%s",
		sender, acct.AccountNumber, acct.Sequence, balance, t.cfg.Denom)
	return &session{
		t:             t,
		sender:        sender,
		accountNumber: acct.AccountNumber,
		sequence:      acct.Sequence,
		balance:       balance,
	}, nil
}

type session struct {
	t             *Transferer
	sender        string
	accountNumber uint64
	sequence      uint64
	balance       *big.Int
	// stale is set when a broadcast may have consumed the sequence without a
	// definite answer. The next Transfer re-reads the account first.
	stale bool
}

// resync reloads sequence and balance from the node.
func (s *session) resync(ctx context.Context) error {
	acct, err := s.t.client.Account(ctx, s.sender)
	if err != nil {
		return err
	}
	balance, err := s.t.client.Balance(ctx, s.sender, s.t.cfg.Denom)
	if err != nil {
		return err
	}
	logger.Info("Resynced noble session for %s: sequence %d -> %d", s.sender, s.sequence, acct.Sequence)
	s.accountNumber = acct.AccountNumber
	s.sequence = acct.Sequence
	s.balance = balance
	s.stale = false
	return nil
}

func (s *session) Transfer(ctx context.Context, tr settlement.Transfer) (string, error) {
	if tr.From != s.sender {
		return "", fmt.Errorf("session belongs to %s, not %s", s.sender, tr.From)
	}
	if s.stale {
		if err := s.resync(ctx); err != nil {
			return "", fmt.Errorf("failed to resync account sequence: %w", err)
		}
	}
	cost := new(big.Int).Add(tr.Amount, s.t.fee)
	if s.balance.Cmp(cost) < 0 {
		return "", fmt.Errorf("%w: need %s%s, have %s%s", ErrInsufficientFunds, cost, s.t.cfg.Denom, s.balance, s.t.cfg.Denom)
	}

	txBytes, err := s.t.signer.Sign(ctx, SignRequest{
		ChainID:       s.t.cfg.ChainID,
		AccountNumber: s.accountNumber,
		Sequence:      s.sequence,
		FromAddress:   s.sender,
		ToAddress:     tr.To,
		Amount:        []Coin{{Denom: s.t.cfg.Denom, Amount: tr.Amount.String()}},
		Fee:           []Coin{{Denom: s.t.cfg.Denom, Amount: s.t.fee.String()}},
		GasLimit:      s.t.cfg.GasLimit,
		Memo:          tr.Memo,
	})
	if err != nil {
		return "", err
	}

	resp, err := s.t.client.Broadcast(ctx, txBytes)
	if err != nil {
		// The node may have accepted the tx before the call failed.
		s.stale = true
		return "", err
	}
	if resp.Code != 0 {
		if resp.Code == codeWrongSequence && resp.Codespace == "sdk" {
			s.stale = true
		}
		return "", fmt.Errorf("rejected by node (%s code %d): %s", resp.Codespace, resp.Code, resp.RawLog)
	}

	s.sequence++
	s.balance.Sub(s.balance, cost)
	return resp.TxHash, nil
}

// Confirm polls the node until the transaction is in a block.
func (s *session) Confirm(ctx context.Context, txHash string) error {
	ticker := time.NewTicker(s.t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		resp, err := s.t.client.GetTx(ctx, txHash)
		switch {
		case err == nil:
			if resp.Code != 0 {
				return fmt.Errorf("transaction %s failed in block %s (%s code %d): %s",
					txHash, resp.Height, resp.Codespace, resp.Code, resp.RawLog)
			}
			logger.Debug("Noble tx %s included at height %s", txHash, resp.Height)
			return nil
		case !errors.Is(err, ErrTxNotFound):
			logger.Warn("Polling noble tx %s: %v", txHash, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("transaction %s not confirmed: %w", txHash, ctx.Err())
		case <-ticker.C:
		}
	}
}
