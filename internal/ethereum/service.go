package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	apperrors "github.com/SIMPLYBOYS/pay_usdc/internal/errors"
	"github.com/SIMPLYBOYS/pay_usdc/internal/settlement"
	"github.com/SIMPLYBOYS/pay_usdc/pkg/logger"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DefaultTransferGas is used when gas estimation fails.
const DefaultTransferGas = 100000

var ErrInsufficientFunds = errors.New("insufficient USDC balance")

// USDCService moves USDC with ERC20 transfer calls signed by a single
// account.
type USDCService struct {
	client       EthereumClient
	token        common.Address
	signer       Signer
	chainID      *big.Int
	pollInterval time.Duration
}

func NewUSDCService(client EthereumClient, tokenAddress string, signer Signer, chainID int64, pollInterval time.Duration) (*USDCService, error) {
	if !common.IsHexAddress(tokenAddress) {
		return nil, fmt.Errorf("invalid USDC contract address: %s", tokenAddress)
	}
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	return &USDCService{
		client:       client,
		token:        common.HexToAddress(tokenAddress),
		signer:       signer,
		chainID:      big.NewInt(chainID),
		pollInterval: pollInterval,
	}, nil
}

func (s *USDCService) ValidateAddress(address string) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid EVM address: %s", address)
	}
	if common.HexToAddress(address) == (common.Address{}) {
		return fmt.Errorf("refusing to send to the zero address")
	}
	return nil
}

// BalanceOf returns owner's USDC balance in smallest units.
func (s *USDCService) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	data, err := erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf call: %w", err)
	}

	result, err := s.client.CallContract(ctx, ethereum.CallMsg{To: &s.token, Data: data}, nil)
	if err != nil {
		return nil, &apperrors.EthereumError{Operation: "balanceOf", Err: err}
	}

	out, err := erc20ABI.Unpack("balanceOf", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack balanceOf result: %w", err)
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf result type %T", out[0])
	}
	return balance, nil
}

// Open reads the pending nonce, gas price and balance once; the session then
// tracks them locally for the rest of the batch.
func (s *USDCService) Open(ctx context.Context, sender string) (settlement.Session, error) {
	if !common.IsHexAddress(sender) || common.HexToAddress(sender) != s.signer.Address() {
		return nil, fmt.Errorf("sender %s does not match signing account %s", sender, s.signer.Address().Hex())
	}
	from := s.signer.Address()

	nonce, err := s.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, &apperrors.EthereumError{Operation: "get nonce", Err: err}
	}
	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, &apperrors.EthereumError{Operation: "suggest gas price", Err: err}
	}
	balance, err := s.BalanceOf(ctx, from)
	if err != nil {
		return nil, err
	}

	logger.Debug("Opened EVM session for %s: nonce %d, gas price %s, balance %s", from.Hex(), nonce, gasPrice, balance)
	return &evmSession{svc: s, from: from, nonce: nonce, gasPrice: gasPrice, balance: balance}, nil
}

type evmSession struct {
	svc      *USDCService
	from     common.Address
	nonce    uint64
	gasPrice *big.Int
	balance  *big.Int
	// stale is set after a failed send, which may still have reached the
	// mempool. The next Transfer re-reads the pending nonce first.
	stale bool
}

// resync reloads the pending nonce and balance from the node.
func (e *evmSession) resync(ctx context.Context) error {
	nonce, err := e.svc.client.PendingNonceAt(ctx, e.from)
	if err != nil {
		return &apperrors.EthereumError{Operation: "get nonce", Err: err}
	}
	balance, err := e.svc.BalanceOf(ctx, e.from)
	if err != nil {
		return err
	}
	logger.Info("Resynced EVM session for %s: nonce %d -> %d", e.from.Hex(), e.nonce, nonce)
	e.nonce = nonce
	e.balance = balance
	e.stale = false
	return nil
}

func (e *evmSession) Transfer(ctx context.Context, tr settlement.Transfer) (string, error) {
	if common.HexToAddress(tr.From) != e.from {
		return "", fmt.Errorf("session belongs to %s, not %s", e.from.Hex(), tr.From)
	}
	if e.stale {
		if err := e.resync(ctx); err != nil {
			return "", fmt.Errorf("failed to resync nonce: %w", err)
		}
	}
	if e.balance.Cmp(tr.Amount) < 0 {
		return "", fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, e.balance, tr.Amount)
	}

	to := common.HexToAddress(tr.To)
	data, err := erc20ABI.Pack("transfer", to, tr.Amount)
	if err != nil {
		return "", fmt.Errorf("failed to pack transfer call: %w", err)
	}

	gasLimit, err := e.svc.client.EstimateGas(ctx, ethereum.CallMsg{From: e.from, To: &e.svc.token, Data: data})
	if err != nil {
		logger.Warn("Gas estimation for transfer to %s failed, using %d: %v", to.Hex(), DefaultTransferGas, err)
		gasLimit = DefaultTransferGas
	} else {
		gasLimit = gasLimit * 12 / 10
	}

	tx := types.NewTransaction(e.nonce, e.svc.token, big.NewInt(0), gasLimit, e.gasPrice, data)
	signedTx, err := e.svc.signer.SignTx(tx, e.svc.chainID)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := e.svc.client.SendTransaction(ctx, signedTx); err != nil {
		e.stale = true
		return "", &apperrors.EthereumError{Operation: "send transaction", Err: err}
	}

	e.nonce++
	e.balance = new(big.Int).Sub(e.balance, tr.Amount)
	return signedTx.Hash().Hex(), nil
}

// Confirm waits for a receipt with status 1.
func (e *evmSession) Confirm(ctx context.Context, txHash string) error {
	hash := common.HexToHash(txHash)
	ticker := time.NewTicker(e.svc.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := e.svc.client.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("transaction %s reverted in block %s", txHash, receipt.BlockNumber)
			}
			for _, ev := range TransferEvents(receipt, e.svc.token) {
				logger.Debug("USDC transfer %s -> %s value %s in %s", ev.From.Hex(), ev.To.Hex(), ev.Value, txHash)
			}
			return nil
		case !errors.Is(err, ethereum.NotFound):
			logger.Warn("Polling receipt for %s: %v", txHash, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("transaction %s not confirmed: %w", txHash, ctx.Err())
		case <-ticker.C:
		}
	}
}
