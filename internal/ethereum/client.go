package ethereum

import (
	"context"
	"fmt"
	"math/big"

	"github.com/SIMPLYBOYS/pay_usdc/pkg/logger"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EthereumClient is the subset of *ethclient.Client used for USDC transfers.
type EthereumClient interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

type ClientCreator func(url string) (EthereumClient, error)

func defaultClientCreator(url string) (EthereumClient, error) {
	return ethclient.Dial(url)
}

// Dial connects to rpcURL with creator, or with ethclient when creator is nil.
func Dial(rpcURL string, creator ClientCreator) (EthereumClient, error) {
	if creator == nil {
		creator = defaultClientCreator
	}
	client, err := creator(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the Ethereum client: %w", err)
	}
	logger.Info("Successfully connected to Ethereum client")
	return client, nil
}
