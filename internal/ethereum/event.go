package ethereum

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ERC20ABI covers the calls and event needed to move and verify USDC.
const ERC20ABI = `[
{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"value","type":"uint256"}],"name":"Transfer","type":"event"}
]`

var erc20ABI = mustParseABI(ERC20ABI)

// TransferEventSignature is keccak256("Transfer(address,address,uint256)").
var TransferEventSignature = erc20ABI.Events["Transfer"].ID

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

type TransferEvent struct {
	Token  common.Address
	From   common.Address
	To     common.Address
	Value  *big.Int
	TxHash common.Hash
}

// parseTransferEvent decodes an ERC20 Transfer log.
func parseTransferEvent(vLog types.Log) (*TransferEvent, error) {
	if len(vLog.Topics) != 3 || vLog.Topics[0] != TransferEventSignature {
		return nil, fmt.Errorf("log is not an ERC20 Transfer")
	}

	var data struct{ Value *big.Int }
	if err := erc20ABI.UnpackIntoInterface(&data, "Transfer", vLog.Data); err != nil {
		return nil, fmt.Errorf("failed to unpack transfer event: %w", err)
	}

	return &TransferEvent{
		Token:  vLog.Address,
		From:   common.BytesToAddress(vLog.Topics[1].Bytes()),
		To:     common.BytesToAddress(vLog.Topics[2].Bytes()),
		Value:  data.Value,
		TxHash: vLog.TxHash,
	}, nil
}

// TransferEvents returns the Transfer events that token emitted in receipt.
func TransferEvents(receipt *types.Receipt, token common.Address) []TransferEvent {
	var events []TransferEvent
	for _, vLog := range receipt.Logs {
		if vLog == nil || vLog.Address != token {
			continue
		}
		event, err := parseTransferEvent(*vLog)
		if err != nil {
			continue
		}
		events = append(events, *event)
	}
	return events
}
