package settlement

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	apperrors "github.com/SIMPLYBOYS/pay_usdc/internal/errors"
	"github.com/SIMPLYBOYS/pay_usdc/internal/types"
	"github.com/SIMPLYBOYS/pay_usdc/internal/units"
	"github.com/SIMPLYBOYS/pay_usdc/pkg/logger"
	"github.com/shopspring/decimal"
)

// DefaultDecimals is the USDC precision on Noble and most EVM chains.
const DefaultDecimals = 6

// DefaultCallTimeout bounds each transfer and confirmation when the caller
// passes no timeout.
const DefaultCallTimeout = 60 * time.Second

var hundred = decimal.NewFromInt(100)

// ProgressFunc receives each result as soon as it is final.
type ProgressFunc func(index int, result types.SettlementResult)

type BatchOptions struct {
	MemoTemplate string
	// TotalAmount is the decimal amount that percentage entries are taken from.
	TotalAmount string
	// Decimals is the token precision. Zero means DefaultDecimals; config
	// validation never lets a zero through.
	Decimals     int
	Progress     ProgressFunc
}

// Sender runs the settlement loop against one chain.
type Sender struct {
	transferer  Transferer
	callTimeout time.Duration
}

func NewSender(transferer Transferer, callTimeout time.Duration) *Sender {
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	return &Sender{transferer: transferer, callTimeout: callTimeout}
}

// ValidateAddress exposes the chain's address check to callers that build
// batches.
func (s *Sender) ValidateAddress(address string) error {
	return s.transferer.ValidateAddress(address)
}

// SendBatch pays every recipient in order, one at a time, and returns one
// result per recipient in input order. A failing recipient never stops the
// batch. Once ctx is cancelled no further transfer is submitted and the
// remaining recipients are recorded as failed.
func (s *Sender) SendBatch(ctx context.Context, sender string, recipients []types.RecipientEntry, opts BatchOptions) []types.SettlementResult {
	decimals := opts.Decimals
	if decimals == 0 {
		decimals = DefaultDecimals
	}

	b := &batchRun{
		sender:   s,
		from:     sender,
		opts:     opts,
		decimals: decimals,
	}

	results := make([]types.SettlementResult, 0, len(recipients))
	for i, recipient := range recipients {
		result := b.settle(ctx, i, recipient)
		if result.Success {
			logger.Info("Recipient %d/%d %s confirmed in %s", i+1, len(recipients), recipient.Address, result.TransactionHash)
		} else {
			logger.Warn("Recipient %d/%d %s failed (%s): %s", i+1, len(recipients), recipient.Address, result.State, result.Error)
		}
		results = append(results, result)
		if opts.Progress != nil {
			opts.Progress(i, result)
		}
	}
	return results
}

// batchRun holds what one SendBatch invocation shares between recipients.
type batchRun struct {
	sender   *Sender
	from     string
	opts     BatchOptions
	decimals int
	session  Session
}

func (b *batchRun) settle(ctx context.Context, index int, recipient types.RecipientEntry) types.SettlementResult {
	result := types.SettlementResult{Recipient: recipient, State: types.StatePending}

	amount, err := b.build(index, recipient)
	if err != nil {
		return fail(result, types.StateConstructionFailed, err)
	}

	if err := ctx.Err(); err != nil {
		return fail(result, types.StateRejected, &apperrors.RecipientTransferFailed{
			Address: recipient.Address,
			Stage:   apperrors.StageSubmit,
			Err:     fmt.Errorf("batch cancelled: %w", err),
		})
	}

	if b.session == nil {
		openCtx, cancel := context.WithTimeout(ctx, b.sender.callTimeout)
		session, err := b.sender.transferer.Open(openCtx, b.from)
		cancel()
		if err != nil {
			return fail(result, types.StateRejected, &apperrors.RecipientTransferFailed{
				Address: recipient.Address, Stage: apperrors.StageSession, Err: err,
			})
		}
		b.session = session
	}

	transfer := Transfer{
		From:   b.from,
		To:     recipient.Address,
		Amount: amount,
		Memo:   renderMemo(b.opts.MemoTemplate, index, recipient, units.FromSmallestUnit(amount, b.decimals)),
	}

	submitCtx, cancel := context.WithTimeout(ctx, b.sender.callTimeout)
	txHash, err := b.session.Transfer(submitCtx, transfer)
	cancel()
	if err != nil {
		return fail(result, types.StateRejected, &apperrors.RecipientTransferFailed{
			Address: recipient.Address, Stage: apperrors.StageSubmit, Err: err,
		})
	}
	result.State = types.StateSubmitted
	result.TransactionHash = txHash

	confirmCtx, cancel := context.WithTimeout(ctx, b.sender.callTimeout)
	err = b.session.Confirm(confirmCtx, txHash)
	cancel()
	if err != nil {
		return fail(result, types.StateRejected, &apperrors.RecipientTransferFailed{
			Address: recipient.Address, Stage: apperrors.StageConfirm, Err: err,
		})
	}

	result.State = types.StateConfirmed
	result.Success = true
	return result
}

// build validates the entry and returns its amount in smallest units.
func (b *batchRun) build(index int, recipient types.RecipientEntry) (*big.Int, error) {
	constructionErr := func(field string, err error) error {
		return &apperrors.BatchConstructionFailed{Index: index, Field: field, Err: err}
	}

	if strings.TrimSpace(recipient.Address) == "" {
		return nil, constructionErr("address", errors.New("address is missing"))
	}
	if err := b.sender.transferer.ValidateAddress(recipient.Address); err != nil {
		return nil, constructionErr("address", err)
	}

	hasAmount := strings.TrimSpace(recipient.Amount) != ""
	hasPercentage := strings.TrimSpace(recipient.Percentage) != ""

	switch {
	case hasAmount && hasPercentage:
		return nil, constructionErr("amount", errors.New("amount and percentage are mutually exclusive"))
	case hasAmount:
		amount, err := units.ToSmallestUnit(recipient.Amount, b.decimals)
		if err != nil {
			return nil, constructionErr("amount", err)
		}
		return amount, nil
	case hasPercentage:
		return b.percentageAmount(recipient.Percentage, constructionErr)
	}
	return nil, constructionErr("amount", errors.New("amount is missing"))
}

func (b *batchRun) percentageAmount(percentage string, constructionErr func(string, error) error) (*big.Int, error) {
	if strings.TrimSpace(b.opts.TotalAmount) == "" {
		return nil, constructionErr("percentage", errors.New("percentage requires a total amount"))
	}
	total, err := units.ParseDecimal(b.opts.TotalAmount)
	if err != nil {
		return nil, constructionErr("percentage", fmt.Errorf("total amount: %w", err))
	}
	pct, err := units.ParseDecimal(percentage)
	if err != nil {
		return nil, constructionErr("percentage", err)
	}
	if pct.GreaterThan(hundred) {
		return nil, constructionErr("percentage", fmt.Errorf("percentage %s exceeds 100", pct))
	}
	amount, err := units.Scale(total.Mul(pct).Div(hundred), b.decimals)
	if err != nil {
		return nil, constructionErr("percentage", err)
	}
	return amount, nil
}

func fail(result types.SettlementResult, state types.SettlementState, err error) types.SettlementResult {
	result.State = state
	result.Success = false
	result.Error = err.Error()
	return result
}
