package noble

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	apperrors "github.com/SIMPLYBOYS/pay_usdc/internal/errors"
	"github.com/SIMPLYBOYS/pay_usdc/internal/units"
)

// ErrTxNotFound is returned by GetTx until the transaction is in a block.
var ErrTxNotFound = errors.New("transaction not found")

// HTTPClient is satisfied by *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the Cosmos REST (LCD) gateway of a Noble node.
type Client struct {
	baseURL string
	http    HTTPClient
}

func NewClient(baseURL string, httpClient HTTPClient) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type Account struct {
	Address       string
	AccountNumber uint64
	Sequence      uint64
}

type baseAccount struct {
	Address       string `json:"address"`
	AccountNumber string `json:"account_number"`
	Sequence      string `json:"sequence"`
}

type accountResponse struct {
	Account struct {
		baseAccount
		BaseVestingAccount *struct {
			BaseAccount baseAccount `json:"base_account"`
		} `json:"base_vesting_account"`
	} `json:"account"`
}

type TxResponse struct {
	Height    string `json:"height"`
	TxHash    string `json:"txhash"`
	Code      uint32 `json:"code"`
	Codespace string `json:"codespace"`
	RawLog    string `json:"raw_log"`
}

type txEnvelope struct {
	TxResponse *TxResponse `json:"tx_response"`
}

// Account returns the account number and current sequence of address.
func (c *Client) Account(ctx context.Context, address string) (*Account, error) {
	var resp accountResponse
	status, err := c.do(ctx, http.MethodGet, "/cosmos/auth/v1beta1/accounts/"+url.PathEscape(address), nil, &resp)
	if status == http.StatusNotFound {
		return nil, &apperrors.NotFoundError{Resource: "noble account", Identifier: address}
	}
	if err != nil {
		return nil, &apperrors.NobleError{Operation: "query account", Err: err}
	}

	base := resp.Account.baseAccount
	if base.AccountNumber == "" && resp.Account.BaseVestingAccount != nil {
		base = resp.Account.BaseVestingAccount.BaseAccount
	}
	number, err := strconv.ParseUint(base.AccountNumber, 10, 64)
	if err != nil {
		return nil, &apperrors.NobleError{Operation: "query account", Err: fmt.Errorf("bad account_number %q", base.AccountNumber)}
	}
	sequence, err := strconv.ParseUint(base.Sequence, 10, 64)
	if err != nil {
		return nil, &apperrors.NobleError{Operation: "query account", Err: fmt.Errorf("bad sequence %q", base.Sequence)}
	}
	return &Account{Address: address, AccountNumber: number, Sequence: sequence}, nil
}

// Balance returns the spendable amount of denom held by address.
func (c *Client) Balance(ctx context.Context, address, denom string) (*big.Int, error) {
	var resp struct {
		Balance struct {
			Denom  string `json:"denom"`
			Amount string `json:"amount"`
		} `json:"balance"`
	}
	path := "/cosmos/bank/v1beta1/balances/" + url.PathEscape(address) + "/by_denom?denom=" + url.QueryEscape(denom)
	if _, err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, &apperrors.NobleError{Operation: "query balance", Err: err}
	}
	if resp.Balance.Amount == "" {
		return new(big.Int), nil
	}
	amount, ok := units.ParseInteger(resp.Balance.Amount)
	if !ok {
		return nil, &apperrors.NobleError{Operation: "query balance", Err: fmt.Errorf("bad amount %q", resp.Balance.Amount)}
	}
	return amount, nil
}

// Broadcast submits signed tx bytes in sync mode, which returns once the
// transaction passed CheckTx.
func (c *Client) Broadcast(ctx context.Context, txBytes []byte) (*TxResponse, error) {
	req := map[string]string{
		"tx_bytes": base64.StdEncoding.EncodeToString(txBytes),
		"mode":     "BROADCAST_MODE_SYNC",
	}
	var resp txEnvelope
	if _, err := c.do(ctx, http.MethodPost, "/cosmos/tx/v1beta1/txs", req, &resp); err != nil {
		return nil, &apperrors.NobleError{Operation: "broadcast", Err: err}
	}
	if resp.TxResponse == nil {
		return nil, &apperrors.NobleError{Operation: "broadcast", Err: errors.New("response has no tx_response")}
	}
	return resp.TxResponse, nil
}

// GetTx returns ErrTxNotFound while hash is not yet in a block.
func (c *Client) GetTx(ctx context.Context, hash string) (*TxResponse, error) {
	var resp txEnvelope
	status, err := c.do(ctx, http.MethodGet, "/cosmos/tx/v1beta1/txs/"+url.PathEscape(hash), nil, &resp)
	if status == http.StatusNotFound {
		return nil, ErrTxNotFound
	}
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, ErrTxNotFound
		}
		return nil, &apperrors.NobleError{Operation: "query tx", Err: err}
	}
	if resp.TxResponse == nil {
		return nil, ErrTxNotFound
	}
	return resp.TxResponse, nil
}

// do returns the HTTP status alongside any error so callers can special
// case 404.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) (int, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		var grpcErr struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(msg, &grpcErr) == nil && grpcErr.Message != "" {
			return resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, grpcErr.Message)
		}
		return resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}
