package noble

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/SIMPLYBOYS/pay_usdc/internal/errors"
)

type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// SignRequest describes a single bank MsgSend together with the auth info
// needed to sign it.
type SignRequest struct {
	ChainID       string `json:"chain_id"`
	AccountNumber uint64 `json:"account_number,string"`
	Sequence      uint64 `json:"sequence,string"`
	FromAddress   string `json:"from_address"`
	ToAddress     string `json:"to_address"`
	Amount        []Coin `json:"amount"`
	Fee           []Coin `json:"fee"`
	GasLimit      uint64 `json:"gas_limit,string"`
	Memo          string `json:"memo"`
}

// Signer turns a SignRequest into broadcastable tx bytes. Keys never reach
// this service; a wallet session or custody signer holds them.
type Signer interface {
	Sign(ctx context.Context, req SignRequest) ([]byte, error)
}

// RemoteSigner posts sign requests to an external signing endpoint, which
// answers {"tx_bytes": "<base64>"}.
type RemoteSigner struct {
	url    string
	client HTTPClient
}

func NewRemoteSigner(url string, client HTTPClient) *RemoteSigner {
	if client == nil {
		client = &http.Client{}
	}
	return &RemoteSigner{url: url, client: client}
}

func (s *RemoteSigner) Sign(ctx context.Context, signReq SignRequest) ([]byte, error) {
	body, err := json.Marshal(signReq)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, &apperrors.NobleError{Operation: "sign", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &apperrors.NobleError{Operation: "sign", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &apperrors.NobleError{
			Operation: "sign",
			Err:       fmt.Errorf("signer returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
		}
	}

	var out struct {
		TxBytes string `json:"tx_bytes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &apperrors.NobleError{Operation: "sign", Err: fmt.Errorf("decode response: %w", err)}
	}
	txBytes, err := base64.StdEncoding.DecodeString(out.TxBytes)
	if err != nil || len(txBytes) == 0 {
		return nil, &apperrors.NobleError{Operation: "sign", Err: fmt.Errorf("signer returned no tx bytes")}
	}
	return txBytes, nil
}
