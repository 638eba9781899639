package noble

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "github.com/SIMPLYBOYS/pay_usdc/internal/errors"
	"github.com/SIMPLYBOYS/pay_usdc/internal/settlement"
	"github.com/SIMPLYBOYS/pay_usdc/internal/types"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAddress(t *testing.T, seed byte) string {
	t.Helper()
	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = seed + byte(i)
	}
	addr, err := EncodeAddress(payload)
	require.NoError(t, err)
	return addr
}

func TestValidateAddress(t *testing.T) {
	valid := testAddress(t, 1)
	require.True(t, strings.HasPrefix(valid, "noble1"))

	conv, err := bech32.ConvertBits(make([]byte, 20), 8, 5, true)
	require.NoError(t, err)
	cosmos, err := bech32.Encode("cosmos", conv)
	require.NoError(t, err)

	short, err := bech32.ConvertBits(make([]byte, 8), 8, 5, true)
	require.NoError(t, err)
	shortAddr, err := bech32.Encode("noble", short)
	require.NoError(t, err)

	flipped := []byte(valid)
	last := flipped[len(flipped)-1]
	if last == 'q' {
		flipped[len(flipped)-1] = 'p'
	} else {
		flipped[len(flipped)-1] = 'q'
	}

	assert.NoError(t, ValidateAddress(valid))
	assert.Error(t, ValidateAddress(""))
	assert.Error(t, ValidateAddress(strings.ToUpper(valid)))
	assert.Error(t, ValidateAddress(cosmos), "wrong prefix")
	assert.Error(t, ValidateAddress(shortAddr), "wrong length")
	assert.Error(t, ValidateAddress(string(flipped)), "bad checksum")
	assert.Error(t, ValidateAddress("0x1234567890123456789012345678901234567890"))
}

// fakeLCD is a minimal Noble REST gateway.
type fakeLCD struct {
	mu          sync.Mutex
	sequence    uint64
	balance     string
	broadcasts  []map[string]string
	checkTxCode uint32
	pendingPoll map[string]int
	txCode      map[string]uint32
	// checkSequence makes broadcasts behave like a node: a tx signed for the
	// wrong sequence is rejected with code 32, an accepted one advances it.
	checkSequence bool
	// slowBroadcasts delays the reply (not the acceptance) of the first N
	// broadcasts by broadcastDelay.
	slowBroadcasts int
	broadcastDelay time.Duration
}

func newFakeLCD(t *testing.T, lcd *fakeLCD) *httptest.Server {
	if lcd.pendingPoll == nil {
		lcd.pendingPoll = map[string]int{}
	}
	if lcd.txCode == nil {
		lcd.txCode = map[string]uint32{}
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lcd.mu.Lock()
		defer lcd.mu.Unlock()

		switch {
		case strings.HasPrefix(r.URL.Path, "/cosmos/auth/v1beta1/accounts/"):
			fmt.Fprintf(w, `{"account":{"@type":"/cosmos.auth.v1beta1.BaseAccount","address":"x","account_number":"42","sequence":"%d"}}`, lcd.sequence)
		case strings.HasPrefix(r.URL.Path, "/cosmos/bank/v1beta1/balances/"):
			assert.Equal(t, "uusdc", r.URL.Query().Get("denom"))
			fmt.Fprintf(w, `{"balance":{"denom":"uusdc","amount":"%s"}}`, lcd.balance)
		case r.Method == http.MethodPost && r.URL.Path == "/cosmos/tx/v1beta1/txs":
			var req map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			lcd.broadcasts = append(lcd.broadcasts, req)
			hash := fmt.Sprintf("HASH%d", len(lcd.broadcasts))
			code, rawLog := lcd.checkTxCode, "check failed"
			if lcd.checkSequence {
				var signed uint64
				raw, _ := base64.StdEncoding.DecodeString(req["tx_bytes"])
				fmt.Sscanf(string(raw), "signed-%d", &signed)
				switch {
				case signed != lcd.sequence:
					code = 32
					rawLog = fmt.Sprintf("account sequence mismatch, expected %d, got %d", lcd.sequence, signed)
				case code == 0:
					lcd.sequence++
				}
			}
			if lcd.slowBroadcasts > 0 {
				lcd.slowBroadcasts--
				lcd.mu.Unlock()
				time.Sleep(lcd.broadcastDelay)
				lcd.mu.Lock()
			}
			fmt.Fprintf(w, `{"tx_response":{"height":"0","txhash":"%s","code":%d,"codespace":"sdk","raw_log":"%s"}}`, hash, code, rawLog)
		case strings.HasPrefix(r.URL.Path, "/cosmos/tx/v1beta1/txs/"):
			hash := strings.TrimPrefix(r.URL.Path, "/cosmos/tx/v1beta1/txs/")
			if lcd.pendingPoll[hash] > 0 {
				lcd.pendingPoll[hash]--
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprintf(w, `{"code":5,"message":"tx not found: %s"}`, hash)
				return
			}
			fmt.Fprintf(w, `{"tx_response":{"height":"1200","txhash":"%s","code":%d,"raw_log":"out of gas"}}`, hash, lcd.txCode[hash])
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type recordingSigner struct {
	mu       sync.Mutex
	requests []SignRequest
	err      error
}

func (s *recordingSigner) Sign(ctx context.Context, req SignRequest) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.requests = append(s.requests, req)
	return []byte(fmt.Sprintf("signed-%d", req.Sequence)), nil
}

func newTestTransferer(t *testing.T, srv *httptest.Server, signer Signer) *Transferer {
	tr, err := NewTransferer(NewClient(srv.URL, srv.Client()), signer, TransfererConfig{
		ChainID:      "noble-1",
		Denom:        "uusdc",
		FeeAmount:    "20000",
		GasLimit:     200000,
		PollInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	return tr
}

func TestSessionTransferAdvancesSequence(t *testing.T) {
	lcd := &fakeLCD{sequence: 7, balance: "5000000"}
	srv := newFakeLCD(t, lcd)
	signer := &recordingSigner{}
	tr := newTestTransferer(t, srv, signer)

	sender := testAddress(t, 1)
	alice := testAddress(t, 2)
	bob := testAddress(t, 3)

	session, err := tr.Open(context.Background(), sender)
	require.NoError(t, err)

	hash1, err := session.Transfer(context.Background(), settlement.Transfer{From: sender, To: alice, Amount: big.NewInt(1000000), Memo: "Alice"})
	require.NoError(t, err)
	require.NoError(t, session.Confirm(context.Background(), hash1))

	hash2, err := session.Transfer(context.Background(), settlement.Transfer{From: sender, To: bob, Amount: big.NewInt(2000000), Memo: "Bob"})
	require.NoError(t, err)

	assert.Equal(t, "HASH1", hash1)
	assert.Equal(t, "HASH2", hash2)

	require.Len(t, signer.requests, 2)
	first := signer.requests[0]
	assert.Equal(t, "noble-1", first.ChainID)
	assert.Equal(t, uint64(42), first.AccountNumber)
	assert.Equal(t, uint64(7), first.Sequence)
	assert.Equal(t, alice, first.ToAddress)
	assert.Equal(t, []Coin{{Denom: "uusdc", Amount: "1000000"}}, first.Amount)
	assert.Equal(t, []Coin{{Denom: "uusdc", Amount: "20000"}}, first.Fee)
	assert.Equal(t, "Alice", first.Memo)
	assert.Equal(t, uint64(8), signer.requests[1].Sequence)

	require.Len(t, lcd.broadcasts, 2)
	assert.Equal(t, "BROADCAST_MODE_SYNC", lcd.broadcasts[0]["mode"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("signed-7")), lcd.broadcasts[0]["tx_bytes"])
}

func TestSessionRejectsInsufficientFunds(t *testing.T) {
	lcd := &fakeLCD{sequence: 1, balance: "2030000"}
	srv := newFakeLCD(t, lcd)
	tr := newTestTransferer(t, srv, &recordingSigner{})
	sender := testAddress(t, 1)

	session, err := tr.Open(context.Background(), sender)
	require.NoError(t, err)

	_, err = session.Transfer(context.Background(), settlement.Transfer{From: sender, To: testAddress(t, 2), Amount: big.NewInt(1000000)})
	require.NoError(t, err)

	_, err = session.Transfer(context.Background(), settlement.Transfer{From: sender, To: testAddress(t, 3), Amount: big.NewInt(1000000)})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Len(t, lcd.broadcasts, 1)
}

func TestSessionCheckTxFailureKeepsSequence(t *testing.T) {
	lcd := &fakeLCD{sequence: 3, balance: "9000000", checkTxCode: 13}
	srv := newFakeLCD(t, lcd)
	signer := &recordingSigner{}
	tr := newTestTransferer(t, srv, signer)
	sender := testAddress(t, 1)

	session, err := tr.Open(context.Background(), sender)
	require.NoError(t, err)

	_, err = session.Transfer(context.Background(), settlement.Transfer{From: sender, To: testAddress(t, 2), Amount: big.NewInt(1)})
	assert.ErrorContains(t, err, "rejected by node")

	lcd.mu.Lock()
	lcd.checkTxCode = 0
	lcd.mu.Unlock()

	_, err = session.Transfer(context.Background(), settlement.Transfer{From: sender, To: testAddress(t, 2), Amount: big.NewInt(1)})
	require.NoError(t, err)
	require.Len(t, signer.requests, 2)
	assert.Equal(t, uint64(3), signer.requests[1].Sequence)
}

func TestSessionResyncsAfterSequenceMismatch(t *testing.T) {
	lcd := &fakeLCD{sequence: 3, balance: "9000000", checkSequence: true}
	srv := newFakeLCD(t, lcd)
	signer := &recordingSigner{}
	tr := newTestTransferer(t, srv, signer)
	sender := testAddress(t, 1)

	session, err := tr.Open(context.Background(), sender)
	require.NoError(t, err)

	// Another wallet session spends two sequences behind our back.
	lcd.mu.Lock()
	lcd.sequence = 5
	lcd.mu.Unlock()

	_, err = session.Transfer(context.Background(), settlement.Transfer{From: sender, To: testAddress(t, 2), Amount: big.NewInt(1)})
	assert.ErrorContains(t, err, "code 32")

	_, err = session.Transfer(context.Background(), settlement.Transfer{From: sender, To: testAddress(t, 3), Amount: big.NewInt(1)})
	require.NoError(t, err)
	require.Len(t, signer.requests, 2)
	assert.Equal(t, uint64(3), signer.requests[0].Sequence)
	assert.Equal(t, uint64(5), signer.requests[1].Sequence)
}

func TestSendBatchSurvivesBroadcastTimeout(t *testing.T) {
	lcd := &fakeLCD{
		sequence:       5,
		balance:        "100000000",
		checkSequence:  true,
		slowBroadcasts: 1,
		broadcastDelay: 300 * time.Millisecond,
	}
	srv := newFakeLCD(t, lcd)
	signer := &recordingSigner{}
	tr := newTestTransferer(t, srv, signer)
	sender := settlement.NewSender(tr, 100*time.Millisecond)

	from := testAddress(t, 1)
	recipients := []types.RecipientEntry{
		{Address: testAddress(t, 2), Amount: "1"},
		{Address: testAddress(t, 3), Amount: "1"},
		{Address: testAddress(t, 4), Amount: "1"},
		{Address: testAddress(t, 5), Amount: "1"},
	}

	results := sender.SendBatch(context.Background(), from, recipients, settlement.BatchOptions{})

	require.Len(t, results, 4)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "deadline exceeded")
	for i, r := range results[1:] {
		assert.True(t, r.Success, "recipient %d: %s", i+2, r.Error)
	}

	require.Len(t, signer.requests, 4)
	assert.Equal(t, uint64(5), signer.requests[0].Sequence)
	assert.Equal(t, uint64(6), signer.requests[1].Sequence)
	assert.Equal(t, uint64(7), signer.requests[2].Sequence)
	assert.Equal(t, uint64(8), signer.requests[3].Sequence)
}

func TestSessionSignerFailure(t *testing.T) {
	lcd := &fakeLCD{sequence: 0, balance: "9000000"}
	srv := newFakeLCD(t, lcd)
	tr := newTestTransferer(t, srv, &recordingSigner{err: errors.New("user rejected request")})
	sender := testAddress(t, 1)

	session, err := tr.Open(context.Background(), sender)
	require.NoError(t, err)

	_, err = session.Transfer(context.Background(), settlement.Transfer{From: sender, To: testAddress(t, 2), Amount: big.NewInt(5)})
	assert.ErrorContains(t, err, "user rejected request")
	assert.Empty(t, lcd.broadcasts)
}

func TestSessionConfirm(t *testing.T) {
	lcd := &fakeLCD{
		balance:     "1",
		pendingPoll: map[string]int{"SLOW": 3, "NEVER": 1 << 30},
		txCode:      map[string]uint32{"FAILED": 11},
	}
	srv := newFakeLCD(t, lcd)
	tr := newTestTransferer(t, srv, &recordingSigner{})
	s := &session{t: tr}

	assert.NoError(t, s.Confirm(context.Background(), "SLOW"))
	assert.ErrorContains(t, s.Confirm(context.Background(), "FAILED"), "out of gas")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := s.Confirm(ctx, "NEVER")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOpenUnknownAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":5,"message":"account not found"}`))
	}))
	defer srv.Close()

	tr := newTestTransferer(t, srv, &recordingSigner{})
	_, err := tr.Open(context.Background(), testAddress(t, 1))

	var notFound *apperrors.NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestAccountVesting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"account":{"@type":"/cosmos.vesting.v1beta1.ContinuousVestingAccount",
			"base_vesting_account":{"base_account":{"address":"noble1x","account_number":"9","sequence":"15"}}}}`))
	}))
	defer srv.Close()

	acct, err := NewClient(srv.URL, srv.Client()).Account(context.Background(), "noble1x")
	require.NoError(t, err)
	assert.Equal(t, uint64(9), acct.AccountNumber)
	assert.Equal(t, uint64(15), acct.Sequence)
}

func TestRemoteSigner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req SignRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Memo == "refuse" {
			http.Error(w, "denied", http.StatusForbidden)
			return
		}
		assert.Equal(t, uint64(4), req.Sequence)
		fmt.Fprintf(w, `{"tx_bytes":"%s"}`, base64.StdEncoding.EncodeToString([]byte("raw-tx")))
	}))
	defer srv.Close()

	signer := NewRemoteSigner(srv.URL, srv.Client())

	tx, err := signer.Sign(context.Background(), SignRequest{Sequence: 4})
	require.NoError(t, err)
	assert.Equal(t, []byte("raw-tx"), tx)

	_, err = signer.Sign(context.Background(), SignRequest{Sequence: 4, Memo: "refuse"})
	var nobleErr *apperrors.NobleError
	require.True(t, errors.As(err, &nobleErr))
	assert.Contains(t, err.Error(), "403")
}
