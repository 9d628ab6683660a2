package wallet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKey(t *testing.T) (string, ed25519.PublicKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return base58.Encode(priv), pub
}

// rpcHandler dispatches canned responses per JSON-RPC method.
func rpcHandler(t *testing.T, responses map[string]string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		body, ok := responses[req.Method]
		if !ok {
			t.Errorf("unexpected RPC method %q", req.Method)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(body))
	}
}

func newTestWallet(t *testing.T, url string) *Wallet {
	t.Helper()
	key, _ := newTestKey(t)
	w, err := NewWallet(WalletConfig{
		RPCURL:       url,
		PrivateKey:   key,
		Timeout:      2 * time.Second,
		RetryBackoff: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	return w
}

func TestParsePrivateKey_Base58(t *testing.T) {
	key, pub := newTestKey(t)

	priv, err := parsePrivateKey(key)
	require.NoError(t, err)
	assert.Equal(t, base58.Encode(pub), priv.PublicKey().String())
}

func TestParsePrivateKey_JSONArray(t *testing.T) {
	key, pub := newTestKey(t)
	raw, err := base58.Decode(key)
	require.NoError(t, err)

	jsonKey, err := json.Marshal(raw)
	require.NoError(t, err)

	priv, err := parsePrivateKey(string(jsonKey))
	require.NoError(t, err)
	assert.Equal(t, base58.Encode(pub), priv.PublicKey().String())
}

func TestParsePrivateKey_Invalid(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"bad base58", "0OIl"},
		{"wrong length", base58.Encode([]byte{1, 2, 3})},
		{"bad json", "[1,2,"},
		{"byte out of range", "[300,1,2]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parsePrivateKey(tc.in)
			assert.Error(t, err)
		})
	}
}

func TestNewWallet_Validation(t *testing.T) {
	key, _ := newTestKey(t)

	_, err := NewWallet(WalletConfig{PrivateKey: key})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RPCURL")

	_, err = NewWallet(WalletConfig{RPCURL: "http://localhost:8899"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PrivateKey")
}

func TestSignTx(t *testing.T) {
	w := newTestWallet(t, "http://localhost:8899")

	ix := solana.NewInstruction(
		solana.SystemProgramID,
		[]*solana.AccountMeta{
			{PublicKey: w.PublicKey(), IsSigner: true, IsWritable: true},
		},
		[]byte{1, 2, 3},
	)
	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		solana.Hash{},
		solana.TransactionPayer(w.PublicKey()),
	)
	require.NoError(t, err)

	require.NoError(t, w.SignTx(tx))
	require.Len(t, tx.Signatures, 1)
	assert.NotEqual(t, solana.Signature{}, tx.Signatures[0])
}

func TestSendTx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "sendTransaction", req.Method)
		require.Len(t, req.Params, 2)
		assert.Contains(t, string(req.Params[1]), `"base64"`)
		assert.Contains(t, string(req.Params[1]), `"preflightCommitment":"processed"`)

		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"5TxSignature"}`))
	}))
	defer server.Close()

	w := newTestWallet(t, server.URL)

	ix := solana.NewInstruction(
		solana.SystemProgramID,
		[]*solana.AccountMeta{
			{PublicKey: w.PublicKey(), IsSigner: true, IsWritable: true},
		},
		nil,
	)
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{}, solana.TransactionPayer(w.PublicKey()))
	require.NoError(t, err)
	require.NoError(t, w.SignTx(tx))

	sig, err := w.SendTx(context.Background(), tx, nil)
	require.NoError(t, err)
	assert.Equal(t, "5TxSignature", sig)
}

func TestSimulateTransaction(t *testing.T) {
	server := httptest.NewServer(rpcHandler(t, map[string]string{
		"simulateTransaction": `{"jsonrpc":"2.0","id":1,"result":{"value":{"err":null,"logs":["Program log: ok"],"unitsConsumed":1200}}}`,
	}))
	defer server.Close()

	w := newTestWallet(t, server.URL)

	ix := solana.NewInstruction(
		solana.SystemProgramID,
		[]*solana.AccountMeta{
			{PublicKey: w.PublicKey(), IsSigner: true, IsWritable: true},
		},
		nil,
	)
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{}, solana.TransactionPayer(w.PublicKey()))
	require.NoError(t, err)
	require.NoError(t, w.SignTx(tx))

	result, err := w.SimulateTransaction(context.Background(), tx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, uint64(1200), result.UnitsConsumed)
	assert.Contains(t, result.Logs, "Program log: ok")
}

func TestSimulateTransaction_ProgramError(t *testing.T) {
	server := httptest.NewServer(rpcHandler(t, map[string]string{
		"simulateTransaction": `{"jsonrpc":"2.0","id":1,"result":{"value":{"err":{"InstructionError":[0,"Custom"]},"logs":["Program log: failed"]}}}`,
	}))
	defer server.Close()

	w := newTestWallet(t, server.URL)

	ix := solana.NewInstruction(
		solana.SystemProgramID,
		[]*solana.AccountMeta{
			{PublicKey: w.PublicKey(), IsSigner: true, IsWritable: true},
		},
		nil,
	)
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{}, solana.TransactionPayer(w.PublicKey()))
	require.NoError(t, err)
	require.NoError(t, w.SignTx(tx))

	result, err := w.SimulateTransaction(context.Background(), tx)
	require.Error(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "InstructionError")
}

func TestGetLatestBlockhash(t *testing.T) {
	server := httptest.NewServer(rpcHandler(t, map[string]string{
		"getLatestBlockhash": `{"jsonrpc":"2.0","id":1,"result":{"value":{"blockhash":"11111111111111111111111111111111","lastValidBlockHeight":1000}}}`,
	}))
	defer server.Close()

	w := newTestWallet(t, server.URL)
	hash, err := w.GetLatestBlockhash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, solana.Hash{}, hash) // all-ones base58 decodes to 32 zero bytes
}

func TestConfirmTransaction(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"value":[null]}}`))
			return
		}
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"value":[{"slot":4242,"confirmations":5,"err":null,"confirmationStatus":"confirmed"}]}}`))
	}))
	defer server.Close()

	w := newTestWallet(t, server.URL)
	slot, err := w.ConfirmTransaction(context.Background(), "5Sig", "confirmed", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint64(4242), slot)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}

func TestConfirmTransaction_OnChainFailure(t *testing.T) {
	server := httptest.NewServer(rpcHandler(t, map[string]string{
		"getSignatureStatuses": `{"jsonrpc":"2.0","id":1,"result":{"value":[{"slot":4242,"confirmations":null,"err":{"InstructionError":[0,"Custom"]},"confirmationStatus":"confirmed"}]}}`,
	}))
	defer server.Close()

	w := newTestWallet(t, server.URL)
	_, err := w.ConfirmTransaction(context.Background(), "5Sig", "confirmed", 5*time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transaction failed")
}

func TestGetTokenBalance(t *testing.T) {
	server := httptest.NewServer(rpcHandler(t, map[string]string{
		"getTokenAccountBalance": `{"jsonrpc":"2.0","id":1,"result":{"value":{"amount":"1500000","decimals":6,"uiAmountString":"1.5"}}}`,
	}))
	defer server.Close()

	w := newTestWallet(t, server.URL)
	amount, decimals, err := w.GetTokenBalance(context.Background(), solana.SystemProgramID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000), amount)
	assert.Equal(t, uint8(6), decimals)
}

func TestGetTokenBalance_MissingAccount(t *testing.T) {
	server := httptest.NewServer(rpcHandler(t, map[string]string{
		"getTokenAccountBalance": `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"Invalid param: could not find account"}}`,
	}))
	defer server.Close()

	w := newTestWallet(t, server.URL)
	amount, decimals, err := w.GetTokenBalance(context.Background(), solana.SystemProgramID)
	require.NoError(t, err)
	assert.Zero(t, amount)
	assert.Zero(t, decimals)
}

func TestAccountExists(t *testing.T) {
	for _, tc := range []struct {
		name   string
		value  string
		exists bool
	}{
		{"present", `{"lamports":2039280,"owner":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"}`, true},
		{"missing", "null", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(rpcHandler(t, map[string]string{
				"getAccountInfo": fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"result":{"value":%s}}`, tc.value),
			}))
			defer server.Close()

			w := newTestWallet(t, server.URL)
			exists, err := w.AccountExists(context.Background(), solana.SystemProgramID)
			require.NoError(t, err)
			assert.Equal(t, tc.exists, exists)
		})
	}
}
