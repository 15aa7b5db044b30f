package signer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alfarkas/basic-contract-interaction/pkg/wallet/types"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func unsignedFor(t *testing.T, from string) *types.UnsignedTransaction {
	t.Helper()
	return &types.UnsignedTransaction{
		From:     from,
		To:       "0xd9E0b2C0724F3a01AaECe3C44F8023371f845196",
		Value:    "0",
		Nonce:    3,
		Gas:      210000,
		GasPrice: "30000000000",
		Data:     "0x65078a0c0000000000000000000000000000000000000000000000000000000000000001",
		ChainID:  80001,
	}
}

func TestLocalSignerProducesConsistentHash(t *testing.T) {
	s, err := NewLocalSignerFromHex("0x" + testKey)
	require.NoError(t, err)

	utx := unsignedFor(t, s.Address().Hex())
	signed, err := s.Sign(context.Background(), utx)
	require.NoError(t, err)

	tx, _, err := DecodeSigned(signed)
	require.NoError(t, err)
	assert.Equal(t, tx.Hash().Hex(), signed.Hash)
	assert.NotEmpty(t, signed.R)
	assert.NotEmpty(t, signed.S)
	assert.NotEmpty(t, signed.V)

	// 不同 nonce 得到不同哈希
	utx.Nonce++
	other, err := s.Sign(context.Background(), utx)
	require.NoError(t, err)
	assert.NotEqual(t, signed.Hash, other.Hash)
}

func TestLocalSignerRejectsForeignSender(t *testing.T) {
	s, err := NewLocalSignerFromHex(testKey)
	require.NoError(t, err)

	_, err = s.Sign(context.Background(), unsignedFor(t, "0x0000000000000000000000000000000000000001"))
	assert.ErrorIs(t, err, ErrSenderMismatch)
}

func TestParsePrivateKeyInvalid(t *testing.T) {
	_, err := ParsePrivateKey("not-a-key")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestToEthTxValidation(t *testing.T) {
	_, _, err := ToEthTx(nil)
	assert.ErrorIs(t, err, ErrEmptyTx)

	utx := unsignedFor(t, "")
	utx.GasPrice = "abc"
	_, _, err = ToEthTx(utx)
	assert.Error(t, err)

	utx = unsignedFor(t, "")
	utx.ChainID = 0
	_, _, err = ToEthTx(utx)
	assert.Error(t, err)
}

func TestRemoteSigner(t *testing.T) {
	key, err := ParsePrivateKey(testKey)
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey).Hex()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var utx types.UnsignedTransaction
		require.NoError(t, json.NewDecoder(r.Body).Decode(&utx))
		signed, err := SignWithKey(key, &utx)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(types.SignError{Error: err.Error()})
			return
		}
		_ = json.NewEncoder(w).Encode(signed)
	}))
	defer srv.Close()

	s := NewRemoteSigner(srv.URL, time.Second)
	signed, err := s.Sign(context.Background(), unsignedFor(t, from))
	require.NoError(t, err)
	assert.NotEmpty(t, signed.RawTransaction)

	// 签名服务返回的错误原样透出给调用方日志
	_, err = s.Sign(context.Background(), unsignedFor(t, "0x0000000000000000000000000000000000000001"))
	assert.ErrorContains(t, err, "signer rejected transaction")
}

func TestRemoteSignerRejectsTamperedResponse(t *testing.T) {
	key, err := ParsePrivateKey(testKey)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var utx types.UnsignedTransaction
		_ = json.NewDecoder(r.Body).Decode(&utx)
		utx.Nonce = 99
		utx.From = ""
		signed, _ := SignWithKey(key, &utx)
		_ = json.NewEncoder(w).Encode(signed)
	}))
	defer srv.Close()

	_, err = NewRemoteSigner(srv.URL, time.Second).Sign(context.Background(), unsignedFor(t, ""))
	assert.ErrorContains(t, err, "differs")
}

func TestRemoteSignerUnreachable(t *testing.T) {
	s := NewRemoteSigner("http://127.0.0.1:1", 200*time.Millisecond)
	_, err := s.Sign(context.Background(), unsignedFor(t, ""))
	assert.Error(t, err)
}
