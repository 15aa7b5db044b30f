package ledgertest

import (
	"context"
	"math/big"
	"testing"

	"github.com/alfarkas/basic-contract-interaction/internal/ledger"
	"github.com/alfarkas/basic-contract-interaction/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func send(t *testing.T, l *Ledger, acc *Account, op model.Operation) (common.Hash, *types.Receipt) {
	t.Helper()
	ctx := context.Background()

	nonce, err := l.PendingNonce(ctx, acc.Address)
	require.NoError(t, err)
	price, err := l.GasPrice(ctx)
	require.NoError(t, err)
	tx, err := l.BuildContractCall(op.Method(), ledger.TxParams{Nonce: nonce, GasPrice: price, GasLimit: 210000}, op.Args()...)
	require.NoError(t, err)
	id, err := l.ChainID(ctx)
	require.NoError(t, err)
	raw, err := acc.SignRaw(tx, id)
	require.NoError(t, err)

	hash, err := l.BroadcastRawTransaction(ctx, raw)
	require.NoError(t, err)
	receipt, err := l.TransactionReceipt(ctx, hash)
	require.NoError(t, err)
	return hash, receipt
}

func TestDelegateAndAcceptFlow(t *testing.T) {
	l := New(1337)
	alice, err := NewAccount()
	require.NoError(t, err)
	bob, err := NewAccount()
	require.NoError(t, err)
	ctx := context.Background()

	_, r := send(t, l, alice, model.CreateProduct{Name: "chair"})
	assert.Equal(t, types.ReceiptStatusSuccessful, r.Status)

	// 非 owner 不能转交
	_, r = send(t, l, bob, model.DelegateProduct{ProductID: 0, NewOwner: bob.Address.Hex()})
	assert.Equal(t, types.ReceiptStatusFailed, r.Status)

	_, r = send(t, l, alice, model.DelegateProduct{ProductID: 0, NewOwner: bob.Address.Hex()})
	assert.Equal(t, types.ReceiptStatusSuccessful, r.Status)

	out, err := l.CallContract(ctx, "products", big.NewInt(0))
	require.NoError(t, err)
	assert.Equal(t, uint8(model.StatusDelegated), out[1])
	assert.Equal(t, bob.Address, out[3])

	_, r = send(t, l, bob, model.AcceptProduct{ProductID: 0})
	assert.Equal(t, types.ReceiptStatusSuccessful, r.Status)

	out, err = l.CallContract(ctx, "products", big.NewInt(0))
	require.NoError(t, err)
	assert.Equal(t, uint8(model.StatusOwned), out[1])
	assert.Equal(t, bob.Address, out[2])
	assert.Equal(t, common.Address{}, out[3])

	events, err := l.FilterEvents(ctx, model.EventDelegated, 0, l.height)
	require.NoError(t, err)
	require.Len(t, events, 1)
	owner, _ := events[0].NewOwner()
	assert.Equal(t, bob.Address, owner)
}

func TestCreateCapPerOwner(t *testing.T) {
	l := New(1337)
	alice, err := NewAccount()
	require.NoError(t, err)

	for i := 0; i < model.MaxProductsPerOwner+1; i++ {
		send(t, l, alice, model.CreateProduct{Name: "p"})
	}
	assert.Equal(t, model.MaxProductsPerOwner, l.ProductCount())
}

func TestRejectsStaleNonce(t *testing.T) {
	l := New(1337)
	alice, err := NewAccount()
	require.NoError(t, err)
	send(t, l, alice, model.CreateProduct{Name: "a"})

	tx, err := l.BuildContractCall(model.MethodCreateProduct, ledger.TxParams{Nonce: 0, GasPrice: big.NewInt(1), GasLimit: 210000}, "b")
	require.NoError(t, err)
	raw, err := alice.SignRaw(tx, big.NewInt(1337))
	require.NoError(t, err)

	_, err = l.BroadcastRawTransaction(context.Background(), raw)
	assert.ErrorIs(t, err, ErrNonceTooLow)
}

func TestProductsOutOfRangeReverts(t *testing.T) {
	l := New(1337)
	_, err := l.CallContract(context.Background(), "products", big.NewInt(3))
	assert.ErrorIs(t, err, ledger.ErrContractReverted)
}

func TestPollNewEventsAdvancesCursor(t *testing.T) {
	l := New(1337)
	alice, err := NewAccount()
	require.NoError(t, err)
	ctx := context.Background()

	start, err := l.BlockHeight(ctx)
	require.NoError(t, err)
	send(t, l, alice, model.CreateProduct{Name: "a"})
	send(t, l, alice, model.CreateProduct{Name: "b"})

	events, cursor, err := l.PollNewEvents(ctx, model.EventCreated, start)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, start+2, cursor)

	events, cursor2, err := l.PollNewEvents(ctx, model.EventCreated, cursor)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, cursor, cursor2)
}
