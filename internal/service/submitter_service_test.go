package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alfarkas/basic-contract-interaction/internal/ledger/ledgertest"
	"github.com/alfarkas/basic-contract-interaction/internal/model"
	"github.com/alfarkas/basic-contract-interaction/internal/service/signer"
	"github.com/alfarkas/basic-contract-interaction/pkg/errno"
	"github.com/alfarkas/basic-contract-interaction/pkg/utils/lock"
	"github.com/alfarkas/basic-contract-interaction/pkg/wallet/types"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRecorder struct {
	mu   sync.Mutex
	subs map[string]*model.Submission
}

func (r *memoryRecorder) Record(ctx context.Context, s *model.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subs == nil {
		r.subs = make(map[string]*model.Submission)
	}
	r.subs[s.TxHash] = s
	return nil
}

func (r *memoryRecorder) FindByHash(ctx context.Context, hash string) (*model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.subs[hash]; ok {
		return s, nil
	}
	return nil, ErrSubmissionNotFound
}

type failingSigner struct{}

func (failingSigner) Sign(ctx context.Context, utx *types.UnsignedTransaction) (*types.SignedTransaction, error) {
	return nil, errors.New("signer unreachable")
}

func (failingSigner) Mode() string { return signer.ModeRemote }

func newSubmitter(t *testing.T, opts ...SubmitterOption) (*SubmitterService, *ledgertest.Ledger, *ledgertest.Account) {
	t.Helper()
	l := ledgertest.New(1337)
	acc, err := ledgertest.NewAccount()
	require.NoError(t, err)
	return NewSubmitterService(l, signer.NewLocalSigner(acc.Key), opts...), l, acc
}

func TestSubmitRejectsMalformedSender(t *testing.T) {
	s, l, _ := newSubmitter(t)

	for _, from := range []string{"0", "", "0x123", "not-an-address"} {
		_, err := s.Submit(context.Background(), model.CreateProduct{Name: "x"}, from, nil)
		assert.ErrorIs(t, err, errno.ErrInvalidAddress, from)
	}
	assert.Zero(t, l.TotalCalls())
}

func TestSubmitRejectsMalformedNewOwner(t *testing.T) {
	s, l, acc := newSubmitter(t)

	_, err := s.Submit(context.Background(), model.DelegateProduct{ProductID: 0, NewOwner: "0"}, acc.Address.Hex(), nil)
	require.Error(t, err)
	assert.Equal(t, "Invalid address", err.Error())
	assert.Zero(t, l.TotalCalls())
}

func TestSubmitCreateCapEnforcedByLedger(t *testing.T) {
	s, l, acc := newSubmitter(t)

	hashes := make(map[string]struct{})
	for i := 0; i < 12; i++ {
		hash, err := s.Submit(context.Background(), model.CreateProduct{Name: "p"}, acc.Address.Hex(), nil)
		require.NoError(t, err)
		hashes[hash.Hex()] = struct{}{}
	}
	// 每次 nonce 不同, 哈希各不相同; 第 12 笔被合约拒绝
	assert.Len(t, hashes, 12)
	assert.Equal(t, model.MaxProductsPerOwner, l.ProductCount())
}

func TestSubmitBroadcastFailureIsCoarse(t *testing.T) {
	s, l, acc := newSubmitter(t)
	l.SetError("BroadcastRawTransaction", errors.New("insufficient funds for gas * price + value"))

	_, err := s.Submit(context.Background(), model.CreateProduct{Name: "x"}, acc.Address.Hex(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errno.ErrSubmissionFailed)
	assert.Equal(t, "Something went wrong, try again.", err.Error())
}

func TestSubmitSignerFailure(t *testing.T) {
	s, l, acc := newSubmitter(t)

	_, err := s.Submit(context.Background(), model.CreateProduct{Name: "x"}, acc.Address.Hex(), failingSigner{})
	assert.ErrorIs(t, err, errno.ErrSubmissionFailed)
	assert.Zero(t, l.Calls("BroadcastRawTransaction"))
}

func TestSubmitWrongKeyForSender(t *testing.T) {
	s, l, _ := newSubmitter(t)
	other, err := ledgertest.NewAccount()
	require.NoError(t, err)

	// 私钥属于默认签名账户, 发送地址是另一个账户
	_, err = s.Submit(context.Background(), model.CreateProduct{Name: "x"}, other.Address.Hex(), nil)
	assert.ErrorIs(t, err, errno.ErrSubmissionFailed)
	assert.Zero(t, l.Calls("BroadcastRawTransaction"))
}

func TestSubmitNodeErrorBeforeBroadcast(t *testing.T) {
	s, l, acc := newSubmitter(t)
	l.SetError("GasPrice", errors.New("connection refused"))

	_, err := s.Submit(context.Background(), model.CreateProduct{Name: "x"}, acc.Address.Hex(), nil)
	assert.ErrorIs(t, err, errno.ErrSubmissionFailed)
}

func TestSubmitRecordsSubmission(t *testing.T) {
	rec := &memoryRecorder{}
	s, _, acc := newSubmitter(t, WithRecorder(rec))
	bob, err := ledgertest.NewAccount()
	require.NoError(t, err)

	_, err = s.Submit(context.Background(), model.CreateProduct{Name: "x"}, acc.Address.Hex(), nil)
	require.NoError(t, err)
	hash, err := s.Submit(context.Background(), model.DelegateProduct{ProductID: 0, NewOwner: bob.Address.Hex()}, acc.Address.Hex(), nil)
	require.NoError(t, err)

	sub, err := rec.FindByHash(context.Background(), hash.Hex())
	require.NoError(t, err)
	assert.Equal(t, model.MethodDelegateProduct, sub.Method)
	require.NotNil(t, sub.ProductID)
	assert.Equal(t, uint64(0), *sub.ProductID)
	assert.Equal(t, bob.Address.Hex(), sub.NewOwner)
	assert.Equal(t, uint64(1), sub.Nonce)
	assert.Equal(t, uint64(DefaultGasLimit), sub.GasLimit)
	assert.Equal(t, signer.ModeLocal, sub.SignerMode)
}

func TestSubmitSenderLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	dl := lock.NewRedisLock(client)

	s, _, acc := newSubmitter(t, WithSenderLock(dl, time.Minute))

	// 锁被占用时拒绝提交
	token, ok, err := dl.Acquire(context.Background(), "nonce:"+acc.Address.Hex(), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = s.Submit(context.Background(), model.CreateProduct{Name: "x"}, acc.Address.Hex(), nil)
	assert.ErrorIs(t, err, errno.ErrSubmissionFailed)

	require.NoError(t, dl.Release(context.Background(), "nonce:"+acc.Address.Hex(), token))
	_, err = s.Submit(context.Background(), model.CreateProduct{Name: "x"}, acc.Address.Hex(), nil)
	require.NoError(t, err)

	// 成功后锁已释放
	_, err = s.Submit(context.Background(), model.CreateProduct{Name: "y"}, acc.Address.Hex(), nil)
	require.NoError(t, err)
}

func TestBuildUsesFixedGasAndFreshNonce(t *testing.T) {
	s, l, acc := newSubmitter(t)

	utx, err := s.Build(context.Background(), model.AcceptProduct{ProductID: 3}, acc.Address.Hex())
	require.NoError(t, err)
	assert.Equal(t, uint64(210000), utx.Gas)
	assert.Equal(t, uint64(0), utx.Nonce)
	assert.Equal(t, int64(1337), utx.ChainID)
	assert.Equal(t, l.ContractAddress().Hex(), utx.To)

	_, err = s.Submit(context.Background(), model.CreateProduct{Name: "x"}, acc.Address.Hex(), nil)
	require.NoError(t, err)
	utx, err = s.Build(context.Background(), model.AcceptProduct{ProductID: 3}, acc.Address.Hex())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), utx.Nonce)
}

func TestBroadcastSignedOffline(t *testing.T) {
	s, l, acc := newSubmitter(t)

	utx, err := s.Build(context.Background(), model.CreateProduct{Name: "offline"}, acc.Address.Hex())
	require.NoError(t, err)
	signed, err := signer.SignWithKey(acc.Key, utx)
	require.NoError(t, err)

	hash, err := s.BroadcastSigned(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, signed.Hash, hash.Hex())
	assert.Equal(t, 1, l.ProductCount())
}
