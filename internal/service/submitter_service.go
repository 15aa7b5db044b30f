package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/alfarkas/basic-contract-interaction/internal/ledger"
	"github.com/alfarkas/basic-contract-interaction/internal/model"
	"github.com/alfarkas/basic-contract-interaction/internal/service/signer"
	"github.com/alfarkas/basic-contract-interaction/pkg/address"
	"github.com/alfarkas/basic-contract-interaction/pkg/errno"
	"github.com/alfarkas/basic-contract-interaction/pkg/logger"
	"github.com/alfarkas/basic-contract-interaction/pkg/monitor"
	"github.com/alfarkas/basic-contract-interaction/pkg/units"
	"github.com/alfarkas/basic-contract-interaction/pkg/utils/lock"
	"github.com/alfarkas/basic-contract-interaction/pkg/wallet/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultGasLimit = 210000

var errSenderBusy = errors.New("another submission from this sender is in progress")

// SubmitterService 构建, 签名并广播合约调用. 每次调用同步执行, 不重试
type SubmitterService struct {
	client   ledger.Client
	signer   signer.Signer
	gasLimit uint64

	chainMu sync.Mutex
	chainID *big.Int

	lock     lock.DistributedLock
	lockTTL  time.Duration
	recorder SubmissionRecorder
}

type SubmitterOption func(*SubmitterService)

// WithChainID 使用配置的链 ID, 不向节点查询
func WithChainID(id int64) SubmitterOption {
	return func(s *SubmitterService) {
		if id > 0 {
			s.chainID = big.NewInt(id)
		}
	}
}

func WithGasLimit(limit uint64) SubmitterOption {
	return func(s *SubmitterService) {
		if limit > 0 {
			s.gasLimit = limit
		}
	}
}

// WithSenderLock 同一发送地址的提交串行执行, 避免并发取到相同 nonce
func WithSenderLock(l lock.DistributedLock, ttl time.Duration) SubmitterOption {
	return func(s *SubmitterService) {
		s.lock = l
		s.lockTTL = ttl
	}
}

// WithRecorder 广播成功后记录提交信息
func WithRecorder(r SubmissionRecorder) SubmitterOption {
	return func(s *SubmitterService) {
		s.recorder = r
	}
}

// NewSubmitterService defaultSigner 用于请求未携带私钥的提交
func NewSubmitterService(client ledger.Client, defaultSigner signer.Signer, opts ...SubmitterOption) *SubmitterService {
	s := &SubmitterService{
		client:   client,
		signer:   defaultSigner,
		gasLimit: DefaultGasLimit,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *SubmitterService) ChainID(ctx context.Context) (*big.Int, error) {
	s.chainMu.Lock()
	defer s.chainMu.Unlock()
	if s.chainID != nil {
		return new(big.Int).Set(s.chainID), nil
	}
	id, err := s.client.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	s.chainID = id
	return new(big.Int).Set(id), nil
}

// Build 组装未签名交易, nonce 与 gas price 每次实时查询
func (s *SubmitterService) Build(ctx context.Context, op model.Operation, from string) (*types.UnsignedTransaction, error) {
	sender, err := checkAddresses(op, from)
	if err != nil {
		return nil, err
	}
	utx, err := s.build(ctx, op, sender)
	if err != nil {
		logger.Error("构建交易失败", zap.String("method", op.Method()), zap.String("from", from), zap.Error(err))
		return nil, errno.ErrNodeUnavailable
	}
	return utx, nil
}

func (s *SubmitterService) build(ctx context.Context, op model.Operation, from common.Address) (*types.UnsignedTransaction, error) {
	nonce, err := s.client.PendingNonce(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}
	gasPrice, err := s.client.GasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get gas price: %w", err)
	}
	chainID, err := s.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}

	tx, err := s.client.BuildContractCall(op.Method(), ledger.TxParams{
		Nonce:    nonce,
		GasPrice: gasPrice,
		GasLimit: s.gasLimit,
	}, op.Args()...)
	if err != nil {
		return nil, err
	}
	return signer.FromEthTx(tx, from, chainID), nil
}

// Submit 地址非法时直接返回 ErrInvalidAddress 且不访问节点, 其余失败统一返回 ErrSubmissionFailed
func (s *SubmitterService) Submit(ctx context.Context, op model.Operation, from string, sg signer.Signer) (common.Hash, error) {
	started := time.Now()
	method := op.Method()

	// 1. 校验地址
	sender, err := checkAddresses(op, from)
	if err != nil {
		monitor.Business.SubmissionsTotal.WithLabelValues(method, "invalid_address").Inc()
		return common.Hash{}, err
	}
	if sg == nil {
		sg = s.signer
	}

	hash, err := s.submit(ctx, op, sender, sg)
	monitor.Business.SubmissionDuration.WithLabelValues(method).Observe(time.Since(started).Seconds())
	if err != nil {
		monitor.Business.SubmissionsTotal.WithLabelValues(method, "failed").Inc()
		logger.Error("提交交易失败",
			zap.String("method", method),
			zap.String("from", sender.Hex()),
			zap.Error(err))
		return common.Hash{}, errno.ErrSubmissionFailed
	}
	monitor.Business.SubmissionsTotal.WithLabelValues(method, "ok").Inc()
	return hash, nil
}

func (s *SubmitterService) submit(ctx context.Context, op model.Operation, from common.Address, sg signer.Signer) (common.Hash, error) {
	if sg == nil {
		return common.Hash{}, errors.New("no signer configured")
	}

	// 2. 可选: 按发送地址加锁
	if s.lock != nil {
		key := "nonce:" + from.Hex()
		token, ok, err := s.lock.Acquire(ctx, key, s.lockTTL)
		if err != nil {
			return common.Hash{}, fmt.Errorf("acquire sender lock: %w", err)
		}
		if !ok {
			return common.Hash{}, errSenderBusy
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), key, token); err != nil {
				logger.Warn("释放发送地址锁失败", zap.String("key", key), zap.Error(err))
			}
		}()
	}

	// 3. 构建
	utx, err := s.build(ctx, op, from)
	if err != nil {
		return common.Hash{}, err
	}

	// 4. 签名
	signed, err := sg.Sign(ctx, utx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign (%s): %w", sg.Mode(), err)
	}
	tx, raw, err := signer.DecodeSigned(signed)
	if err != nil {
		return common.Hash{}, err
	}

	// 5. 广播
	hash, err := s.client.BroadcastRawTransaction(ctx, raw)
	if err != nil {
		return common.Hash{}, fmt.Errorf("broadcast: %w", err)
	}
	if hash != tx.Hash() {
		logger.Warn("节点返回的哈希与本地计算不一致", zap.String("node", hash.Hex()), zap.String("local", tx.Hash().Hex()))
	}

	gasPrice := tx.GasPrice()
	logger.Info("交易已广播",
		zap.String("hash", hash.Hex()),
		zap.String("method", op.Method()),
		zap.String("from", from.Hex()),
		zap.Uint64("nonce", tx.Nonce()),
		zap.String("gas_price_gwei", units.WeiToGwei(gasPrice).String()),
		zap.String("max_fee_eth", units.WeiToEther(units.MaxFee(tx.Gas(), gasPrice)).String()),
		zap.String("signer", sg.Mode()))

	// 6. 记录失败不影响提交结果
	if s.recorder != nil {
		rec := newSubmission(op, from, hash, tx.Nonce(), tx.Gas(), gasPrice, sg.Mode())
		if err := s.recorder.Record(ctx, rec); err != nil {
			logger.Warn("保存提交记录失败", zap.String("hash", hash.Hex()), zap.Error(err))
		}
	}
	return hash, nil
}

// BroadcastSigned 广播已离线签名的交易
func (s *SubmitterService) BroadcastSigned(ctx context.Context, st *types.SignedTransaction) (common.Hash, error) {
	_, raw, err := signer.DecodeSigned(st)
	if err != nil {
		return common.Hash{}, err
	}
	hash, err := s.client.BroadcastRawTransaction(ctx, raw)
	if err != nil {
		logger.Error("广播交易失败", zap.Error(err))
		return common.Hash{}, errno.ErrSubmissionFailed
	}
	return hash, nil
}

// checkAddresses 发送地址与转交目标地址都必须合法
func checkAddresses(op model.Operation, from string) (common.Address, error) {
	sender, err := address.ParseETH(from)
	if err != nil {
		return common.Address{}, errno.ErrInvalidAddress
	}
	if err := op.Validate(); err != nil {
		return common.Address{}, errno.ErrInvalidAddress
	}
	return sender, nil
}

func newSubmission(op model.Operation, from common.Address, hash common.Hash, nonce, gas uint64, gasPrice *big.Int, mode string) *model.Submission {
	rec := &model.Submission{
		TxHash:      hash.Hex(),
		Method:      op.Method(),
		FromAddress: from.Hex(),
		Nonce:       nonce,
		GasLimit:    gas,
		GasPrice:    decimal.NewFromBigInt(gasPrice, 0),
		SignerMode:  mode,
	}
	if id, ok := model.ProductIDOf(op); ok {
		rec.ProductID = &id
	}
	if d, ok := op.(model.DelegateProduct); ok {
		rec.NewOwner = common.HexToAddress(d.NewOwner).Hex()
	}
	return rec
}
