package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/alfarkas/basic-contract-interaction/internal/model"
	"github.com/alfarkas/basic-contract-interaction/pkg/logger"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

const defaultMaxBlockRange = 2000

// EthClient 基于 go-ethereum ethclient 的 Client 实现
type EthClient struct {
	rpc           *ethclient.Client
	contract      common.Address
	limiter       *Limiter
	callTimeout   time.Duration
	maxBlockRange uint64
}

// Option 可选配置
type Option func(*EthClient)

// WithRateLimit 限制每秒请求数
func WithRateLimit(rps float64, burst int) Option {
	return func(c *EthClient) {
		c.limiter = NewLimiter(rps, burst)
	}
}

// WithCallTimeout 单次 RPC 超时
func WithCallTimeout(d time.Duration) Option {
	return func(c *EthClient) {
		c.callTimeout = d
	}
}

// WithMaxBlockRange 单次 eth_getLogs 的最大区块跨度
func WithMaxBlockRange(n uint64) Option {
	return func(c *EthClient) {
		if n > 0 {
			c.maxBlockRange = n
		}
	}
}

// Dial 连接节点
func Dial(ctx context.Context, rawURL string, contract common.Address, opts ...Option) (*EthClient, error) {
	client, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}
	return NewEthClient(client, contract, opts...), nil
}

func NewEthClient(client *ethclient.Client, contract common.Address, opts ...Option) *EthClient {
	c := &EthClient{
		rpc:           client,
		contract:      contract,
		limiter:       NewLimiter(0, 0),
		maxBlockRange: defaultMaxBlockRange,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *EthClient) Close() {
	c.rpc.Close()
}

func (c *EthClient) ContractAddress() common.Address {
	return c.contract
}

// begin 限速并附加超时
func (c *EthClient) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}
	if c.callTimeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
		return ctx, cancel, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	return ctx, cancel, nil
}

func (c *EthClient) ChainID(ctx context.Context) (id *big.Int, err error) {
	defer func() { recordCall("eth_chainId", err) }()
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return c.rpc.ChainID(ctx)
}

func (c *EthClient) GasPrice(ctx context.Context) (price *big.Int, err error) {
	defer func() { recordCall("eth_gasPrice", err) }()
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return c.rpc.SuggestGasPrice(ctx)
}

func (c *EthClient) PendingNonce(ctx context.Context, account common.Address) (nonce uint64, err error) {
	defer func() { recordCall("eth_getTransactionCount", err) }()
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()
	return c.rpc.PendingNonceAt(ctx, account)
}

func (c *EthClient) BlockHeight(ctx context.Context) (height uint64, err error) {
	defer func() { recordCall("eth_blockNumber", err) }()
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()
	return c.rpc.BlockNumber(ctx)
}

func (c *EthClient) TransactionReceipt(ctx context.Context, hash common.Hash) (receipt *types.Receipt, err error) {
	defer func() { recordCall("eth_getTransactionReceipt", err) }()
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	receipt, err = c.rpc.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, ErrReceiptNotFound
	}
	return receipt, err
}

func (c *EthClient) BroadcastRawTransaction(ctx context.Context, raw []byte) (hash common.Hash, err error) {
	defer func() { recordCall("eth_sendRawTransaction", err) }()
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	defer cancel()

	err = c.rpc.Client().CallContext(ctx, &hash, "eth_sendRawTransaction", hexutil.Encode(raw))
	return hash, err
}

func (c *EthClient) CallContract(ctx context.Context, method string, args ...interface{}) (out []interface{}, err error) {
	defer func() { recordCall("eth_call", err) }()

	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	result, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		if isRevert(err) {
			return nil, fmt.Errorf("%s: %w: %v", method, ErrContractReverted, err)
		}
		return nil, err
	}
	// 部分节点对 invalid opcode 返回空结果而不是错误
	if len(result) == 0 && len(contractABI.Methods[method].Outputs) > 0 {
		return nil, fmt.Errorf("%s: %w: empty result", method, ErrContractReverted)
	}
	return contractABI.Unpack(method, result)
}

func (c *EthClient) BuildContractCall(method string, params TxParams, args ...interface{}) (*types.Transaction, error) {
	return NewContractCallTx(c.contract, method, params, args...)
}

func (c *EthClient) PollNewEvents(ctx context.Context, kind model.EventKind, since uint64) ([]model.LedgerEvent, uint64, error) {
	head, err := c.BlockHeight(ctx)
	if err != nil {
		return nil, since, err
	}
	if head <= since {
		return nil, since, nil
	}
	// 落后太多时分段追赶, 游标只推进到已查询的位置
	to := head
	if to-since > c.maxBlockRange {
		to = since + c.maxBlockRange
	}
	events, err := c.FilterEvents(ctx, kind, since+1, to)
	if err != nil {
		return nil, since, err
	}
	return events, to, nil
}

func (c *EthClient) FilterEvents(ctx context.Context, kind model.EventKind, from, to uint64) ([]model.LedgerEvent, error) {
	topic, err := EventID(kind)
	if err != nil {
		return nil, err
	}

	var events []model.LedgerEvent
	for start := from; start <= to; start += c.maxBlockRange {
		end := start + c.maxBlockRange - 1
		if end > to {
			end = to
		}
		logs, err := c.filterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(start),
			ToBlock:   new(big.Int).SetUint64(end),
			Addresses: []common.Address{c.contract},
			Topics:    [][]common.Hash{{topic}},
		})
		if err != nil {
			return nil, err
		}
		for _, lg := range logs {
			if lg.Removed {
				continue
			}
			ev, err := DecodeEvent(lg)
			if err != nil {
				logger.Warn("跳过无法解析的合约日志",
					zap.String("tx_hash", lg.TxHash.Hex()),
					zap.Uint64("block", lg.BlockNumber),
					zap.Error(err))
				continue
			}
			events = append(events, ev)
		}
	}
	return events, nil
}

func (c *EthClient) filterLogs(ctx context.Context, q ethereum.FilterQuery) (logs []types.Log, err error) {
	defer func() { recordCall("eth_getLogs", err) }()
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return c.rpc.FilterLogs(ctx, q)
}

// isRevert 判断 eth_call 错误是否由合约执行失败引起
func isRevert(err error) bool {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) && dataErr.ErrorData() != nil {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "execution reverted") ||
		strings.Contains(msg, "invalid opcode") ||
		strings.Contains(msg, "vm exception")
}
