// Package ledgertest provides an in-memory ledger implementing ledger.Client.
// It executes the product contract rules, mines every accepted broadcast
// into its own block and records the contract's event logs.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/alfarkas/basic-contract-interaction/internal/ledger"
	"github.com/alfarkas/basic-contract-interaction/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// DefaultContract 测试使用的合约地址
var DefaultContract = common.HexToAddress("0xd9E0b2C0724F3a01AaECe3C44F8023371f845196")

var (
	ErrNonceTooLow   = errors.New("nonce too low")
	ErrNonceTooHigh  = errors.New("nonce too high")
	ErrWrongContract = errors.New("transaction is not addressed to the contract")
)

type product struct {
	name     string
	status   model.ProductStatus
	owner    common.Address
	newOwner common.Address
}

// Ledger 内存账本, 方法并发安全
type Ledger struct {
	mu sync.Mutex

	chainID  *big.Int
	contract common.Address
	signer   types.Signer
	gasPrice *big.Int
	height   uint64

	nonces   map[common.Address]uint64
	products []product
	receipts map[common.Hash]*types.Receipt
	logs     []types.Log

	errs  map[string]error
	calls map[string]int
}

func New(chainID int64) *Ledger {
	id := big.NewInt(chainID)
	return &Ledger{
		chainID:  id,
		contract: DefaultContract,
		signer:   types.LatestSignerForChainID(id),
		gasPrice: big.NewInt(30_000_000_000),
		height:   100,
		nonces:   make(map[common.Address]uint64),
		receipts: make(map[common.Hash]*types.Receipt),
		errs:     make(map[string]error),
		calls:    make(map[string]int),
	}
}

var _ ledger.Client = (*Ledger)(nil)

// SetError 让指定方法之后的调用都返回 err, 传 nil 恢复
func (l *Ledger) SetError(method string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		delete(l.errs, method)
		return
	}
	l.errs[method] = err
}

// Calls 返回方法被调用的次数
func (l *Ledger) Calls(method string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[method]
}

// TotalCalls 所有方法调用次数之和
func (l *Ledger) TotalCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		n += c
	}
	return n
}

func (l *Ledger) SetGasPrice(p *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gasPrice = new(big.Int).Set(p)
}

func (l *Ledger) SetHeight(h uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.height = h
}

// Mine 产生 n 个空块
func (l *Ledger) Mine(n uint64) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.height += n
	return l.height
}

// PutReceipt 直接写入回执, 用于确认逻辑测试
func (l *Ledger) PutReceipt(hash common.Hash, block uint64, success bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	status := types.ReceiptStatusFailed
	if success {
		status = types.ReceiptStatusSuccessful
	}
	l.receipts[hash] = &types.Receipt{
		Status:      status,
		TxHash:      hash,
		BlockNumber: new(big.Int).SetUint64(block),
	}
}

// DropReceipt 模拟重组后交易消失
func (l *Ledger) DropReceipt(hash common.Hash) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.receipts, hash)
}

// EmitEvent 直接追加一条事件日志
func (l *Ledger) EmitEvent(ev model.LedgerEvent) error {
	lg, err := ledger.EncodeEventLog(l.contract, ev)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = append(l.logs, lg)
	return nil
}

// ProductCount 合约中产品总数
func (l *Ledger) ProductCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.products)
}

// begin 记录调用并返回注入的错误, 调用方需持有锁
func (l *Ledger) begin(method string) error {
	l.calls[method]++
	return l.errs[method]
}

func (l *Ledger) ChainID(ctx context.Context) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.begin("ChainID"); err != nil {
		return nil, err
	}
	return new(big.Int).Set(l.chainID), nil
}

func (l *Ledger) GasPrice(ctx context.Context) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.begin("GasPrice"); err != nil {
		return nil, err
	}
	return new(big.Int).Set(l.gasPrice), nil
}

func (l *Ledger) PendingNonce(ctx context.Context, account common.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.begin("PendingNonce"); err != nil {
		return 0, err
	}
	return l.nonces[account], nil
}

func (l *Ledger) BlockHeight(ctx context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.begin("BlockHeight"); err != nil {
		return 0, err
	}
	return l.height, nil
}

func (l *Ledger) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.begin("TransactionReceipt"); err != nil {
		return nil, err
	}
	r, ok := l.receipts[hash]
	if !ok {
		return nil, ledger.ErrReceiptNotFound
	}
	cp := *r
	return &cp, nil
}

func (l *Ledger) BroadcastRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.begin("BroadcastRawTransaction"); err != nil {
		return common.Hash{}, err
	}

	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, fmt.Errorf("decode raw transaction: %w", err)
	}
	from, err := types.Sender(l.signer, tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid sender: %w", err)
	}
	if tx.To() == nil || *tx.To() != l.contract {
		return common.Hash{}, ErrWrongContract
	}
	switch expected := l.nonces[from]; {
	case tx.Nonce() < expected:
		return common.Hash{}, ErrNonceTooLow
	case tx.Nonce() > expected:
		return common.Hash{}, ErrNonceTooHigh
	}
	l.nonces[from]++

	// 每笔交易单独出一个块, 合约拒绝的交易同样上链但 status=0
	l.height++
	receipt := &types.Receipt{
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(l.height),
		GasUsed:     tx.Gas(),
	}
	lg, ok := l.execute(from, tx.Data())
	if ok {
		receipt.Status = types.ReceiptStatusSuccessful
		if lg != nil {
			lg.BlockNumber = l.height
			lg.TxHash = tx.Hash()
			l.logs = append(l.logs, *lg)
			receipt.Logs = []*types.Log{lg}
		}
	} else {
		receipt.Status = types.ReceiptStatusFailed
	}
	l.receipts[tx.Hash()] = receipt
	return tx.Hash(), nil
}

// execute 执行合约写方法, 返回产生的日志以及是否成功
func (l *Ledger) execute(from common.Address, data []byte) (*types.Log, bool) {
	if len(data) < 4 {
		return nil, false
	}
	abi := ledger.ContractABI()
	method, err := abi.MethodById(data[:4])
	if err != nil {
		return nil, false
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, false
	}

	var ev model.LedgerEvent
	switch method.Name {
	case model.MethodCreateProduct:
		name := args[0].(string)
		if l.ownedBy(from) >= model.MaxProductsPerOwner {
			return nil, false
		}
		l.products = append(l.products, product{name: name, status: model.StatusOwned, owner: from})
		ev = model.LedgerEvent{
			ProductID: uint64(len(l.products) - 1),
			Payload:   model.ProductCreated{Name: name},
		}

	case model.MethodDelegateProduct:
		id, ok := l.productIndex(args[0].(*big.Int))
		if !ok {
			return nil, false
		}
		p := &l.products[id]
		if p.owner != from || p.status != model.StatusOwned {
			return nil, false
		}
		p.newOwner = args[1].(common.Address)
		p.status = model.StatusDelegated
		ev = model.LedgerEvent{
			ProductID: id,
			Payload:   model.ProductDelegated{NewOwner: p.newOwner, Status: uint8(p.status)},
		}

	case model.MethodAcceptProduct:
		id, ok := l.productIndex(args[0].(*big.Int))
		if !ok {
			return nil, false
		}
		p := &l.products[id]
		if p.status != model.StatusDelegated || p.newOwner != from {
			return nil, false
		}
		p.owner = from
		p.status = model.StatusOwned
		p.newOwner = common.Address{}
		ev = model.LedgerEvent{
			ProductID: id,
			Payload:   model.ProductAccepted{Name: p.name, Status: uint8(p.status)},
		}

	default:
		return nil, false
	}

	lg, err := ledger.EncodeEventLog(l.contract, ev)
	if err != nil {
		return nil, false
	}
	return &lg, true
}

func (l *Ledger) ownedBy(owner common.Address) int {
	n := 0
	for _, p := range l.products {
		if p.owner == owner {
			n++
		}
	}
	return n
}

func (l *Ledger) productIndex(id *big.Int) (uint64, bool) {
	if !id.IsUint64() || id.Uint64() >= uint64(len(l.products)) {
		return 0, false
	}
	return id.Uint64(), true
}

func (l *Ledger) CallContract(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.begin("CallContract"); err != nil {
		return nil, err
	}

	switch method {
	case "size":
		return []interface{}{big.NewInt(int64(len(l.products)))}, nil
	case "products":
		if len(args) != 1 {
			return nil, fmt.Errorf("products: expected 1 argument, got %d", len(args))
		}
		raw, ok := args[0].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("products: argument must be *big.Int")
		}
		id, ok := l.productIndex(raw)
		if !ok {
			return nil, fmt.Errorf("products(%s): %w", raw, ledger.ErrContractReverted)
		}
		p := l.products[id]
		return []interface{}{p.name, uint8(p.status), p.owner, p.newOwner}, nil
	default:
		return nil, fmt.Errorf("method %q is not a view", method)
	}
}

func (l *Ledger) BuildContractCall(method string, params ledger.TxParams, args ...interface{}) (*types.Transaction, error) {
	return ledger.NewContractCallTx(l.contract, method, params, args...)
}

func (l *Ledger) PollNewEvents(ctx context.Context, kind model.EventKind, since uint64) ([]model.LedgerEvent, uint64, error) {
	l.mu.Lock()
	if err := l.begin("PollNewEvents"); err != nil {
		l.mu.Unlock()
		return nil, since, err
	}
	head := l.height
	l.mu.Unlock()

	if head <= since {
		return nil, since, nil
	}
	events, err := l.FilterEvents(ctx, kind, since+1, head)
	if err != nil {
		return nil, since, err
	}
	return events, head, nil
}

func (l *Ledger) FilterEvents(ctx context.Context, kind model.EventKind, from, to uint64) ([]model.LedgerEvent, error) {
	topic, err := ledger.EventID(kind)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []model.LedgerEvent
	for _, lg := range l.logs {
		if lg.BlockNumber < from || lg.BlockNumber > to || lg.Topics[0] != topic {
			continue
		}
		ev, err := ledger.DecodeEvent(lg)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (l *Ledger) ContractAddress() common.Address {
	return l.contract
}

// NewAccount 生成测试账户
func NewAccount() (*Account, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &Account{Key: key, Address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}
