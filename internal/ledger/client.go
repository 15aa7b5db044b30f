// Package ledger wraps the ledger node and the product contract.
package ledger

import (
	"context"
	"errors"
	"math/big"

	"github.com/alfarkas/basic-contract-interaction/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrReceiptNotFound 交易未上链或已被重组移除, 属于正常的中间状态
	ErrReceiptNotFound = errors.New("transaction receipt not found")
	// ErrContractReverted 只读调用被合约拒绝 (例如 id 越界)
	ErrContractReverted = errors.New("contract call reverted")
)

// Client 链节点的无状态访问接口, 所有方法并发安全
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	PendingNonce(ctx context.Context, account common.Address) (uint64, error)
	BlockHeight(ctx context.Context) (uint64, error)

	// TransactionReceipt 回执不存在时返回 ErrReceiptNotFound
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)

	// BroadcastRawTransaction 广播已签名的 RLP 字节, 返回节点给出的交易哈希
	BroadcastRawTransaction(ctx context.Context, raw []byte) (common.Hash, error)

	// CallContract 只读调用合约方法, 合约拒绝时返回 ErrContractReverted
	CallContract(ctx context.Context, method string, args ...interface{}) ([]interface{}, error)

	// BuildContractCall 组装未签名的合约调用交易
	BuildContractCall(method string, params TxParams, args ...interface{}) (*types.Transaction, error)

	// PollNewEvents 返回 (since, head] 区间内的事件以及新的游标
	PollNewEvents(ctx context.Context, kind model.EventKind, since uint64) ([]model.LedgerEvent, uint64, error)

	// FilterEvents 查询 [from, to] 区间内的历史事件
	FilterEvents(ctx context.Context, kind model.EventKind, from, to uint64) ([]model.LedgerEvent, error)

	ContractAddress() common.Address
}
