package observer

import (
	"context"
	"errors"

	"github.com/alfarkas/basic-contract-interaction/internal/ledger"
	"github.com/alfarkas/basic-contract-interaction/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ThresholdFunc 每次调用时读取最小确认数
type ThresholdFunc func() uint64

// ConfirmationTracker 判断交易是否成功以及确认深度是否足够
type ConfirmationTracker struct {
	client    ledger.Client
	threshold ThresholdFunc
}

func NewConfirmationTracker(client ledger.Client, threshold ThresholdFunc) *ConfirmationTracker {
	return &ConfirmationTracker{client: client, threshold: threshold}
}

// IsTransactionSuccessful 回执不存在 (未上链或被重组移除) 时返回 false, 不视为错误
func (t *ConfirmationTracker) IsTransactionSuccessful(ctx context.Context, hash common.Hash) (bool, error) {
	receipt, err := t.client.TransactionReceipt(ctx, hash)
	if errors.Is(err, ledger.ErrReceiptNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return receipt.Status == types.ReceiptStatusSuccessful, nil
}

// HasMinConfirmations currentHeight - minedBlock >= threshold 且交易成功
func (t *ConfirmationTracker) HasMinConfirmations(ctx context.Context, minedBlock uint64, hash common.Hash) (bool, error) {
	height, err := t.client.BlockHeight(ctx)
	if err != nil {
		return false, err
	}
	// 节点落后于事件所在区块时视为深度不足
	if height < minedBlock || height-minedBlock < t.threshold() {
		return false, nil
	}
	return t.IsTransactionSuccessful(ctx, hash)
}

// Status 汇总交易的确认状态
func (t *ConfirmationTracker) Status(ctx context.Context, hash common.Hash) (model.ConfirmationState, error) {
	state := model.ConfirmationState{
		TxHash:    hash.Hex(),
		Threshold: t.threshold(),
	}

	height, err := t.client.BlockHeight(ctx)
	if err != nil {
		return state, err
	}
	state.CurrentHeight = height

	receipt, err := t.client.TransactionReceipt(ctx, hash)
	if errors.Is(err, ledger.ErrReceiptNotFound) {
		return state, nil
	}
	if err != nil {
		return state, err
	}

	state.Found = true
	state.Successful = receipt.Status == types.ReceiptStatusSuccessful
	if receipt.BlockNumber != nil {
		state.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if height >= state.BlockNumber {
		state.Confirmations = height - state.BlockNumber
	}
	state.Final = state.Successful && state.Confirmations >= state.Threshold
	return state, nil
}
