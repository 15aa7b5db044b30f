package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/alfarkas/basic-contract-interaction/internal/model"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ProductABI 产品合约接口描述, 事件参数均未 indexed
const ProductABI = `[
  {"type":"function","name":"createProduct","stateMutability":"nonpayable",
   "inputs":[{"name":"name","type":"string"}],"outputs":[]},
  {"type":"function","name":"delegateProduct","stateMutability":"nonpayable",
   "inputs":[{"name":"productId","type":"uint256"},{"name":"newOwner","type":"address"}],"outputs":[]},
  {"type":"function","name":"acceptProduct","stateMutability":"nonpayable",
   "inputs":[{"name":"productId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"products","stateMutability":"view",
   "inputs":[{"name":"","type":"uint256"}],
   "outputs":[{"name":"name","type":"string"},{"name":"status","type":"uint8"},
              {"name":"owner","type":"address"},{"name":"newOwner","type":"address"}]},
  {"type":"function","name":"size","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"NewProduct","anonymous":false,
   "inputs":[{"name":"productId","type":"uint256","indexed":false},
             {"name":"name","type":"string","indexed":false}]},
  {"type":"event","name":"DelegateProduct","anonymous":false,
   "inputs":[{"name":"productId","type":"uint256","indexed":false},
             {"name":"newOwner","type":"address","indexed":false},
             {"name":"status","type":"uint8","indexed":false}]},
  {"type":"event","name":"AcceptProduct","anonymous":false,
   "inputs":[{"name":"productId","type":"uint256","indexed":false},
             {"name":"name","type":"string","indexed":false},
             {"name":"status","type":"uint8","indexed":false}]}
]`

var contractABI = mustParseABI(ProductABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parse product abi: %v", err))
	}
	return parsed
}

// ContractABI 返回已解析的合约 ABI
func ContractABI() abi.ABI {
	return contractABI
}

// TxParams 构建交易时从节点查询到的参数
type TxParams struct {
	Nonce    uint64
	GasPrice *big.Int
	GasLimit uint64
}

// NewContractCallTx ABI 编码调用数据并组装 legacy 交易 (不签名)
func NewContractCallTx(contract common.Address, method string, params TxParams, args ...interface{}) (*types.Transaction, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    params.Nonce,
		GasPrice: params.GasPrice,
		Gas:      params.GasLimit,
		To:       &contract,
		Value:    new(big.Int),
		Data:     data,
	}), nil
}

// EventID 事件签名的 topic0
func EventID(kind model.EventKind) (common.Hash, error) {
	ev, ok := contractABI.Events[string(kind)]
	if !ok {
		return common.Hash{}, fmt.Errorf("unknown event %q", kind)
	}
	return ev.ID, nil
}

var errMalformedLog = errors.New("malformed event log")

// DecodeEvent 把合约日志解码为 LedgerEvent
func DecodeEvent(lg types.Log) (model.LedgerEvent, error) {
	if len(lg.Topics) == 0 {
		return model.LedgerEvent{}, errMalformedLog
	}
	ev, err := contractABI.EventByID(lg.Topics[0])
	if err != nil {
		return model.LedgerEvent{}, err
	}
	values, err := ev.Inputs.Unpack(lg.Data)
	if err != nil {
		return model.LedgerEvent{}, fmt.Errorf("unpack %s: %w", ev.Name, err)
	}
	if len(values) != len(ev.Inputs) {
		return model.LedgerEvent{}, errMalformedLog
	}

	productID, ok := values[0].(*big.Int)
	if !ok || !productID.IsUint64() {
		return model.LedgerEvent{}, errMalformedLog
	}

	out := model.LedgerEvent{
		ProductID:   productID.Uint64(),
		BlockNumber: lg.BlockNumber,
		TxHash:      lg.TxHash,
		LogIndex:    lg.Index,
	}
	switch model.EventKind(ev.Name) {
	case model.EventCreated:
		out.Payload = model.ProductCreated{Name: values[1].(string)}
	case model.EventDelegated:
		out.Payload = model.ProductDelegated{
			NewOwner: values[1].(common.Address),
			Status:   values[2].(uint8),
		}
	case model.EventAccepted:
		out.Payload = model.ProductAccepted{
			Name:   values[1].(string),
			Status: values[2].(uint8),
		}
	default:
		return model.LedgerEvent{}, fmt.Errorf("unexpected event %s", ev.Name)
	}
	return out, nil
}

// EncodeEventLog 按 ABI 编码事件日志, 供测试节点使用
func EncodeEventLog(contract common.Address, ev model.LedgerEvent) (types.Log, error) {
	kind := ev.Kind()
	abiEvent, ok := contractABI.Events[string(kind)]
	if !ok {
		return types.Log{}, fmt.Errorf("unknown event %q", kind)
	}

	id := new(big.Int).SetUint64(ev.ProductID)
	var values []interface{}
	switch p := ev.Payload.(type) {
	case model.ProductCreated:
		values = []interface{}{id, p.Name}
	case model.ProductDelegated:
		values = []interface{}{id, p.NewOwner, p.Status}
	case model.ProductAccepted:
		values = []interface{}{id, p.Name, p.Status}
	}
	data, err := abiEvent.Inputs.Pack(values...)
	if err != nil {
		return types.Log{}, err
	}
	return types.Log{
		Address:     contract,
		Topics:      []common.Hash{abiEvent.ID},
		Data:        data,
		BlockNumber: ev.BlockNumber,
		TxHash:      ev.TxHash,
		Index:       ev.LogIndex,
	}, nil
}
