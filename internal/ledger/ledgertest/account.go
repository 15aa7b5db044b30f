package ledgertest

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"math/big"

	"github.com/alfarkas/basic-contract-interaction/internal/ledger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Account 测试账户
type Account struct {
	Key     *ecdsa.PrivateKey
	Address common.Address
}

// KeyHex 不带 0x 前缀的私钥
func (a *Account) KeyHex() string {
	return hex.EncodeToString(crypto.FromECDSA(a.Key))
}

// SignRaw 签名并返回 RLP 编码
func (a *Account) SignRaw(tx *types.Transaction, chainID *big.Int) ([]byte, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), a.Key)
	if err != nil {
		return nil, err
	}
	return signed.MarshalBinary()
}

// Submit 以 acc 的身份构建, 签名并广播一次合约调用
func (l *Ledger) Submit(acc *Account, method string, args ...interface{}) (common.Hash, error) {
	ctx := context.Background()
	nonce, err := l.PendingNonce(ctx, acc.Address)
	if err != nil {
		return common.Hash{}, err
	}
	price, err := l.GasPrice(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	tx, err := l.BuildContractCall(method, ledger.TxParams{Nonce: nonce, GasPrice: price, GasLimit: 210000}, args...)
	if err != nil {
		return common.Hash{}, err
	}
	raw, err := acc.SignRaw(tx, l.chainID)
	if err != nil {
		return common.Hash{}, err
	}
	return l.BroadcastRawTransaction(ctx, raw)
}
