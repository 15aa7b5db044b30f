// Package signer turns unsigned contract calls into raw signed transactions,
// either with a local key or through the remote signing service.
package signer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/alfarkas/basic-contract-interaction/pkg/wallet/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

var (
	ErrInvalidKey     = errors.New("invalid private key")
	ErrSenderMismatch = errors.New("signing key does not match transaction sender")
	ErrEmptyTx        = errors.New("A transaction must be provided")
)

// Signer 对未签名交易签名, 结果只广播一次
type Signer interface {
	Sign(ctx context.Context, utx *types.UnsignedTransaction) (*types.SignedTransaction, error)
	Mode() string
}

// ParsePrivateKey 解析十六进制私钥, 0x 前缀可选
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, nil
}

// FromEthTx 把 go-ethereum 交易转换成签名协议使用的结构
func FromEthTx(tx *ethtypes.Transaction, from common.Address, chainID *big.Int) *types.UnsignedTransaction {
	return &types.UnsignedTransaction{
		From:     from.Hex(),
		To:       tx.To().Hex(),
		Value:    tx.Value().String(),
		Nonce:    tx.Nonce(),
		Gas:      tx.Gas(),
		GasPrice: tx.GasPrice().String(),
		Data:     hexutil.Encode(tx.Data()),
		ChainID:  chainID.Int64(),
	}
}

// ToEthTx 解析签名协议结构, 组装 legacy 交易
func ToEthTx(utx *types.UnsignedTransaction) (*ethtypes.Transaction, *big.Int, error) {
	if utx == nil || utx.To == "" {
		return nil, nil, ErrEmptyTx
	}
	if !common.IsHexAddress(utx.To) {
		return nil, nil, fmt.Errorf("invalid to address %q", utx.To)
	}
	value := new(big.Int)
	if utx.Value != "" {
		if _, ok := value.SetString(utx.Value, 10); !ok {
			return nil, nil, fmt.Errorf("invalid value %q", utx.Value)
		}
	}
	gasPrice, ok := new(big.Int).SetString(utx.GasPrice, 10)
	if !ok {
		return nil, nil, fmt.Errorf("invalid gasPrice %q", utx.GasPrice)
	}
	var data []byte
	if utx.Data != "" {
		var err error
		if data, err = hexutil.Decode(utx.Data); err != nil {
			return nil, nil, fmt.Errorf("invalid data: %w", err)
		}
	}
	if utx.ChainID <= 0 {
		return nil, nil, fmt.Errorf("invalid chainId %d", utx.ChainID)
	}

	to := common.HexToAddress(utx.To)
	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    utx.Nonce,
		GasPrice: gasPrice,
		Gas:      utx.Gas,
		To:       &to,
		Value:    value,
		Data:     data,
	})
	return tx, big.NewInt(utx.ChainID), nil
}

// SignWithKey EIP-155 签名并输出 {rawTransaction, hash, r, s, v}
func SignWithKey(key *ecdsa.PrivateKey, utx *types.UnsignedTransaction) (*types.SignedTransaction, error) {
	tx, chainID, err := ToEthTx(utx)
	if err != nil {
		return nil, err
	}
	// from 可省略, 给出时必须与私钥一致
	if utx.From != "" {
		if !common.IsHexAddress(utx.From) || common.HexToAddress(utx.From) != crypto.PubkeyToAddress(key.PublicKey) {
			return nil, ErrSenderMismatch
		}
	}

	signed, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(chainID), key)
	if err != nil {
		return nil, err
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, err
	}
	v, r, s := signed.RawSignatureValues()
	return &types.SignedTransaction{
		RawTransaction: hexutil.Encode(raw),
		Hash:           signed.Hash().Hex(),
		R:              hexutil.EncodeBig(r),
		S:              hexutil.EncodeBig(s),
		V:              hexutil.EncodeBig(v),
	}, nil
}

// DecodeSigned 解析签名结果, 校验哈希与原始字节一致
func DecodeSigned(st *types.SignedTransaction) (*ethtypes.Transaction, []byte, error) {
	raw, err := hexutil.Decode(st.RawTransaction)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid rawTransaction: %w", err)
	}
	tx := new(ethtypes.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, nil, fmt.Errorf("decode rawTransaction: %w", err)
	}
	if st.Hash != "" && common.HexToHash(st.Hash) != tx.Hash() {
		return nil, nil, fmt.Errorf("hash %s does not match raw transaction %s", st.Hash, tx.Hash().Hex())
	}
	return tx, raw, nil
}
