package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/alfarkas/basic-contract-interaction/pkg/keystore"
	"github.com/alfarkas/basic-contract-interaction/pkg/wallet/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// LocalSigner 使用进程内的私钥签名
type LocalSigner struct {
	key *ecdsa.PrivateKey
}

func NewLocalSigner(key *ecdsa.PrivateKey) *LocalSigner {
	return &LocalSigner{key: key}
}

func NewLocalSignerFromHex(hexKey string) (*LocalSigner, error) {
	key, err := ParsePrivateKey(hexKey)
	if err != nil {
		return nil, err
	}
	return NewLocalSigner(key), nil
}

// NewLocalSignerFromKeystore 解密本地加密私钥文件
func NewLocalSignerFromKeystore(path, password string) (*LocalSigner, error) {
	key, err := keystore.LoadKey(path, password)
	if err != nil {
		return nil, fmt.Errorf("load keystore %s: %w", path, err)
	}
	return NewLocalSigner(key), nil
}

func (s *LocalSigner) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

func (s *LocalSigner) Mode() string {
	return ModeLocal
}

func (s *LocalSigner) Sign(ctx context.Context, utx *types.UnsignedTransaction) (*types.SignedTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return SignWithKey(s.key, utx)
}
