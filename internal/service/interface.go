package service

import (
	"context"

	"github.com/alfarkas/basic-contract-interaction/internal/model"
	"github.com/alfarkas/basic-contract-interaction/internal/service/signer"
	"github.com/alfarkas/basic-contract-interaction/pkg/wallet/types"

	"github.com/ethereum/go-ethereum/common"
)

// Submitter 状态变更操作的提交入口
type Submitter interface {
	// Submit 返回交易哈希, sg 为 nil 时使用默认签名方式
	Submit(ctx context.Context, op model.Operation, from string, sg signer.Signer) (common.Hash, error)
	// Build 只构建不签名, 用于离线签名
	Build(ctx context.Context, op model.Operation, from string) (*types.UnsignedTransaction, error)
}

// ProductReader 产品只读查询
type ProductReader interface {
	GetProduct(ctx context.Context, id uint64) (*model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	FindByName(ctx context.Context, name string) (*model.Product, error)
	Delegated(ctx context.Context) ([]model.Product, error)
	Accepted(ctx context.Context) ([]model.Product, error)
	DelegatedTo(ctx context.Context, owner common.Address) ([]model.Product, error)
}

var (
	_ Submitter     = (*SubmitterService)(nil)
	_ ProductReader = (*ProductService)(nil)
)
