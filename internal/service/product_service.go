package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/alfarkas/basic-contract-interaction/internal/ledger"
	"github.com/alfarkas/basic-contract-interaction/internal/model"
	"github.com/alfarkas/basic-contract-interaction/pkg/cache"
	"github.com/alfarkas/basic-contract-interaction/pkg/errno"
	"github.com/alfarkas/basic-contract-interaction/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const productsCacheKey = "products:all"

// ProductService 通过合约只读方法查询产品
type ProductService struct {
	client ledger.Client
	cache  cache.Cache
	ttl    time.Duration
}

// NewProductService cache 为 nil 或 ttl <= 0 时不缓存列表
func NewProductService(client ledger.Client, c cache.Cache, ttl time.Duration) *ProductService {
	return &ProductService{client: client, cache: c, ttl: ttl}
}

// GetProduct 合约调用被拒绝 (id 不存在) 时返回 ErrProductNotFound
func (s *ProductService) GetProduct(ctx context.Context, id uint64) (*model.Product, error) {
	out, err := s.client.CallContract(ctx, "products", new(big.Int).SetUint64(id))
	if errors.Is(err, ledger.ErrContractReverted) {
		return nil, errno.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errno.ErrNodeUnavailable, err)
	}
	return decodeProduct(id, out)
}

// ListProducts 逐个读取 0..size-1, 读取失败的 id 跳过. 结果按 ttl 缓存.
func (s *ProductService) ListProducts(ctx context.Context) ([]model.Product, error) {
	return cache.GetOrLoad(ctx, s.cache, productsCacheKey, s.ttl, s.loadProducts)
}

func (s *ProductService) loadProducts(ctx context.Context) ([]model.Product, error) {
	out, err := s.client.CallContract(ctx, "size")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errno.ErrNodeUnavailable, err)
	}
	var size *big.Int
	if len(out) == 1 {
		size, _ = out[0].(*big.Int)
	}
	if size == nil || !size.IsUint64() {
		return nil, fmt.Errorf("%w: unexpected size() result", errno.ErrNodeUnavailable)
	}

	products := make([]model.Product, 0, size.Uint64())
	for id := uint64(0); id < size.Uint64(); id++ {
		p, err := s.GetProduct(ctx, id)
		if err != nil {
			logger.Warn("读取产品失败, 跳过", zap.Uint64("id", id), zap.Error(err))
			continue
		}
		products = append(products, *p)
	}
	return products, nil
}

// FindByName 返回第一个同名产品
func (s *ProductService) FindByName(ctx context.Context, name string) (*model.Product, error) {
	products, err := s.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range products {
		if products[i].Name == name {
			return &products[i], nil
		}
	}
	return nil, errno.ErrProductNotFound
}

// Delegated 已转交但未被接受
func (s *ProductService) Delegated(ctx context.Context) ([]model.Product, error) {
	return s.filter(ctx, model.Product.IsDelegated)
}

// Accepted 当前有 owner 且不在转交中
func (s *ProductService) Accepted(ctx context.Context) ([]model.Product, error) {
	return s.filter(ctx, model.Product.IsAccepted)
}

// DelegatedTo 转交给 owner 且等待其接受的产品
func (s *ProductService) DelegatedTo(ctx context.Context, owner common.Address) ([]model.Product, error) {
	return s.filter(ctx, func(p model.Product) bool {
		return common.HexToAddress(p.NewOwner) == owner
	})
}

func (s *ProductService) filter(ctx context.Context, keep func(model.Product) bool) ([]model.Product, error) {
	products, err := s.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Product, 0, len(products))
	for _, p := range products {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func decodeProduct(id uint64, out []interface{}) (*model.Product, error) {
	if len(out) != 4 {
		return nil, fmt.Errorf("products(%d): expected 4 values, got %d", id, len(out))
	}
	name, ok1 := out[0].(string)
	status, ok2 := out[1].(uint8)
	owner, ok3 := out[2].(common.Address)
	newOwner, ok4 := out[3].(common.Address)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, fmt.Errorf("products(%d): unexpected result types", id)
	}
	return &model.Product{
		ID:       id,
		Name:     name,
		Status:   model.ProductStatus(status),
		Owner:    owner.Hex(),
		NewOwner: newOwner.Hex(),
	}, nil
}
