package model

import "github.com/ethereum/go-ethereum/common"

type ProductStatus uint8

const (
	StatusOwned     ProductStatus = 0
	StatusDelegated ProductStatus = 1
)

// MaxProductsPerOwner 合约限制每个地址最多持有的产品数
const MaxProductsPerOwner = 11

// Product 合约 products(id) 的返回值
type Product struct {
	ID       uint64        `json:"id"`
	Name     string        `json:"name"`
	Status   ProductStatus `json:"status"`
	Owner    string        `json:"owner"`
	NewOwner string        `json:"new_owner"`
}

// IsDelegated 已转交但对方尚未接受
func (p Product) IsDelegated() bool {
	return p.Status == StatusDelegated
}

// IsAccepted 未处于转交中且有 owner
func (p Product) IsAccepted() bool {
	return p.Status == StatusOwned && common.HexToAddress(p.Owner) != (common.Address{})
}
