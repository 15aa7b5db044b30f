package model

import (
	"fmt"
	"math/big"

	"github.com/alfarkas/basic-contract-interaction/pkg/address"

	"github.com/ethereum/go-ethereum/common"
)

// 合约写方法名
const (
	MethodCreateProduct   = "createProduct"
	MethodDelegateProduct = "delegateProduct"
	MethodAcceptProduct   = "acceptProduct"
)

// Operation 一次状态变更操作 (创建/转交/接受), 构造后不可变
type Operation interface {
	// Method 合约方法名
	Method() string
	// Args ABI 编码参数, 调用前需先通过 Validate
	Args() []interface{}
	// Validate 校验操作中携带的地址
	Validate() error
}

// CreateProduct 以发起地址为 owner 创建产品
type CreateProduct struct {
	Name string
}

func (o CreateProduct) Method() string      { return MethodCreateProduct }
func (o CreateProduct) Args() []interface{} { return []interface{}{o.Name} }
func (o CreateProduct) Validate() error     { return nil }

// DelegateProduct 把产品转交给 NewOwner, 需要对方 Accept 后生效
type DelegateProduct struct {
	ProductID uint64
	NewOwner  string
}

func (o DelegateProduct) Method() string { return MethodDelegateProduct }

func (o DelegateProduct) Args() []interface{} {
	return []interface{}{new(big.Int).SetUint64(o.ProductID), common.HexToAddress(o.NewOwner)}
}

func (o DelegateProduct) Validate() error {
	if _, err := address.ParseETH(o.NewOwner); err != nil {
		return fmt.Errorf("new owner %q: %w", o.NewOwner, err)
	}
	return nil
}

// AcceptProduct 新 owner 接受转交
type AcceptProduct struct {
	ProductID uint64
}

func (o AcceptProduct) Method() string { return MethodAcceptProduct }

func (o AcceptProduct) Args() []interface{} {
	return []interface{}{new(big.Int).SetUint64(o.ProductID)}
}

func (o AcceptProduct) Validate() error { return nil }

// ProductIDOf 返回操作涉及的产品 ID, 创建操作没有
func ProductIDOf(op Operation) (uint64, bool) {
	switch o := op.(type) {
	case DelegateProduct:
		return o.ProductID, true
	case AcceptProduct:
		return o.ProductID, true
	}
	return 0, false
}
