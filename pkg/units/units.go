// Package units converts wei amounts for display.
package units

import (
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	gweiExp  = int32(-9)
	etherExp = int32(-18)
)

// WeiToGwei 1 gwei = 1e9 wei
func WeiToGwei(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, gweiExp)
}

// WeiToEther 1 ether = 1e18 wei
func WeiToEther(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, etherExp)
}

// MaxFee 固定 gasLimit 下最多消耗的手续费 (wei)
func MaxFee(gasLimit uint64, gasPrice *big.Int) *big.Int {
	if gasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), gasPrice)
}
