package service

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/alfarkas/basic-contract-interaction/internal/ledger/ledgertest"
	"github.com/alfarkas/basic-contract-interaction/internal/model"
	"github.com/alfarkas/basic-contract-interaction/pkg/cache"
	"github.com/alfarkas/basic-contract-interaction/pkg/errno"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedProducts alice 创建 3 个产品, 0 转交给 bob 并被接受, 1 转交给 bob 未接受
func seedProducts(t *testing.T) (*ledgertest.Ledger, *ledgertest.Account, *ledgertest.Account) {
	t.Helper()
	l := ledgertest.New(1337)
	alice, err := ledgertest.NewAccount()
	require.NoError(t, err)
	bob, err := ledgertest.NewAccount()
	require.NoError(t, err)

	steps := []struct {
		acc    *ledgertest.Account
		method string
		args   []interface{}
	}{
		{alice, model.MethodCreateProduct, []interface{}{"chair"}},
		{alice, model.MethodCreateProduct, []interface{}{"table"}},
		{alice, model.MethodCreateProduct, []interface{}{"lamp"}},
		{alice, model.MethodDelegateProduct, []interface{}{big.NewInt(0), bob.Address}},
		{bob, model.MethodAcceptProduct, []interface{}{big.NewInt(0)}},
		{alice, model.MethodDelegateProduct, []interface{}{big.NewInt(1), bob.Address}},
	}
	for _, st := range steps {
		_, err := l.Submit(st.acc, st.method, st.args...)
		require.NoError(t, err)
	}
	return l, alice, bob
}

func TestGetProduct(t *testing.T) {
	l, _, bob := seedProducts(t)
	s := NewProductService(l, nil, 0)

	p, err := s.GetProduct(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "chair", p.Name)
	assert.Equal(t, bob.Address.Hex(), p.Owner)
	assert.Equal(t, model.StatusOwned, p.Status)

	_, err = s.GetProduct(context.Background(), 99)
	assert.ErrorIs(t, err, errno.ErrProductNotFound)
}

func TestGetProductNodeError(t *testing.T) {
	l, _, _ := seedProducts(t)
	l.SetError("CallContract", errors.New("connection refused"))

	_, err := NewProductService(l, nil, 0).GetProduct(context.Background(), 0)
	assert.ErrorIs(t, err, errno.ErrNodeUnavailable)
}

func TestListAndFilters(t *testing.T) {
	l, _, bob := seedProducts(t)
	s := NewProductService(l, nil, 0)
	ctx := context.Background()

	all, err := s.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	delegated, err := s.Delegated(ctx)
	require.NoError(t, err)
	require.Len(t, delegated, 1)
	assert.Equal(t, "table", delegated[0].Name)

	accepted, err := s.Accepted(ctx)
	require.NoError(t, err)
	assert.Len(t, accepted, 2)

	toBob, err := s.DelegatedTo(ctx, bob.Address)
	require.NoError(t, err)
	require.Len(t, toBob, 1)
	assert.Equal(t, uint64(1), toBob[0].ID)

	p, err := s.FindByName(ctx, "lamp")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), p.ID)

	_, err = s.FindByName(ctx, "sofa")
	assert.ErrorIs(t, err, errno.ErrProductNotFound)
}

func TestListProductsIsCached(t *testing.T) {
	l, alice, _ := seedProducts(t)
	s := NewProductService(l, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute)
	ctx := context.Background()

	_, err := s.ListProducts(ctx)
	require.NoError(t, err)
	calls := l.Calls("CallContract")

	_, err = l.Submit(alice, model.MethodCreateProduct, "new")
	require.NoError(t, err)

	all, err := s.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, calls, l.Calls("CallContract"))
}
