package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alfarkas/basic-contract-interaction/internal/handler/response"
	"github.com/alfarkas/basic-contract-interaction/internal/ledger/ledgertest"
	"github.com/alfarkas/basic-contract-interaction/internal/model"
	"github.com/alfarkas/basic-contract-interaction/internal/service"
	"github.com/alfarkas/basic-contract-interaction/internal/service/observer"
	"github.com/alfarkas/basic-contract-interaction/internal/service/signer"
	"github.com/alfarkas/basic-contract-interaction/internal/service/watchlist"
	"github.com/alfarkas/basic-contract-interaction/pkg/errno"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router *gin.Engine
	ledger *ledgertest.Ledger
	alice  *ledgertest.Account
	bob    *ledgertest.Account
	watch  *watchlist.WatchList
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	l := ledgertest.New(1337)
	alice, err := ledgertest.NewAccount()
	require.NoError(t, err)
	bob, err := ledgertest.NewAccount()
	require.NoError(t, err)

	submitter := service.NewSubmitterService(l, signer.NewLocalSigner(alice.Key))
	products := NewProductHandler(service.NewProductService(l, nil, 0), submitter)
	watch := watchlist.New()
	watchH := NewWatchListHandler(watch)
	txH := NewTxHandler(observer.NewConfirmationTracker(l, func() uint64 { return 2 }), nil)

	r := gin.New()
	api := r.Group("/api/v1")
	api.GET("/products", products.ListProducts)
	api.GET("/product/:ref", products.GetProduct)
	api.POST("/product", products.CreateProduct)
	api.POST("/product/:id/delegate", products.DelegateProduct)
	api.POST("/product/:id/accept", products.AcceptProduct)
	api.GET("/watchlist", watchH.List)
	api.POST("/watchlist", watchH.Subscribe)
	api.GET("/watchlist/:address", watchH.IsSubscribed)
	api.DELETE("/watchlist/:address", watchH.Unsubscribe)
	api.GET("/tx/:hash", txH.Status)

	return &testEnv{router: r, ledger: l, alice: alice, bob: bob, watch: watch}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (response.Response, json.RawMessage) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		response.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Response, envelope.Data
}

func TestCreateProductHandler(t *testing.T) {
	e := newTestEnv(t)

	resp, data := e.do(t, http.MethodPost, "/api/v1/product", gin.H{"name": "chair", "address": e.alice.Address.Hex()})
	require.Equal(t, errno.OK.Code, resp.Code, resp.Message)

	var out struct {
		TxHash string `json:"tx_hash"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Len(t, out.TxHash, 66)
	assert.Equal(t, 1, e.ledger.ProductCount())
}

func TestCreateProductWithRequestKey(t *testing.T) {
	e := newTestEnv(t)

	// bob 携带自己的私钥, 不使用默认签名账户
	resp, _ := e.do(t, http.MethodPost, "/api/v1/product", gin.H{
		"name": "desk", "address": e.bob.Address.Hex(), "key": e.bob.KeyHex(),
	})
	require.Equal(t, errno.OK.Code, resp.Code, resp.Message)

	resp, data := e.do(t, http.MethodGet, "/api/v1/product/0", nil)
	require.Equal(t, errno.OK.Code, resp.Code)
	var p model.Product
	require.NoError(t, json.Unmarshal(data, &p))
	assert.Equal(t, e.bob.Address.Hex(), p.Owner)
}

func TestCreateProductErrors(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name string
		body gin.H
		code int
		msg  string
	}{
		{"malformed address", gin.H{"name": "x", "address": "0"}, errno.ErrInvalidAddress.Code, "Invalid address"},
		{"missing name", gin.H{"address": e.alice.Address.Hex()}, errno.ErrBind.Code, ""},
		{"bad key", gin.H{"name": "x", "address": e.alice.Address.Hex(), "key": "zz"}, errno.ErrSubmissionFailed.Code, "Something went wrong, try again."},
		{"bad key and address", gin.H{"name": "x", "address": "0", "key": "zz"}, errno.ErrInvalidAddress.Code, "Invalid address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := e.do(t, http.MethodPost, "/api/v1/product", tt.body)
			assert.Equal(t, tt.code, resp.Code)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, resp.Message)
			}
		})
	}
	assert.Zero(t, e.ledger.Calls("BroadcastRawTransaction"))
}

func TestDelegateAndAcceptHandlers(t *testing.T) {
	e := newTestEnv(t)

	resp, _ := e.do(t, http.MethodPost, "/api/v1/product", gin.H{"name": "chair", "address": e.alice.Address.Hex()})
	require.Equal(t, errno.OK.Code, resp.Code)

	resp, _ = e.do(t, http.MethodPost, "/api/v1/product/0/delegate", gin.H{"address": e.alice.Address.Hex(), "new_address": "0"})
	assert.Equal(t, errno.ErrInvalidAddress.Code, resp.Code)

	resp, _ = e.do(t, http.MethodPost, "/api/v1/product/abc/delegate", gin.H{"address": e.alice.Address.Hex(), "new_address": e.bob.Address.Hex()})
	assert.Equal(t, errno.ErrBind.Code, resp.Code)

	resp, _ = e.do(t, http.MethodPost, "/api/v1/product/0/delegate", gin.H{"address": e.alice.Address.Hex(), "new_address": e.bob.Address.Hex()})
	require.Equal(t, errno.OK.Code, resp.Code, resp.Message)

	resp, data := e.do(t, http.MethodGet, "/api/v1/products?status=delegated", nil)
	require.Equal(t, errno.OK.Code, resp.Code)
	var delegated []model.Product
	require.NoError(t, json.Unmarshal(data, &delegated))
	require.Len(t, delegated, 1)
	assert.Equal(t, e.bob.Address.Hex(), delegated[0].NewOwner)

	resp, _ = e.do(t, http.MethodPost, "/api/v1/product/0/accept", gin.H{"address": e.bob.Address.Hex(), "key": e.bob.KeyHex()})
	require.Equal(t, errno.OK.Code, resp.Code, resp.Message)

	resp, data = e.do(t, http.MethodGet, "/api/v1/product/chair", nil)
	require.Equal(t, errno.OK.Code, resp.Code)
	var p model.Product
	require.NoError(t, json.Unmarshal(data, &p))
	assert.Equal(t, e.bob.Address.Hex(), p.Owner)
	assert.Equal(t, model.StatusOwned, p.Status)
}

func TestListProductsQueryValidation(t *testing.T) {
	e := newTestEnv(t)

	resp, _ := e.do(t, http.MethodGet, "/api/v1/products?status=lost", nil)
	assert.Equal(t, errno.ErrBind.Code, resp.Code)

	resp, _ = e.do(t, http.MethodGet, "/api/v1/products?new_owner=0x12", nil)
	assert.Equal(t, errno.ErrInvalidAddress.Code, resp.Code)

	resp, _ = e.do(t, http.MethodGet, "/api/v1/product/7", nil)
	assert.Equal(t, errno.ErrProductNotFound.Code, resp.Code)
}

func TestWatchListHandlers(t *testing.T) {
	e := newTestEnv(t)
	addr := e.bob.Address.Hex()

	// 小写地址订阅, 返回 EIP-55 校验和格式
	resp, data := e.do(t, http.MethodPost, "/api/v1/watchlist", gin.H{"address": strings.ToLower(addr)})
	require.Equal(t, errno.OK.Code, resp.Code)
	assert.True(t, e.watch.IsSubscribed(e.bob.Address))
	var sub struct {
		Address string `json:"address"`
	}
	require.NoError(t, json.Unmarshal(data, &sub))
	assert.Equal(t, addr, sub.Address)

	resp, data = e.do(t, http.MethodGet, "/api/v1/watchlist/"+addr, nil)
	require.Equal(t, errno.OK.Code, resp.Code)
	assert.Contains(t, string(data), `"subscribed":true`)

	resp, data = e.do(t, http.MethodGet, "/api/v1/watchlist", nil)
	require.Equal(t, errno.OK.Code, resp.Code)
	assert.Contains(t, string(data), addr)

	resp, _ = e.do(t, http.MethodDelete, "/api/v1/watchlist/"+addr, nil)
	require.Equal(t, errno.OK.Code, resp.Code)

	resp, _ = e.do(t, http.MethodDelete, "/api/v1/watchlist/"+addr, nil)
	assert.Equal(t, errno.ErrNotSubscribed.Code, resp.Code)

	resp, _ = e.do(t, http.MethodPost, "/api/v1/watchlist", gin.H{"address": "0"})
	assert.Equal(t, errno.ErrInvalidAddress.Code, resp.Code)
}

func TestTxStatusHandler(t *testing.T) {
	e := newTestEnv(t)

	hash, err := e.ledger.Submit(e.alice, model.MethodCreateProduct, "chair")
	require.NoError(t, err)

	resp, data := e.do(t, http.MethodGet, "/api/v1/tx/"+hash.Hex(), nil)
	require.Equal(t, errno.OK.Code, resp.Code)
	var state model.ConfirmationState
	require.NoError(t, json.Unmarshal(data, &state))
	assert.True(t, state.Found)
	assert.True(t, state.Successful)
	assert.False(t, state.Final)

	e.ledger.Mine(2)
	_, data = e.do(t, http.MethodGet, "/api/v1/tx/"+hash.Hex(), nil)
	require.NoError(t, json.Unmarshal(data, &state))
	assert.Equal(t, uint64(2), state.Confirmations)
	assert.True(t, state.Final)

	resp, _ = e.do(t, http.MethodGet, "/api/v1/tx/0x1234", nil)
	assert.Equal(t, errno.ErrBind.Code, resp.Code)
}
