package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/alfarkas/basic-contract-interaction/internal/service/signer"
	"github.com/alfarkas/basic-contract-interaction/pkg/logger"
	"github.com/alfarkas/basic-contract-interaction/pkg/wallet/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxSignRequestBytes = 64 << 10

// SignerHandler 签名服务的唯一接口, 返回体不套 code/msg 信封
type SignerHandler struct {
	signer signer.Signer
}

func NewSignerHandler(s signer.Signer) *SignerHandler {
	return &SignerHandler{signer: s}
}

// Sign POST /
// body 为交易对象, 也接受被再次 JSON 编码成字符串的交易对象
func (h *SignerHandler) Sign(c *gin.Context) {
	// 1. 读取并解析交易
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSignRequestBytes))
	if err != nil {
		signFailed(c, http.StatusBadRequest, "unable to read request body")
		return
	}
	utx, err := decodeUnsigned(body)
	if err != nil {
		signFailed(c, http.StatusBadRequest, err.Error())
		return
	}

	// 2. 签名
	signed, err := h.signer.Sign(c.Request.Context(), utx)
	if err != nil {
		logger.Warn("签名失败", zap.String("from", utx.From), zap.Uint64("nonce", utx.Nonce), zap.Error(err))
		signFailed(c, http.StatusBadRequest, err.Error())
		return
	}

	logger.Info("交易已签名", zap.String("from", utx.From), zap.Uint64("nonce", utx.Nonce), zap.String("hash", signed.Hash))
	c.JSON(http.StatusOK, signed)
}

func decodeUnsigned(body []byte) (*types.UnsignedTransaction, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) || bytes.Equal(body, []byte(`""`)) {
		return nil, signer.ErrEmptyTx
	}

	// 字符串形式: 先解出内层 JSON
	if body[0] == '"' {
		var inner string
		if err := json.Unmarshal(body, &inner); err != nil {
			return nil, err
		}
		return decodeUnsigned([]byte(inner))
	}

	var utx types.UnsignedTransaction
	if err := json.Unmarshal(body, &utx); err != nil {
		return nil, err
	}
	if utx.To == "" {
		return nil, signer.ErrEmptyTx
	}
	return &utx, nil
}

func signFailed(c *gin.Context, status int, msg string) {
	c.JSON(status, types.SignError{Error: msg})
}
