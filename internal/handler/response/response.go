package response

import (
	"errors"
	"net/http"

	"github.com/alfarkas/basic-contract-interaction/pkg/errno"
	"github.com/alfarkas/basic-contract-interaction/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一返回结构 {code, msg, data}
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"msg"`
	Data    interface{} `json:"data"`
}

func Success(c *gin.Context, data interface{}) {
	if data == nil {
		data = gin.H{}
	}
	c.JSON(http.StatusOK, Response{
		Code:    errno.OK.Code,
		Message: errno.OK.Message,
		Data:    data,
	})
}

// Submitted 交易已广播, 返回交易哈希
func Submitted(c *gin.Context, hash common.Hash) {
	Success(c, gin.H{"tx_hash": hash.Hex()})
}

// Error 业务错误统一返回 200, 通过 code 区分
// 非 errno 错误只记录日志, 调用方只看到 InternalServerError
func Error(c *gin.Context, err error) {
	var e errno.Errno
	if !errors.As(err, &e) {
		logger.Error("请求处理失败",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Error(err))
		e = errno.InternalServerError
	}
	c.JSON(http.StatusOK, Response{
		Code:    e.Code,
		Message: e.Message,
		Data:    gin.H{},
	})
}
