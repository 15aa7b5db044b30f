package handler

import (
	"context"
	"errors"
	"regexp"

	"github.com/alfarkas/basic-contract-interaction/internal/handler/response"
	"github.com/alfarkas/basic-contract-interaction/internal/model"
	"github.com/alfarkas/basic-contract-interaction/internal/service"
	"github.com/alfarkas/basic-contract-interaction/pkg/errno"
	"github.com/alfarkas/basic-contract-interaction/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// TxStatusReader 计算交易确认状态
type TxStatusReader interface {
	Status(ctx context.Context, hash common.Hash) (model.ConfirmationState, error)
}

type TxHandler struct {
	tracker  TxStatusReader
	recorder service.SubmissionRecorder
}

// NewTxHandler recorder 为 nil 时不返回提交记录
func NewTxHandler(tracker TxStatusReader, recorder service.SubmissionRecorder) *TxHandler {
	return &TxHandler{tracker: tracker, recorder: recorder}
}

type txStatusResponse struct {
	model.ConfirmationState
	Submission *model.Submission `json:"submission,omitempty"`
}

// Status GET /api/v1/tx/:hash
func (h *TxHandler) Status(c *gin.Context) {
	raw := c.Param("hash")
	if !txHashPattern.MatchString(raw) {
		response.Error(c, errno.ErrBind.WithMessage("hash must be 0x followed by 64 hex characters"))
		return
	}
	hash := common.HexToHash(raw)
	ctx := c.Request.Context()

	state, err := h.tracker.Status(ctx, hash)
	if err != nil {
		logger.Warn("查询交易状态失败", zap.String("hash", raw), zap.Error(err))
		response.Error(c, errno.ErrNodeUnavailable)
		return
	}

	resp := txStatusResponse{ConfirmationState: state}
	if h.recorder != nil {
		sub, err := h.recorder.FindByHash(ctx, hash.Hex())
		switch {
		case err == nil:
			resp.Submission = sub
		case !errors.Is(err, service.ErrSubmissionNotFound):
			logger.Warn("查询提交记录失败", zap.String("hash", raw), zap.Error(err))
		}
	}
	response.Success(c, resp)
}
