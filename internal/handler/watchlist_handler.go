package handler

import (
	"sort"

	"github.com/alfarkas/basic-contract-interaction/internal/handler/request"
	"github.com/alfarkas/basic-contract-interaction/internal/handler/response"
	"github.com/alfarkas/basic-contract-interaction/internal/service/watchlist"
	"github.com/alfarkas/basic-contract-interaction/pkg/address"
	"github.com/alfarkas/basic-contract-interaction/pkg/errno"
	"github.com/alfarkas/basic-contract-interaction/pkg/validator"

	"github.com/gin-gonic/gin"
)

type WatchListHandler struct {
	watch *watchlist.WatchList
}

func NewWatchListHandler(watch *watchlist.WatchList) *WatchListHandler {
	return &WatchListHandler{watch: watch}
}

// List GET /api/v1/watchlist
func (h *WatchListHandler) List(c *gin.Context) {
	snap := h.watch.Snapshot()
	out := make([]string, 0, len(snap))
	for a := range snap {
		out = append(out, address.Checksum(a))
	}
	sort.Strings(out)
	response.Success(c, gin.H{"addresses": out})
}

// Subscribe POST /api/v1/watchlist
func (h *WatchListHandler) Subscribe(c *gin.Context) {
	var req request.WatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}
	addr, err := address.ParseETH(req.Address)
	if err != nil {
		response.Error(c, errno.ErrInvalidAddress)
		return
	}
	h.watch.Subscribe(addr)
	response.Success(c, gin.H{"address": address.Checksum(addr), "subscribed": true})
}

// IsSubscribed GET /api/v1/watchlist/:address
func (h *WatchListHandler) IsSubscribed(c *gin.Context) {
	addr, err := address.ParseETH(c.Param("address"))
	if err != nil {
		response.Error(c, errno.ErrInvalidAddress)
		return
	}
	response.Success(c, gin.H{"address": address.Checksum(addr), "subscribed": h.watch.IsSubscribed(addr)})
}

// Unsubscribe DELETE /api/v1/watchlist/:address
func (h *WatchListHandler) Unsubscribe(c *gin.Context) {
	addr, err := address.ParseETH(c.Param("address"))
	if err != nil {
		response.Error(c, errno.ErrInvalidAddress)
		return
	}
	if err := h.watch.Unsubscribe(addr); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"address": address.Checksum(addr), "subscribed": false})
}
