package request

// WatchRequest 订阅地址
type WatchRequest struct {
	Address string `json:"address" binding:"required"`
}
