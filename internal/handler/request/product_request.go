package request

// 地址字段不做格式校验, 由服务层统一返回 "Invalid address"

// CreateProductRequest 创建产品
type CreateProductRequest struct {
	Name    string `json:"name" binding:"required,max=256"`
	// 发起地址, 成为 owner
	Address string `json:"address" binding:"required"`
	// 可选, 提供时用该私钥本地签名
	Key     string `json:"key" binding:"omitempty,max=66"`
}

// DelegateProductRequest 转交产品
type DelegateProductRequest struct {
	Address    string `json:"address" binding:"required"`
	NewAddress string `json:"new_address" binding:"required"`
	Key        string `json:"key" binding:"omitempty,max=66"`
}

// AcceptProductRequest 接受转交
type AcceptProductRequest struct {
	Address string `json:"address" binding:"required"`
	Key     string `json:"key" binding:"omitempty,max=66"`
}

// ListProductsQuery 产品列表过滤条件
type ListProductsQuery struct {
	Status   string `form:"status" binding:"omitempty,oneof=delegated accepted"`
	NewOwner string `form:"new_owner"`
}
