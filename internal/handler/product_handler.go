package handler

import (
	"strconv"

	"github.com/alfarkas/basic-contract-interaction/internal/handler/request"
	"github.com/alfarkas/basic-contract-interaction/internal/handler/response"
	"github.com/alfarkas/basic-contract-interaction/internal/model"
	"github.com/alfarkas/basic-contract-interaction/internal/service"
	"github.com/alfarkas/basic-contract-interaction/internal/service/signer"
	"github.com/alfarkas/basic-contract-interaction/pkg/address"
	"github.com/alfarkas/basic-contract-interaction/pkg/errno"
	"github.com/alfarkas/basic-contract-interaction/pkg/logger"
	"github.com/alfarkas/basic-contract-interaction/pkg/validator"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ProductHandler struct {
	reader    service.ProductReader
	submitter service.Submitter
}

func NewProductHandler(reader service.ProductReader, submitter service.Submitter) *ProductHandler {
	return &ProductHandler{reader: reader, submitter: submitter}
}

// ListProducts 产品列表
// GET /api/v1/products?status=delegated|accepted&new_owner=0x...
func (h *ProductHandler) ListProducts(c *gin.Context) {
	var q request.ListProductsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}
	ctx := c.Request.Context()

	var (
		products []model.Product
		err      error
	)
	switch {
	case q.NewOwner != "":
		owner, perr := address.ParseETH(q.NewOwner)
		if perr != nil {
			response.Error(c, errno.ErrInvalidAddress)
			return
		}
		products, err = h.reader.DelegatedTo(ctx, owner)
	case q.Status == "delegated":
		products, err = h.reader.Delegated(ctx)
	case q.Status == "accepted":
		products, err = h.reader.Accepted(ctx)
	default:
		products, err = h.reader.ListProducts(ctx)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, products)
}

// GetProduct 纯数字按 ID 查询, 否则按名称查询
// GET /api/v1/product/:ref
func (h *ProductHandler) GetProduct(c *gin.Context) {
	ref := c.Param("ref")
	ctx := c.Request.Context()

	var (
		p   *model.Product
		err error
	)
	if id, perr := strconv.ParseUint(ref, 10, 64); perr == nil {
		p, err = h.reader.GetProduct(ctx, id)
	} else {
		p, err = h.reader.FindByName(ctx, ref)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// CreateProduct POST /api/v1/product
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req request.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}
	h.submit(c, model.CreateProduct{Name: req.Name}, req.Address, req.Key)
}

// DelegateProduct POST /api/v1/product/:id/delegate
func (h *ProductHandler) DelegateProduct(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}
	var req request.DelegateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}
	h.submit(c, model.DelegateProduct{ProductID: id, NewOwner: req.NewAddress}, req.Address, req.Key)
}

// AcceptProduct POST /api/v1/product/:id/accept
func (h *ProductHandler) AcceptProduct(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}
	var req request.AcceptProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}
	h.submit(c, model.AcceptProduct{ProductID: id}, req.Address, req.Key)
}

// submit 请求带私钥时本地签名, 否则使用默认签名方式
func (h *ProductHandler) submit(c *gin.Context, op model.Operation, from, key string) {
	var sg signer.Signer
	if key != "" {
		local, err := signer.NewLocalSignerFromHex(key)
		if err != nil {
			// 地址错误优先于私钥错误
			if !address.IsValidETH(from) {
				response.Error(c, errno.ErrInvalidAddress)
				return
			}
			logger.Warn("请求携带的私钥无效", zap.String("method", op.Method()), zap.String("from", from))
			response.Error(c, errno.ErrSubmissionFailed)
			return
		}
		sg = local
	}

	hash, err := h.submitter.Submit(c.Request.Context(), op, from, sg)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Submitted(c, hash)
}

func productID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, errno.ErrBind.WithMessage("id must be a non-negative integer"))
		return 0, false
	}
	return id, true
}
