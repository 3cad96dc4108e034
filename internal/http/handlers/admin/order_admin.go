package admin

import (
	"strings"

	handlershared "github.com/dujiao-next/backoffice/internal/http/handlers/shared"
	"github.com/dujiao-next/backoffice/internal/http/response"
	"github.com/dujiao-next/backoffice/internal/repository"
	"github.com/dujiao-next/backoffice/internal/service"

	"github.com/gin-gonic/gin"
)

// OrderDraftRequest 计价/下单请求
type OrderDraftRequest struct {
	Items      []service.OrderDraftItem `json:"items" binding:"required"`
	CouponCode string                   `json:"coupon_code"`
}

// CancelOrderRequest 取消订单请求
type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// PriceOrder 订单计价预览，不占用库存
func (h *Handler) PriceOrder(c *gin.Context) {
	var req OrderDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	quote, err := h.OrderPricer.Price(c.Request.Context(), service.OrderDraft{
		Items:      req.Items,
		CouponCode: req.CouponCode,
	})
	if err != nil {
		respondServiceError(c, err, "price order failed")
		return
	}
	response.Success(c, quote)
}

// ConfirmOrder 确认下单：占用库存并核销优惠券
func (h *Handler) ConfirmOrder(c *gin.Context) {
	actor, ok := getAdminActor(c)
	if !ok {
		return
	}
	var req OrderDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	confirmed, err := h.OrderPricer.Confirm(c.Request.Context(), service.OrderDraft{
		Items:      req.Items,
		CouponCode: req.CouponCode,
		Actor:      actor,
	})
	if err != nil {
		respondServiceError(c, err, "confirm order failed")
		return
	}
	h.InventoryReporter.InvalidateReportCache(c.Request.Context())
	response.Success(c, confirmed)
}

// CancelOrder 取消订单并回补库存
func (h *Handler) CancelOrder(c *gin.Context) {
	actor, ok := getAdminActor(c)
	if !ok {
		return
	}
	orderNo := strings.TrimSpace(c.Param("order_no"))
	if orderNo == "" {
		respondError(c, response.CodeBadRequest, "invalid order_no", nil)
		return
	}
	var req CancelOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "bad request", err)
			return
		}
	}
	order, err := h.OrderPricer.Cancel(c.Request.Context(), orderNo, actor, strings.TrimSpace(req.Reason))
	if err != nil {
		respondServiceError(c, err, "cancel order failed")
		return
	}
	h.InventoryReporter.InvalidateReportCache(c.Request.Context())
	response.Success(c, order)
}

// RepriceOrder 按当前计价规则重算订单并写入新快照
func (h *Handler) RepriceOrder(c *gin.Context) {
	orderNo := strings.TrimSpace(c.Param("order_no"))
	if orderNo == "" {
		respondError(c, response.CodeBadRequest, "invalid order_no", nil)
		return
	}
	snapshot, err := h.OrderPricer.Reprice(c.Request.Context(), orderNo)
	if err != nil {
		respondServiceError(c, err, "reprice order failed")
		return
	}
	response.Success(c, snapshot)
}

// GetOrder 订单详情
func (h *Handler) GetOrder(c *gin.Context) {
	orderNo := strings.TrimSpace(c.Param("order_no"))
	if orderNo == "" {
		respondError(c, response.CodeBadRequest, "invalid order_no", nil)
		return
	}
	order, err := h.OrderPricer.GetOrder(c.Request.Context(), orderNo)
	if err != nil {
		respondServiceError(c, err, "load order failed")
		return
	}
	response.Success(c, order)
}

// GetOrders 订单列表
func (h *Handler) GetOrders(c *gin.Context) {
	page, pageSize := handlershared.PaginationFromQuery(c)
	createdFrom, ok := parseTimeQuery(c, "created_from")
	if !ok {
		return
	}
	createdTo, ok := parseTimeQuery(c, "created_to")
	if !ok {
		return
	}
	orders, total, err := h.OrderPricer.ListOrders(c.Request.Context(), repository.OrderListFilter{
		Page:        page,
		PageSize:    pageSize,
		Status:      strings.TrimSpace(c.Query("status")),
		ActorID:     strings.TrimSpace(c.Query("actor")),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		respondServiceError(c, err, "load orders failed")
		return
	}
	pageResponse(c, orders, page, pageSize, total)
}
