package admin

import (
	"strconv"
	"strings"
	"time"

	handlershared "github.com/dujiao-next/backoffice/internal/http/handlers/shared"
	"github.com/dujiao-next/backoffice/internal/http/response"
	"github.com/dujiao-next/backoffice/internal/models"
	"github.com/dujiao-next/backoffice/internal/repository"
	"github.com/dujiao-next/backoffice/internal/service"

	"github.com/gin-gonic/gin"
)

// CouponRequest 创建/更新优惠券请求
type CouponRequest struct {
	Code          string       `json:"code"`
	DiscountType  string       `json:"discount_type" binding:"required"`
	DiscountValue models.Money `json:"discount_value"`
	MinAmount     models.Money `json:"min_amount"`
	ValidFrom     string       `json:"valid_from" binding:"required"`
	ValidTo       string       `json:"valid_to" binding:"required"`
	UsageLimit    int          `json:"usage_limit"`
	IsActive      *bool        `json:"is_active"`
}

// ValidateCouponRequest 优惠券试算请求
type ValidateCouponRequest struct {
	Code        string       `json:"code" binding:"required"`
	OrderAmount models.Money `json:"order_amount"`
}

func (r CouponRequest) toInput() (service.CouponInput, error) {
	validFrom, err := parseTimeNullable(r.ValidFrom)
	if err != nil {
		return service.CouponInput{}, err
	}
	validTo, err := parseTimeNullable(r.ValidTo)
	if err != nil {
		return service.CouponInput{}, err
	}
	input := service.CouponInput{
		Code:          r.Code,
		DiscountType:  strings.TrimSpace(r.DiscountType),
		DiscountValue: r.DiscountValue,
		MinAmount:     r.MinAmount,
		UsageLimit:    r.UsageLimit,
		IsActive:      r.IsActive,
	}
	if validFrom != nil {
		input.ValidFrom = *validFrom
	}
	if validTo != nil {
		input.ValidTo = *validTo
	}
	return input, nil
}

// CreateCoupon 创建优惠券
func (h *Handler) CreateCoupon(c *gin.Context) {
	actor, ok := getAdminActor(c)
	if !ok {
		return
	}
	var req CouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondError(c, response.CodeBadRequest, "invalid validity window", nil)
		return
	}
	coupon, err := h.CouponAdminService.Create(input, actor)
	if err != nil {
		respondServiceError(c, err, "create coupon failed")
		return
	}
	response.Success(c, coupon)
}

// UpdateCoupon 更新优惠券（优惠码不可修改）
func (h *Handler) UpdateCoupon(c *gin.Context) {
	couponID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	actor, ok := getAdminActor(c)
	if !ok {
		return
	}
	var req CouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondError(c, response.CodeBadRequest, "invalid validity window", nil)
		return
	}
	coupon, err := h.CouponAdminService.Update(couponID, input, actor)
	if err != nil {
		respondServiceError(c, err, "update coupon failed")
		return
	}
	response.Success(c, coupon)
}

// DeactivateCoupon 停用优惠券
func (h *Handler) DeactivateCoupon(c *gin.Context) {
	couponID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	actor, ok := getAdminActor(c)
	if !ok {
		return
	}
	coupon, err := h.CouponAdminService.Deactivate(couponID, actor)
	if err != nil {
		respondServiceError(c, err, "deactivate coupon failed")
		return
	}
	response.Success(c, coupon)
}

// GetAdminCoupons 获取优惠券列表
func (h *Handler) GetAdminCoupons(c *gin.Context) {
	page, pageSize := handlershared.PaginationFromQuery(c)
	var isActive *bool
	if raw := strings.TrimSpace(c.Query("is_active")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "invalid is_active", nil)
			return
		}
		isActive = &parsed
	}

	coupons, total, err := h.CouponAdminService.List(repository.CouponListFilter{
		Code:     strings.TrimSpace(c.Query("code")),
		Keyword:  c.Query("keyword"),
		IsActive: isActive,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondServiceError(c, err, "load coupons failed")
		return
	}
	pageResponse(c, coupons, page, pageSize, total)
}

// ValidateCoupon 按订单金额试算优惠券，不核销
func (h *Handler) ValidateCoupon(c *gin.Context) {
	var req ValidateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	result, err := h.CouponValidator.Validate(c.Request.Context(), req.Code, req.OrderAmount, time.Now())
	if err != nil {
		respondServiceError(c, err, "validate coupon failed")
		return
	}
	response.Success(c, result)
}
