package shared

import (
	"errors"

	"github.com/dujiao-next/backoffice/internal/http/response"
	"github.com/dujiao-next/backoffice/internal/logger"
	"github.com/dujiao-next/backoffice/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// errorMapping 业务错误到响应码的映射
type errorMapping struct {
	target error
	code   int
	msg    string
}

// 按顺序匹配，越具体的错误越靠前
var serviceErrorTable = []errorMapping{
	{target: service.ErrActorRequired, code: response.CodeUnauthorized, msg: "actor is required"},
	{target: service.ErrInvalidCredentials, code: response.CodeUnauthorized, msg: "invalid username or password"},
	{target: service.ErrInvalidToken, code: response.CodeUnauthorized, msg: "invalid token"},
	{target: service.ErrAdminDisabled, code: response.CodeForbidden, msg: "admin disabled"},
	{target: service.ErrVariantNotFound, code: response.CodeNotFound, msg: "variant not found"},
	{target: service.ErrProductNotFound, code: response.CodeNotFound, msg: "product not found"},
	{target: service.ErrReservationNotFound, code: response.CodeNotFound, msg: "reservation not found"},
	{target: service.ErrCouponNotFound, code: response.CodeNotFound, msg: "coupon not found"},
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, msg: "order not found"},
	{target: service.ErrInsufficientStock, code: response.CodeConflict, msg: "insufficient stock"},
	{target: service.ErrConcurrencyConflict, code: response.CodeConflict, msg: "stock was modified concurrently, retry later"},
	{target: service.ErrCouponCodeExists, code: response.CodeConflict, msg: "coupon code already exists"},
	{target: service.ErrOrderInvalidStatus, code: response.CodeConflict, msg: "order status does not allow this operation"},
	{target: service.ErrCouponInactive, code: response.CodeUnprocessable, msg: "coupon inactive"},
	{target: service.ErrCouponOutOfWindow, code: response.CodeUnprocessable, msg: "coupon outside validity window"},
	{target: service.ErrCouponUsageExhausted, code: response.CodeUnprocessable, msg: "coupon usage limit reached"},
	{target: service.ErrCouponBelowMinimum, code: response.CodeUnprocessable, msg: "order amount below coupon minimum"},
	{target: service.ErrInvalidQuantity, code: response.CodeBadRequest, msg: "invalid quantity"},
	{target: service.ErrInvalidUnitPrice, code: response.CodeBadRequest, msg: "invalid unit price"},
	{target: service.ErrOrderEmpty, code: response.CodeBadRequest, msg: "order has no items"},
	{target: service.ErrCouponInvalid, code: response.CodeBadRequest, msg: "invalid coupon definition"},
}

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondError 返回错误响应，并在有原始错误时记录日志。
func RespondError(c *gin.Context, code int, msg string, err error) {
	appErr := response.WrapError(code, msg, err)
	if err != nil {
		RequestLog(c).Errorw("handler_error",
			"code", appErr.Code,
			"message", appErr.Message,
			"error", err,
		)
	}
	response.Error(c, appErr.Code, appErr.Message)
}

// ResolveServiceError 查表得到业务错误对应的响应码与消息，未命中返回 false
func ResolveServiceError(err error) (int, string, bool) {
	if err == nil {
		return 0, "", false
	}
	for _, item := range serviceErrorTable {
		if errors.Is(err, item.target) {
			return item.code, item.msg, true
		}
	}
	return 0, "", false
}

// RespondServiceError 按错误表输出业务错误；库存不足与优惠券拒绝附带明细，未知错误记录日志后返回 500
func RespondServiceError(c *gin.Context, err error, fallbackMsg string) {
	code, msg, ok := ResolveServiceError(err)
	if !ok {
		RespondError(c, response.CodeInternal, fallbackMsg, err)
		return
	}

	var stockErr *service.InsufficientStockError
	if errors.As(err, &stockErr) {
		response.ErrorWithData(c, code, stockErr.Error(), gin.H{
			"variant_id": stockErr.VariantID,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
			"inactive":   stockErr.Inactive,
		})
		return
	}
	var couponErr *service.CouponRejectedError
	if errors.As(err, &couponErr) {
		response.ErrorWithData(c, code, couponErr.Reason, gin.H{
			"code":   couponErr.Code,
			"status": couponErr.Status,
		})
		return
	}
	RequestLog(c).Debugw("handler_service_rejected", "code", code, "error", err)
	response.Error(c, code, msg)
}
