package service

import (
	"errors"
	"fmt"
)

// 库存相关错误
var (
	ErrVariantNotFound     = errors.New("variant not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInvalidQuantity     = errors.New("invalid quantity")
	ErrConcurrencyConflict = errors.New("concurrent stock update conflict")
	ErrActorRequired       = errors.New("actor id is required")
	ErrReservationNotFound = errors.New("reservation log not found")
	ErrProductNotFound     = errors.New("product not found")
)

// 优惠券相关错误
var (
	ErrCouponNotFound       = errors.New("coupon not found")
	ErrCouponInactive       = errors.New("coupon inactive")
	ErrCouponOutOfWindow    = errors.New("coupon outside validity window")
	ErrCouponUsageExhausted = errors.New("coupon usage limit reached")
	ErrCouponBelowMinimum   = errors.New("order amount below coupon minimum")
	ErrCouponInvalid        = errors.New("invalid coupon definition")
	ErrCouponCodeExists     = errors.New("coupon code already exists")
)

// 订单相关错误
var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderEmpty         = errors.New("order has no items")
	ErrOrderInvalidStatus = errors.New("order status does not allow this operation")
	ErrInvalidUnitPrice   = errors.New("invalid unit price")
)

// 认证相关错误
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAdminDisabled      = errors.New("admin disabled")
	ErrInvalidToken       = errors.New("invalid token")
)

// InsufficientStockError 指明哪个规格库存不足
type InsufficientStockError struct {
	VariantID uint
	Requested int
	Available int
	Inactive  bool
}

func (e *InsufficientStockError) Error() string {
	if e.Inactive {
		return fmt.Sprintf("variant %d is inactive", e.VariantID)
	}
	return fmt.Sprintf("insufficient stock for variant %d: requested %d, available %d", e.VariantID, e.Requested, e.Available)
}

// Unwrap 允许 errors.Is(err, ErrInsufficientStock)
func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// CouponRejectedError 优惠券校验未通过的具体原因
type CouponRejectedError struct {
	Code   string
	Status string
	Reason string
	cause  error
}

func (e *CouponRejectedError) Error() string {
	return fmt.Sprintf("coupon %s rejected: %s", e.Code, e.Reason)
}

// Unwrap 返回对应的哨兵错误
func (e *CouponRejectedError) Unwrap() error {
	return e.cause
}
