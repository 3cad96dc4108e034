package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dujiao-next/backoffice/internal/constants"
	"github.com/dujiao-next/backoffice/internal/logger"
	"github.com/dujiao-next/backoffice/internal/metrics"
	"github.com/dujiao-next/backoffice/internal/models"
	"github.com/dujiao-next/backoffice/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

// CouponValidationResult 优惠券校验结果；业务拒绝通过 Status/Reason 表达而非 error
type CouponValidationResult struct {
	IsValid        bool         `json:"is_valid"`
	Status         string       `json:"status"`
	Reason         string       `json:"reason,omitempty"`
	Code           string       `json:"code"`
	CouponID       uint         `json:"coupon_id,omitempty"`
	DiscountType   string       `json:"discount_type,omitempty"`
	OrderAmount    models.Money `json:"order_amount"`
	DiscountAmount models.Money `json:"discount_amount"`
	FinalAmount    models.Money `json:"final_amount"`
}

// Err 将拒绝结果转换为带原因的错误，校验通过时返回 nil
func (r *CouponValidationResult) Err() error {
	if r == nil || r.IsValid {
		return nil
	}
	return &CouponRejectedError{
		Code:   r.Code,
		Status: r.Status,
		Reason: r.Reason,
		cause:  couponStatusError(r.Status),
	}
}

// CouponValidator 优惠券校验与核销
type CouponValidator struct {
	db         *gorm.DB
	couponRepo repository.CouponRepository
	metrics    *metrics.InventoryMetrics
}

// NewCouponValidator 创建优惠券校验器
func NewCouponValidator(db *gorm.DB, couponRepo repository.CouponRepository, m *metrics.InventoryMetrics) *CouponValidator {
	return &CouponValidator{
		db:         db,
		couponRepo: couponRepo,
		metrics:    m,
	}
}

// NormalizeCouponCode 优惠码规范化：去空白并转大写
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate 按 未知 → 停用 → 不在有效期 → 次数用尽 → 未达门槛 的顺序校验，首个失败项即结果
func (v *CouponValidator) Validate(ctx context.Context, code string, orderAmount models.Money, now time.Time) (*CouponValidationResult, error) {
	normalized := NormalizeCouponCode(code)
	amount := models.NewMoneyFromDecimal(orderAmount.Decimal)
	result := &CouponValidationResult{
		Code:           normalized,
		OrderAmount:    amount,
		DiscountAmount: models.NewMoneyFromDecimal(decimal.Zero),
		FinalAmount:    amount,
	}
	if normalized == "" {
		return result.reject(constants.CouponStatusUnknown, "coupon code is empty"), nil
	}

	coupon, err := v.couponRepo.WithTx(v.db.WithContext(ctx)).GetByCode(normalized)
	if err != nil {
		return nil, fmt.Errorf("load coupon: %w", err)
	}
	if coupon == nil {
		return result.reject(constants.CouponStatusUnknown, fmt.Sprintf("coupon %s does not exist", normalized)), nil
	}
	result.CouponID = coupon.ID
	result.DiscountType = coupon.DiscountType

	if !coupon.IsActive {
		return result.reject(constants.CouponStatusInactive, "coupon has been deactivated"), nil
	}
	if now.Before(coupon.ValidFrom) {
		return result.reject(constants.CouponStatusOutOfWindow,
			fmt.Sprintf("coupon is valid from %s", coupon.ValidFrom.Format(time.RFC3339))), nil
	}
	if now.After(coupon.ValidTo) {
		return result.reject(constants.CouponStatusOutOfWindow,
			fmt.Sprintf("coupon expired at %s", coupon.ValidTo.Format(time.RFC3339))), nil
	}
	if coupon.UsageLimit > 0 && coupon.UsedCount >= coupon.UsageLimit {
		return result.reject(constants.CouponStatusUsageExhausted,
			fmt.Sprintf("coupon usage limit %d reached", coupon.UsageLimit)), nil
	}
	if amount.Decimal.LessThan(coupon.MinAmount.Decimal) {
		return result.reject(constants.CouponStatusBelowMinimum,
			fmt.Sprintf("order amount %s is below minimum %s", amount.String(), coupon.MinAmount.String())), nil
	}

	discount, err := calculateCouponDiscount(coupon, amount)
	if err != nil {
		return nil, err
	}
	result.IsValid = true
	result.Status = constants.CouponStatusValid
	result.DiscountAmount = discount
	result.FinalAmount = models.NewMoneyFromDecimal(amount.Decimal.Sub(discount.Decimal)).FloorZero()
	return result, nil
}

// Redeem 核销一次优惠券：在同一条条件更新中重新校验使用上限
func (v *CouponValidator) Redeem(ctx context.Context, couponID uint) error {
	repo := v.couponRepo.WithTx(v.db.WithContext(ctx))
	affected, err := repo.IncrementUsedCountIfAvailable(couponID)
	if err != nil {
		v.metrics.ObserveCouponRedemption(metrics.OutcomeError)
		return fmt.Errorf("redeem coupon: %w", err)
	}
	if affected > 0 {
		v.metrics.ObserveCouponRedemption(metrics.OutcomeSuccess)
		return nil
	}
	v.metrics.ObserveCouponRedemption(metrics.OutcomeRejected)
	coupon, err := repo.GetByID(couponID)
	if err != nil {
		return fmt.Errorf("load coupon: %w", err)
	}
	if coupon == nil {
		return ErrCouponNotFound
	}
	return ErrCouponUsageExhausted
}

// Revert 撤销一次核销（订单落库失败时的补偿）
func (v *CouponValidator) Revert(ctx context.Context, couponID uint) error {
	affected, err := v.couponRepo.WithTx(v.db.WithContext(ctx)).DecrementUsedCount(couponID, 1)
	if err != nil {
		return fmt.Errorf("revert coupon redemption: %w", err)
	}
	if affected == 0 {
		logger.Warnw("coupon_revert_noop", "coupon_id", couponID)
	}
	return nil
}

func (r *CouponValidationResult) reject(status, reason string) *CouponValidationResult {
	r.IsValid = false
	r.Status = status
	r.Reason = reason
	return r
}

// calculateCouponDiscount 百分比折扣按 2 位小数四舍五入（中间值远离零），固定金额不超过订单金额
func calculateCouponDiscount(coupon *models.Coupon, amount models.Money) (models.Money, error) {
	var discount decimal.Decimal
	switch coupon.DiscountType {
	case constants.CouponTypePercentage:
		discount = amount.Decimal.Mul(coupon.DiscountValue.Decimal).Div(hundred).Round(2)
	case constants.CouponTypeFixedAmount:
		discount = decimal.Min(coupon.DiscountValue.Decimal, amount.Decimal)
	default:
		return models.Money{}, fmt.Errorf("%w: unsupported discount type %q", ErrCouponInvalid, coupon.DiscountType)
	}
	if discount.GreaterThan(amount.Decimal) {
		discount = amount.Decimal
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return models.NewMoneyFromDecimal(discount), nil
}

func couponStatusError(status string) error {
	switch status {
	case constants.CouponStatusUnknown:
		return ErrCouponNotFound
	case constants.CouponStatusInactive:
		return ErrCouponInactive
	case constants.CouponStatusOutOfWindow:
		return ErrCouponOutOfWindow
	case constants.CouponStatusUsageExhausted:
		return ErrCouponUsageExhausted
	case constants.CouponStatusBelowMinimum:
		return ErrCouponBelowMinimum
	default:
		return ErrCouponInvalid
	}
}
