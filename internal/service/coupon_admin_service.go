package service

import (
	"strings"
	"time"

	"github.com/dujiao-next/backoffice/internal/constants"
	"github.com/dujiao-next/backoffice/internal/logger"
	"github.com/dujiao-next/backoffice/internal/models"
	"github.com/dujiao-next/backoffice/internal/repository"

	"github.com/shopspring/decimal"
)

// CouponAdminService 优惠券管理服务
type CouponAdminService struct {
	repo repository.CouponRepository
}

// NewCouponAdminService 创建优惠券管理服务
func NewCouponAdminService(repo repository.CouponRepository) *CouponAdminService {
	return &CouponAdminService{repo: repo}
}

// CouponInput 创建/更新优惠券输入（优惠码创建后不可修改）
type CouponInput struct {
	Code          string
	DiscountType  string
	DiscountValue models.Money
	MinAmount     models.Money
	ValidFrom     time.Time
	ValidTo       time.Time
	UsageLimit    int
	IsActive      *bool
}

// Create 创建优惠券
func (s *CouponAdminService) Create(input CouponInput, actor Actor) (*models.Coupon, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	code := NormalizeCouponCode(input.Code)
	if code == "" {
		return nil, ErrCouponInvalid
	}
	if err := validateCouponRules(input); err != nil {
		return nil, err
	}

	exist, err := s.repo.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if exist != nil {
		return nil, ErrCouponCodeExists
	}

	isActive := true
	if input.IsActive != nil {
		isActive = *input.IsActive
	}
	coupon := &models.Coupon{
		Code:          code,
		DiscountType:  input.DiscountType,
		DiscountValue: input.DiscountValue,
		MinAmount:     input.MinAmount,
		ValidFrom:     input.ValidFrom,
		ValidTo:       input.ValidTo,
		UsageLimit:    input.UsageLimit,
		UsedCount:     0,
		IsActive:      true,
	}
	if err := s.repo.Create(coupon); err != nil {
		// 并发创建或软删除记录仍占用唯一索引
		if isUniqueViolation(err) {
			return nil, ErrCouponCodeExists
		}
		return nil, err
	}
	if !isActive {
		// is_active 带数据库默认值，零值需显式写回
		coupon.IsActive = false
		if _, err := s.repo.Update(coupon); err != nil {
			return nil, err
		}
	}
	logger.Infow("coupon_created", "coupon_id", coupon.ID, "code", coupon.Code, "actor_id", actor.String())
	return coupon, nil
}

// Update 更新优惠券规则，不影响已冻结的订单优惠金额
func (s *CouponAdminService) Update(id uint, input CouponInput, actor Actor) (*models.Coupon, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	existing, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrCouponNotFound
	}
	if err := validateCouponRules(input); err != nil {
		return nil, err
	}
	if input.UsageLimit > 0 && input.UsageLimit < existing.UsedCount {
		return nil, ErrCouponInvalid
	}

	existing.DiscountType = input.DiscountType
	existing.DiscountValue = input.DiscountValue
	existing.MinAmount = input.MinAmount
	existing.ValidFrom = input.ValidFrom
	existing.ValidTo = input.ValidTo
	existing.UsageLimit = input.UsageLimit
	if input.IsActive != nil {
		existing.IsActive = *input.IsActive
	}
	affected, err := s.repo.Update(existing)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// 检查之后有核销落地，已用次数超过了新的上限
		return nil, ErrCouponInvalid
	}
	logger.Infow("coupon_updated", "coupon_id", existing.ID, "actor_id", actor.String())
	return existing, nil
}

// Deactivate 停用优惠券（被订单引用的优惠券不做物理删除）
func (s *CouponAdminService) Deactivate(id uint, actor Actor) (*models.Coupon, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	existing, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrCouponNotFound
	}
	if !existing.IsActive {
		return existing, nil
	}
	existing.IsActive = false
	if _, err := s.repo.Update(existing); err != nil {
		return nil, err
	}
	logger.Infow("coupon_deactivated", "coupon_id", existing.ID, "actor_id", actor.String())
	return existing, nil
}

// List 获取优惠券列表
func (s *CouponAdminService) List(filter repository.CouponListFilter) ([]models.Coupon, int64, error) {
	filter.Code = NormalizeCouponCode(filter.Code)
	return s.repo.List(filter)
}

func validateCouponRules(input CouponInput) error {
	switch input.DiscountType {
	case constants.CouponTypePercentage:
		if input.DiscountValue.Decimal.GreaterThan(hundred) {
			return ErrCouponInvalid
		}
	case constants.CouponTypeFixedAmount:
	default:
		return ErrCouponInvalid
	}
	if input.DiscountValue.Decimal.LessThanOrEqual(decimal.Zero) {
		return ErrCouponInvalid
	}
	if input.MinAmount.Decimal.IsNegative() {
		return ErrCouponInvalid
	}
	if input.ValidFrom.IsZero() || input.ValidTo.IsZero() || !input.ValidFrom.Before(input.ValidTo) {
		return ErrCouponInvalid
	}
	if input.UsageLimit < 0 {
		return ErrCouponInvalid
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
