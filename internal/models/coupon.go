package models

import (
	"time"

	"gorm.io/gorm"
)

// Coupon 优惠券
type Coupon struct {
	ID            uint           `gorm:"primarykey" json:"id"`                                    // 主键
	Code          string         `gorm:"uniqueIndex;not null" json:"code"`                        // 优惠码（去空格后大写）
	DiscountType  string         `gorm:"type:varchar(20);not null" json:"discount_type"`          // 类型（percentage/fixed_amount）
	DiscountValue Money          `gorm:"type:decimal(20,2);not null" json:"discount_value"`       // 数值（百分比或固定金额）
	MinAmount     Money          `gorm:"type:decimal(20,2);not null;default:0" json:"min_amount"` // 使用门槛
	ValidFrom     time.Time      `gorm:"not null;index" json:"valid_from"`                        // 生效时间
	ValidTo       time.Time      `gorm:"not null;index" json:"valid_to"`                          // 失效时间
	UsageLimit    int            `gorm:"not null;default:0" json:"usage_limit"`                   // 总使用上限（0 表示不限制）
	UsedCount     int            `gorm:"not null;default:0" json:"used_count"`                    // 已使用次数
	IsActive      bool           `gorm:"not null;default:true" json:"is_active"`                  // 是否启用
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`                                 // 创建时间
	UpdatedAt     time.Time      `gorm:"index" json:"updated_at"`                                 // 更新时间
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`                                          // 软删除时间
}

// TableName 指定表名
func (Coupon) TableName() string {
	return "coupons"
}
