package models

import "time"

// OrderCouponApplication 订单优惠券使用记录，优惠金额在核销时冻结
type OrderCouponApplication struct {
	ID             uint      `gorm:"primarykey" json:"id"`                                         // 主键
	OrderID        uint      `gorm:"uniqueIndex;not null" json:"order_id"`                         // 订单ID
	CouponID       uint      `gorm:"index;not null" json:"coupon_id"`                              // 优惠券ID
	Code           string    `gorm:"not null" json:"code"`                                         // 优惠码快照
	DiscountAmount Money     `gorm:"type:decimal(20,2);not null;default:0" json:"discount_amount"` // 实际优惠金额
	CreatedAt      time.Time `gorm:"index" json:"created_at"`                                      // 创建时间
}

// TableName 指定表名
func (OrderCouponApplication) TableName() string {
	return "order_coupon_applications"
}
