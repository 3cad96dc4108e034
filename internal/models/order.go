package models

import (
	"time"
)

// Order 订单表
type Order struct {
	ID         uint       `gorm:"primarykey" json:"id"`                            // 主键
	OrderNo    string     `gorm:"uniqueIndex;not null" json:"order_no"`            // 订单编号
	Status     string     `gorm:"index;not null" json:"status"`                    // 订单状态
	ActorID    string     `gorm:"type:varchar(64);not null;index" json:"actor_id"` // 下单操作人
	Currency   string     `gorm:"not null" json:"currency"`                        // 币种
	CanceledAt *time.Time `gorm:"index" json:"canceled_at,omitempty"`              // 取消时间
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`                         // 创建时间
	UpdatedAt  time.Time  `gorm:"index" json:"updated_at"`                         // 更新时间

	Items             []OrderItem             `gorm:"foreignKey:OrderID" json:"items,omitempty"`              // 订单项
	PricingSnapshots  []OrderPricingSnapshot  `gorm:"foreignKey:OrderID" json:"pricing_snapshots,omitempty"`  // 计价快照（按版本）
	CouponApplication *OrderCouponApplication `gorm:"foreignKey:OrderID" json:"coupon_application,omitempty"` // 优惠券使用记录
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// LatestSnapshot 返回最新版本的计价快照
func (o Order) LatestSnapshot() *OrderPricingSnapshot {
	var latest *OrderPricingSnapshot
	for i := range o.PricingSnapshots {
		if latest == nil || o.PricingSnapshots[i].Version > latest.Version {
			latest = &o.PricingSnapshots[i]
		}
	}
	return latest
}
