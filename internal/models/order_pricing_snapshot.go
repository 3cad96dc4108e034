package models

import "time"

// OrderPricingSnapshot 订单计价快照，写入后不可修改，重新计价追加新版本
type OrderPricingSnapshot struct {
	ID             uint      `gorm:"primarykey" json:"id"`                                                       // 主键
	OrderID        uint      `gorm:"not null;uniqueIndex:idx_order_snapshot_version,priority:1" json:"order_id"` // 订单ID
	Version        int       `gorm:"not null;uniqueIndex:idx_order_snapshot_version,priority:2" json:"version"`  // 快照版本
	Subtotal       Money     `gorm:"type:decimal(20,2);not null;default:0" json:"subtotal"`                      // 商品小计
	TaxAmount      Money     `gorm:"type:decimal(20,2);not null;default:0" json:"tax_amount"`                    // 税费
	ShippingAmount Money     `gorm:"type:decimal(20,2);not null;default:0" json:"shipping_amount"`               // 运费
	DiscountAmount Money     `gorm:"type:decimal(20,2);not null;default:0" json:"discount_amount"`               // 优惠金额
	TotalAmount    Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"`                  // 应付金额
	CreatedAt      time.Time `gorm:"index" json:"created_at"`                                                    // 创建时间
}

// TableName 指定表名
func (OrderPricingSnapshot) TableName() string {
	return "order_pricing_snapshots"
}
