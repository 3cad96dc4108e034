package models

import "time"

// OrderItem 订单项表
type OrderItem struct {
	ID           uint      `gorm:"primarykey" json:"id"`                                    // 主键
	OrderID      uint      `gorm:"index;not null" json:"order_id"`                          // 订单ID
	ProductID    uint      `gorm:"index;not null" json:"product_id"`                        // 商品ID
	VariantID    uint      `gorm:"index;not null" json:"variant_id"`                        // 规格ID
	SKUCode      string    `gorm:"column:sku_code;type:varchar(64)" json:"sku_code"`        // SKU编码快照
	Quantity     int       `gorm:"not null" json:"quantity"`                                // 数量
	UnitPrice    Money     `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price"` // 单价
	LineTotal    Money     `gorm:"type:decimal(20,2);not null;default:0" json:"line_total"` // 小计
	ReserveLogID uint      `gorm:"index" json:"reserve_log_id"`                             // 占用库存流水ID
	CreatedAt    time.Time `gorm:"index" json:"created_at"`                                 // 创建时间
}

// TableName 指定表名
func (OrderItem) TableName() string {
	return "order_items"
}
