package models

import (
	"time"
)

// ProductVariant 商品规格库存表，库存数量只允许通过库存台账变更
type ProductVariant struct {
	ID                uint      `gorm:"primarykey" json:"id"`                                                                                          // 主键
	ProductID         uint      `gorm:"not null;index;uniqueIndex:idx_product_variant_sku" json:"product_id"`                                          // 商品ID
	SKUCode           string    `gorm:"column:sku_code;type:varchar(64);not null;uniqueIndex:idx_product_variant_sku" json:"sku_code"`                 // SKU编码（同商品内唯一）
	VariantDetails    JSON      `gorm:"type:json" json:"variant_details"`                                                                              // 规格值（如尺码/颜色）
	AvailableQuantity int       `gorm:"not null;default:0;check:chk_variant_available_non_negative,available_quantity >= 0" json:"available_quantity"` // 可用库存
	IsActive          bool      `gorm:"default:true;index" json:"is_active"`                                                                           // 是否启用（只停用不删除）
	LogSequence       uint64    `gorm:"not null;default:0" json:"log_sequence"`                                                                        // 库存流水序号（每次变更递增）
	CreatedAt         time.Time `gorm:"index" json:"created_at"`                                                                                       // 创建时间
	UpdatedAt         time.Time `gorm:"index" json:"updated_at"`                                                                                       // 更新时间

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"` // 关联商品
}

// TableName 指定表名
func (ProductVariant) TableName() string {
	return "product_variants"
}
