package models

import (
	"time"

	"gorm.io/gorm"
)

// Product 商品表
type Product struct {
	ID        uint           `gorm:"primarykey" json:"id"`                                    // 主键
	Slug      string         `gorm:"uniqueIndex;not null" json:"slug"`                        // 唯一标识
	Title     string         `gorm:"type:varchar(200);not null" json:"title"`                 // 商品名称
	ListPrice Money          `gorm:"type:decimal(20,2);not null;default:0" json:"list_price"` // 标价
	SalePrice *Money         `gorm:"type:decimal(20,2)" json:"sale_price,omitempty"`          // 促销价（为空表示未设置）
	IsActive  bool           `gorm:"default:true;index" json:"is_active"`                     // 是否上架
	CreatedAt time.Time      `gorm:"index" json:"created_at"`                                 // 创建时间
	UpdatedAt time.Time      `json:"updated_at"`                                              // 更新时间
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`                                          // 软删除时间

	Variants []ProductVariant `gorm:"foreignKey:ProductID" json:"variants,omitempty"` // 规格列表
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}

// EffectivePrice 实际售价：促销价存在且低于标价时取促销价
func (p Product) EffectivePrice() Money {
	return EffectivePrice(p.ListPrice, p.SalePrice)
}

// EffectivePrice 根据标价与促销价计算实际售价
func EffectivePrice(listPrice Money, salePrice *Money) Money {
	if salePrice != nil && salePrice.Decimal.LessThan(listPrice.Decimal) {
		return *salePrice
	}
	return listPrice
}
