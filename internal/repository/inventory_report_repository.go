package repository

import (
	"github.com/dujiao-next/backoffice/internal/models"

	"gorm.io/gorm"
)

// InventoryReportRepository 库存报表数据访问接口（只读）
type InventoryReportRepository interface {
	ListVariantStock() ([]VariantStockRow, error)
	ListLowStock(threshold int) ([]VariantStockRow, error)
	CountOutOfStock() (int64, error)
	WithTx(tx *gorm.DB) InventoryReportRepository
}

// VariantStockRow 规格库存原始行（规格 + 所属商品）
type VariantStockRow struct {
	VariantID         uint
	ProductID         uint
	ProductTitle      string
	SKUCode           string
	VariantDetails    models.JSON
	AvailableQuantity int
	ListPrice         models.Money
	SalePrice         *models.Money
}

// GormInventoryReportRepository GORM 实现
type GormInventoryReportRepository struct {
	db *gorm.DB
}

// NewInventoryReportRepository 创建库存报表仓库
func NewInventoryReportRepository(db *gorm.DB) *GormInventoryReportRepository {
	return &GormInventoryReportRepository{db: db}
}

// WithTx 绑定事务或带上下文的会话
func (r *GormInventoryReportRepository) WithTx(tx *gorm.DB) InventoryReportRepository {
	if tx == nil {
		return r
	}
	return &GormInventoryReportRepository{db: tx}
}

// activeVariantStock 上架商品下启用规格的库存视图
func (r *GormInventoryReportRepository) activeVariantStock() *gorm.DB {
	return r.db.Table("product_variants AS v").
		Select(`v.id AS variant_id, v.product_id AS product_id, p.title AS product_title, v.sku_code AS sku_code,
			v.variant_details AS variant_details, v.available_quantity AS available_quantity,
			p.list_price AS list_price, p.sale_price AS sale_price`).
		Joins("JOIN products AS p ON p.id = v.product_id").
		Where("v.is_active = ? AND p.is_active = ? AND p.deleted_at IS NULL", true, true)
}

// ListVariantStock 获取全部启用规格的库存
func (r *GormInventoryReportRepository) ListVariantStock() ([]VariantStockRow, error) {
	rows := make([]VariantStockRow, 0)
	if err := r.activeVariantStock().Order("v.product_id ASC, v.id ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListLowStock 获取低库存规格（0 < 库存 <= 阈值），库存少的在前
func (r *GormInventoryReportRepository) ListLowStock(threshold int) ([]VariantStockRow, error) {
	rows := make([]VariantStockRow, 0)
	if err := r.activeVariantStock().
		Where("v.available_quantity > 0 AND v.available_quantity <= ?", threshold).
		Order("v.available_quantity ASC, v.id ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountOutOfStock 统计缺货规格数量
func (r *GormInventoryReportRepository) CountOutOfStock() (int64, error) {
	var count int64
	if err := r.db.Table("product_variants AS v").
		Joins("JOIN products AS p ON p.id = v.product_id").
		Where("v.is_active = ? AND p.is_active = ? AND p.deleted_at IS NULL", true, true).
		Where("v.available_quantity = 0").
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
