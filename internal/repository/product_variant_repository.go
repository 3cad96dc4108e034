package repository

import (
	"errors"
	"strings"

	"github.com/dujiao-next/backoffice/internal/models"

	"gorm.io/gorm"
)

// ProductVariantRepository 商品规格库存数据访问接口
type ProductVariantRepository interface {
	GetByID(id uint) (*models.ProductVariant, error)
	GetByProductAndCode(productID uint, skuCode string) (*models.ProductVariant, error)
	ListByIDs(ids []uint, withProduct bool) ([]models.ProductVariant, error)
	ListByProduct(productID uint, onlyActive bool) ([]models.ProductVariant, error)
	Create(item *models.ProductVariant) error
	SetActive(id uint, active bool) (int64, error)
	DecreaseIfEnough(id uint, quantity int) (int64, error)
	Increase(id uint, quantity int) (int64, error)
	CompareAndSet(id uint, expected int, next int) (int64, error)
	WithTx(tx *gorm.DB) ProductVariantRepository
}

// GormProductVariantRepository GORM 实现
type GormProductVariantRepository struct {
	db *gorm.DB
}

// NewProductVariantRepository 创建规格仓库
func NewProductVariantRepository(db *gorm.DB) *GormProductVariantRepository {
	return &GormProductVariantRepository{db: db}
}

// WithTx 绑定事务
func (r *GormProductVariantRepository) WithTx(tx *gorm.DB) ProductVariantRepository {
	if tx == nil {
		return r
	}
	return &GormProductVariantRepository{db: tx}
}

// GetByID 根据 ID 获取规格
func (r *GormProductVariantRepository) GetByID(id uint) (*models.ProductVariant, error) {
	if id == 0 {
		return nil, nil
	}
	var item models.ProductVariant
	if err := r.db.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// GetByProductAndCode 按商品和编码获取规格
func (r *GormProductVariantRepository) GetByProductAndCode(productID uint, skuCode string) (*models.ProductVariant, error) {
	code := strings.TrimSpace(skuCode)
	if productID == 0 || code == "" {
		return nil, errors.New("invalid variant lookup params")
	}
	var item models.ProductVariant
	if err := r.db.Where("product_id = ? AND sku_code = ?", productID, code).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// ListByIDs 批量获取规格
func (r *GormProductVariantRepository) ListByIDs(ids []uint, withProduct bool) ([]models.ProductVariant, error) {
	if len(ids) == 0 {
		return []models.ProductVariant{}, nil
	}
	query := r.db.Where("id IN ?", ids)
	if withProduct {
		query = query.Preload("Product")
	}
	var items []models.ProductVariant
	if err := query.Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListByProduct 获取商品下的规格
func (r *GormProductVariantRepository) ListByProduct(productID uint, onlyActive bool) ([]models.ProductVariant, error) {
	if productID == 0 {
		return nil, errors.New("invalid product id")
	}
	query := r.db.Model(&models.ProductVariant{}).Where("product_id = ?", productID)
	if onlyActive {
		query = query.Where("is_active = ?", true)
	}
	var items []models.ProductVariant
	if err := query.Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Create 创建规格
func (r *GormProductVariantRepository) Create(item *models.ProductVariant) error {
	if item == nil {
		return errors.New("variant is nil")
	}
	return r.db.Create(item).Error
}

// SetActive 启用或停用规格（规格不删除）
func (r *GormProductVariantRepository) SetActive(id uint, active bool) (int64, error) {
	result := r.db.Model(&models.ProductVariant{}).
		Where("id = ?", id).
		Update("is_active", active)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// DecreaseIfEnough 条件扣减库存：规格启用且库存充足时才扣减，同时推进流水序号
func (r *GormProductVariantRepository) DecreaseIfEnough(id uint, quantity int) (int64, error) {
	if id == 0 || quantity <= 0 {
		return 0, errors.New("invalid variant decrease params")
	}
	result := r.db.Model(&models.ProductVariant{}).
		Where("id = ? AND is_active = ? AND available_quantity >= ?", id, true, quantity).
		Updates(map[string]interface{}{
			"available_quantity": gorm.Expr("available_quantity - ?", quantity),
			"log_sequence":       gorm.Expr("log_sequence + 1"),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Increase 回补库存，不设上限
func (r *GormProductVariantRepository) Increase(id uint, quantity int) (int64, error) {
	if id == 0 || quantity <= 0 {
		return 0, errors.New("invalid variant increase params")
	}
	result := r.db.Model(&models.ProductVariant{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"available_quantity": gorm.Expr("available_quantity + ?", quantity),
			"log_sequence":       gorm.Expr("log_sequence + 1"),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// CompareAndSet 库存等于 expected 时改为 next（乐观并发）
func (r *GormProductVariantRepository) CompareAndSet(id uint, expected int, next int) (int64, error) {
	if id == 0 || next < 0 {
		return 0, errors.New("invalid variant compare-and-set params")
	}
	result := r.db.Model(&models.ProductVariant{}).
		Where("id = ? AND available_quantity = ?", id, expected).
		Updates(map[string]interface{}{
			"available_quantity": next,
			"log_sequence":       gorm.Expr("log_sequence + 1"),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
