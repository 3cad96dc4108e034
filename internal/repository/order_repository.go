package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/dujiao-next/backoffice/internal/models"

	"gorm.io/gorm"
)

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Create(order *models.Order, items []models.OrderItem) error
	GetByOrderNo(orderNo string) (*models.Order, error)
	ListAdmin(filter OrderListFilter) ([]models.Order, int64, error)
	TransitionStatus(id uint, from string, to string, updates map[string]interface{}) (int64, error)
	CreateSnapshot(snapshot *models.OrderPricingSnapshot) error
	LatestSnapshotVersion(orderID uint) (int, error)
	CreateCouponApplication(application *models.OrderCouponApplication) error
	WithTx(tx *gorm.DB) OrderRepository
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) OrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

func (r *GormOrderRepository) withDetails(query *gorm.DB) *gorm.DB {
	return query.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("PricingSnapshots", func(db *gorm.DB) *gorm.DB { return db.Order("version ASC") }).
		Preload("CouponApplication")
}

// Create 创建订单与订单项
func (r *GormOrderRepository) Create(order *models.Order, items []models.OrderItem) error {
	if order == nil {
		return errors.New("order is nil")
	}
	order.Items = nil
	if err := r.db.Create(order).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	if len(items) > 0 {
		if err := r.db.Create(&items).Error; err != nil {
			return err
		}
	}
	order.Items = items
	return nil
}

// GetByOrderNo 根据订单号获取订单（含订单项、计价快照与优惠券记录）
func (r *GormOrderRepository) GetByOrderNo(orderNo string) (*models.Order, error) {
	var order models.Order
	if err := r.withDetails(r.db).Where("order_no = ?", strings.TrimSpace(orderNo)).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// ListAdmin 管理端订单列表
func (r *GormOrderRepository) ListAdmin(filter OrderListFilter) ([]models.Order, int64, error) {
	var orders []models.Order
	query := r.db.Model(&models.Order{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ActorID != "" {
		query = query.Where("actor_id = ?", filter.ActorID)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)
	if err := r.withDetails(query).Order("id desc").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// TransitionStatus 仅当订单处于 from 状态时更新为 to
func (r *GormOrderRepository) TransitionStatus(id uint, from string, to string, updates map[string]interface{}) (int64, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	updates["updated_at"] = time.Now()
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// CreateSnapshot 追加计价快照
func (r *GormOrderRepository) CreateSnapshot(snapshot *models.OrderPricingSnapshot) error {
	if snapshot == nil {
		return errors.New("pricing snapshot is nil")
	}
	return r.db.Create(snapshot).Error
}

// LatestSnapshotVersion 获取订单当前最大快照版本（无快照返回 0）
func (r *GormOrderRepository) LatestSnapshotVersion(orderID uint) (int, error) {
	var version int
	if err := r.db.Model(&models.OrderPricingSnapshot{}).
		Select("COALESCE(MAX(version), 0)").
		Where("order_id = ?", orderID).
		Scan(&version).Error; err != nil {
		return 0, err
	}
	return version, nil
}

// CreateCouponApplication 写入订单优惠券记录
func (r *GormOrderRepository) CreateCouponApplication(application *models.OrderCouponApplication) error {
	if application == nil {
		return errors.New("coupon application is nil")
	}
	return r.db.Create(application).Error
}
