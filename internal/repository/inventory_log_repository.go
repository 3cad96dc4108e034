package repository

import (
	"errors"
	"time"

	"github.com/dujiao-next/backoffice/internal/models"

	"gorm.io/gorm"
)

// InventoryLogRepository 库存流水数据访问接口（只追加）
type InventoryLogRepository interface {
	Create(entry *models.InventoryLog) error
	GetByID(id uint) (*models.InventoryLog, error)
	GetReversal(reserveLogID uint) (*models.InventoryLog, error)
	ListByVariant(variantID uint, since *time.Time) ([]models.InventoryLog, error)
	ListRecentByActor(actorID string, limit int) ([]models.InventoryLog, error)
	List(filter InventoryLogListFilter) ([]models.InventoryLog, int64, error)
	SummarizeByChangeType(since *time.Time) ([]InventoryMovementRow, error)
	WithTx(tx *gorm.DB) InventoryLogRepository
}

// InventoryMovementRow 按变更类型汇总的库存流水
type InventoryMovementRow struct {
	ChangeType string
	Entries    int64
	NetChange  int64
}

// GormInventoryLogRepository GORM 实现
type GormInventoryLogRepository struct {
	db *gorm.DB
}

// NewInventoryLogRepository 创建库存流水仓库
func NewInventoryLogRepository(db *gorm.DB) *GormInventoryLogRepository {
	return &GormInventoryLogRepository{db: db}
}

// WithTx 绑定事务
func (r *GormInventoryLogRepository) WithTx(tx *gorm.DB) InventoryLogRepository {
	if tx == nil {
		return r
	}
	return &GormInventoryLogRepository{db: tx}
}

// Create 追加流水
func (r *GormInventoryLogRepository) Create(entry *models.InventoryLog) error {
	if entry == nil {
		return errors.New("inventory log is nil")
	}
	return r.db.Create(entry).Error
}

// GetByID 根据 ID 获取流水
func (r *GormInventoryLogRepository) GetByID(id uint) (*models.InventoryLog, error) {
	var entry models.InventoryLog
	if err := r.db.First(&entry, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// GetReversal 获取冲正指定占用流水的回补记录
func (r *GormInventoryLogRepository) GetReversal(reserveLogID uint) (*models.InventoryLog, error) {
	var entry models.InventoryLog
	if err := r.db.Where("reverses_log_id = ?", reserveLogID).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// ListByVariant 按时间正序获取规格流水
func (r *GormInventoryLogRepository) ListByVariant(variantID uint, since *time.Time) ([]models.InventoryLog, error) {
	query := r.db.Model(&models.InventoryLog{}).Where("variant_id = ?", variantID)
	if since != nil {
		query = query.Where("created_at >= ?", *since)
	}
	entries := make([]models.InventoryLog, 0)
	if err := query.Order("sequence ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ListRecentByActor 获取操作人最近的流水（新的在前）
func (r *GormInventoryLogRepository) ListRecentByActor(actorID string, limit int) ([]models.InventoryLog, error) {
	entries := make([]models.InventoryLog, 0)
	if err := r.db.Where("actor_id = ?", actorID).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// List 分页查询流水
func (r *GormInventoryLogRepository) List(filter InventoryLogListFilter) ([]models.InventoryLog, int64, error) {
	query := r.db.Model(&models.InventoryLog{})
	if filter.VariantID > 0 {
		query = query.Where("variant_id = ?", filter.VariantID)
	}
	if filter.ActorID != "" {
		query = query.Where("actor_id = ?", filter.ActorID)
	}
	if filter.ChangeType != "" {
		query = query.Where("change_type = ?", filter.ChangeType)
	}
	if filter.Reference != "" {
		query = query.Where("reference = ?", filter.Reference)
	}
	if condition, args := buildKeywordCondition(r.db, filter.Keyword, "reference", "reason"); condition != "" {
		query = query.Where(condition, args...)
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
	entries := make([]models.InventoryLog, 0)
	if err := query.Order("id DESC").Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// SummarizeByChangeType 按变更类型汇总流水条数与净变更量
func (r *GormInventoryLogRepository) SummarizeByChangeType(since *time.Time) ([]InventoryMovementRow, error) {
	query := r.db.Model(&models.InventoryLog{}).
		Select("change_type, COUNT(*) AS entries, COALESCE(SUM(quantity_change), 0) AS net_change")
	if since != nil {
		query = query.Where("created_at >= ?", *since)
	}
	rows := make([]InventoryMovementRow, 0)
	if err := query.Group("change_type").Order("change_type ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
