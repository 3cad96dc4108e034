package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dujiao-next/backoffice/internal/constants"
	"github.com/dujiao-next/backoffice/internal/models"
	"github.com/dujiao-next/backoffice/internal/repository"

	"gorm.io/gorm"
)

const (
	defaultRecentByActorLimit = 20
	maxRecentByActorLimit     = 200
)

// InventoryAuditLog 库存流水（只追加）
type InventoryAuditLog struct {
	repo repository.InventoryLogRepository
}

// NewInventoryAuditLog 创建库存流水服务
func NewInventoryAuditLog(repo repository.InventoryLogRepository) *InventoryAuditLog {
	return &InventoryAuditLog{repo: repo}
}

// WithTx 绑定事务，供库存台账在同一事务内追加流水
func (a *InventoryAuditLog) WithTx(tx *gorm.DB) *InventoryAuditLog {
	if tx == nil {
		return a
	}
	return &InventoryAuditLog{repo: a.repo.WithTx(tx)}
}

// Append 追加一条流水，存储错误原样向上返回
func (a *InventoryAuditLog) Append(ctx context.Context, entry *models.InventoryLog) error {
	if err := validateLogEntry(entry); err != nil {
		return err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := a.repo.Create(entry); err != nil {
		return fmt.Errorf("append inventory log: %w", err)
	}
	return nil
}

// GetHistory 获取规格流水，按序号正序（最早的在前）
func (a *InventoryAuditLog) GetHistory(ctx context.Context, variantID uint, since *time.Time) ([]models.InventoryLog, error) {
	if variantID == 0 {
		return nil, ErrVariantNotFound
	}
	entries, err := a.repo.ListByVariant(variantID, since)
	if err != nil {
		return nil, fmt.Errorf("load inventory history: %w", err)
	}
	return entries, nil
}

// GetRecentByActor 获取操作人最近的流水
func (a *InventoryAuditLog) GetRecentByActor(ctx context.Context, actor Actor, limit int) ([]models.InventoryLog, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultRecentByActorLimit
	}
	if limit > maxRecentByActorLimit {
		limit = maxRecentByActorLimit
	}
	entries, err := a.repo.ListRecentByActor(actor.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("load actor inventory logs: %w", err)
	}
	return entries, nil
}

// List 分页查询流水
func (a *InventoryAuditLog) List(ctx context.Context, filter repository.InventoryLogListFilter) ([]models.InventoryLog, int64, error) {
	return a.repo.List(filter)
}

func (a *InventoryAuditLog) getEntry(id uint) (*models.InventoryLog, error) {
	return a.repo.GetByID(id)
}

func (a *InventoryAuditLog) getReversal(reserveLogID uint) (*models.InventoryLog, error) {
	return a.repo.GetReversal(reserveLogID)
}

func validateLogEntry(entry *models.InventoryLog) error {
	if entry == nil || entry.VariantID == 0 {
		return fmt.Errorf("invalid inventory log entry")
	}
	if err := Actor(entry.ActorID).Validate(); err != nil {
		return err
	}
	switch entry.ChangeType {
	case constants.InventoryChangeReserve, constants.InventoryChangeRelease, constants.InventoryChangeManualUpdate:
	default:
		return fmt.Errorf("invalid inventory change type %q", entry.ChangeType)
	}
	if entry.NewQuantity < 0 || entry.NewQuantity != entry.PreviousQuantity+entry.QuantityChange {
		return fmt.Errorf("inventory log quantities inconsistent: %d + %d != %d",
			entry.PreviousQuantity, entry.QuantityChange, entry.NewQuantity)
	}
	return nil
}
