package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dujiao-next/backoffice/internal/constants"
	"github.com/dujiao-next/backoffice/internal/logger"
	"github.com/dujiao-next/backoffice/internal/metrics"
	"github.com/dujiao-next/backoffice/internal/models"
	"github.com/dujiao-next/backoffice/internal/repository"

	"gorm.io/gorm"
)

const defaultMutationMaxRetries = 5

var errCompareAndSetMissed = errors.New("stock compare-and-set missed")

// StockMutation 占用/回补库存请求
type StockMutation struct {
	VariantID uint
	Quantity  int
	Actor     Actor
	Reason    string
	Reference string
}

// StockAdjustment 库存修正请求
type StockAdjustment struct {
	VariantID   uint
	NewQuantity int
	Actor       Actor
	Reason      string
}

// StockMutationResult 库存变更结果
type StockMutationResult struct {
	VariantID        uint                 `json:"variant_id"`
	PreviousQuantity int                  `json:"previous_quantity"`
	NewQuantity      int                  `json:"new_quantity"`
	QuantityChange   int                  `json:"quantity_change"`
	Log              *models.InventoryLog `json:"log"`
}

// ReservationReleaseResult 按占用流水回补的结果
type ReservationReleaseResult struct {
	Released bool                 `json:"released"`
	Result   *StockMutationResult `json:"result,omitempty"`
}

// StockLedgerOptions 库存台账配置
type StockLedgerOptions struct {
	MaxRetries int
	Metrics    *metrics.InventoryMetrics
}

// StockLedger 库存台账：规格可用库存的唯一写入口
type StockLedger struct {
	db          *gorm.DB
	variantRepo repository.ProductVariantRepository
	audit       *InventoryAuditLog
	metrics     *metrics.InventoryMetrics
	maxRetries  int
}

// NewStockLedger 创建库存台账
func NewStockLedger(db *gorm.DB, variantRepo repository.ProductVariantRepository, audit *InventoryAuditLog, opts StockLedgerOptions) *StockLedger {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMutationMaxRetries
	}
	return &StockLedger{
		db:          db,
		variantRepo: variantRepo,
		audit:       audit,
		metrics:     opts.Metrics,
		maxRetries:  maxRetries,
	}
}

// CheckAvailability 规格启用且可用库存不少于 quantity 时返回 true，无副作用
func (s *StockLedger) CheckAvailability(ctx context.Context, variantID uint, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, ErrInvalidQuantity
	}
	variant, err := s.variantRepo.WithTx(s.db.WithContext(ctx)).GetByID(variantID)
	if err != nil {
		return false, fmt.Errorf("load variant: %w", err)
	}
	if variant == nil {
		return false, nil
	}
	return variant.IsActive && variant.AvailableQuantity >= quantity, nil
}

// GetVariant 获取规格库存记录
func (s *StockLedger) GetVariant(ctx context.Context, variantID uint) (*models.ProductVariant, error) {
	variant, err := s.variantRepo.WithTx(s.db.WithContext(ctx)).GetByID(variantID)
	if err != nil {
		return nil, fmt.Errorf("load variant: %w", err)
	}
	if variant == nil {
		return nil, ErrVariantNotFound
	}
	return variant, nil
}

// Reserve 占用库存：检查与扣减在同一条条件更新中完成，并在同一事务内追加流水
func (s *StockLedger) Reserve(ctx context.Context, m StockMutation) (*StockMutationResult, error) {
	if err := validateStockMutation(m); err != nil {
		return nil, err
	}
	var result *StockMutationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.variantRepo.WithTx(tx)
		affected, err := repo.DecreaseIfEnough(m.VariantID, m.Quantity)
		if err != nil {
			return fmt.Errorf("reserve stock: %w", err)
		}
		if affected == 0 {
			variant, err := repo.GetByID(m.VariantID)
			if err != nil {
				return fmt.Errorf("load variant: %w", err)
			}
			if variant == nil {
				return ErrVariantNotFound
			}
			return &InsufficientStockError{
				VariantID: m.VariantID,
				Requested: m.Quantity,
				Available: variant.AvailableQuantity,
				Inactive:  !variant.IsActive,
			}
		}
		result, err = s.recordMutation(ctx, tx, m.VariantID, -m.Quantity, constants.InventoryChangeReserve, m.Actor, m.Reason, m.Reference, nil)
		return err
	})
	s.observe(constants.InventoryChangeReserve, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Release 回补库存，不校验上限
func (s *StockLedger) Release(ctx context.Context, m StockMutation) (*StockMutationResult, error) {
	if err := validateStockMutation(m); err != nil {
		return nil, err
	}
	var result *StockMutationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		affected, err := s.variantRepo.WithTx(tx).Increase(m.VariantID, m.Quantity)
		if err != nil {
			return fmt.Errorf("release stock: %w", err)
		}
		if affected == 0 {
			return ErrVariantNotFound
		}
		result, err = s.recordMutation(ctx, tx, m.VariantID, m.Quantity, constants.InventoryChangeRelease, m.Actor, m.Reason, m.Reference, nil)
		return err
	})
	s.observe(constants.InventoryChangeRelease, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReleaseReservation 按占用流水回补库存（幂等）：同一占用流水只会被冲正一次
func (s *StockLedger) ReleaseReservation(ctx context.Context, reserveLogID uint, actor Actor, reason string) (*ReservationReleaseResult, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	var result *StockMutationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		audit := s.audit.WithTx(tx)
		entry, err := audit.getEntry(reserveLogID)
		if err != nil {
			return fmt.Errorf("load reservation log: %w", err)
		}
		if entry == nil || entry.ChangeType != constants.InventoryChangeReserve || entry.QuantityChange >= 0 {
			return ErrReservationNotFound
		}
		reversal, err := audit.getReversal(reserveLogID)
		if err != nil {
			return fmt.Errorf("load reservation reversal: %w", err)
		}
		if reversal != nil {
			return nil
		}
		quantity := -entry.QuantityChange
		affected, err := s.variantRepo.WithTx(tx).Increase(entry.VariantID, quantity)
		if err != nil {
			return fmt.Errorf("release reservation: %w", err)
		}
		if affected == 0 {
			return ErrVariantNotFound
		}
		reversesID := entry.ID
		result, err = s.recordMutation(ctx, tx, entry.VariantID, quantity, constants.InventoryChangeRelease, actor, reason, entry.Reference, &reversesID)
		return err
	})
	if err != nil && !errors.Is(err, ErrReservationNotFound) && !errors.Is(err, ErrVariantNotFound) {
		// 并发冲正时唯一索引冲突，以已存在的冲正记录为准
		if reversal, lookupErr := s.audit.WithTx(s.db.WithContext(context.WithoutCancel(ctx))).getReversal(reserveLogID); lookupErr == nil && reversal != nil {
			s.metrics.ObserveCompensation(metrics.OutcomeSkipped)
			return &ReservationReleaseResult{Released: false}, nil
		}
	}
	if err != nil {
		s.metrics.ObserveCompensation(metrics.OutcomeError)
		return nil, err
	}
	if result == nil {
		s.metrics.ObserveCompensation(metrics.OutcomeSkipped)
		return &ReservationReleaseResult{Released: false}, nil
	}
	s.metrics.ObserveCompensation(metrics.OutcomeSuccess)
	s.metrics.ObserveStockMutation(constants.InventoryChangeRelease, metrics.OutcomeSuccess)
	return &ReservationReleaseResult{Released: true, Result: result}, nil
}

// AdjustTo 管理员直接设置库存，基于读取值做比较并交换，冲突时有限次重试
func (s *StockLedger) AdjustTo(ctx context.Context, adj StockAdjustment) (*StockMutationResult, error) {
	if adj.NewQuantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if err := adj.Actor.Validate(); err != nil {
		return nil, err
	}
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		var result *StockMutationResult
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			repo := s.variantRepo.WithTx(tx)
			variant, err := repo.GetByID(adj.VariantID)
			if err != nil {
				return fmt.Errorf("load variant: %w", err)
			}
			if variant == nil {
				return ErrVariantNotFound
			}
			affected, err := repo.CompareAndSet(adj.VariantID, variant.AvailableQuantity, adj.NewQuantity)
			if err != nil {
				return fmt.Errorf("adjust stock: %w", err)
			}
			if affected == 0 {
				return errCompareAndSetMissed
			}
			delta := adj.NewQuantity - variant.AvailableQuantity
			result, err = s.recordMutation(ctx, tx, adj.VariantID, delta, constants.InventoryChangeManualUpdate, adj.Actor, adj.Reason, "", nil)
			return err
		})
		if errors.Is(err, errCompareAndSetMissed) {
			logger.Debugw("stock_adjust_retry", "variant_id", adj.VariantID, "attempt", attempt)
			continue
		}
		s.observe(constants.InventoryChangeManualUpdate, err)
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	s.observe(constants.InventoryChangeManualUpdate, ErrConcurrencyConflict)
	logger.Warnw("stock_adjust_conflict", "variant_id", adj.VariantID, "attempts", s.maxRetries)
	return nil, ErrConcurrencyConflict
}

// SetVariantActive 启用或停用规格（规格只停用不删除）
func (s *StockLedger) SetVariantActive(ctx context.Context, variantID uint, active bool, actor Actor) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	affected, err := s.variantRepo.WithTx(s.db.WithContext(ctx)).SetActive(variantID, active)
	if err != nil {
		return fmt.Errorf("update variant status: %w", err)
	}
	if affected == 0 {
		return ErrVariantNotFound
	}
	logger.Infow("variant_status_changed", "variant_id", variantID, "is_active", active, "actor_id", actor.String())
	return nil
}

// recordMutation 读取变更后的规格并在同一事务内追加流水
func (s *StockLedger) recordMutation(ctx context.Context, tx *gorm.DB, variantID uint, delta int, changeType string, actor Actor, reason, reference string, reversesLogID *uint) (*StockMutationResult, error) {
	variant, err := s.variantRepo.WithTx(tx).GetByID(variantID)
	if err != nil {
		return nil, fmt.Errorf("reload variant: %w", err)
	}
	if variant == nil {
		return nil, ErrVariantNotFound
	}
	entry := &models.InventoryLog{
		VariantID:        variantID,
		Sequence:         variant.LogSequence,
		PreviousQuantity: variant.AvailableQuantity - delta,
		NewQuantity:      variant.AvailableQuantity,
		QuantityChange:   delta,
		ChangeType:       changeType,
		Reason:           strings.TrimSpace(reason),
		ActorID:          actor.String(),
		Reference:        strings.TrimSpace(reference),
		ReversesLogID:    reversesLogID,
	}
	if err := s.audit.WithTx(tx).Append(ctx, entry); err != nil {
		return nil, err
	}
	return &StockMutationResult{
		VariantID:        variantID,
		PreviousQuantity: entry.PreviousQuantity,
		NewQuantity:      entry.NewQuantity,
		QuantityChange:   delta,
		Log:              entry,
	}, nil
}

func (s *StockLedger) observe(changeType string, err error) {
	switch {
	case err == nil:
		s.metrics.ObserveStockMutation(changeType, metrics.OutcomeSuccess)
	case isBusinessRejection(err):
		s.metrics.ObserveStockMutation(changeType, metrics.OutcomeRejected)
	default:
		s.metrics.ObserveStockMutation(changeType, metrics.OutcomeError)
	}
}

func validateStockMutation(m StockMutation) error {
	if m.VariantID == 0 {
		return ErrVariantNotFound
	}
	if m.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	return m.Actor.Validate()
}

// isBusinessRejection 判断是否为可预期的业务拒绝（而非基础设施故障）
func isBusinessRejection(err error) bool {
	for _, target := range []error{
		ErrVariantNotFound,
		ErrInsufficientStock,
		ErrInvalidQuantity,
		ErrConcurrencyConflict,
		ErrActorRequired,
		ErrReservationNotFound,
		ErrCouponNotFound,
		ErrCouponInactive,
		ErrCouponOutOfWindow,
		ErrCouponUsageExhausted,
		ErrCouponBelowMinimum,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
