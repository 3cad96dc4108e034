package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dujiao-next/backoffice/internal/cache"
	"github.com/dujiao-next/backoffice/internal/constants"
	"github.com/dujiao-next/backoffice/internal/logger"
	"github.com/dujiao-next/backoffice/internal/metrics"
	"github.com/dujiao-next/backoffice/internal/models"
	"github.com/dujiao-next/backoffice/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	defaultLowStockThreshold = 10
	inventoryReportCacheKey  = "report:inventory"
)

// InventoryReporterOptions 库存报表配置
type InventoryReporterOptions struct {
	LowStockThreshold int
	CacheTTL          time.Duration
	Metrics           *metrics.InventoryMetrics
}

// InventoryReporter 库存报表（只读，可容忍短暂过期）
type InventoryReporter struct {
	db         *gorm.DB
	reportRepo repository.InventoryReportRepository
	logRepo    repository.InventoryLogRepository
	threshold  int
	cacheTTL   time.Duration
	metrics    *metrics.InventoryMetrics
}

// NewInventoryReporter 创建库存报表服务
func NewInventoryReporter(db *gorm.DB, reportRepo repository.InventoryReportRepository, logRepo repository.InventoryLogRepository, opts InventoryReporterOptions) *InventoryReporter {
	threshold := opts.LowStockThreshold
	if threshold <= 0 {
		threshold = defaultLowStockThreshold
	}
	return &InventoryReporter{
		db:         db,
		reportRepo: reportRepo,
		logRepo:    logRepo,
		threshold:  threshold,
		cacheTTL:   opts.CacheTTL,
		metrics:    opts.Metrics,
	}
}

// LowStockAlert 低库存告警项
type LowStockAlert struct {
	VariantID         uint        `json:"variant_id"`
	ProductID         uint        `json:"product_id"`
	ProductTitle      string      `json:"product_title"`
	SKUCode           string      `json:"sku_code"`
	VariantDetails    models.JSON `json:"variant_details"`
	AvailableQuantity int         `json:"available_quantity"`
	Threshold         int         `json:"threshold"`
}

// InventoryReportOptions 库存报表查询参数
type InventoryReportOptions struct {
	ForceRefresh bool
}

// InventoryReport 库存总览
type InventoryReport struct {
	GeneratedAt         time.Time                 `json:"generated_at"`
	LowStockThreshold   int                       `json:"low_stock_threshold"`
	TotalProducts       int                       `json:"total_products"`
	TotalVariants       int                       `json:"total_variants"`
	TotalUnits          int64                     `json:"total_units"`
	LowStockVariants    int                       `json:"low_stock_variants"`
	OutOfStockVariants  int                       `json:"out_of_stock_variants"`
	TotalInventoryValue models.Money              `json:"total_inventory_value"`
	Products            []ProductInventorySummary `json:"products"`
}

// ProductInventorySummary 单个商品的库存汇总
type ProductInventorySummary struct {
	ProductID          uint         `json:"product_id"`
	Title              string       `json:"title"`
	EffectivePrice     models.Money `json:"effective_price"`
	Variants           int          `json:"variants"`
	Units              int64        `json:"units"`
	LowStockVariants   int          `json:"low_stock_variants"`
	OutOfStockVariants int          `json:"out_of_stock_variants"`
	InventoryValue     models.Money `json:"inventory_value"`
}

// MovementSummary 库存变动汇总：业务占用/回补与人工修正分开统计
type MovementSummary struct {
	Since             *time.Time            `json:"since,omitempty"`
	Items             []MovementSummaryItem `json:"items"`
	BusinessNetChange int64                 `json:"business_net_change"`
	ManualNetChange   int64                 `json:"manual_net_change"`
	TotalEntries      int64                 `json:"total_entries"`
}

// MovementSummaryItem 单个变更类型的汇总
type MovementSummaryItem struct {
	ChangeType string `json:"change_type"`
	Entries    int64  `json:"entries"`
	NetChange  int64  `json:"net_change"`
}

// Threshold 返回默认低库存阈值
func (r *InventoryReporter) Threshold() int {
	return r.threshold
}

// GetLowStockAlerts 获取 0 < 库存 <= 阈值 的启用规格，库存升序、规格 ID 升序
func (r *InventoryReporter) GetLowStockAlerts(ctx context.Context, threshold int) ([]LowStockAlert, error) {
	if threshold <= 0 {
		threshold = r.threshold
	}
	rows, err := r.reportRepo.WithTx(r.db.WithContext(ctx)).ListLowStock(threshold)
	if err != nil {
		return nil, fmt.Errorf("list low stock variants: %w", err)
	}
	alerts := make([]LowStockAlert, 0, len(rows))
	for _, row := range rows {
		alerts = append(alerts, LowStockAlert{
			VariantID:         row.VariantID,
			ProductID:         row.ProductID,
			ProductTitle:      row.ProductTitle,
			SKUCode:           row.SKUCode,
			VariantDetails:    row.VariantDetails,
			AvailableQuantity: row.AvailableQuantity,
			Threshold:         threshold,
		})
	}
	return alerts, nil
}

// GetOutOfStockCount 统计库存为 0 的启用规格数量
func (r *InventoryReporter) GetOutOfStockCount(ctx context.Context) (int64, error) {
	count, err := r.reportRepo.WithTx(r.db.WithContext(ctx)).CountOutOfStock()
	if err != nil {
		return 0, fmt.Errorf("count out of stock variants: %w", err)
	}
	return count, nil
}

// GenerateInventoryReport 生成库存总览，Redis 可用时走读穿缓存
func (r *InventoryReporter) GenerateInventoryReport(ctx context.Context, opts InventoryReportOptions) (*InventoryReport, error) {
	if !opts.ForceRefresh && r.cacheTTL > 0 {
		var cached InventoryReport
		hit, cacheErr := cache.GetJSON(ctx, inventoryReportCacheKey, &cached)
		if cacheErr != nil {
			logger.Warnw("inventory_report_cache_get_failed", "error", cacheErr)
		}
		if hit {
			return &cached, nil
		}
	}

	rows, err := r.reportRepo.WithTx(r.db.WithContext(ctx)).ListVariantStock()
	if err != nil {
		return nil, fmt.Errorf("list variant stock: %w", err)
	}
	report := buildInventoryReport(rows, r.threshold, time.Now())

	if r.cacheTTL > 0 {
		if err := cache.SetJSON(ctx, inventoryReportCacheKey, report, r.cacheTTL); err != nil {
			logger.Warnw("inventory_report_cache_set_failed", "error", err)
		}
	}
	return report, nil
}

// GetMovementSummary 按变更类型汇总流水
func (r *InventoryReporter) GetMovementSummary(ctx context.Context, since *time.Time) (*MovementSummary, error) {
	rows, err := r.logRepo.WithTx(r.db.WithContext(ctx)).SummarizeByChangeType(since)
	if err != nil {
		return nil, fmt.Errorf("summarize inventory movements: %w", err)
	}
	summary := &MovementSummary{
		Since: since,
		Items: make([]MovementSummaryItem, 0, len(rows)),
	}
	for _, row := range rows {
		summary.Items = append(summary.Items, MovementSummaryItem{
			ChangeType: row.ChangeType,
			Entries:    row.Entries,
			NetChange:  row.NetChange,
		})
		summary.TotalEntries += row.Entries
		switch row.ChangeType {
		case constants.InventoryChangeReserve, constants.InventoryChangeRelease:
			summary.BusinessNetChange += row.NetChange
		case constants.InventoryChangeManualUpdate:
			summary.ManualNetChange += row.NetChange
		}
	}
	return summary, nil
}

// RefreshStockAlerts 重新统计告警数量并刷新指标，返回低库存与缺货数量
func (r *InventoryReporter) RefreshStockAlerts(ctx context.Context) (int, int64, error) {
	alerts, err := r.GetLowStockAlerts(ctx, 0)
	if err != nil {
		return 0, 0, err
	}
	outOfStock, err := r.GetOutOfStockCount(ctx)
	if err != nil {
		return 0, 0, err
	}
	r.metrics.SetStockAlerts(len(alerts), outOfStock)
	return len(alerts), outOfStock, nil
}

// InvalidateReportCache 删除库存报表缓存
func (r *InventoryReporter) InvalidateReportCache(ctx context.Context) {
	if err := cache.Del(ctx, inventoryReportCacheKey); err != nil {
		logger.Warnw("inventory_report_cache_del_failed", "error", err)
	}
}

func buildInventoryReport(rows []repository.VariantStockRow, threshold int, now time.Time) *InventoryReport {
	report := &InventoryReport{
		GeneratedAt:         now,
		LowStockThreshold:   threshold,
		TotalInventoryValue: models.NewMoneyFromDecimal(decimal.Zero),
		Products:            make([]ProductInventorySummary, 0),
	}
	byProduct := make(map[uint]*ProductInventorySummary)
	totalValue := decimal.Zero
	for _, row := range rows {
		summary, ok := byProduct[row.ProductID]
		if !ok {
			summary = &ProductInventorySummary{
				ProductID:      row.ProductID,
				Title:          row.ProductTitle,
				EffectivePrice: models.EffectivePrice(row.ListPrice, row.SalePrice),
				InventoryValue: models.NewMoneyFromDecimal(decimal.Zero),
			}
			byProduct[row.ProductID] = summary
		}
		summary.Variants++
		summary.Units += int64(row.AvailableQuantity)
		switch {
		case row.AvailableQuantity == 0:
			summary.OutOfStockVariants++
			report.OutOfStockVariants++
		case row.AvailableQuantity <= threshold:
			summary.LowStockVariants++
			report.LowStockVariants++
		}
		value := summary.EffectivePrice.Decimal.Mul(decimal.NewFromInt(int64(row.AvailableQuantity)))
		summary.InventoryValue = models.Money{Decimal: summary.InventoryValue.Decimal.Add(value)}
		totalValue = totalValue.Add(value)

		report.TotalVariants++
		report.TotalUnits += int64(row.AvailableQuantity)
	}

	for _, summary := range byProduct {
		summary.InventoryValue = models.NewMoneyFromDecimal(summary.InventoryValue.Decimal)
		report.Products = append(report.Products, *summary)
	}
	sort.Slice(report.Products, func(i, j int) bool {
		return report.Products[i].ProductID < report.Products[j].ProductID
	})
	report.TotalProducts = len(report.Products)
	report.TotalInventoryValue = models.NewMoneyFromDecimal(totalValue)
	return report
}
