package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/dujiao-next/backoffice/internal/constants"
	"github.com/dujiao-next/backoffice/internal/logger"
	"github.com/dujiao-next/backoffice/internal/provider"
	"github.com/dujiao-next/backoffice/internal/queue"
	"github.com/dujiao-next/backoffice/internal/service"

	"github.com/hibiken/asynq"
)

const lowStockSampleSize = 20

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskInventoryReleaseReserved, c.handleReservationRelease)
	mux.HandleFunc(queue.TaskInventoryLowStockScan, c.handleLowStockScan)
}

// handleReservationRelease 回补补偿失败的占用流水，重复投递时幂等
func (c *Consumer) handleReservationRelease(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_reservation_release_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.ReservationReleasePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_reservation_release_unmarshal_failed", "error", err)
		return err
	}
	if payload.ReserveLogID == 0 {
		logger.Debugw("worker_reservation_release_skip_invalid_payload", "reserve_log_id", payload.ReserveLogID)
		return nil
	}
	if c.StockLedger == nil {
		logger.Warnw("worker_reservation_release_skip_ledger_nil", "reserve_log_id", payload.ReserveLogID)
		return nil
	}
	reason := strings.TrimSpace(payload.Reason)
	if reason == "" {
		reason = "queued compensation"
	}
	result, err := c.StockLedger.ReleaseReservation(ctx, payload.ReserveLogID, service.SystemActor(constants.SystemActorWorker), reason)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrReservationNotFound):
			logger.Warnw("worker_reservation_release_skip_not_found", "reserve_log_id", payload.ReserveLogID, "order_no", payload.OrderNo)
			return nil
		case errors.Is(err, service.ErrVariantNotFound):
			logger.Warnw("worker_reservation_release_skip_variant_missing", "reserve_log_id", payload.ReserveLogID, "order_no", payload.OrderNo)
			return nil
		default:
			logger.Warnw("worker_reservation_release_failed", "reserve_log_id", payload.ReserveLogID, "order_no", payload.OrderNo, "error", err)
			return err
		}
	}
	if !result.Released {
		logger.Debugw("worker_reservation_release_skip_already_released", "reserve_log_id", payload.ReserveLogID)
		return nil
	}
	logger.Infow("worker_reservation_released",
		"reserve_log_id", payload.ReserveLogID,
		"order_no", payload.OrderNo,
		"variant_id", result.Result.VariantID,
		"quantity", result.Result.QuantityChange,
	)
	return nil
}

func (c *Consumer) handleLowStockScan(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_low_stock_scan_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.LowStockScanPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			logger.Warnw("worker_low_stock_scan_unmarshal_failed", "error", err)
			return err
		}
	}
	return c.scanLowStock(ctx, payload.Threshold)
}

// scanLowStock 刷新库存告警指标，并记录低库存规格
func (c *Consumer) scanLowStock(ctx context.Context, threshold int) error {
	if c == nil || c.InventoryReporter == nil {
		logger.Debugw("worker_low_stock_scan_skip_reporter_nil")
		return nil
	}
	lowStock, outOfStock, err := c.InventoryReporter.RefreshStockAlerts(ctx)
	if err != nil {
		logger.Warnw("worker_low_stock_refresh_failed", "error", err)
		return err
	}
	alerts, err := c.InventoryReporter.GetLowStockAlerts(ctx, threshold)
	if err != nil {
		logger.Warnw("worker_low_stock_list_failed", "error", err)
		return err
	}
	if len(alerts) == 0 && outOfStock == 0 {
		logger.Debugw("worker_low_stock_scan_clean", "threshold", c.InventoryReporter.Threshold())
		return nil
	}
	sample := make([]uint, 0, lowStockSampleSize)
	for _, alert := range alerts {
		if len(sample) == lowStockSampleSize {
			break
		}
		sample = append(sample, alert.VariantID)
	}
	logger.Warnw("worker_low_stock_detected",
		"low_stock_variants", lowStock,
		"out_of_stock_variants", outOfStock,
		"matched", len(alerts),
		"variant_ids", sample,
	)
	return nil
}
