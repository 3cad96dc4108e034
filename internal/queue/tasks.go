package queue

import (
	"encoding/json"

	"github.com/dujiao-next/backoffice/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskInventoryReleaseReserved 补偿回补占用库存任务
	TaskInventoryReleaseReserved = constants.TaskInventoryReleaseReserved
	// TaskInventoryLowStockScan 低库存巡检任务
	TaskInventoryLowStockScan = constants.TaskInventoryLowStockScan
)

// ReservationReleasePayload 补偿回补任务载荷
type ReservationReleasePayload struct {
	ReserveLogID uint   `json:"reserve_log_id"`
	OrderNo      string `json:"order_no,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// LowStockScanPayload 低库存巡检任务载荷，阈值为 0 时使用配置值
type LowStockScanPayload struct {
	Threshold int `json:"threshold,omitempty"`
}

// NewReservationReleaseTask 创建补偿回补任务
func NewReservationReleaseTask(payload ReservationReleasePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventoryReleaseReserved, body), nil
}

// NewLowStockScanTask 创建低库存巡检任务
func NewLowStockScanTask(payload LowStockScanPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventoryLowStockScan, body), nil
}
