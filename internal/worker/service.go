package worker

import (
	"context"
	"errors"
	"time"

	"github.com/dujiao-next/backoffice/internal/config"
	"github.com/dujiao-next/backoffice/internal/logger"
	"github.com/dujiao-next/backoffice/internal/queue"

	"github.com/hibiken/asynq"
)

const defaultAlertScanInterval = 5 * time.Minute

// Service 异步队列服务
type Service struct {
	name         string
	server       *asynq.Server
	mux          *asynq.ServeMux
	consumer     *Consumer
	scanInterval time.Duration
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, inventory *config.InventoryConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:         "worker",
		server:       server,
		mux:          mux,
		consumer:     consumer,
		scanInterval: resolveScanInterval(inventory),
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.InventoryReporter != nil {
		go s.runLowStockScanLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runLowStockScanLoop 启动时本地刷新一次告警，之后按间隔投递去重的巡检任务
func (s *Service) runLowStockScanLoop(ctx context.Context) {
	if s == nil || s.consumer == nil {
		return
	}
	if err := s.consumer.scanLowStock(ctx, 0); err != nil {
		logger.Warnw("worker_low_stock_initial_scan_failed", "error", err)
	}

	ticker := time.NewTicker(s.scanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.enqueueLowStockScan()
		}
	}
}

func (s *Service) enqueueLowStockScan() {
	client := s.consumer.QueueClient
	if !client.Enabled() {
		logger.Debugw("worker_low_stock_scan_skip_queue_disabled")
		return
	}
	// 多实例部署时同一间隔内只保留一个巡检任务
	err := client.EnqueueLowStockScan(queue.LowStockScanPayload{}, asynq.Unique(s.scanInterval))
	switch {
	case err == nil:
	case errors.Is(err, asynq.ErrDuplicateTask):
		logger.Debugw("worker_low_stock_scan_skip_duplicate")
	default:
		logger.Warnw("worker_low_stock_scan_enqueue_failed", "error", err)
	}
}

func resolveScanInterval(inventory *config.InventoryConfig) time.Duration {
	if inventory == nil || inventory.AlertScanIntervalSeconds <= 0 {
		return defaultAlertScanInterval
	}
	return time.Duration(inventory.AlertScanIntervalSeconds) * time.Second
}
