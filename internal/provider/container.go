package provider

import (
	"time"

	"github.com/dujiao-next/backoffice/internal/authz"
	"github.com/dujiao-next/backoffice/internal/cache"
	"github.com/dujiao-next/backoffice/internal/config"
	"github.com/dujiao-next/backoffice/internal/logger"
	"github.com/dujiao-next/backoffice/internal/metrics"
	"github.com/dujiao-next/backoffice/internal/queue"
	"github.com/dujiao-next/backoffice/internal/repository"
	"github.com/dujiao-next/backoffice/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	DB          *gorm.DB
	QueueClient *queue.Client
	Registry    *prometheus.Registry
	Metrics     *metrics.InventoryMetrics

	// Repositories
	AdminRepo           repository.AdminRepository
	ProductRepo         repository.ProductRepository
	VariantRepo         repository.ProductVariantRepository
	InventoryLogRepo    repository.InventoryLogRepository
	InventoryReportRepo repository.InventoryReportRepository
	CouponRepo          repository.CouponRepository
	OrderRepo           repository.OrderRepository

	// Services
	AuthzService       *authz.Service
	AuthService        *service.AuthService
	InventoryAuditLog  *service.InventoryAuditLog
	StockLedger        *service.StockLedger
	InventoryReporter  *service.InventoryReporter
	CouponValidator    *service.CouponValidator
	CouponAdminService *service.CouponAdminService
	OrderPricer        *service.OrderPricer
	CatalogService     *service.CatalogService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config, db *gorm.DB) (*Container, error) {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 队列未启用时返回禁用态客户端，补偿任务退化为日志
	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c := &Container{
		Config:      cfg,
		DB:          db,
		QueueClient: queueClient,
		Registry:    registry,
		Metrics:     metrics.NewInventoryMetrics(registry),
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	if err := c.initServices(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Container) initRepositories() {
	db := c.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.ProductRepo = repository.NewProductRepository(db)
	c.VariantRepo = repository.NewProductVariantRepository(db)
	c.InventoryLogRepo = repository.NewInventoryLogRepository(db)
	c.InventoryReportRepo = repository.NewInventoryReportRepository(db)
	c.CouponRepo = repository.NewCouponRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
}

func (c *Container) initServices() error {
	authzService, err := authz.NewService(c.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		return err
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		return err
	}

	rules, err := service.NewConfigPricingRules(c.Config.Pricing)
	if err != nil {
		logger.Errorw("provider_init_pricing_rules_failed", "error", err)
		return err
	}

	inventoryCfg := c.Config.Inventory
	c.AuthService = service.NewAuthService(&c.Config.JWT, c.AdminRepo)
	c.InventoryAuditLog = service.NewInventoryAuditLog(c.InventoryLogRepo)
	c.StockLedger = service.NewStockLedger(c.DB, c.VariantRepo, c.InventoryAuditLog, service.StockLedgerOptions{
		MaxRetries: inventoryCfg.MutationMaxRetries,
		Metrics:    c.Metrics,
	})
	c.InventoryReporter = service.NewInventoryReporter(c.DB, c.InventoryReportRepo, c.InventoryLogRepo, service.InventoryReporterOptions{
		LowStockThreshold: inventoryCfg.LowStockThreshold,
		CacheTTL:          time.Duration(inventoryCfg.ReportCacheTTLSeconds) * time.Second,
		Metrics:           c.Metrics,
	})
	c.CouponValidator = service.NewCouponValidator(c.DB, c.CouponRepo, c.Metrics)
	c.CouponAdminService = service.NewCouponAdminService(c.CouponRepo)
	c.OrderPricer = service.NewOrderPricer(c.DB, c.StockLedger, c.CouponValidator, c.OrderRepo, c.VariantRepo, rules, service.OrderPricerOptions{
		Enqueuer: c.QueueClient,
		Metrics:  c.Metrics,
	})
	c.CatalogService = service.NewCatalogService(c.DB, c.ProductRepo, c.VariantRepo, c.StockLedger)
	return nil
}

// Close 释放外部连接
func (c *Container) Close() {
	if c == nil {
		return
	}
	if err := c.QueueClient.Close(); err != nil {
		logger.Warnw("provider_close_queue_client_failed", "error", err)
	}
	if err := cache.Close(); err != nil {
		logger.Warnw("provider_close_redis_failed", "error", err)
	}
}
