package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dujiao-next/backoffice/internal/config"
	"github.com/dujiao-next/backoffice/internal/metrics"
	"github.com/dujiao-next/backoffice/internal/models"
	"github.com/dujiao-next/backoffice/internal/queue"
	"github.com/dujiao-next/backoffice/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type serviceFixture struct {
	db       *gorm.DB
	registry *prometheus.Registry
	metrics  *metrics.InventoryMetrics
	audit    *InventoryAuditLog
	ledger   *StockLedger
	coupons  *CouponValidator
	reporter *InventoryReporter
	pricer   *OrderPricer
	enqueuer *recordingEnqueuer
}

type recordingEnqueuer struct {
	mu       sync.Mutex
	payloads []queue.ReservationReleasePayload
}

func (r *recordingEnqueuer) EnqueueReservationRelease(payload queue.ReservationReleasePayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, payload)
	return nil
}

func (r *recordingEnqueuer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	// 单连接：并发测试中的事务串行执行
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	return newServiceFixtureWithPricing(t, config.PricingConfig{Currency: "CNY"})
}

func newServiceFixtureWithPricing(t *testing.T, pricing config.PricingConfig) *serviceFixture {
	t.Helper()
	db := openServiceTestDB(t)
	registry := prometheus.NewRegistry()
	m := metrics.NewInventoryMetrics(registry)

	logRepo := repository.NewInventoryLogRepository(db)
	variantRepo := repository.NewProductVariantRepository(db)
	audit := NewInventoryAuditLog(logRepo)
	ledger := NewStockLedger(db, variantRepo, audit, StockLedgerOptions{MaxRetries: 3, Metrics: m})
	coupons := NewCouponValidator(db, repository.NewCouponRepository(db), m)
	reporter := NewInventoryReporter(db, repository.NewInventoryReportRepository(db), logRepo, InventoryReporterOptions{
		LowStockThreshold: 10,
		Metrics:           m,
	})
	rules, err := NewConfigPricingRules(pricing)
	if err != nil {
		t.Fatalf("build pricing rules failed: %v", err)
	}
	enqueuer := &recordingEnqueuer{}
	pricer := NewOrderPricer(db, ledger, coupons, repository.NewOrderRepository(db), variantRepo, rules, OrderPricerOptions{
		Enqueuer: enqueuer,
		Metrics:  m,
	})
	return &serviceFixture{
		db:       db,
		registry: registry,
		metrics:  m,
		audit:    audit,
		ledger:   ledger,
		coupons:  coupons,
		reporter: reporter,
		pricer:   pricer,
		enqueuer: enqueuer,
	}
}

func (f *serviceFixture) createProduct(t *testing.T, slug string, listPrice string, salePrice string) *models.Product {
	t.Helper()
	product := &models.Product{
		Slug:      slug,
		Title:     "Product " + slug,
		ListPrice: models.MustMoney(listPrice),
		IsActive:  true,
	}
	if salePrice != "" {
		sale := models.MustMoney(salePrice)
		product.SalePrice = &sale
	}
	if err := f.db.Create(product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return product
}

func (f *serviceFixture) createVariant(t *testing.T, productID uint, code string, quantity int) *models.ProductVariant {
	t.Helper()
	variant := &models.ProductVariant{
		ProductID:         productID,
		SKUCode:           code,
		VariantDetails:    models.JSON{"size": code},
		AvailableQuantity: quantity,
		IsActive:          true,
	}
	if err := f.db.Create(variant).Error; err != nil {
		t.Fatalf("create variant failed: %v", err)
	}
	return variant
}

// createCoupon 创建启用状态的优惠券，停用需在测试中单独更新
func (f *serviceFixture) createCoupon(t *testing.T, coupon models.Coupon) *models.Coupon {
	t.Helper()
	if coupon.ValidFrom.IsZero() {
		coupon.ValidFrom = time.Now().Add(-time.Hour)
	}
	if coupon.ValidTo.IsZero() {
		coupon.ValidTo = time.Now().Add(24 * time.Hour)
	}
	coupon.IsActive = true
	if err := f.db.Create(&coupon).Error; err != nil {
		t.Fatalf("create coupon failed: %v", err)
	}
	return &coupon
}

func (f *serviceFixture) quantityOf(t *testing.T, variantID uint) int {
	t.Helper()
	var variant models.ProductVariant
	if err := f.db.First(&variant, variantID).Error; err != nil {
		t.Fatalf("reload variant failed: %v", err)
	}
	return variant.AvailableQuantity
}

func (f *serviceFixture) logsOf(t *testing.T, variantID uint) []models.InventoryLog {
	t.Helper()
	var logs []models.InventoryLog
	if err := f.db.Where("variant_id = ?", variantID).Order("sequence ASC").Find(&logs).Error; err != nil {
		t.Fatalf("load logs failed: %v", err)
	}
	return logs
}
