package main

import (
	"context"
	"errors"
	"time"

	"github.com/dujiao-next/backoffice/internal/authz"
	"github.com/dujiao-next/backoffice/internal/config"
	"github.com/dujiao-next/backoffice/internal/constants"
	"github.com/dujiao-next/backoffice/internal/logger"
	"github.com/dujiao-next/backoffice/internal/models"
	"github.com/dujiao-next/backoffice/internal/provider"
	"github.com/dujiao-next/backoffice/internal/service"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	if err := models.InitDefaultAdmin(cfg.Admin.DefaultUsername, cfg.Admin.DefaultPassword); err != nil {
		stdLog.Fatalf("Failed to init default admin: %v", err)
	}

	container, err := provider.NewContainer(cfg, models.DB)
	if err != nil {
		stdLog.Fatalf("Failed to init container: %v", err)
	}
	defer container.Close()

	ctx := context.Background()
	actor := service.SystemActor(constants.SystemActorSeed)

	// 商品与规格，初始库存通过库存台账写入
	products := []service.ProductInput{
		{
			Slug:      "wireless-earphones",
			Title:     "Wireless Bluetooth Earphones",
			ListPrice: models.MustMoney("99.99"),
			Variants: []service.VariantInput{
				{SKUCode: "WE-BLACK", Details: models.JSON{"color": "black"}, InitialQuantity: 120},
				{SKUCode: "WE-WHITE", Details: models.JSON{"color": "white"}, InitialQuantity: 4},
			},
		},
		{
			Slug:      "smart-watch",
			Title:     "Smart Watch",
			ListPrice: models.MustMoney("199.99"),
			SalePrice: moneyPtr("179.99"),
			Variants: []service.VariantInput{
				{SKUCode: "SW-42", Details: models.JSON{"size": "42mm"}, InitialQuantity: 30},
				{SKUCode: "SW-46", Details: models.JSON{"size": "46mm"}, InitialQuantity: 0},
			},
		},
		{
			Slug:      "power-bank",
			Title:     "Portable Power Bank",
			ListPrice: models.MustMoney("49.99"),
			Variants: []service.VariantInput{
				{SKUCode: "PB-10K", Details: models.JSON{"capacity": "10000mAh"}, InitialQuantity: 200},
				{SKUCode: "PB-20K", Details: models.JSON{"capacity": "20000mAh"}, InitialQuantity: 8},
			},
		},
	}
	for _, input := range products {
		product, err := container.CatalogService.EnsureProduct(ctx, input, actor)
		if err != nil {
			stdLog.Printf("Failed to seed product %s: %v", input.Slug, err)
			continue
		}
		stdLog.Printf("Product ready: %s (variants=%d)", product.Slug, len(product.Variants))
	}

	// 优惠券
	now := time.Now()
	coupons := []service.CouponInput{
		{
			Code:          "SAVE10",
			DiscountType:  constants.CouponTypePercentage,
			DiscountValue: models.MustMoney("10"),
			MinAmount:     models.MustMoney("50.00"),
			ValidFrom:     now.AddDate(0, 0, -1),
			ValidTo:       now.AddDate(1, 0, 0),
		},
		{
			Code:          "FLAT15",
			DiscountType:  constants.CouponTypeFixedAmount,
			DiscountValue: models.MustMoney("15.00"),
			MinAmount:     models.MustMoney("100.00"),
			ValidFrom:     now.AddDate(0, 0, -1),
			ValidTo:       now.AddDate(0, 3, 0),
			UsageLimit:    100,
		},
	}
	for _, input := range coupons {
		coupon, err := container.CouponAdminService.Create(input, actor)
		if errors.Is(err, service.ErrCouponCodeExists) {
			stdLog.Printf("Coupon already exists: %s", input.Code)
			continue
		}
		if err != nil {
			stdLog.Printf("Failed to create coupon %s: %v", input.Code, err)
			continue
		}
		stdLog.Printf("Created coupon: %s", coupon.Code)
	}

	// 演示用的库存操作员
	if err := seedOperator(container, "stock-operator", "stock-operator-pass", authz.RoleInventoryOperator); err != nil {
		stdLog.Printf("Failed to seed operator: %v", err)
	}

	stdLog.Println("Seed data initialized successfully!")
}

func seedOperator(container *provider.Container, username, password, role string) error {
	admin, err := container.AdminRepo.GetByUsername(username)
	if err != nil {
		return err
	}
	if admin == nil {
		hash, err := service.HashPassword(password)
		if err != nil {
			return err
		}
		admin = &models.Admin{Username: username, PasswordHash: hash, IsActive: true}
		if err := container.AdminRepo.Create(admin); err != nil {
			return err
		}
	}
	return container.AuthzService.SetAdminRoles(admin.ID, []string{role})
}

func moneyPtr(raw string) *models.Money {
	value := models.MustMoney(raw)
	return &value
}
