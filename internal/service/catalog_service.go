package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/dujiao-next/backoffice/internal/logger"
	"github.com/dujiao-next/backoffice/internal/models"
	"github.com/dujiao-next/backoffice/internal/repository"

	"gorm.io/gorm"
)

// CatalogService 商品与规格建档，初始库存通过库存台账写入
type CatalogService struct {
	db          *gorm.DB
	productRepo repository.ProductRepository
	variantRepo repository.ProductVariantRepository
	ledger      *StockLedger
}

// NewCatalogService 创建商品建档服务
func NewCatalogService(db *gorm.DB, productRepo repository.ProductRepository, variantRepo repository.ProductVariantRepository, ledger *StockLedger) *CatalogService {
	return &CatalogService{
		db:          db,
		productRepo: productRepo,
		variantRepo: variantRepo,
		ledger:      ledger,
	}
}

// ProductInput 商品建档输入
type ProductInput struct {
	Slug      string
	Title     string
	ListPrice models.Money
	SalePrice *models.Money
	Variants  []VariantInput
}

// VariantInput 规格建档输入
type VariantInput struct {
	SKUCode         string
	Details         models.JSON
	InitialQuantity int
}

// EnsureProduct 按 slug 幂等建档：已存在的商品与规格保持不变，只补齐缺失的规格
func (s *CatalogService) EnsureProduct(ctx context.Context, input ProductInput, actor Actor) (*models.Product, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	slug := strings.TrimSpace(input.Slug)
	if slug == "" || strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("product slug and title are required")
	}
	if input.ListPrice.Decimal.IsNegative() || (input.SalePrice != nil && input.SalePrice.Decimal.IsNegative()) {
		return nil, ErrInvalidUnitPrice
	}

	productRepo := s.productRepo.WithTx(s.db.WithContext(ctx))
	product, err := productRepo.GetBySlug(slug)
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	if product == nil {
		product = &models.Product{
			Slug:      slug,
			Title:     strings.TrimSpace(input.Title),
			ListPrice: input.ListPrice,
			SalePrice: input.SalePrice,
			IsActive:  true,
		}
		if err := productRepo.Create(product); err != nil {
			return nil, fmt.Errorf("create product: %w", err)
		}
		logger.Infow("product_created", "product_id", product.ID, "slug", slug, "actor_id", actor.String())
	}

	variantRepo := s.variantRepo.WithTx(s.db.WithContext(ctx))
	for _, in := range input.Variants {
		if in.InitialQuantity < 0 {
			return nil, ErrInvalidQuantity
		}
		existing, err := variantRepo.GetByProductAndCode(product.ID, in.SKUCode)
		if err != nil {
			return nil, fmt.Errorf("load variant: %w", err)
		}
		if existing != nil {
			continue
		}
		variant := &models.ProductVariant{
			ProductID:      product.ID,
			SKUCode:        strings.TrimSpace(in.SKUCode),
			VariantDetails: in.Details,
			IsActive:       true,
		}
		if err := variantRepo.Create(variant); err != nil {
			return nil, fmt.Errorf("create variant: %w", err)
		}
		if in.InitialQuantity > 0 {
			if _, err := s.ledger.AdjustTo(ctx, StockAdjustment{
				VariantID:   variant.ID,
				NewQuantity: in.InitialQuantity,
				Actor:       actor,
				Reason:      "initial stock",
			}); err != nil {
				return nil, err
			}
		}
	}

	variants, err := variantRepo.ListByProduct(product.ID, false)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	product.Variants = variants
	return product, nil
}
