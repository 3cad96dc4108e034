package service

import (
	"context"
	"testing"
	"time"

	"github.com/dujiao-next/backoffice/internal/constants"
	"github.com/dujiao-next/backoffice/internal/models"
	"github.com/dujiao-next/backoffice/internal/repository"
)

func TestInventoryReporterReportScenario(t *testing.T) {
	f := newServiceFixture(t)
	product := f.createProduct(t, "jacket", "50.00", "")
	f.createVariant(t, product.ID, "S", 0)
	f.createVariant(t, product.ID, "M", 8)

	report, err := f.reporter.GenerateInventoryReport(context.Background(), InventoryReportOptions{})
	if err != nil {
		t.Fatalf("generate report failed: %v", err)
	}
	if report.OutOfStockVariants != 1 {
		t.Fatalf("expected 1 out of stock variant, got %d", report.OutOfStockVariants)
	}
	if report.TotalInventoryValue.String() != "400.00" {
		t.Fatalf("expected total value 400.00, got %s", report.TotalInventoryValue)
	}
	if report.TotalProducts != 1 || report.TotalVariants != 2 || report.TotalUnits != 8 {
		t.Fatalf("unexpected totals: %+v", report)
	}
	if report.LowStockVariants != 1 {
		t.Fatalf("quantity 8 is below threshold 10, got %d low stock", report.LowStockVariants)
	}
	if len(report.Products) != 1 || report.Products[0].InventoryValue.String() != "400.00" {
		t.Fatalf("unexpected product breakdown: %+v", report.Products)
	}
}

func TestInventoryReporterUsesLowerSalePrice(t *testing.T) {
	f := newServiceFixture(t)
	onSale := f.createProduct(t, "sale", "50.00", "40.00")
	f.createVariant(t, onSale.ID, "A", 2)
	// 促销价高于标价时按标价计算
	odd := f.createProduct(t, "odd", "10.00", "12.00")
	f.createVariant(t, odd.ID, "B", 3)

	report, err := f.reporter.GenerateInventoryReport(context.Background(), InventoryReportOptions{ForceRefresh: true})
	if err != nil {
		t.Fatalf("generate report failed: %v", err)
	}
	if report.TotalInventoryValue.String() != "110.00" {
		t.Fatalf("expected 2*40 + 3*10 = 110.00, got %s", report.TotalInventoryValue)
	}
	if report.Products[0].EffectivePrice.String() != "40.00" || report.Products[1].EffectivePrice.String() != "10.00" {
		t.Fatalf("unexpected effective prices: %+v", report.Products)
	}
}

func TestInventoryReporterEmptyCatalog(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	report, err := f.reporter.GenerateInventoryReport(ctx, InventoryReportOptions{})
	if err != nil {
		t.Fatalf("generate report failed: %v", err)
	}
	if report.Products == nil || len(report.Products) != 0 {
		t.Fatalf("products must be an empty non-nil slice")
	}
	if report.TotalInventoryValue.String() != "0.00" || report.TotalVariants != 0 || report.OutOfStockVariants != 0 {
		t.Fatalf("empty catalog should produce zero report: %+v", report)
	}

	alerts, err := f.reporter.GetLowStockAlerts(ctx, 5)
	if err != nil {
		t.Fatalf("low stock alerts failed: %v", err)
	}
	if alerts == nil || len(alerts) != 0 {
		t.Fatalf("alerts must be an empty non-nil slice")
	}
	count, err := f.reporter.GetOutOfStockCount(ctx)
	if err != nil || count != 0 {
		t.Fatalf("expected zero out of stock, got %d err=%v", count, err)
	}
	summary, err := f.reporter.GetMovementSummary(ctx, nil)
	if err != nil {
		t.Fatalf("movement summary failed: %v", err)
	}
	if summary.Items == nil || len(summary.Items) != 0 || summary.TotalEntries != 0 {
		t.Fatalf("empty movement summary expected: %+v", summary)
	}
}

func TestInventoryReporterLowStockOrdering(t *testing.T) {
	f := newServiceFixture(t)
	product := f.createProduct(t, "pens", "2.00", "")
	a := f.createVariant(t, product.ID, "A", 4)
	b := f.createVariant(t, product.ID, "B", 1)
	c := f.createVariant(t, product.ID, "C", 4)
	f.createVariant(t, product.ID, "D", 0)
	f.createVariant(t, product.ID, "E", 20)
	disabled := f.createVariant(t, product.ID, "F", 2)
	ctx := context.Background()
	if err := f.ledger.SetVariantActive(ctx, disabled.ID, false, AdminActor(1)); err != nil {
		t.Fatalf("deactivate variant failed: %v", err)
	}

	alerts, err := f.reporter.GetLowStockAlerts(ctx, 5)
	if err != nil {
		t.Fatalf("low stock alerts failed: %v", err)
	}
	wantOrder := []uint{b.ID, a.ID, c.ID}
	if len(alerts) != len(wantOrder) {
		t.Fatalf("expected %d alerts, got %+v", len(wantOrder), alerts)
	}
	for i, id := range wantOrder {
		if alerts[i].VariantID != id {
			t.Fatalf("alert %d: expected variant %d, got %d", i, id, alerts[i].VariantID)
		}
		if alerts[i].Threshold != 5 {
			t.Fatalf("alert threshold not propagated: %+v", alerts[i])
		}
	}

	// 阈值 <= 0 时使用默认阈值 10
	alerts, err = f.reporter.GetLowStockAlerts(ctx, 0)
	if err != nil {
		t.Fatalf("low stock alerts with default threshold failed: %v", err)
	}
	if len(alerts) != 3 || alerts[0].Threshold != 10 {
		t.Fatalf("unexpected default-threshold alerts: %+v", alerts)
	}

	count, err := f.reporter.GetOutOfStockCount(ctx)
	if err != nil || count != 1 {
		t.Fatalf("expected 1 out of stock, got %d err=%v", count, err)
	}
}

func TestInventoryReporterIgnoresInactiveProducts(t *testing.T) {
	f := newServiceFixture(t)
	hidden := f.createProduct(t, "hidden", "10.00", "")
	f.createVariant(t, hidden.ID, "A", 0)
	if err := f.db.Model(hidden).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate product failed: %v", err)
	}

	count, err := f.reporter.GetOutOfStockCount(context.Background())
	if err != nil || count != 0 {
		t.Fatalf("inactive products must not be counted, got %d err=%v", count, err)
	}
}

func TestInventoryReporterMovementSummarySeparatesManualUpdates(t *testing.T) {
	f := newServiceFixture(t)
	product := f.createProduct(t, "bag", "20.00", "")
	variant := f.createVariant(t, product.ID, "STD", 10)
	ctx := context.Background()
	since := time.Now().Add(-time.Minute)

	if _, err := f.ledger.Reserve(ctx, StockMutation{VariantID: variant.ID, Quantity: 4, Actor: AdminActor(1)}); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if _, err := f.ledger.Release(ctx, StockMutation{VariantID: variant.ID, Quantity: 1, Actor: AdminActor(1)}); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if _, err := f.ledger.AdjustTo(ctx, StockAdjustment{VariantID: variant.ID, NewQuantity: 15, Actor: AdminActor(1)}); err != nil {
		t.Fatalf("adjust failed: %v", err)
	}

	summary, err := f.reporter.GetMovementSummary(ctx, &since)
	if err != nil {
		t.Fatalf("movement summary failed: %v", err)
	}
	if summary.TotalEntries != 3 {
		t.Fatalf("expected 3 entries, got %d", summary.TotalEntries)
	}
	if summary.BusinessNetChange != -3 {
		t.Fatalf("expected business net -3, got %d", summary.BusinessNetChange)
	}
	if summary.ManualNetChange != 8 {
		t.Fatalf("expected manual net +8, got %d", summary.ManualNetChange)
	}
	byType := map[string]MovementSummaryItem{}
	for _, item := range summary.Items {
		byType[item.ChangeType] = item
	}
	if byType[constants.InventoryChangeReserve].Entries != 1 || byType[constants.InventoryChangeManualUpdate].NetChange != 8 {
		t.Fatalf("unexpected per-type summary: %+v", summary.Items)
	}
}

func TestBuildInventoryReportRoundsValue(t *testing.T) {
	sale := models.MustMoney("3.33")
	report := buildInventoryReport([]repository.VariantStockRow{
		{VariantID: 1, ProductID: 1, AvailableQuantity: 3, ListPrice: models.MustMoney("9.99"), SalePrice: &sale},
	}, 10, time.Now())
	if report.TotalInventoryValue.String() != "9.99" {
		t.Fatalf("expected 9.99, got %s", report.TotalInventoryValue)
	}
}
