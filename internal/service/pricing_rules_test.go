package service

import (
	"context"
	"testing"

	"github.com/dujiao-next/backoffice/internal/config"
	"github.com/dujiao-next/backoffice/internal/models"
)

func TestConfigPricingRulesQuote(t *testing.T) {
	rules, err := NewConfigPricingRules(config.PricingConfig{
		TaxRatePercent:        "6.5",
		ShippingFlatAmount:    "9.90",
		FreeShippingThreshold: "99",
	})
	if err != nil {
		t.Fatalf("build rules failed: %v", err)
	}
	if rules.Currency() != "CNY" {
		t.Fatalf("default currency should be CNY, got %s", rules.Currency())
	}
	lines := []PricedLine{{VariantID: 1, Quantity: 1}}

	charges, err := rules.Quote(context.Background(), PricingContext{
		Lines:          lines,
		Subtotal:       models.MustMoney("50.00"),
		DiscountAmount: models.MustMoney("10.00"),
	})
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	// (50 - 10) * 6.5% = 2.60
	if charges.TaxAmount.String() != "2.60" || charges.ShippingAmount.String() != "9.90" {
		t.Fatalf("unexpected charges: tax=%s shipping=%s", charges.TaxAmount, charges.ShippingAmount)
	}

	charges, err = rules.Quote(context.Background(), PricingContext{Lines: lines, Subtotal: models.MustMoney("99.00")})
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if charges.ShippingAmount.String() != "0.00" {
		t.Fatalf("free shipping threshold reached, got %s", charges.ShippingAmount)
	}

	charges, err = rules.Quote(context.Background(), PricingContext{Subtotal: models.MustMoney("0")})
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if charges.ShippingAmount.String() != "0.00" || charges.TaxAmount.String() != "0.00" {
		t.Fatalf("empty order should have no charges: %+v", charges)
	}
}

func TestNewConfigPricingRulesRejectsBadValues(t *testing.T) {
	bad := []config.PricingConfig{
		{TaxRatePercent: "abc"},
		{TaxRatePercent: "101"},
		{ShippingFlatAmount: "-1"},
		{FreeShippingThreshold: "x"},
	}
	for _, cfg := range bad {
		if _, err := NewConfigPricingRules(cfg); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}
