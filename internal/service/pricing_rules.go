package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/dujiao-next/backoffice/internal/config"
	"github.com/dujiao-next/backoffice/internal/models"

	"github.com/shopspring/decimal"
)

// PricingContext 计算税费与运费所需的订单上下文
type PricingContext struct {
	Currency       string
	Lines          []PricedLine
	Subtotal       models.Money
	DiscountAmount models.Money
}

// PricingCharges 税费与运费
type PricingCharges struct {
	TaxAmount      models.Money
	ShippingAmount models.Money
}

// PricingRules 税费/运费规则提供方
type PricingRules interface {
	Currency() string
	Quote(ctx context.Context, pc PricingContext) (PricingCharges, error)
}

// ConfigPricingRules 基于配置的固定税率与固定运费
type ConfigPricingRules struct {
	currency              string
	taxRatePercent        decimal.Decimal
	shippingFlat          models.Money
	freeShippingThreshold models.Money
}

// NewConfigPricingRules 从配置创建计价规则
func NewConfigPricingRules(cfg config.PricingConfig) (*ConfigPricingRules, error) {
	rate, err := ParsePercent(cfg.TaxRatePercent)
	if err != nil {
		return nil, fmt.Errorf("pricing.tax_rate_percent: %w", err)
	}
	shipping, err := models.ParseMoney(cfg.ShippingFlatAmount)
	if err != nil {
		return nil, fmt.Errorf("pricing.shipping_flat_amount: %w", err)
	}
	threshold, err := models.ParseMoney(cfg.FreeShippingThreshold)
	if err != nil {
		return nil, fmt.Errorf("pricing.free_shipping_threshold: %w", err)
	}
	if shipping.Decimal.IsNegative() || threshold.Decimal.IsNegative() {
		return nil, fmt.Errorf("pricing amounts must not be negative")
	}
	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "CNY"
	}
	return &ConfigPricingRules{
		currency:              currency,
		taxRatePercent:        rate,
		shippingFlat:          shipping,
		freeShippingThreshold: threshold,
	}, nil
}

// ParsePercent 解析百分比（0-100），空串视为 0
func ParsePercent(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, nil
	}
	rate, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, err
	}
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return decimal.Zero, fmt.Errorf("percent %s out of range", trimmed)
	}
	return rate, nil
}

// Currency 返回结算币种
func (r *ConfigPricingRules) Currency() string {
	return r.currency
}

// Quote 税费按折后金额计算；达到包邮门槛或没有商品时免运费
func (r *ConfigPricingRules) Quote(ctx context.Context, pc PricingContext) (PricingCharges, error) {
	taxable := models.NewMoneyFromDecimal(pc.Subtotal.Decimal.Sub(pc.DiscountAmount.Decimal)).FloorZero()
	tax := taxable.Decimal.Mul(r.taxRatePercent).Div(hundred)

	shipping := r.shippingFlat.Decimal
	if len(pc.Lines) == 0 {
		shipping = decimal.Zero
	}
	if r.freeShippingThreshold.Decimal.IsPositive() && pc.Subtotal.Decimal.GreaterThanOrEqual(r.freeShippingThreshold.Decimal) {
		shipping = decimal.Zero
	}
	return PricingCharges{
		TaxAmount:      models.NewMoneyFromDecimal(tax),
		ShippingAmount: models.NewMoneyFromDecimal(shipping),
	}, nil
}
