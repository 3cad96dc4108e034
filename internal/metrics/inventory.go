package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// 结果标签
const (
	OutcomeSuccess       = "success"
	OutcomeRejected      = "rejected"
	OutcomeError         = "error"
	OutcomeSkipped       = "skipped"
	OutcomeEnqueued      = "enqueued"
	OutcomeUnrecoverable = "unrecoverable"
)

// InventoryMetrics 库存与优惠券核心指标，nil 接收者上的方法均为空操作
type InventoryMetrics struct {
	stockMutations    *prometheus.CounterVec
	couponRedemptions *prometheus.CounterVec
	compensations     *prometheus.CounterVec
	lowStockVariants  prometheus.Gauge
	outOfStock        prometheus.Gauge
}

// NewInventoryMetrics 在 registerer 上注册库存指标
func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return &InventoryMetrics{}
	}
	stockMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "backoffice",
		Name:      "stock_mutations_total",
		Help:      "Stock ledger mutations by change type and outcome.",
	}, []string{"change_type", "outcome"})
	couponRedemptions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "backoffice",
		Name:      "coupon_redemptions_total",
		Help:      "Coupon redemption attempts by outcome.",
	}, []string{"outcome"})
	compensations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "backoffice",
		Name:      "reservation_compensations_total",
		Help:      "Compensating releases of reserved stock by outcome.",
	}, []string{"outcome"})
	lowStock := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "backoffice",
		Name:      "low_stock_variants",
		Help:      "Active variants at or below the low stock threshold.",
	})
	outOfStock := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "backoffice",
		Name:      "out_of_stock_variants",
		Help:      "Active variants with zero available quantity.",
	})
	reg.MustRegister(stockMutations, couponRedemptions, compensations, lowStock, outOfStock)
	return &InventoryMetrics{
		stockMutations:    stockMutations,
		couponRedemptions: couponRedemptions,
		compensations:     compensations,
		lowStockVariants:  lowStock,
		outOfStock:        outOfStock,
	}
}

// ObserveStockMutation 记录一次库存变更
func (m *InventoryMetrics) ObserveStockMutation(changeType, outcome string) {
	if m == nil || m.stockMutations == nil {
		return
	}
	m.stockMutations.WithLabelValues(normalizeLabel(changeType), normalizeLabel(outcome)).Inc()
}

// ObserveCouponRedemption 记录一次优惠券核销
func (m *InventoryMetrics) ObserveCouponRedemption(outcome string) {
	if m == nil || m.couponRedemptions == nil {
		return
	}
	m.couponRedemptions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveCompensation 记录一次补偿回补
func (m *InventoryMetrics) ObserveCompensation(outcome string) {
	if m == nil || m.compensations == nil {
		return
	}
	m.compensations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// SetStockAlerts 更新低库存与缺货规格数量
func (m *InventoryMetrics) SetStockAlerts(lowStock int, outOfStock int64) {
	if m == nil || m.lowStockVariants == nil || m.outOfStock == nil {
		return
	}
	m.lowStockVariants.Set(float64(lowStock))
	m.outOfStock.Set(float64(outOfStock))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
