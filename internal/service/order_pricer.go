package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dujiao-next/backoffice/internal/constants"
	"github.com/dujiao-next/backoffice/internal/logger"
	"github.com/dujiao-next/backoffice/internal/metrics"
	"github.com/dujiao-next/backoffice/internal/models"
	"github.com/dujiao-next/backoffice/internal/queue"
	"github.com/dujiao-next/backoffice/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReleaseTaskEnqueuer 补偿任务投递方
type ReleaseTaskEnqueuer interface {
	EnqueueReservationRelease(payload queue.ReservationReleasePayload) error
}

// OrderDraft 待计价订单
type OrderDraft struct {
	Items      []OrderDraftItem `json:"items"`
	CouponCode string           `json:"coupon_code"`
	Actor      Actor            `json:"-"`
}

// OrderDraftItem 待计价订单项，单价为 0 时取商品实际售价
type OrderDraftItem struct {
	VariantID uint         `json:"variant_id"`
	Quantity  int          `json:"quantity"`
	UnitPrice models.Money `json:"unit_price"`
}

// PricedLine 计价后的订单行
type PricedLine struct {
	VariantID uint         `json:"variant_id"`
	ProductID uint         `json:"product_id"`
	SKUCode   string       `json:"sku_code"`
	Quantity  int          `json:"quantity"`
	UnitPrice models.Money `json:"unit_price"`
	LineTotal models.Money `json:"line_total"`
}

// PricingQuote 计价结果（预览，不占用库存）
type PricingQuote struct {
	Currency       string                  `json:"currency"`
	Lines          []PricedLine            `json:"lines"`
	Subtotal       models.Money            `json:"subtotal"`
	DiscountAmount models.Money            `json:"discount_amount"`
	TaxAmount      models.Money            `json:"tax_amount"`
	ShippingAmount models.Money            `json:"shipping_amount"`
	TotalAmount    models.Money            `json:"total_amount"`
	Coupon         *CouponValidationResult `json:"coupon,omitempty"`
}

// ConfirmedOrder 确认后的订单
type ConfirmedOrder struct {
	Order *models.Order `json:"order"`
	Quote *PricingQuote `json:"quote"`
}

// OrderPricerOptions 订单计价配置
type OrderPricerOptions struct {
	Enqueuer ReleaseTaskEnqueuer
	Metrics  *metrics.InventoryMetrics
	Now      func() time.Time
}

// OrderPricer 订单计价与确认：库存检查 → 优惠券校验 → 合计 → 占用库存 → 核销优惠券
type OrderPricer struct {
	db          *gorm.DB
	ledger      *StockLedger
	coupons     *CouponValidator
	orderRepo   repository.OrderRepository
	variantRepo repository.ProductVariantRepository
	rules       PricingRules
	enqueuer    ReleaseTaskEnqueuer
	metrics     *metrics.InventoryMetrics
	now         func() time.Time
}

// NewOrderPricer 创建订单计价服务
func NewOrderPricer(
	db *gorm.DB,
	ledger *StockLedger,
	coupons *CouponValidator,
	orderRepo repository.OrderRepository,
	variantRepo repository.ProductVariantRepository,
	rules PricingRules,
	opts OrderPricerOptions,
) *OrderPricer {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &OrderPricer{
		db:          db,
		ledger:      ledger,
		coupons:     coupons,
		orderRepo:   orderRepo,
		variantRepo: variantRepo,
		rules:       rules,
		enqueuer:    opts.Enqueuer,
		metrics:     opts.Metrics,
		now:         now,
	}
}

// Price 计价预览：任一订单项库存不足即中止，不做任何占用
func (p *OrderPricer) Price(ctx context.Context, draft OrderDraft) (*PricingQuote, error) {
	items, err := mergeDraftItems(draft.Items)
	if err != nil {
		return nil, err
	}
	variants, err := p.loadVariants(ctx, items)
	if err != nil {
		return nil, err
	}

	lines := make([]PricedLine, 0, len(items))
	for _, item := range items {
		variant := variants[item.VariantID]
		ok, err := p.ledger.CheckAvailability(ctx, item.VariantID, item.Quantity)
		if err != nil {
			return nil, err
		}
		if !ok || variant.Product == nil || !variant.Product.IsActive {
			return nil, &InsufficientStockError{
				VariantID: item.VariantID,
				Requested: item.Quantity,
				Available: variant.AvailableQuantity,
				Inactive:  !variant.IsActive || variant.Product == nil || !variant.Product.IsActive,
			}
		}
		unitPrice := item.UnitPrice
		if unitPrice.Decimal.IsZero() {
			unitPrice = variant.Product.EffectivePrice()
		}
		lines = append(lines, PricedLine{
			VariantID: item.VariantID,
			ProductID: variant.ProductID,
			SKUCode:   variant.SKUCode,
			Quantity:  item.Quantity,
			UnitPrice: unitPrice,
			LineTotal: unitPrice.MulInt(item.Quantity),
		})
	}

	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.LineTotal.Decimal)
	}
	quote := &PricingQuote{
		Currency:       p.rules.Currency(),
		Lines:          lines,
		Subtotal:       models.NewMoneyFromDecimal(subtotal),
		DiscountAmount: models.NewMoneyFromDecimal(decimal.Zero),
	}

	if code := NormalizeCouponCode(draft.CouponCode); code != "" {
		result, err := p.coupons.Validate(ctx, code, quote.Subtotal, p.now())
		if err != nil {
			return nil, err
		}
		if !result.IsValid {
			return nil, result.Err()
		}
		quote.Coupon = result
		quote.DiscountAmount = result.DiscountAmount
	}

	if err := p.applyCharges(ctx, quote); err != nil {
		return nil, err
	}
	return quote, nil
}

// Confirm 确认订单：逐项占用库存，任一步失败都回补已占用的库存后返回
func (p *OrderPricer) Confirm(ctx context.Context, draft OrderDraft) (*ConfirmedOrder, error) {
	if err := draft.Actor.Validate(); err != nil {
		return nil, err
	}
	quote, err := p.Price(ctx, draft)
	if err != nil {
		return nil, err
	}

	orderNo := generateOrderNo()
	reserveLogIDs := make([]uint, 0, len(quote.Lines))
	for _, line := range quote.Lines {
		result, err := p.ledger.Reserve(ctx, StockMutation{
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
			Actor:     draft.Actor,
			Reason:    "order confirm",
			Reference: orderNo,
		})
		if err != nil {
			p.compensateReservations(ctx, orderNo, reserveLogIDs, "order confirm aborted")
			return nil, err
		}
		reserveLogIDs = append(reserveLogIDs, result.Log.ID)
	}

	if quote.Coupon != nil {
		if err := p.coupons.Redeem(ctx, quote.Coupon.CouponID); err != nil {
			p.compensateReservations(ctx, orderNo, reserveLogIDs, "coupon redemption failed")
			return nil, redeemError(quote.Coupon.Code, err)
		}
	}

	order := &models.Order{
		OrderNo:  orderNo,
		Status:   constants.OrderStatusConfirmed,
		ActorID:  draft.Actor.String(),
		Currency: quote.Currency,
	}
	items := make([]models.OrderItem, 0, len(quote.Lines))
	for i, line := range quote.Lines {
		items = append(items, models.OrderItem{
			ProductID:    line.ProductID,
			VariantID:    line.VariantID,
			SKUCode:      line.SKUCode,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			LineTotal:    line.LineTotal,
			ReserveLogID: reserveLogIDs[i],
		})
	}

	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := p.orderRepo.WithTx(tx)
		if err := repo.Create(order, items); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		snapshot := buildPricingSnapshot(order.ID, 1, quote)
		if err := repo.CreateSnapshot(snapshot); err != nil {
			return fmt.Errorf("create pricing snapshot: %w", err)
		}
		order.PricingSnapshots = []models.OrderPricingSnapshot{*snapshot}
		if quote.Coupon != nil {
			application := &models.OrderCouponApplication{
				OrderID:        order.ID,
				CouponID:       quote.Coupon.CouponID,
				Code:           quote.Coupon.Code,
				DiscountAmount: quote.DiscountAmount,
			}
			if err := repo.CreateCouponApplication(application); err != nil {
				return fmt.Errorf("create coupon application: %w", err)
			}
			order.CouponApplication = application
		}
		return nil
	})
	if err != nil {
		p.compensateReservations(ctx, orderNo, reserveLogIDs, "order persist failed")
		if quote.Coupon != nil {
			if revertErr := p.coupons.Revert(context.WithoutCancel(ctx), quote.Coupon.CouponID); revertErr != nil {
				logger.Errorw("coupon_revert_failed", "order_no", orderNo, "coupon_id", quote.Coupon.CouponID, "error", revertErr)
			}
		}
		return nil, err
	}

	logger.Infow("order_confirmed",
		"order_no", order.OrderNo,
		"actor_id", order.ActorID,
		"items", len(items),
		"total_amount", quote.TotalAmount.String(),
	)
	return &ConfirmedOrder{Order: order, Quote: quote}, nil
}

// Cancel 取消订单并回补全部占用库存（回补幂等，已核销的优惠券不退回）
func (p *OrderPricer) Cancel(ctx context.Context, orderNo string, actor Actor, reason string) (*models.Order, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	order, err := p.GetOrder(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	now := p.now()
	affected, err := p.orderRepo.WithTx(p.db.WithContext(ctx)).TransitionStatus(order.ID, constants.OrderStatusConfirmed, constants.OrderStatusCanceled, map[string]interface{}{
		"canceled_at": now,
	})
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}
	if affected == 0 {
		return nil, ErrOrderInvalidStatus
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "order canceled"
	}
	for _, item := range order.Items {
		if item.ReserveLogID == 0 {
			continue
		}
		if _, err := p.ledger.ReleaseReservation(context.WithoutCancel(ctx), item.ReserveLogID, actor, reason); err != nil {
			logger.Warnw("order_cancel_release_failed", "order_no", order.OrderNo, "reserve_log_id", item.ReserveLogID, "error", err)
			p.enqueueRelease(order.OrderNo, item.ReserveLogID, reason)
		}
	}
	order.Status = constants.OrderStatusCanceled
	order.CanceledAt = &now
	logger.Infow("order_canceled", "order_no", order.OrderNo, "actor_id", actor.String())
	return order, nil
}

// Reprice 基于订单冻结的单价与优惠金额重新计算税费运费，追加新版本快照
func (p *OrderPricer) Reprice(ctx context.Context, orderNo string) (*models.OrderPricingSnapshot, error) {
	order, err := p.GetOrder(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if order.Status != constants.OrderStatusConfirmed {
		return nil, ErrOrderInvalidStatus
	}

	quote := &PricingQuote{
		Currency:       order.Currency,
		Lines:          make([]PricedLine, 0, len(order.Items)),
		DiscountAmount: models.NewMoneyFromDecimal(decimal.Zero),
	}
	subtotal := decimal.Zero
	for _, item := range order.Items {
		quote.Lines = append(quote.Lines, PricedLine{
			VariantID: item.VariantID,
			ProductID: item.ProductID,
			SKUCode:   item.SKUCode,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		})
		subtotal = subtotal.Add(item.LineTotal.Decimal)
	}
	quote.Subtotal = models.NewMoneyFromDecimal(subtotal)
	if order.CouponApplication != nil {
		quote.DiscountAmount = order.CouponApplication.DiscountAmount
	}
	if err := p.applyCharges(ctx, quote); err != nil {
		return nil, err
	}

	var snapshot *models.OrderPricingSnapshot
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := p.orderRepo.WithTx(tx)
		version, err := repo.LatestSnapshotVersion(order.ID)
		if err != nil {
			return fmt.Errorf("load snapshot version: %w", err)
		}
		snapshot = buildPricingSnapshot(order.ID, version+1, quote)
		if err := repo.CreateSnapshot(snapshot); err != nil {
			return fmt.Errorf("create pricing snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("order_repriced", "order_no", order.OrderNo, "version", snapshot.Version, "total_amount", snapshot.TotalAmount.String())
	return snapshot, nil
}

// GetOrder 获取订单详情
func (p *OrderPricer) GetOrder(ctx context.Context, orderNo string) (*models.Order, error) {
	if strings.TrimSpace(orderNo) == "" {
		return nil, ErrOrderNotFound
	}
	order, err := p.orderRepo.WithTx(p.db.WithContext(ctx)).GetByOrderNo(orderNo)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListOrders 管理端订单列表
func (p *OrderPricer) ListOrders(ctx context.Context, filter repository.OrderListFilter) ([]models.Order, int64, error) {
	return p.orderRepo.WithTx(p.db.WithContext(ctx)).ListAdmin(filter)
}

func (p *OrderPricer) loadVariants(ctx context.Context, items []OrderDraftItem) (map[uint]models.ProductVariant, error) {
	ids := make([]uint, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.VariantID)
	}
	variants, err := p.variantRepo.WithTx(p.db.WithContext(ctx)).ListByIDs(ids, true)
	if err != nil {
		return nil, fmt.Errorf("load variants: %w", err)
	}
	byID := make(map[uint]models.ProductVariant, len(variants))
	for _, variant := range variants {
		byID[variant.ID] = variant
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("%w: %d", ErrVariantNotFound, id)
		}
	}
	return byID, nil
}

// applyCharges 合计 = 小计 + 税费 + 运费 - 优惠，最低为 0
func (p *OrderPricer) applyCharges(ctx context.Context, quote *PricingQuote) error {
	charges, err := p.rules.Quote(ctx, PricingContext{
		Currency:       quote.Currency,
		Lines:          quote.Lines,
		Subtotal:       quote.Subtotal,
		DiscountAmount: quote.DiscountAmount,
	})
	if err != nil {
		return fmt.Errorf("quote pricing rules: %w", err)
	}
	quote.TaxAmount = charges.TaxAmount
	quote.ShippingAmount = charges.ShippingAmount
	total := quote.Subtotal.Decimal.
		Add(charges.TaxAmount.Decimal).
		Add(charges.ShippingAmount.Decimal).
		Sub(quote.DiscountAmount.Decimal)
	quote.TotalAmount = models.NewMoneyFromDecimal(total).FloorZero()
	return nil
}

// compensateReservations 回补已占用库存，不受请求取消影响；回补失败时投递异步任务
func (p *OrderPricer) compensateReservations(ctx context.Context, orderNo string, reserveLogIDs []uint, reason string) {
	if len(reserveLogIDs) == 0 {
		return
	}
	compensateCtx := context.WithoutCancel(ctx)
	actor := SystemActor(constants.SystemActorCompensation)
	for _, logID := range reserveLogIDs {
		if _, err := p.ledger.ReleaseReservation(compensateCtx, logID, actor, reason); err != nil {
			logger.Warnw("reservation_compensation_failed", "order_no", orderNo, "reserve_log_id", logID, "error", err)
			p.enqueueRelease(orderNo, logID, reason)
		}
	}
}

func (p *OrderPricer) enqueueRelease(orderNo string, reserveLogID uint, reason string) {
	if p.enqueuer == nil {
		p.metrics.ObserveCompensation(metrics.OutcomeUnrecoverable)
		logger.Errorw("reservation_compensation_lost", "order_no", orderNo, "reserve_log_id", reserveLogID)
		return
	}
	err := p.enqueuer.EnqueueReservationRelease(queue.ReservationReleasePayload{
		ReserveLogID: reserveLogID,
		OrderNo:      orderNo,
		Reason:       reason,
	})
	if err != nil {
		p.metrics.ObserveCompensation(metrics.OutcomeUnrecoverable)
		logger.Errorw("reservation_compensation_lost", "order_no", orderNo, "reserve_log_id", reserveLogID, "error", err)
		return
	}
	p.metrics.ObserveCompensation(metrics.OutcomeEnqueued)
}

func buildPricingSnapshot(orderID uint, version int, quote *PricingQuote) *models.OrderPricingSnapshot {
	return &models.OrderPricingSnapshot{
		OrderID:        orderID,
		Version:        version,
		Subtotal:       quote.Subtotal,
		TaxAmount:      quote.TaxAmount,
		ShippingAmount: quote.ShippingAmount,
		DiscountAmount: quote.DiscountAmount,
		TotalAmount:    quote.TotalAmount,
	}
}

func redeemError(code string, err error) error {
	switch {
	case errors.Is(err, ErrCouponUsageExhausted):
		return &CouponRejectedError{
			Code:   code,
			Status: constants.CouponStatusUsageExhausted,
			Reason: "coupon usage limit reached",
			cause:  ErrCouponUsageExhausted,
		}
	case errors.Is(err, ErrCouponNotFound):
		return &CouponRejectedError{
			Code:   code,
			Status: constants.CouponStatusUnknown,
			Reason: "coupon no longer exists",
			cause:  ErrCouponNotFound,
		}
	default:
		return err
	}
}

// mergeDraftItems 合并重复规格的订单项
func mergeDraftItems(items []OrderDraftItem) ([]OrderDraftItem, error) {
	if len(items) == 0 {
		return nil, ErrOrderEmpty
	}
	merged := make([]OrderDraftItem, 0, len(items))
	indexMap := make(map[uint]int)
	for _, item := range items {
		if item.VariantID == 0 {
			return nil, ErrVariantNotFound
		}
		if item.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if item.UnitPrice.Decimal.IsNegative() {
			return nil, ErrInvalidUnitPrice
		}
		idx, ok := indexMap[item.VariantID]
		if !ok {
			indexMap[item.VariantID] = len(merged)
			merged = append(merged, item)
			continue
		}
		existing := &merged[idx]
		switch {
		case existing.UnitPrice.Decimal.IsZero():
			existing.UnitPrice = item.UnitPrice
		case !item.UnitPrice.Decimal.IsZero() && !item.UnitPrice.Decimal.Equal(existing.UnitPrice.Decimal):
			return nil, ErrInvalidUnitPrice
		}
		existing.Quantity += item.Quantity
	}
	return merged, nil
}

// generateOrderNo 时间前缀加 uuid 截取的随机后缀
func generateOrderNo() string {
	now := time.Now().Format("20060102150405")
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("BO%s%s", now, suffix[:8])
}
