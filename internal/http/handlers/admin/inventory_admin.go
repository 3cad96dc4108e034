package admin

import (
	"context"
	"strings"

	handlershared "github.com/dujiao-next/backoffice/internal/http/handlers/shared"
	"github.com/dujiao-next/backoffice/internal/http/response"
	"github.com/dujiao-next/backoffice/internal/queue"
	"github.com/dujiao-next/backoffice/internal/repository"
	"github.com/dujiao-next/backoffice/internal/service"

	"github.com/gin-gonic/gin"
)

const defaultRecentLogLimit = 50

// StockMutationRequest 占用/回补库存请求
type StockMutationRequest struct {
	Quantity  int    `json:"quantity" binding:"required"`
	Reason    string `json:"reason"`
	Reference string `json:"reference"`
}

// StockAdjustRequest 管理员修正库存请求
type StockAdjustRequest struct {
	NewQuantity *int   `json:"new_quantity" binding:"required"`
	Reason      string `json:"reason" binding:"required"`
}

// VariantStatusRequest 规格启停请求
type VariantStatusRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// GetVariant 获取规格库存
func (h *Handler) GetVariant(c *gin.Context) {
	variantID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	variant, err := h.StockLedger.GetVariant(c.Request.Context(), variantID)
	if err != nil {
		respondServiceError(c, err, "load variant failed")
		return
	}
	response.Success(c, variant)
}

// CheckAvailability 查询规格是否有足够库存
func (h *Handler) CheckAvailability(c *gin.Context) {
	variantID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	quantity, ok := parseIntQuery(c, "quantity", 1)
	if !ok {
		return
	}
	available, err := h.StockLedger.CheckAvailability(c.Request.Context(), variantID, quantity)
	if err != nil {
		respondServiceError(c, err, "check availability failed")
		return
	}
	response.Success(c, gin.H{
		"variant_id": variantID,
		"quantity":   quantity,
		"available":  available,
	})
}

// ReserveStock 占用库存
func (h *Handler) ReserveStock(c *gin.Context) {
	h.mutateStock(c, h.StockLedger.Reserve, "reserve stock failed")
}

// ReleaseStock 回补库存
func (h *Handler) ReleaseStock(c *gin.Context) {
	h.mutateStock(c, h.StockLedger.Release, "release stock failed")
}

func (h *Handler) mutateStock(c *gin.Context, apply func(ctx context.Context, m service.StockMutation) (*service.StockMutationResult, error), failMsg string) {
	variantID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	actor, ok := getAdminActor(c)
	if !ok {
		return
	}
	var req StockMutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	result, err := apply(c.Request.Context(), service.StockMutation{
		VariantID: variantID,
		Quantity:  req.Quantity,
		Actor:     actor,
		Reason:    strings.TrimSpace(req.Reason),
		Reference: strings.TrimSpace(req.Reference),
	})
	if err != nil {
		respondServiceError(c, err, failMsg)
		return
	}
	response.Success(c, result)
}

// AdjustStock 管理员直接设置库存
func (h *Handler) AdjustStock(c *gin.Context) {
	variantID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	actor, ok := getAdminActor(c)
	if !ok {
		return
	}
	var req StockAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	ctx := c.Request.Context()
	result, err := h.StockLedger.AdjustTo(ctx, service.StockAdjustment{
		VariantID:   variantID,
		NewQuantity: *req.NewQuantity,
		Actor:       actor,
		Reason:      strings.TrimSpace(req.Reason),
	})
	if err != nil {
		respondServiceError(c, err, "adjust stock failed")
		return
	}
	h.afterManualStockChange(c)
	response.Success(c, result)
}

// UpdateVariantStatus 启用或停用规格
func (h *Handler) UpdateVariantStatus(c *gin.Context) {
	variantID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	actor, ok := getAdminActor(c)
	if !ok {
		return
	}
	var req VariantStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	if err := h.StockLedger.SetVariantActive(c.Request.Context(), variantID, *req.IsActive, actor); err != nil {
		respondServiceError(c, err, "update variant status failed")
		return
	}
	h.afterManualStockChange(c)
	response.Success(c, gin.H{
		"variant_id": variantID,
		"is_active":  *req.IsActive,
	})
}

// afterManualStockChange 人工改库存后清理报表缓存并触发一次低库存巡检
func (h *Handler) afterManualStockChange(c *gin.Context) {
	h.InventoryReporter.InvalidateReportCache(c.Request.Context())
	if err := h.QueueClient.EnqueueLowStockScan(queue.LowStockScanPayload{}); err != nil {
		requestLog(c).Warnw("admin_enqueue_low_stock_scan_failed", "error", err)
	}
}

// GetVariantHistory 规格库存流水
func (h *Handler) GetVariantHistory(c *gin.Context) {
	variantID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	since, ok := parseTimeQuery(c, "since")
	if !ok {
		return
	}
	logs, err := h.InventoryAuditLog.GetHistory(c.Request.Context(), variantID, since)
	if err != nil {
		respondServiceError(c, err, "load inventory history failed")
		return
	}
	response.Success(c, logs)
}

// GetInventoryLogs 库存流水列表
func (h *Handler) GetInventoryLogs(c *gin.Context) {
	page, pageSize := handlershared.PaginationFromQuery(c)
	createdFrom, ok := parseTimeQuery(c, "created_from")
	if !ok {
		return
	}
	createdTo, ok := parseTimeQuery(c, "created_to")
	if !ok {
		return
	}
	variantID, ok := parseIntQuery(c, "variant_id", 0)
	if !ok {
		return
	}
	if variantID < 0 {
		respondError(c, response.CodeBadRequest, "invalid variant_id", nil)
		return
	}
	logs, total, err := h.InventoryAuditLog.List(c.Request.Context(), repository.InventoryLogListFilter{
		Page:        page,
		PageSize:    pageSize,
		VariantID:   uint(variantID),
		ActorID:     strings.TrimSpace(c.Query("actor")),
		ChangeType:  strings.TrimSpace(c.Query("change_type")),
		Reference:   strings.TrimSpace(c.Query("reference")),
		Keyword:     c.Query("keyword"),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		respondServiceError(c, err, "load inventory logs failed")
		return
	}
	pageResponse(c, logs, page, pageSize, total)
}

// GetInventoryLogsByActor 指定操作人的最近流水
func (h *Handler) GetInventoryLogsByActor(c *gin.Context) {
	actor, err := service.ParseActor(c.Param("actor"))
	if err != nil {
		respondError(c, response.CodeBadRequest, "invalid actor", nil)
		return
	}
	limit, ok := parseIntQuery(c, "limit", defaultRecentLogLimit)
	if !ok {
		return
	}
	logs, err := h.InventoryAuditLog.GetRecentByActor(c.Request.Context(), actor, limit)
	if err != nil {
		respondServiceError(c, err, "load inventory logs failed")
		return
	}
	response.Success(c, logs)
}
