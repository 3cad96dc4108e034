package admin

import (
	"strconv"
	"strings"

	"github.com/dujiao-next/backoffice/internal/http/response"
	"github.com/dujiao-next/backoffice/internal/service"

	"github.com/gin-gonic/gin"
)

// GetLowStockReport 低库存告警列表，threshold 缺省时取配置值
func (h *Handler) GetLowStockReport(c *gin.Context) {
	threshold, ok := parseIntQuery(c, "threshold", 0)
	if !ok {
		return
	}
	alerts, err := h.InventoryReporter.GetLowStockAlerts(c.Request.Context(), threshold)
	if err != nil {
		respondServiceError(c, err, "load low stock alerts failed")
		return
	}
	if threshold <= 0 {
		threshold = h.InventoryReporter.Threshold()
	}
	response.Success(c, gin.H{
		"threshold": threshold,
		"items":     alerts,
	})
}

// GetOutOfStockCount 缺货规格数量
func (h *Handler) GetOutOfStockCount(c *gin.Context) {
	count, err := h.InventoryReporter.GetOutOfStockCount(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "count out of stock variants failed")
		return
	}
	response.Success(c, gin.H{"out_of_stock_variants": count})
}

// GetInventoryReport 库存总览
func (h *Handler) GetInventoryReport(c *gin.Context) {
	forceRefresh := false
	if raw := strings.TrimSpace(c.Query("force_refresh")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "invalid force_refresh", nil)
			return
		}
		forceRefresh = parsed
	}
	report, err := h.InventoryReporter.GenerateInventoryReport(c.Request.Context(), service.InventoryReportOptions{
		ForceRefresh: forceRefresh,
	})
	if err != nil {
		respondServiceError(c, err, "generate inventory report failed")
		return
	}
	response.Success(c, report)
}

// GetMovementSummary 库存变动汇总
func (h *Handler) GetMovementSummary(c *gin.Context) {
	since, ok := parseTimeQuery(c, "since")
	if !ok {
		return
	}
	summary, err := h.InventoryReporter.GetMovementSummary(c.Request.Context(), since)
	if err != nil {
		respondServiceError(c, err, "summarize inventory movements failed")
		return
	}
	response.Success(c, summary)
}
