package admin

import (
	"strconv"
	"strings"
	"time"

	handlershared "github.com/dujiao-next/backoffice/internal/http/handlers/shared"
	"github.com/dujiao-next/backoffice/internal/http/response"
	"github.com/dujiao-next/backoffice/internal/service"

	"github.com/gin-gonic/gin"
)

func getAdminID(c *gin.Context) (uint, bool) {
	return handlershared.GetContextUint(c, handlershared.ContextKeyAdminID)
}

// getAdminActor 当前登录管理员对应的操作人
func getAdminActor(c *gin.Context) (service.Actor, bool) {
	id, ok := getAdminID(c)
	if !ok {
		return "", false
	}
	if id == 0 {
		respondError(c, response.CodeUnauthorized, "unauthorized", nil)
		return "", false
	}
	return service.AdminActor(id), true
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "invalid "+name, nil)
		return 0, false
	}
	return uint(id), true
}

// parseTimeQuery 解析 RFC3339 或 yyyy-mm-dd 查询参数，空值返回 nil
func parseTimeQuery(c *gin.Context, name string) (*time.Time, bool) {
	parsed, err := parseTimeNullable(c.Query(name))
	if err != nil {
		respondError(c, response.CodeBadRequest, "invalid "+name, nil)
		return nil, false
	}
	return parsed, true
}

func parseTimeNullable(raw string) (*time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", trimmed, time.Local)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseIntQuery(c *gin.Context, name string, fallback int) (int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		respondError(c, response.CodeBadRequest, "invalid "+name, nil)
		return 0, false
	}
	return value, true
}

func pageResponse(c *gin.Context, data interface{}, page, pageSize int, total int64) {
	response.SuccessWithPage(c, data, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: handlershared.TotalPages(total, pageSize),
	})
}
