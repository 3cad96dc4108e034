package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dujiao-next/backoffice/internal/authz"
	"github.com/dujiao-next/backoffice/internal/cache"
	"github.com/dujiao-next/backoffice/internal/config"
	adminhandlers "github.com/dujiao-next/backoffice/internal/http/handlers/admin"
	"github.com/dujiao-next/backoffice/internal/http/response"
	"github.com/dujiao-next/backoffice/internal/logger"
	"github.com/dujiao-next/backoffice/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	adminLoginPath     = "/api/v1/admin/auth/login"
	defaultMetricsPath = "/metrics"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "bo"
	}
	adminLoginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:admin_login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		Message:       "too many login attempts, retry in %d seconds",
	}

	// 中间件
	r.Use(RecoveryMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		admin := apiV1.Group("/admin")
		{
			// 登录接口（无需鉴权）
			admin.POST("/auth/login", RateLimitMiddleware(cache.Client(), adminLoginRule, KeyByIPAndJSONField("username")), adminHandler.AdminLogin)

			// 需要鉴权的接口
			authorized := admin.Use(JWTAuthMiddleware(c.AuthService), AdminRBACMiddleware(c.AuthzService))
			{
				authorized.GET("/auth/me", adminHandler.GetAdminProfile)

				// 库存
				authorized.GET("/inventory/variants/:id", adminHandler.GetVariant)
				authorized.GET("/inventory/variants/:id/availability", adminHandler.CheckAvailability)
				authorized.POST("/inventory/variants/:id/reserve", adminHandler.ReserveStock)
				authorized.POST("/inventory/variants/:id/release", adminHandler.ReleaseStock)
				authorized.POST("/inventory/variants/:id/adjust", adminHandler.AdjustStock)
				authorized.PUT("/inventory/variants/:id/status", adminHandler.UpdateVariantStatus)
				authorized.GET("/inventory/variants/:id/history", adminHandler.GetVariantHistory)
				authorized.GET("/inventory/logs", adminHandler.GetInventoryLogs)
				authorized.GET("/inventory/logs/actors/:actor", adminHandler.GetInventoryLogsByActor)

				// 报表
				authorized.GET("/reports/low-stock", adminHandler.GetLowStockReport)
				authorized.GET("/reports/out-of-stock-count", adminHandler.GetOutOfStockCount)
				authorized.GET("/reports/inventory", adminHandler.GetInventoryReport)
				authorized.GET("/reports/movements", adminHandler.GetMovementSummary)

				// 优惠券
				authorized.GET("/coupons", adminHandler.GetAdminCoupons)
				authorized.POST("/coupons", adminHandler.CreateCoupon)
				authorized.POST("/coupons/validate", adminHandler.ValidateCoupon)
				authorized.PUT("/coupons/:id", adminHandler.UpdateCoupon)
				authorized.POST("/coupons/:id/deactivate", adminHandler.DeactivateCoupon)

				// 订单定价
				authorized.GET("/orders", adminHandler.GetOrders)
				authorized.POST("/orders", adminHandler.ConfirmOrder)
				authorized.POST("/orders/price", adminHandler.PriceOrder)
				authorized.GET("/orders/:order_no", adminHandler.GetOrder)
				authorized.POST("/orders/:order_no/cancel", adminHandler.CancelOrder)
				authorized.POST("/orders/:order_no/reprice", adminHandler.RepriceOrder)

				// 权限管理
				authorized.GET("/authz/roles", adminHandler.ListAuthzRoles)
				authorized.GET("/authz/roles/:role/policies", adminHandler.GetAuthzRolePolicies)
				authorized.GET("/authz/admins/:id/roles", adminHandler.GetAuthzAdminRoles)
				authorized.PUT("/authz/admins/:id/roles", adminHandler.SetAuthzAdminRoles)
				authorized.GET("/authz/permissions/catalog", func(ctx *gin.Context) {
					response.Success(ctx, buildAdminPermissionCatalog(r))
				})
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if cfg.Metrics.Enabled && c.Registry != nil {
		path := strings.TrimSpace(cfg.Metrics.Path)
		if path == "" {
			path = defaultMetricsPath
		}
		r.GET(path, gin.WrapH(promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})))
	}

	return r
}

type adminPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

func buildAdminPermissionCatalog(engine *gin.Engine) []adminPermissionCatalogItem {
	if engine == nil {
		return []adminPermissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]adminPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/admin/") {
			continue
		}
		if item.Path == adminLoginPath {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, adminPermissionCatalogItem{
			Module:     deriveAdminPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func deriveAdminPermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 {
		return segments[0]
	}
	if segments[0] != "admin" {
		return segments[0]
	}
	if segments[1] == "authz" {
		return "authz"
	}
	return segments[1]
}
