package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dujiao-next/backoffice/internal/authz"
	"github.com/dujiao-next/backoffice/internal/config"
	handlershared "github.com/dujiao-next/backoffice/internal/http/handlers/shared"
	"github.com/dujiao-next/backoffice/internal/http/response"
	"github.com/dujiao-next/backoffice/internal/models"
	"github.com/dujiao-next/backoffice/internal/repository"
	"github.com/dujiao-next/backoffice/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestResolveAllowedOrigin(t *testing.T) {
	got := resolveAllowedOrigin("https://example.com", []string{"*"}, false)
	if got != "*" {
		t.Fatalf("wildcard without credentials should return *, got %s", got)
	}

	got = resolveAllowedOrigin("https://example.com", []string{"*"}, true)
	if got != "https://example.com" {
		t.Fatalf("wildcard with credentials should echo origin, got %s", got)
	}

	got = resolveAllowedOrigin("https://a.example.com", []string{"https://a.example.com", "https://b.example.com"}, false)
	if got != "https://a.example.com" {
		t.Fatalf("allow-list should return matched origin, got %s", got)
	}

	got = resolveAllowedOrigin("https://x.example.com", []string{"https://a.example.com"}, false)
	if got != "" {
		t.Fatalf("unmatched origin should be empty, got %s", got)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": getRequestID(c)})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "req-123")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if w.Header().Get(requestIDHeader) != "req-123" {
		t.Fatalf("response request id want req-123 got %s", w.Header().Get(requestIDHeader))
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp["request_id"] != "req-123" {
		t.Fatalf("context request id want req-123 got %s", resp["request_id"])
	}

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w2, req2)
	generated := w2.Header().Get(requestIDHeader)
	if generated == "" {
		t.Fatalf("generated request id should not be empty")
	}
	if resp := strings.TrimSpace(generated); resp == "" {
		t.Fatalf("generated request id should not be blank")
	}
}

func decodeStatusCode(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	var resp struct {
		StatusCode int `json:"status_code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	return resp.StatusCode
}

func setupAuthMiddlewareTest(t *testing.T) (*service.AuthService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:router_auth_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(&models.Admin{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	authService := service.NewAuthService(&config.JWTConfig{SecretKey: "router-test-secret", ExpireHours: 1}, repository.NewAdminRepository(db))
	return authService, db
}

func newAuthEngine(authService *service.AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(JWTAuthMiddleware(authService))
	r.GET("/admin/ping", func(c *gin.Context) {
		adminID, _ := handlershared.GetContextUint(c, handlershared.ContextKeyAdminID)
		response.Success(c, gin.H{"admin_id": adminID})
	})
	return r
}

func TestJWTAuthMiddlewareWithoutService(t *testing.T) {
	r := newAuthEngine(nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/ping", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if code := decodeStatusCode(t, w); code != 401 {
		t.Fatalf("status_code want 401 got %d", code)
	}
}

func TestJWTAuthMiddlewareTokenLifecycle(t *testing.T) {
	authService, db := setupAuthMiddlewareTest(t)
	admin := &models.Admin{Username: "desk", PasswordHash: "x", IsActive: true}
	if err := db.Create(admin).Error; err != nil {
		t.Fatalf("create admin failed: %v", err)
	}
	token, _, err := authService.GenerateJWT(admin)
	if err != nil {
		t.Fatalf("generate jwt failed: %v", err)
	}
	r := newAuthEngine(authService)

	cases := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Token " + token},
		{name: "garbage token", header: "Bearer not-a-jwt"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		r.ServeHTTP(w, req)
		if code := decodeStatusCode(t, w); code != 401 {
			t.Fatalf("%s: status_code want 401 got %d", tc.name, code)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	var ok struct {
		StatusCode int `json:"status_code"`
		Data       struct {
			AdminID uint `json:"admin_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &ok); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if ok.Data.AdminID != admin.ID {
		t.Fatalf("admin id want %d got %d (body=%s)", admin.ID, ok.Data.AdminID, w.Body.String())
	}

	// token 版本递增后旧 token 失效
	if err := db.Model(&models.Admin{}).Where("id = ?", admin.ID).Update("token_version", 1).Error; err != nil {
		t.Fatalf("bump token version failed: %v", err)
	}
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	if code := decodeStatusCode(t, w); code != 401 {
		t.Fatalf("revoked token: status_code want 401 got %d", code)
	}
}

func newRBACEngine(authzService *authz.Service, adminID uint, isSuper bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(handlershared.ContextKeyAdminID, adminID)
		c.Set(handlershared.ContextKeyAdminIsSuper, isSuper)
		c.Next()
	})
	r.Use(AdminRBACMiddleware(authzService))
	ok := func(c *gin.Context) {
		response.Success(c, gin.H{"ok": true})
	}
	r.POST("/api/v1/admin/inventory/variants/:id/reserve", ok)
	r.POST("/api/v1/admin/coupons", ok)
	return r
}

func TestAdminRBACMiddleware(t *testing.T) {
	dsn := fmt.Sprintf("file:router_rbac_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	authzService, err := authz.NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap roles failed: %v", err)
	}
	if err := authzService.SetAdminRoles(9, []string{authz.RoleInventoryOperator}); err != nil {
		t.Fatalf("set admin roles failed: %v", err)
	}

	cases := []struct {
		name    string
		adminID uint
		isSuper bool
		path    string
		want    int
	}{
		{name: "operator reserve", adminID: 9, path: "/api/v1/admin/inventory/variants/3/reserve", want: 0},
		{name: "operator coupon", adminID: 9, path: "/api/v1/admin/coupons", want: 403},
		{name: "super bypass", adminID: 1, isSuper: true, path: "/api/v1/admin/coupons", want: 0},
		{name: "anonymous", adminID: 0, path: "/api/v1/admin/coupons", want: 401},
	}
	for _, tc := range cases {
		r := newRBACEngine(authzService, tc.adminID, tc.isSuper)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, tc.path, nil))
		if code := decodeStatusCode(t, w); code != tc.want {
			t.Fatalf("%s: status_code want %d got %d (body=%s)", tc.name, tc.want, code, w.Body.String())
		}
	}
}
