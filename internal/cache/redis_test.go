package cache

import (
	"context"
	"testing"
	"time"

	"github.com/dujiao-next/backoffice/internal/config"
	"github.com/dujiao-next/backoffice/internal/models"
)

func TestDisabledCacheIsNoop(t *testing.T) {
	if err := InitRedis(&config.RedisConfig{Enabled: false}); err != nil {
		t.Fatalf("init redis failed: %v", err)
	}
	if Enabled() {
		t.Fatalf("cache should be disabled")
	}
	ctx := context.Background()
	if err := SetJSON(ctx, "report:inventory", map[string]int{"a": 1}, time.Minute); err != nil {
		t.Fatalf("set on disabled cache should be noop: %v", err)
	}
	var dest map[string]int
	hit, err := GetJSON(ctx, "report:inventory", &dest)
	if err != nil || hit {
		t.Fatalf("expected miss without error, hit=%v err=%v", hit, err)
	}
	if err := Ping(ctx); err != nil {
		t.Fatalf("ping on disabled cache should be noop: %v", err)
	}
}

func TestBuildKeyUsesPrefix(t *testing.T) {
	Use(nil, "")
	if got := BuildKey("report:inventory"); got != "bo:report:inventory" {
		t.Fatalf("unexpected key: %s", got)
	}
	if got := BuildKey("  "); got != "bo" {
		t.Fatalf("unexpected empty key: %s", got)
	}
}

func TestBuildAdminAuthState(t *testing.T) {
	if BuildAdminAuthState(nil) != nil {
		t.Fatalf("nil admin should produce nil state")
	}
	state := BuildAdminAuthState(&models.Admin{ID: 3, Username: "ops", TokenVersion: 2, IsActive: true})
	if state.AdminID != 3 || state.Username != "ops" || state.TokenVersion != 2 || !state.IsActive {
		t.Fatalf("unexpected state: %+v", state)
	}
	if state.UpdatedAt == 0 {
		t.Fatalf("updated_at should be set")
	}
}
