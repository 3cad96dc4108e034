package repository

import "time"

// InventoryLogListFilter 查询库存流水列表的过滤条件
type InventoryLogListFilter struct {
	Page        int
	PageSize    int
	VariantID   uint
	ActorID     string
	ChangeType  string
	Reference   string
	Keyword     string // 模糊匹配 reference / reason
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// CouponListFilter 优惠券列表筛选
type CouponListFilter struct {
	Code     string
	Keyword  string // 优惠码模糊匹配
	IsActive *bool
	Page     int
	PageSize int
}

// OrderListFilter 查询订单列表的过滤条件
type OrderListFilter struct {
	Page        int
	PageSize    int
	Status      string
	ActorID     string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}
