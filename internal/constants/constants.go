package constants

// 库存变更类型常量
const (
	InventoryChangeReserve      = "reserve"
	InventoryChangeRelease      = "release"
	InventoryChangeManualUpdate = "manual_update"
)

// 优惠券类型常量
const (
	CouponTypePercentage  = "percentage"
	CouponTypeFixedAmount = "fixed_amount"
)

// 优惠券校验状态常量
const (
	CouponStatusValid          = "valid"
	CouponStatusUnknown        = "unknown"
	CouponStatusInactive       = "inactive"
	CouponStatusOutOfWindow    = "out_of_window"
	CouponStatusUsageExhausted = "usage_exhausted"
	CouponStatusBelowMinimum   = "below_minimum"
)

// 订单状态常量
const (
	OrderStatusConfirmed = "confirmed"
	OrderStatusCanceled  = "canceled"
)

// 操作人前缀常量
const (
	ActorKindAdmin  = "admin"
	ActorKindSystem = "system"
)

// 系统操作人名称
const (
	SystemActorCompensation = "compensation"
	SystemActorWorker       = "worker"
	SystemActorSeed         = "seed"
)

// 异步任务常量
const (
	QueueDefault                 = "default"
	QueueCritical                = "critical"
	TaskInventoryReleaseReserved = "inventory:release_reservation"
	TaskInventoryLowStockScan    = "inventory:low_stock_scan"
)
