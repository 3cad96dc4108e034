package models

import "time"

// InventoryLog 库存流水（只追加，不更新不删除）
type InventoryLog struct {
	ID               uint      `gorm:"primarykey" json:"id"`                                                            // 主键
	VariantID        uint      `gorm:"not null;uniqueIndex:idx_inventory_log_variant_seq,priority:1" json:"variant_id"` // 规格ID
	Sequence         uint64    `gorm:"not null;uniqueIndex:idx_inventory_log_variant_seq,priority:2" json:"sequence"`   // 规格内流水序号
	PreviousQuantity int       `gorm:"not null" json:"previous_quantity"`                                               // 变更前数量
	NewQuantity      int       `gorm:"not null" json:"new_quantity"`                                                    // 变更后数量
	QuantityChange   int       `gorm:"not null" json:"quantity_change"`                                                 // 变更量（带符号）
	ChangeType       string    `gorm:"type:varchar(32);not null;index" json:"change_type"`                              // 变更类型（reserve/release/manual_update）
	Reason           string    `gorm:"type:varchar(255)" json:"reason,omitempty"`                                       // 变更原因
	ActorID          string    `gorm:"type:varchar(64);not null;index" json:"actor_id"`                                 // 操作人
	Reference        string    `gorm:"type:varchar(64);index" json:"reference,omitempty"`                               // 关联单号
	ReversesLogID    *uint     `gorm:"uniqueIndex" json:"reverses_log_id,omitempty"`                                    // 冲正的占用流水ID
	CreatedAt        time.Time `gorm:"index" json:"created_at"`                                                         // 创建时间
}

// TableName 指定表名
func (InventoryLog) TableName() string {
	return "inventory_logs"
}
