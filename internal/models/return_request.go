package models

import (
	"time"
)

// ReturnRequest 退货申请
type ReturnRequest struct {
	ID                uint       `gorm:"primarykey" json:"id"`                                   // 主键
	ReturnNo          string     `gorm:"uniqueIndex;type:varchar(64);not null" json:"return_no"` // 退货单号
	OrderID           uint       `gorm:"index;not null" json:"order_id"`                         // 订单ID
	UserID            uint       `gorm:"index;not null" json:"user_id"`                          // 申请用户
	Reason            string     `gorm:"type:text;not null" json:"reason"`                       // 退货原因
	Status            string     `gorm:"index;not null" json:"status"`                           // 状态
	IsPartial         bool       `gorm:"not null;default:false" json:"is_partial"`               // 是否部分退货
	CarrierOrderID    string     `gorm:"type:varchar(64)" json:"carrier_order_id"`               // 退货承运商订单号
	CarrierShipmentID string     `gorm:"type:varchar(64)" json:"carrier_shipment_id"`            // 退货承运商运单号
	AWB               string     `gorm:"type:varchar(64)" json:"awb"`                            // 退货追踪号
	AdminNote         string     `gorm:"type:text" json:"admin_note"`                            // 管理员备注
	CompletedAt       *time.Time `gorm:"index" json:"completed_at"`                              // 完成时间
	CreatedAt         time.Time  `gorm:"index" json:"created_at"`                                // 创建时间
	UpdatedAt         time.Time  `gorm:"index" json:"updated_at"`                                // 更新时间

	Items []ReturnItem `gorm:"foreignKey:ReturnID;constraint:OnDelete:CASCADE" json:"items,omitempty"` // 部分退货的订单项
	Order *Order       `gorm:"foreignKey:OrderID" json:"order,omitempty"`                              // 关联订单
}

// TableName 指定表名
func (ReturnRequest) TableName() string {
	return "returns"
}

// ReturnItem 部分退货的订单项
type ReturnItem struct {
	ID          uint `gorm:"primarykey" json:"id"`
	ReturnID    uint `gorm:"index;not null" json:"return_id"`
	OrderItemID uint `gorm:"index;not null" json:"order_item_id"`
}

// TableName 指定表名
func (ReturnItem) TableName() string {
	return "return_items"
}
