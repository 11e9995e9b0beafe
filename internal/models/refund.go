package models

import (
	"time"
)

// Refund 退款记录
type Refund struct {
	ID              uint       `gorm:"primarykey" json:"id"`                                     // 主键
	RefundNo        string     `gorm:"uniqueIndex;type:varchar(64);not null" json:"refund_no"`   // 退款单号（同时作为网关 receipt）
	PaymentID       uint       `gorm:"index;not null" json:"payment_id"`                         // 支付ID
	OrderID         uint       `gorm:"index;not null" json:"order_id"`                           // 订单ID
	ReturnID        *uint      `gorm:"index" json:"return_id,omitempty"`                         // 退货申请ID
	Amount          Money      `gorm:"type:decimal(20,2);not null" json:"amount"`                // 退款金额
	Currency        string     `gorm:"not null" json:"currency"`                                 // 币种
	Type            string     `gorm:"index;type:varchar(32);not null" json:"type"`              // 退款类型
	Reason          string     `gorm:"type:text" json:"reason"`                                  // 退款原因
	Mode            string     `gorm:"type:varchar(20);not null" json:"mode"`                    // 退款方式
	Status          string     `gorm:"index;not null" json:"status"`                             // 退款状态
	GatewayRefundID *string    `gorm:"index;type:varchar(64)" json:"gateway_refund_id"`          // 网关退款号
	FailureReason   string     `gorm:"type:text" json:"failure_reason,omitempty"`                // 失败原因
	InitiatedBy     uint       `gorm:"index" json:"initiated_by"`                                // 发起人（0 表示系统）
	ProcessedAt     *time.Time `gorm:"index" json:"processed_at"`                                // 网关确认时间
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`                                  // 创建时间
	UpdatedAt       time.Time  `gorm:"index" json:"updated_at"`                                  // 更新时间
}

// TableName 指定表名
func (Refund) TableName() string {
	return "refunds"
}
