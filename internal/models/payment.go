package models

import (
	"time"
)

// Payment 支付记录（与订单一对一）
type Payment struct {
	ID               uint       `gorm:"primarykey" json:"id"`                                          // 主键
	OrderID          uint       `gorm:"uniqueIndex;not null" json:"order_id"`                          // 订单ID
	GatewayOrderID   string     `gorm:"uniqueIndex;type:varchar(64);not null" json:"gateway_order_id"` // 网关订单号
	GatewayPaymentID *string    `gorm:"index;type:varchar(64)" json:"gateway_payment_id"`              // 网关支付号（捕获前为空）
	GatewaySignature string     `gorm:"type:varchar(255)" json:"-"`                                    // 最近一次提交的签名
	Amount           Money      `gorm:"type:decimal(20,2);not null" json:"amount"`                     // 支付金额
	Currency         string     `gorm:"not null" json:"currency"`                                      // 币种
	Status           string     `gorm:"index;not null" json:"status"`                                  // 支付状态
	RefundedAmount   Money      `gorm:"type:decimal(20,2);not null;default:0" json:"refunded_amount"`  // 已退款金额
	CapturedAt       *time.Time `gorm:"index" json:"captured_at"`                                      // 捕获时间
	RefundedAt       *time.Time `gorm:"index" json:"refunded_at"`                                      // 退款时间
	CreatedAt        time.Time  `gorm:"index" json:"created_at"`                                       // 创建时间
	UpdatedAt        time.Time  `gorm:"index" json:"updated_at"`                                       // 更新时间
}

// TableName 指定表名
func (Payment) TableName() string {
	return "payments"
}

// PaymentRef 返回网关支付号，未捕获时为空
func (p *Payment) PaymentRef() string {
	if p == nil || p.GatewayPaymentID == nil {
		return ""
	}
	return *p.GatewayPaymentID
}
