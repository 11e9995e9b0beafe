package models

import (
	"time"

	"gorm.io/gorm"
)

// Order 订单表
type Order struct {
	ID               uint           `gorm:"primarykey" json:"id"`                                             // 主键
	OrderNo          string         `gorm:"uniqueIndex;not null" json:"order_no"`                             // 订单编号
	UserID           uint           `gorm:"index;not null" json:"user_id"`                                    // 用户ID
	AddressID        uint           `gorm:"index;not null" json:"address_id"`                                 // 收货地址ID
	PaymentMethod    string         `gorm:"type:varchar(20);not null" json:"payment_method"`                  // 支付方式（prepaid/cod）
	Status           string         `gorm:"index;not null" json:"status"`                                     // 订单状态
	Currency         string         `gorm:"not null" json:"currency"`                                         // 币种
	ItemsAmount      Money          `gorm:"type:decimal(20,2);not null;default:0" json:"items_amount"`        // 商品金额
	DeliveryFee      Money          `gorm:"type:decimal(20,2);not null;default:0" json:"delivery_fee"`        // 运费
	TotalAmount      Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"`        // 应付金额
	ActualWeight     float64        `gorm:"not null;default:0" json:"actual_weight"`                          // 实际重量（kg）
	VolumetricWeight float64        `gorm:"not null;default:0" json:"volumetric_weight"`                      // 体积重量（kg）
	ChargeableWeight float64        `gorm:"not null;default:0" json:"chargeable_weight"`                      // 计费重量（kg）
	CourierID        string         `gorm:"type:varchar(64)" json:"courier_id"`                               // 下单时选定的快递公司
	CourierName      string         `gorm:"type:varchar(128)" json:"courier_name"`                            // 快递公司名称
	CODAmount        Money          `gorm:"type:decimal(20,2);not null;default:0" json:"cod_amount"`          // 到付金额
	CODCollected     bool           `gorm:"not null;default:false" json:"cod_collected"`                      // 到付已收款
	CODSettled       bool           `gorm:"not null;default:false" json:"cod_settled"`                        // 到付已结算
	CODSettledAt     *time.Time     `json:"cod_settled_at,omitempty"`                                         // 到付结算时间
	PaidAt           *time.Time     `gorm:"index" json:"paid_at"`                                             // 支付时间
	CanceledAt       *time.Time     `gorm:"index" json:"canceled_at"`                                         // 取消时间
	DeliveredAt      *time.Time     `gorm:"index" json:"delivered_at"`                                        // 签收时间
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`                                          // 创建时间
	UpdatedAt        time.Time      `gorm:"index" json:"updated_at"`                                          // 更新时间
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`                                                   // 软删除时间

	Items         []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`          // 订单项
	StatusHistory []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"status_history,omitempty"` // 状态历史
	Address       *Address             `gorm:"foreignKey:AddressID" json:"address,omitempty"`                                  // 收货地址
	User          *User                `gorm:"foreignKey:UserID" json:"user,omitempty"`                                        // 下单用户
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// IsCOD 是否货到付款
func (o *Order) IsCOD() bool {
	return o != nil && o.PaymentMethod == "cod"
}

// OrderStatusHistory 订单状态历史（只追加）
type OrderStatusHistory struct {
	ID         uint      `gorm:"primarykey" json:"id"`                           // 主键
	OrderID    uint      `gorm:"index;not null" json:"order_id"`                 // 订单ID
	Status     string    `gorm:"index;not null" json:"status"`                   // 记录时的订单状态
	Transition bool      `gorm:"index;not null;default:false" json:"transition"` // 是否为状态迁移，备注行为 false
	Note       string    `gorm:"type:text" json:"note"`                          // 备注
	CreatedAt  time.Time `gorm:"index" json:"created_at"`                        // 记录时间
}

// TableName 指定表名
func (OrderStatusHistory) TableName() string {
	return "order_status_history"
}
