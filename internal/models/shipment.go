package models

import (
	"time"
)

// Shipment 运单（正向或退货）
type Shipment struct {
	ID                uint       `gorm:"primarykey" json:"id"`                                       // 主键
	OrderID           uint       `gorm:"index;not null" json:"order_id"`                             // 订单ID
	ReturnID          *uint      `gorm:"index" json:"return_id,omitempty"`                           // 退货申请ID（退货运单）
	Type              string     `gorm:"type:varchar(20);not null" json:"type"`                      // 运单类型（forward/return）
	DedupeKey         string     `gorm:"uniqueIndex;type:varchar(64);not null" json:"-"`             // 唯一约束键，防止并发重复建单
	CarrierOrderID    string     `gorm:"index;type:varchar(64)" json:"carrier_order_id"`             // 承运商订单号
	CarrierShipmentID string     `gorm:"index;type:varchar(64)" json:"carrier_shipment_id"`          // 承运商运单号
	AWB               *string    `gorm:"index;type:varchar(64)" json:"awb"`                          // 运单追踪号（分配前为空）
	CourierID         string     `gorm:"type:varchar(64)" json:"courier_id"`                         // 快递公司ID
	CourierName       string     `gorm:"type:varchar(128)" json:"courier_name"`                      // 快递公司名称
	Status            string     `gorm:"index;not null" json:"status"`                               // 运单状态
	ActualWeight      float64    `gorm:"not null;default:0" json:"actual_weight"`                    // 实际重量
	VolumetricWeight  float64    `gorm:"not null;default:0" json:"volumetric_weight"`                // 体积重量
	ChargeableWeight  float64    `gorm:"not null;default:0" json:"chargeable_weight"`                // 计费重量
	Length            float64    `gorm:"not null;default:0" json:"length"`                           // 包裹长
	Breadth           float64    `gorm:"not null;default:0" json:"breadth"`                          // 包裹宽
	Height            float64    `gorm:"not null;default:0" json:"height"`                           // 包裹高
	DeliveryFee       Money      `gorm:"type:decimal(20,2);not null;default:0" json:"delivery_fee"`  // 运费
	CODFee            Money      `gorm:"type:decimal(20,2);not null;default:0" json:"cod_fee"`       // 到付手续费
	TrackingURL       string     `gorm:"type:varchar(255)" json:"tracking_url"`                      // 追踪链接
	AssignAttempts    int        `gorm:"not null;default:0" json:"assign_attempts"`                  // AWB 分配尝试次数
	LastError         string     `gorm:"type:text" json:"last_error,omitempty"`                      // 最近一次错误
	DeliveredAt       *time.Time `gorm:"index" json:"delivered_at"`                                  // 签收时间
	CreatedAt         time.Time  `gorm:"index" json:"created_at"`                                    // 创建时间
	UpdatedAt         time.Time  `gorm:"index" json:"updated_at"`                                    // 更新时间
}

// TableName 指定表名
func (Shipment) TableName() string {
	return "shipments"
}

// HasAWB 是否已分配追踪号
func (s *Shipment) HasAWB() bool {
	return s != nil && s.AWB != nil && *s.AWB != ""
}
