package models

import (
	"time"
)

// OrderItem 订单项（下单时的商品快照，不再修改）
type OrderItem struct {
	ID          uint      `gorm:"primarykey" json:"id"`                                      // 主键
	OrderID     uint      `gorm:"index;not null" json:"order_id"`                            // 订单ID
	ProductID   uint      `gorm:"index;not null" json:"product_id"`                          // 商品ID
	ProductName string    `gorm:"not null" json:"product_name"`                              // 商品名称快照
	SKU         string    `gorm:"not null" json:"sku"`                                       // SKU 快照
	UnitPrice   Money     `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price"`   // 单价
	Quantity    int       `gorm:"not null" json:"quantity"`                                  // 数量
	TotalPrice  Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_price"`  // 小计
	Weight      float64   `gorm:"not null;default:0" json:"weight"`                          // 单件重量（kg）
	Length      float64   `gorm:"not null;default:0" json:"length"`                          // 长（cm）
	Breadth     float64   `gorm:"not null;default:0" json:"breadth"`                         // 宽（cm）
	Height      float64   `gorm:"not null;default:0" json:"height"`                          // 高（cm）
	CreatedAt   time.Time `gorm:"index" json:"created_at"`                                   // 创建时间
}

// TableName 指定表名
func (OrderItem) TableName() string {
	return "order_items"
}
