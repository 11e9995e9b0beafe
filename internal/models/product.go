package models

import (
	"time"

	"gorm.io/gorm"
)

// Product 商品表（下单所需的价格、库存与包装尺寸）
type Product struct {
	ID            uint           `gorm:"primarykey" json:"id"`                                   // 主键
	Name          string         `gorm:"not null" json:"name"`                                   // 商品名称
	SKU           string         `gorm:"uniqueIndex;not null" json:"sku"`                        // SKU
	Price         Money          `gorm:"type:decimal(20,2);not null;default:0" json:"price"`     // 单价
	StockQuantity int            `gorm:"not null;default:0" json:"stock_quantity"`               // 库存
	Weight        *float64       `json:"weight"`                                                 // 重量（kg）
	Length        *float64       `json:"length"`                                                 // 长（cm）
	Breadth       *float64       `json:"breadth"`                                                // 宽（cm）
	Height        *float64       `json:"height"`                                                 // 高（cm）
	IsActive      bool           `gorm:"default:true;index" json:"is_active"`                    // 是否上架
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`                                // 创建时间
	UpdatedAt     time.Time      `json:"updated_at"`                                             // 更新时间
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`                                         // 软删除时间
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}

// HasShippingDimensions 是否具备完整的物流尺寸
func (p *Product) HasShippingDimensions() bool {
	if p == nil {
		return false
	}
	return p.Weight != nil && p.Length != nil && p.Breadth != nil && p.Height != nil
}
