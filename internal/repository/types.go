package repository

import "time"

// OrderListFilter 查询订单列表的过滤条件
type OrderListFilter struct {
	Page          int
	PageSize      int
	UserID        uint
	Status        string
	PaymentMethod string
	OrderNo       string
	CODCollected  *bool
	CODSettled    *bool
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}

// RefundListFilter 查询退款列表的过滤条件
type RefundListFilter struct {
	Page     int
	PageSize int
	OrderID  uint
	Status   string
	Type     string
}

// ShipmentListFilter 查询运单列表的过滤条件
type ShipmentListFilter struct {
	Page     int
	PageSize int
	OrderID  uint
	Status   string
	Type     string
	AWB      string
	// PendingAWB 仅返回尚未分配追踪号的运单
	PendingAWB bool
}

// ReturnListFilter 查询退货列表的过滤条件
type ReturnListFilter struct {
	Page     int
	PageSize int
	OrderID  uint
	UserID   uint
	Status   string
}
