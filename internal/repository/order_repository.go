package repository

import (
	"errors"
	"time"

	"github.com/ayurwell-next/internal/constants"
	"github.com/ayurwell-next/internal/models"

	"gorm.io/gorm"
)

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Create(order *models.Order, items []models.OrderItem) error
	GetByID(id uint) (*models.Order, error)
	GetByIDAndUser(id uint, userID uint) (*models.Order, error)
	ListByUser(filter OrderListFilter) ([]models.Order, int64, error)
	ListAdmin(filter OrderListFilter) ([]models.Order, int64, error)
	UpdateStatus(id uint, status string, updates map[string]interface{}) error
	TransitionStatus(id uint, from, to string, updates map[string]interface{}) (bool, error)
	Update(id uint, updates map[string]interface{}) error
	AppendHistory(orderID uint, status, note string) error
	AppendNote(orderID uint, status, note string) error
	MarkCODSettled(id uint, at time.Time) (bool, error)
	ListHistory(orderID uint) ([]models.OrderStatusHistory, error)
	LatestHistoryByStatus(orderID uint, status string) (*models.OrderStatusHistory, error)
	WithTx(tx *gorm.DB) *GormOrderRepository
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// Create 创建订单与订单项
func (r *GormOrderRepository) Create(order *models.Order, items []models.OrderItem) error {
	if err := r.db.Omit("Items", "StatusHistory", "Address", "User").Create(order).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	if len(items) > 0 {
		if err := r.db.Create(&items).Error; err != nil {
			return err
		}
	}
	order.Items = items
	return nil
}

// GetByID 根据 ID 获取订单（含订单项与地址）
func (r *GormOrderRepository) GetByID(id uint) (*models.Order, error) {
	var order models.Order
	if err := r.db.Preload("Items").Preload("Address").First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByIDAndUser 获取用户订单详情
func (r *GormOrderRepository) GetByIDAndUser(id uint, userID uint) (*models.Order, error) {
	var order models.Order
	err := r.db.Preload("Items").Preload("Address").Preload("StatusHistory", func(db *gorm.DB) *gorm.DB {
		return db.Order("id asc")
	}).Where("id = ? AND user_id = ?", id, userID).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// ListByUser 用户订单列表
func (r *GormOrderRepository) ListByUser(filter OrderListFilter) ([]models.Order, int64, error) {
	if filter.UserID == 0 {
		return nil, 0, nil
	}
	return r.list(filter)
}

// ListAdmin 管理端订单列表
func (r *GormOrderRepository) ListAdmin(filter OrderListFilter) ([]models.Order, int64, error) {
	return r.list(filter)
}

func (r *GormOrderRepository) list(filter OrderListFilter) ([]models.Order, int64, error) {
	query := r.db.Model(&models.Order{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PaymentMethod != "" {
		query = query.Where("payment_method = ?", filter.PaymentMethod)
	}
	if filter.OrderNo != "" {
		query = query.Where("order_no = ?", filter.OrderNo)
	}
	if filter.CODCollected != nil {
		query = query.Where("payment_method = ? AND cod_collected = ?", constants.PaymentMethodCOD, *filter.CODCollected)
	}
	if filter.CODSettled != nil {
		query = query.Where("payment_method = ? AND cod_settled = ?", constants.PaymentMethodCOD, *filter.CODSettled)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	query, total, err := countAndPage(query, filter.Page, filter.PageSize)
	if err != nil {
		return nil, 0, err
	}
	var orders []models.Order
	if err := query.Preload("Items").Order("id desc").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdateStatus 更新订单状态
func (r *GormOrderRepository) UpdateStatus(id uint, status string, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = status
	return r.db.Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error
}

// TransitionStatus 仅当当前状态为 from 时更新为 to，返回是否更新成功
func (r *GormOrderRepository) TransitionStatus(id uint, from, to string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	result := r.db.Model(&models.Order{}).Where("id = ? AND status = ?", id, from).Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Update 更新订单字段
func (r *GormOrderRepository) Update(id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error
}

// MarkCODSettled 仅当到付已收款且未结算时标记结算
func (r *GormOrderRepository) MarkCODSettled(id uint, at time.Time) (bool, error) {
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND payment_method = ? AND cod_collected = ? AND cod_settled = ?", id, constants.PaymentMethodCOD, true, false).
		Updates(map[string]interface{}{"cod_settled": true, "cod_settled_at": at})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// AppendHistory 追加一条状态迁移记录，status 为迁移后的状态
func (r *GormOrderRepository) AppendHistory(orderID uint, status, note string) error {
	return r.appendHistory(orderID, status, note, true)
}

// AppendNote 追加备注行，状态不变，不参与签收时间等基于迁移的计算
func (r *GormOrderRepository) AppendNote(orderID uint, status, note string) error {
	return r.appendHistory(orderID, status, note, false)
}

func (r *GormOrderRepository) appendHistory(orderID uint, status, note string, transition bool) error {
	return r.db.Create(&models.OrderStatusHistory{
		OrderID:    orderID,
		Status:     status,
		Transition: transition,
		Note:       note,
		CreatedAt:  time.Now(),
	}).Error
}

// ListHistory 获取订单状态历史
func (r *GormOrderRepository) ListHistory(orderID uint) ([]models.OrderStatusHistory, error) {
	var rows []models.OrderStatusHistory
	if err := r.db.Where("order_id = ?", orderID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// LatestHistoryByStatus 获取进入指定状态的最近一次迁移，忽略备注行
func (r *GormOrderRepository) LatestHistoryByStatus(orderID uint, status string) (*models.OrderStatusHistory, error) {
	var row models.OrderStatusHistory
	result := r.db.Where("order_id = ? AND status = ? AND transition = ?", orderID, status, true).Order("id desc").Limit(1).Find(&row)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &row, nil
}
