package repository

import (
	"errors"

	"github.com/ayurwell-next/internal/constants"
	"github.com/ayurwell-next/internal/models"

	"gorm.io/gorm"
)

// closedReturnStatuses 已结束的退货状态
var closedReturnStatuses = []string{
	constants.ReturnStatusCompleted,
	constants.ReturnStatusCancelled,
	constants.ReturnStatusRejected,
}

// ReturnRepository 退货申请数据访问接口
type ReturnRepository interface {
	Create(ret *models.ReturnRequest, itemIDs []uint) error
	GetByID(id uint) (*models.ReturnRequest, error)
	GetActiveByOrder(orderID uint) (*models.ReturnRequest, error)
	ListByOrder(orderID uint) ([]models.ReturnRequest, error)
	List(filter ReturnListFilter) ([]models.ReturnRequest, int64, error)
	CountByStatus() (map[string]int64, error)
	Update(id uint, updates map[string]interface{}) error
	TransitionStatus(id uint, from, to string, updates map[string]interface{}) (bool, error)
	WithTx(tx *gorm.DB) *GormReturnRepository
}

// GormReturnRepository GORM 实现
type GormReturnRepository struct {
	db *gorm.DB
}

// NewReturnRepository 创建退货仓库
func NewReturnRepository(db *gorm.DB) *GormReturnRepository {
	return &GormReturnRepository{db: db}
}

// WithTx 绑定事务
func (r *GormReturnRepository) WithTx(tx *gorm.DB) *GormReturnRepository {
	if tx == nil {
		return r
	}
	return &GormReturnRepository{db: tx}
}

// Create 创建退货申请及部分退货项
func (r *GormReturnRepository) Create(ret *models.ReturnRequest, itemIDs []uint) error {
	if err := r.db.Omit("Items", "Order").Create(ret).Error; err != nil {
		return err
	}
	if len(itemIDs) == 0 {
		return nil
	}
	items := make([]models.ReturnItem, 0, len(itemIDs))
	for _, id := range itemIDs {
		items = append(items, models.ReturnItem{ReturnID: ret.ID, OrderItemID: id})
	}
	if err := r.db.Create(&items).Error; err != nil {
		return err
	}
	ret.Items = items
	return nil
}

// GetByID 根据 ID 获取退货申请
func (r *GormReturnRepository) GetByID(id uint) (*models.ReturnRequest, error) {
	var ret models.ReturnRequest
	if err := r.db.Preload("Items").First(&ret, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ret, nil
}

// GetActiveByOrder 获取订单进行中的退货申请
func (r *GormReturnRepository) GetActiveByOrder(orderID uint) (*models.ReturnRequest, error) {
	var ret models.ReturnRequest
	result := r.db.Where("order_id = ? AND status NOT IN ?", orderID, closedReturnStatuses).
		Order("id desc").Limit(1).Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &ret, nil
}

// ListByOrder 订单的全部退货申请
func (r *GormReturnRepository) ListByOrder(orderID uint) ([]models.ReturnRequest, error) {
	var rows []models.ReturnRequest
	if err := r.db.Preload("Items").Where("order_id = ?", orderID).Order("id desc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// List 管理端退货列表
func (r *GormReturnRepository) List(filter ReturnListFilter) ([]models.ReturnRequest, int64, error) {
	query := r.db.Model(&models.ReturnRequest{})
	if filter.OrderID != 0 {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	query, total, err := countAndPage(query, filter.Page, filter.PageSize)
	if err != nil {
		return nil, 0, err
	}
	var rows []models.ReturnRequest
	if err := query.Preload("Items").Preload("Order").Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// CountByStatus 按状态统计退货申请
func (r *GormReturnRepository) CountByStatus() (map[string]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	if err := r.db.Model(&models.ReturnRequest{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

// Update 更新退货申请字段
func (r *GormReturnRepository) Update(id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.ReturnRequest{}).Where("id = ?", id).Updates(updates).Error
}

// TransitionStatus 仅当当前状态为 from 时更新为 to
func (r *GormReturnRepository) TransitionStatus(id uint, from, to string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	result := r.db.Model(&models.ReturnRequest{}).Where("id = ? AND status = ?", id, from).Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
