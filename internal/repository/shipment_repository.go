package repository

import (
	"time"

	"github.com/ayurwell-next/internal/constants"
	"github.com/ayurwell-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ShipmentRepository 运单数据访问接口
type ShipmentRepository interface {
	CreateIfAbsent(shipment *models.Shipment) (bool, error)
	GetByID(id uint) (*models.Shipment, error)
	GetForwardByOrderID(orderID uint) (*models.Shipment, error)
	GetByReturnID(returnID uint) (*models.Shipment, error)
	GetByCarrierOrderID(carrierOrderID string) (*models.Shipment, error)
	List(filter ShipmentListFilter) ([]models.Shipment, int64, error)
	ListPendingAWB(limit int) ([]models.Shipment, error)
	ListStaleReservations(before time.Time, limit int) ([]models.Shipment, error)
	Update(id uint, updates map[string]interface{}) error
	TransitionStatus(id uint, from, to string, updates map[string]interface{}) (bool, error)
	DeleteReservation(id uint) error
	WithTx(tx *gorm.DB) *GormShipmentRepository
}

// GormShipmentRepository GORM 实现
type GormShipmentRepository struct {
	db *gorm.DB
}

// NewShipmentRepository 创建运单仓库
func NewShipmentRepository(db *gorm.DB) *GormShipmentRepository {
	return &GormShipmentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormShipmentRepository) WithTx(tx *gorm.DB) *GormShipmentRepository {
	if tx == nil {
		return r
	}
	return &GormShipmentRepository{db: tx}
}

// CreateIfAbsent 按 dedupe_key 唯一约束创建运单，已存在时返回 false
func (r *GormShipmentRepository) CreateIfAbsent(shipment *models.Shipment) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedupe_key"}},
		DoNothing: true,
	}).Create(shipment)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetByID 根据 ID 获取运单
func (r *GormShipmentRepository) GetByID(id uint) (*models.Shipment, error) {
	return r.latest(r.db.Where("id = ?", id))
}

// GetForwardByOrderID 获取订单的正向运单
func (r *GormShipmentRepository) GetForwardByOrderID(orderID uint) (*models.Shipment, error) {
	return r.latest(r.db.Where("order_id = ? AND type = ?", orderID, constants.ShipmentTypeForward))
}

// GetByReturnID 获取退货运单
func (r *GormShipmentRepository) GetByReturnID(returnID uint) (*models.Shipment, error) {
	return r.latest(r.db.Where("return_id = ? AND type = ?", returnID, constants.ShipmentTypeReturn))
}

// GetByCarrierOrderID 根据承运商订单号获取运单
func (r *GormShipmentRepository) GetByCarrierOrderID(carrierOrderID string) (*models.Shipment, error) {
	if carrierOrderID == "" {
		return nil, nil
	}
	return r.latest(r.db.Where("carrier_order_id = ?", carrierOrderID))
}

func (r *GormShipmentRepository) latest(query *gorm.DB) (*models.Shipment, error) {
	var shipment models.Shipment
	result := query.Order("id desc").Limit(1).Find(&shipment)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &shipment, nil
}

// List 管理端运单列表
func (r *GormShipmentRepository) List(filter ShipmentListFilter) ([]models.Shipment, int64, error) {
	query := r.db.Model(&models.Shipment{})
	if filter.OrderID != 0 {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.AWB != "" {
		query = query.Where("awb = ?", filter.AWB)
	}
	if filter.PendingAWB {
		query = query.Where("(awb IS NULL OR awb = '')")
	}

	query, total, err := countAndPage(query, filter.Page, filter.PageSize)
	if err != nil {
		return nil, 0, err
	}
	var rows []models.Shipment
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListPendingAWB 获取尚未分配 AWB 的运单
func (r *GormShipmentRepository) ListPendingAWB(limit int) ([]models.Shipment, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []models.Shipment
	err := r.db.Where("status = ? AND (awb IS NULL OR awb = '') AND carrier_shipment_id <> ''", constants.ShipmentStatusCreated).
		Order("id asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListStaleReservations 获取 before 之前创建、仍无承运商单号的正向占位运单
func (r *GormShipmentRepository) ListStaleReservations(before time.Time, limit int) ([]models.Shipment, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []models.Shipment
	err := r.db.Where("type = ? AND status = ? AND (carrier_order_id IS NULL OR carrier_order_id = '') AND created_at < ?",
		constants.ShipmentTypeForward, constants.ShipmentStatusCreated, before).
		Order("id asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Update 更新运单字段
func (r *GormShipmentRepository) Update(id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.Shipment{}).Where("id = ?", id).Updates(updates).Error
}

// TransitionStatus 仅当当前状态为 from 时更新为 to
func (r *GormShipmentRepository) TransitionStatus(id uint, from, to string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	result := r.db.Model(&models.Shipment{}).Where("id = ? AND status = ?", id, from).Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeleteReservation 删除尚未在承运商建单的占位运单
func (r *GormShipmentRepository) DeleteReservation(id uint) error {
	return r.db.Where("id = ? AND carrier_order_id = ?", id, "").Delete(&models.Shipment{}).Error
}
