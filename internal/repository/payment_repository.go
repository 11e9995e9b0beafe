package repository

import (
	"errors"

	"github.com/ayurwell-next/internal/models"

	"gorm.io/gorm"
)

// PaymentRepository 支付数据访问接口
type PaymentRepository interface {
	Create(payment *models.Payment) error
	GetByID(id uint) (*models.Payment, error)
	GetByOrderID(orderID uint) (*models.Payment, error)
	GetByGatewayOrderID(gatewayOrderID string) (*models.Payment, error)
	GetByGatewayPaymentID(gatewayPaymentID string) (*models.Payment, error)
	Update(id uint, updates map[string]interface{}) error
	TransitionStatus(id uint, from []string, to string, updates map[string]interface{}) (bool, error)
	WithTx(tx *gorm.DB) *GormPaymentRepository
}

// GormPaymentRepository GORM 实现
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付仓库
func NewPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) *GormPaymentRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentRepository{db: tx}
}

// Create 创建支付记录
func (r *GormPaymentRepository) Create(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

// GetByID 根据 ID 获取支付记录
func (r *GormPaymentRepository) GetByID(id uint) (*models.Payment, error) {
	return r.first(r.db.Where("id = ?", id))
}

// GetByOrderID 根据订单获取支付记录
func (r *GormPaymentRepository) GetByOrderID(orderID uint) (*models.Payment, error) {
	return r.first(r.db.Where("order_id = ?", orderID))
}

// GetByGatewayOrderID 根据网关订单号获取支付记录
func (r *GormPaymentRepository) GetByGatewayOrderID(gatewayOrderID string) (*models.Payment, error) {
	if gatewayOrderID == "" {
		return nil, nil
	}
	return r.first(r.db.Where("gateway_order_id = ?", gatewayOrderID))
}

// GetByGatewayPaymentID 根据网关支付号获取支付记录
func (r *GormPaymentRepository) GetByGatewayPaymentID(gatewayPaymentID string) (*models.Payment, error) {
	if gatewayPaymentID == "" {
		return nil, nil
	}
	return r.first(r.db.Where("gateway_payment_id = ?", gatewayPaymentID))
}

func (r *GormPaymentRepository) first(query *gorm.DB) (*models.Payment, error) {
	var payment models.Payment
	if err := query.First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// Update 更新支付字段
func (r *GormPaymentRepository) Update(id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.Payment{}).Where("id = ?", id).Updates(updates).Error
}

// TransitionStatus 仅当当前状态属于 from 时更新，返回是否更新成功
func (r *GormPaymentRepository) TransitionStatus(id uint, from []string, to string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	result := r.db.Model(&models.Payment{}).Where("id = ? AND status IN ?", id, from).Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
