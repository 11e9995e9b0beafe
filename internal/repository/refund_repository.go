package repository

import (
	"errors"

	"github.com/ayurwell-next/internal/constants"
	"github.com/ayurwell-next/internal/models"

	"gorm.io/gorm"
)

// activeRefundStatuses 占用支付退款额度的状态
var activeRefundStatuses = []string{
	constants.RefundStatusInitiated,
	constants.RefundStatusProcessing,
	constants.RefundStatusSuccess,
}

// RefundRepository 退款数据访问接口
type RefundRepository interface {
	Create(refund *models.Refund) error
	GetByID(id uint) (*models.Refund, error)
	GetByGatewayRefundID(gatewayRefundID string) (*models.Refund, error)
	GetByRefundNo(refundNo string) (*models.Refund, error)
	FindActiveByPayment(paymentID uint) (*models.Refund, error)
	FindActiveByReturn(returnID uint) (*models.Refund, error)
	ListByOrder(orderID uint) ([]models.Refund, error)
	List(filter RefundListFilter) ([]models.Refund, int64, error)
	Update(id uint, updates map[string]interface{}) error
	TransitionStatus(id uint, from, to string, updates map[string]interface{}) (bool, error)
	WithTx(tx *gorm.DB) *GormRefundRepository
}

// GormRefundRepository GORM 实现
type GormRefundRepository struct {
	db *gorm.DB
}

// NewRefundRepository 创建退款仓库
func NewRefundRepository(db *gorm.DB) *GormRefundRepository {
	return &GormRefundRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRefundRepository) WithTx(tx *gorm.DB) *GormRefundRepository {
	if tx == nil {
		return r
	}
	return &GormRefundRepository{db: tx}
}

// Create 创建退款记录
func (r *GormRefundRepository) Create(refund *models.Refund) error {
	return r.db.Create(refund).Error
}

// GetByID 根据 ID 获取退款
func (r *GormRefundRepository) GetByID(id uint) (*models.Refund, error) {
	var refund models.Refund
	if err := r.db.First(&refund, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &refund, nil
}

// GetByGatewayRefundID 根据网关退款号获取退款
func (r *GormRefundRepository) GetByGatewayRefundID(gatewayRefundID string) (*models.Refund, error) {
	if gatewayRefundID == "" {
		return nil, nil
	}
	return r.latest(r.db.Where("gateway_refund_id = ?", gatewayRefundID))
}

// GetByRefundNo 根据本地退款单号（网关 receipt）获取退款
func (r *GormRefundRepository) GetByRefundNo(refundNo string) (*models.Refund, error) {
	if refundNo == "" {
		return nil, nil
	}
	return r.latest(r.db.Where("refund_no = ?", refundNo))
}

// FindActiveByPayment 查找该支付上未失败的退款
func (r *GormRefundRepository) FindActiveByPayment(paymentID uint) (*models.Refund, error) {
	return r.latest(r.db.Where("payment_id = ? AND status IN ?", paymentID, activeRefundStatuses))
}

// FindActiveByReturn 查找该退货申请上未失败的退款
func (r *GormRefundRepository) FindActiveByReturn(returnID uint) (*models.Refund, error) {
	return r.latest(r.db.Where("return_id = ? AND status IN ?", returnID, activeRefundStatuses))
}

func (r *GormRefundRepository) latest(query *gorm.DB) (*models.Refund, error) {
	var refund models.Refund
	result := query.Order("id desc").Limit(1).Find(&refund)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &refund, nil
}

// ListByOrder 订单退款记录
func (r *GormRefundRepository) ListByOrder(orderID uint) ([]models.Refund, error) {
	var rows []models.Refund
	if err := r.db.Where("order_id = ?", orderID).Order("id desc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// List 管理端退款列表
func (r *GormRefundRepository) List(filter RefundListFilter) ([]models.Refund, int64, error) {
	query := r.db.Model(&models.Refund{})
	if filter.OrderID != 0 {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	query, total, err := countAndPage(query, filter.Page, filter.PageSize)
	if err != nil {
		return nil, 0, err
	}
	var rows []models.Refund
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Update 更新退款字段
func (r *GormRefundRepository) Update(id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.Refund{}).Where("id = ?", id).Updates(updates).Error
}

// TransitionStatus 仅当当前状态为 from 时更新为 to
func (r *GormRefundRepository) TransitionStatus(id uint, from, to string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	result := r.db.Model(&models.Refund{}).Where("id = ? AND status = ?", id, from).Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
