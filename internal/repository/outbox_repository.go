package repository

import (
	"errors"
	"time"

	"github.com/ayurwell-next/internal/constants"
	"github.com/ayurwell-next/internal/models"

	"gorm.io/gorm"
)

// OutboxRepository 发件箱数据访问接口
type OutboxRepository interface {
	Create(msg *models.OutboxMessage) error
	GetByID(id uint) (*models.OutboxMessage, error)
	ListDue(now time.Time, staleBefore time.Time, limit int) ([]models.OutboxMessage, error)
	Claim(id uint, now time.Time, staleBefore time.Time) (bool, error)
	MarkSent(id uint, now time.Time) error
	MarkRetry(id uint, attempts int, nextAttemptAt time.Time, lastError string) error
	MarkDead(id uint, attempts int, lastError string) error
	WithTx(tx *gorm.DB) *GormOutboxRepository
}

// GormOutboxRepository GORM 实现
type GormOutboxRepository struct {
	db *gorm.DB
}

// NewOutboxRepository 创建发件箱仓库
func NewOutboxRepository(db *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOutboxRepository) WithTx(tx *gorm.DB) *GormOutboxRepository {
	if tx == nil {
		return r
	}
	return &GormOutboxRepository{db: tx}
}

// Create 写入发件箱消息
func (r *GormOutboxRepository) Create(msg *models.OutboxMessage) error {
	return r.db.Create(msg).Error
}

// GetByID 根据 ID 获取消息
func (r *GormOutboxRepository) GetByID(id uint) (*models.OutboxMessage, error) {
	var msg models.OutboxMessage
	if err := r.db.First(&msg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

func (r *GormOutboxRepository) claimable(query *gorm.DB, now, staleBefore time.Time) *gorm.DB {
	return query.Where(
		"((status = ? AND next_attempt_at <= ?) OR (status = ? AND claimed_at < ?))",
		constants.OutboxStatusPending, now,
		constants.OutboxStatusProcessing, staleBefore,
	)
}

// ListDue 获取到期可投递（含认领超时）的消息
func (r *GormOutboxRepository) ListDue(now time.Time, staleBefore time.Time, limit int) ([]models.OutboxMessage, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []models.OutboxMessage
	if err := r.claimable(r.db, now, staleBefore).Order("id asc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Claim 条件更新认领消息，并发时仅一个调用方成功
func (r *GormOutboxRepository) Claim(id uint, now time.Time, staleBefore time.Time) (bool, error) {
	result := r.claimable(r.db.Model(&models.OutboxMessage{}).Where("id = ?", id), now, staleBefore).
		Updates(map[string]interface{}{
			"status":     constants.OutboxStatusProcessing,
			"claimed_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkSent 标记投递完成
func (r *GormOutboxRepository) MarkSent(id uint, now time.Time) error {
	return r.db.Model(&models.OutboxMessage{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     constants.OutboxStatusSent,
		"sent_at":    now,
		"last_error": "",
	}).Error
}

// MarkRetry 投递失败，等待下一次重试
func (r *GormOutboxRepository) MarkRetry(id uint, attempts int, nextAttemptAt time.Time, lastError string) error {
	return r.db.Model(&models.OutboxMessage{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":          constants.OutboxStatusPending,
		"attempts":        attempts,
		"next_attempt_at": nextAttemptAt,
		"last_error":      lastError,
		"claimed_at":      nil,
	}).Error
}

// MarkDead 超过最大重试次数
func (r *GormOutboxRepository) MarkDead(id uint, attempts int, lastError string) error {
	return r.db.Model(&models.OutboxMessage{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     constants.OutboxStatusDead,
		"attempts":   attempts,
		"last_error": lastError,
	}).Error
}
