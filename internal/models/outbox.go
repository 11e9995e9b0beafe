package models

import (
	"time"
)

// OutboxMessage 事务发件箱消息，与业务数据在同一事务中写入
type OutboxMessage struct {
	ID            uint       `gorm:"primarykey" json:"id"`                                     // 主键
	MessageID     string     `gorm:"uniqueIndex;type:varchar(64);not null" json:"message_id"`  // 消息ID（下游去重）
	Kind          string     `gorm:"type:varchar(16);not null" json:"kind"`                    // task / event
	Topic         string     `gorm:"index;type:varchar(64);not null" json:"topic"`             // 主题
	AggregateType string     `gorm:"type:varchar(32);not null" json:"aggregate_type"`          // 聚合类型
	AggregateID   uint       `gorm:"index;not null" json:"aggregate_id"`                       // 聚合ID
	Payload       JSON       `gorm:"type:json" json:"payload"`                                 // 消息体
	Status        string     `gorm:"index;type:varchar(16);not null" json:"status"`            // 投递状态
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`                       // 投递次数
	LastError     string     `gorm:"type:text" json:"last_error,omitempty"`                    // 最近一次错误
	NextAttemptAt time.Time  `gorm:"index;not null" json:"next_attempt_at"`                    // 下一次可投递时间
	ClaimedAt     *time.Time `json:"claimed_at"`                                               // 认领时间
	SentAt        *time.Time `json:"sent_at"`                                                  // 投递完成时间
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`                                  // 创建时间
	UpdatedAt     time.Time  `json:"updated_at"`                                               // 更新时间
}

// TableName 指定表名
func (OutboxMessage) TableName() string {
	return "outbox_messages"
}
