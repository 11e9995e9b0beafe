package models

import (
	"time"
)

// WebhookEvent 已处理的回调事件（幂等键）
type WebhookEvent struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Source      string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_webhook_source_key" json:"source"`     // 回调来源
	EventKey    string    `gorm:"type:varchar(191);not null;uniqueIndex:idx_webhook_source_key" json:"event_key"` // 幂等键
	EventType   string    `gorm:"type:varchar(64)" json:"event_type"`                                             // 事件类型
	ReferenceID string    `gorm:"type:varchar(64)" json:"reference_id"`                                           // 关联对象
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (WebhookEvent) TableName() string {
	return "webhook_events"
}
