package models

import (
	"time"

	"gorm.io/gorm"
)

// User 用户表
type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`                          // 主键
	Email     string         `gorm:"uniqueIndex;not null" json:"email"`             // 邮箱
	FirstName string         `gorm:"default:''" json:"first_name"`                  // 名
	LastName  string         `gorm:"default:''" json:"last_name"`                   // 姓
	Phone     string         `gorm:"default:''" json:"phone"`                       // 手机号
	Role      string         `gorm:"index;not null;default:'customer'" json:"role"` // 角色（customer/admin）
	IsSuper   bool           `gorm:"not null;default:false" json:"is_super"`        // 是否超级管理员
	CreatedAt time.Time      `gorm:"index" json:"created_at"`                       // 创建时间
	UpdatedAt time.Time      `gorm:"index" json:"updated_at"`                       // 更新时间
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`                                // 软删除时间
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// FullName 姓名
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
