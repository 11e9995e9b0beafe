package models

import (
	"strings"

	"github.com/ayurwell-next/internal/logger"
)

// InitDefaultAdmin 初始化默认管理员账号，已存在时确保其为超级管理员
func InitDefaultAdmin(email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		email = "admin@ayurwell.local"
	}

	var admin User
	result := DB.Where("email = ?", email).Limit(1).Find(&admin)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected > 0 {
		if admin.Role != "admin" || !admin.IsSuper {
			if err := DB.Model(&User{}).Where("id = ?", admin.ID).Updates(map[string]interface{}{
				"role":     "admin",
				"is_super": true,
			}).Error; err != nil {
				logger.Warnw("ensure_default_admin_super_failed", "error", err)
			}
			admin.Role = "admin"
			admin.IsSuper = true
		}
		return &admin, nil
	}

	admin = User{
		Email:     email,
		FirstName: "Store",
		LastName:  "Admin",
		Role:      "admin",
		IsSuper:   true,
	}
	if err := DB.Create(&admin).Error; err != nil {
		return nil, err
	}
	logger.Warnw("default_admin_created", "email", email, "user_id", admin.ID)
	return &admin, nil
}
