package main

import (
	"fmt"

	"github.com/ayurwell-next/internal/authz"
	"github.com/ayurwell-next/internal/config"
	"github.com/ayurwell-next/internal/constants"
	"github.com/ayurwell-next/internal/logger"
	"github.com/ayurwell-next/internal/models"
	"github.com/ayurwell-next/internal/service"

	"github.com/shopspring/decimal"
)

func floatPtr(v float64) *float64 {
	return &v
}

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 商品：最后一个缺少尺寸，用于演示建单失败
	products := []models.Product{
		{
			Name:          "Ashwagandha Capsules",
			SKU:           "AW-ASH-60",
			Price:         models.NewMoneyFromDecimal(decimal.RequireFromString("499.00")),
			StockQuantity: 200,
			Weight:        floatPtr(0.15),
			Length:        floatPtr(10),
			Breadth:       floatPtr(6),
			Height:        floatPtr(6),
			IsActive:      true,
		},
		{
			Name:          "Triphala Churna",
			SKU:           "AW-TRI-100",
			Price:         models.NewMoneyFromDecimal(decimal.RequireFromString("249.00")),
			StockQuantity: 150,
			Weight:        floatPtr(0.12),
			Length:        floatPtr(12),
			Breadth:       floatPtr(8),
			Height:        floatPtr(4),
			IsActive:      true,
		},
		{
			Name:          "Kumkumadi Face Oil",
			SKU:           "AW-KUM-30",
			Price:         models.NewMoneyFromDecimal(decimal.RequireFromString("899.00")),
			StockQuantity: 40,
			IsActive:      true,
		},
	}
	for i := range products {
		var existing models.Product
		result := models.DB.Where("sku = ?", products[i].SKU).Limit(1).Find(&existing)
		if result.Error != nil {
			stdLog.Printf("Failed to query product %s: %v", products[i].SKU, result.Error)
			continue
		}
		if result.RowsAffected > 0 {
			stdLog.Printf("Product already exists: %s", products[i].SKU)
			products[i] = existing
			continue
		}
		if err := models.DB.Create(&products[i]).Error; err != nil {
			stdLog.Printf("Failed to create product %s: %v", products[i].SKU, err)
			continue
		}
		stdLog.Printf("Created product: %s", products[i].SKU)
	}

	// 演示顾客与收货地址
	customer := models.User{
		Email:     "customer@ayurwell.local",
		FirstName: "Asha",
		LastName:  "Verma",
		Phone:     "9876543210",
		Role:      constants.UserRoleCustomer,
	}
	if err := models.DB.Where("email = ?", customer.Email).FirstOrCreate(&customer).Error; err != nil {
		stdLog.Fatalf("Failed to create customer: %v", err)
	}
	address := models.Address{
		UserID:     customer.ID,
		Name:       "Asha Verma",
		Phone:      "9876543210",
		Line1:      "12 MG Road",
		City:       "Bengaluru",
		State:      "Karnataka",
		PostalCode: "560001",
		Country:    "India",
	}
	if err := models.DB.Where("user_id = ? AND postal_code = ?", customer.ID, address.PostalCode).FirstOrCreate(&address).Error; err != nil {
		stdLog.Fatalf("Failed to create address: %v", err)
	}
	for _, product := range products {
		if product.ID == 0 || !product.HasShippingDimensions() {
			continue
		}
		item := models.CartItem{UserID: customer.ID, ProductID: product.ID, Quantity: 1}
		if err := models.DB.Where("user_id = ? AND product_id = ?", customer.ID, product.ID).FirstOrCreate(&item).Error; err != nil {
			stdLog.Printf("Failed to add cart item %s: %v", product.SKU, err)
		}
	}

	// 超级管理员与按角色划分的后台账号
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		stdLog.Fatalf("Failed to init authz: %v", err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		stdLog.Fatalf("Failed to bootstrap roles: %v", err)
	}
	admin, err := models.InitDefaultAdmin("admin@ayurwell.local")
	if err != nil {
		stdLog.Fatalf("Failed to init admin: %v", err)
	}
	if err := authzService.SetUserRoles(admin.ID, []string{authz.RoleSuperAdmin}); err != nil {
		stdLog.Printf("Failed to grant super admin role: %v", err)
	}

	staff := map[string]string{
		"finance@ayurwell.local":    authz.RoleFinance,
		"support@ayurwell.local":    authz.RoleSupport,
		"operations@ayurwell.local": authz.RoleOperations,
	}
	issuer := service.NewTokenIssuer(cfg.UserJWT)
	tokens := map[string]string{}
	for email, role := range staff {
		user := models.User{Email: email, Role: constants.UserRoleAdmin}
		if err := models.DB.Where("email = ?", email).FirstOrCreate(&user).Error; err != nil {
			stdLog.Printf("Failed to create staff %s: %v", email, err)
			continue
		}
		if err := authzService.SetUserRoles(user.ID, []string{role}); err != nil {
			stdLog.Printf("Failed to set role for %s: %v", email, err)
			continue
		}
		if token, _, err := issuer.GenerateUserJWT(&user, 0); err == nil {
			tokens[email] = token
		}
	}
	for _, user := range []*models.User{&customer, admin} {
		if token, _, err := issuer.GenerateUserJWT(user, 0); err == nil {
			tokens[user.Email] = token
		}
	}

	fmt.Println("Seed completed. Development tokens:")
	for email, token := range tokens {
		fmt.Printf("  %-28s %s\n", email, token)
	}
	fmt.Printf("  demo address id: %d\n", address.ID)
}
