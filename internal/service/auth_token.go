package service

import (
	"errors"
	"strings"
	"time"

	"github.com/ayurwell-next/internal/config"
	"github.com/ayurwell-next/internal/constants"
	"github.com/ayurwell-next/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenInvalid token 无效
var ErrTokenInvalid = errors.New("invalid token")

const defaultTokenExpireHours = 24

// UserJWTClaims 用户 JWT 声明
type UserJWTClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin 是否管理员角色
func (c *UserJWTClaims) IsAdmin() bool {
	return c != nil && c.Role == constants.UserRoleAdmin
}

// Actor 转换为服务层操作人
func (c *UserJWTClaims) Actor() Actor {
	if c == nil {
		return Actor{}
	}
	return Actor{UserID: c.UserID, IsAdmin: c.IsAdmin()}
}

// TokenIssuer 签发与解析用户 JWT；登录注册由外部认证服务负责
type TokenIssuer struct {
	cfg config.JWTConfig
}

// NewTokenIssuer 创建 token 签发器
func NewTokenIssuer(cfg config.JWTConfig) *TokenIssuer {
	return &TokenIssuer{cfg: cfg}
}

// GenerateUserJWT 生成用户 JWT Token
func (t *TokenIssuer) GenerateUserJWT(user *models.User, expireHours int) (string, time.Time, error) {
	if expireHours <= 0 {
		expireHours = t.cfg.ExpireHours
	}
	if expireHours <= 0 {
		expireHours = defaultTokenExpireHours
	}
	role := strings.TrimSpace(user.Role)
	if role == "" {
		role = constants.UserRoleCustomer
	}
	now := time.Now()
	expiresAt := now.Add(time.Duration(expireHours) * time.Hour)
	claims := UserJWTClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(t.cfg.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseUserJWT 解析用户 JWT Token
func (t *TokenIssuer) ParseUserJWT(tokenString string) (*UserJWTClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &UserJWTClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(t.cfg.SecretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
