package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CarrierToken 承运商鉴权令牌快照
type CarrierToken struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// Valid 令牌是否仍在有效期内
func (t *CarrierToken) Valid(now time.Time) bool {
	return t != nil && strings.TrimSpace(t.Token) != "" && now.Unix() < t.ExpiresAt
}

func carrierTokenKey(account string) string {
	return fmt.Sprintf("carrier:token:%s", strings.ToLower(strings.TrimSpace(account)))
}

// GetCarrierToken 读取承运商令牌缓存
func (s *Store) GetCarrierToken(ctx context.Context, account string) (*CarrierToken, bool, error) {
	var token CarrierToken
	ok, err := s.GetJSON(ctx, carrierTokenKey(account), &token)
	if err != nil || !ok {
		return nil, false, err
	}
	return &token, true, nil
}

// SetCarrierToken 写入承运商令牌缓存
func (s *Store) SetCarrierToken(ctx context.Context, account string, token CarrierToken) error {
	ttl := time.Until(time.Unix(token.ExpiresAt, 0))
	if ttl <= 0 {
		return nil
	}
	return s.SetJSON(ctx, carrierTokenKey(account), token, ttl)
}

// DelCarrierToken 删除承运商令牌缓存
func (s *Store) DelCarrierToken(ctx context.Context, account string) error {
	return s.Del(ctx, carrierTokenKey(account))
}
