package shiprocket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ayurwell-next/internal/cache"
	"github.com/ayurwell-next/internal/logger"

	"golang.org/x/sync/singleflight"
)

var (
	ErrConfigInvalid   = errors.New("shiprocket config invalid")
	ErrRequestFailed   = errors.New("shiprocket request failed")
	ErrResponseInvalid = errors.New("shiprocket response invalid")
	ErrUnauthorized    = errors.New("shiprocket unauthorized")
	ErrCourierRejected = errors.New("shiprocket courier rejected")
)

const (
	defaultAPIBaseURL = "https://apiv2.shiprocket.in/v1/external"
	defaultTimeout    = 15 * time.Second
	defaultTokenTTL   = 23 * time.Hour
	trackingURLPrefix = "https://shiprocket.co/tracking/"
)

// Config Shiprocket 客户端配置
type Config struct {
	Email          string
	Password       string
	APIBaseURL     string
	PickupLocation string
	ChannelID      string
	TokenTTL       time.Duration
	Timeout        time.Duration
}

// Client Shiprocket 客户端，令牌缓存在 Redis 中并保留进程内副本
type Client struct {
	cfg        Config
	httpClient *http.Client
	tokens     *cache.Store
	group      singleflight.Group

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

// ValidateConfig 校验配置
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Email) == "" || strings.TrimSpace(cfg.Password) == "" {
		return fmt.Errorf("%w: email and password are required", ErrConfigInvalid)
	}
	return nil
}

// NewClient 创建承运商客户端，tokens 可为禁用状态的缓存
func NewClient(cfg Config, tokens *cache.Store) *Client {
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if strings.TrimSpace(cfg.PickupLocation) == "" {
		cfg.PickupLocation = "Home"
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tokens:     tokens,
	}
}

// PickupLocation 默认发货仓
func (c *Client) PickupLocation() string {
	return c.cfg.PickupLocation
}

// TrackingURL 根据 AWB 生成追踪链接
func TrackingURL(awb string) string {
	if strings.TrimSpace(awb) == "" {
		return ""
	}
	return trackingURLPrefix + url.PathEscape(awb)
}

func (c *Client) cachedToken(now time.Time) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token != "" && now.Before(c.expiresAt) {
		return c.token
	}
	return ""
}

func (c *Client) storeToken(token string, expiresAt time.Time) {
	c.mu.Lock()
	c.token = token
	c.expiresAt = expiresAt
	c.mu.Unlock()
}

// authToken 获取有效令牌：进程内副本、Redis、最后重新登录；并发刷新合并为一次
func (c *Client) authToken(ctx context.Context) (string, error) {
	now := time.Now()
	if token := c.cachedToken(now); token != "" {
		return token, nil
	}
	value, err, _ := c.group.Do("login", func() (interface{}, error) {
		if token := c.cachedToken(time.Now()); token != "" {
			return token, nil
		}
		if cached, ok, err := c.tokens.GetCarrierToken(ctx, c.cfg.Email); err != nil {
			logger.Warnw("carrier_token_cache_read_failed", "error", err)
		} else if ok && cached.Valid(time.Now()) {
			c.storeToken(cached.Token, time.Unix(cached.ExpiresAt, 0))
			return cached.Token, nil
		}
		return c.login(ctx)
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

func (c *Client) login(ctx context.Context) (string, error) {
	raw, status, err := c.send(ctx, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    c.cfg.Email,
		"password": c.cfg.Password,
	})
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("%w: login http %d: %s", ErrUnauthorized, status, readMessage(raw))
	}
	token := readString(raw, "token")
	if token == "" {
		return "", fmt.Errorf("%w: token missing", ErrResponseInvalid)
	}
	expiresAt := time.Now().Add(c.cfg.TokenTTL)
	c.storeToken(token, expiresAt)
	if err := c.tokens.SetCarrierToken(ctx, c.cfg.Email, cache.CarrierToken{Token: token, ExpiresAt: expiresAt.Unix()}); err != nil {
		logger.Warnw("carrier_token_cache_write_failed", "error", err)
	}
	logger.Infow("carrier_token_refreshed", "expires_at", expiresAt)
	return token, nil
}

func (c *Client) invalidateToken(ctx context.Context) {
	c.storeToken("", time.Time{})
	if err := c.tokens.DelCarrierToken(ctx, c.cfg.Email); err != nil {
		logger.Warnw("carrier_token_cache_delete_failed", "error", err)
	}
}

// call 带鉴权的请求，401 时清除令牌并重试一次
func (c *Client) call(ctx context.Context, method, path string, payload interface{}) (map[string]interface{}, int, error) {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.authToken(ctx)
		if err != nil {
			return nil, 0, err
		}
		raw, status, err := c.send(ctx, method, path, token, payload)
		if err != nil {
			return nil, status, err
		}
		if status == http.StatusUnauthorized && attempt == 0 {
			c.invalidateToken(ctx)
			continue
		}
		if status >= 500 {
			return raw, status, fmt.Errorf("%w: %s http %d", ErrRequestFailed, path, status)
		}
		return raw, status, nil
	}
	return nil, http.StatusUnauthorized, ErrUnauthorized
}

func (c *Client) send(ctx context.Context, method, path, token string, payload interface{}) (map[string]interface{}, int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: encode request failed", ErrRequestFailed)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIBaseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read response failed", ErrRequestFailed)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]interface{}{}, resp.StatusCode, nil
	}
	var raw map[string]interface{}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&raw); err != nil {
		if resp.StatusCode >= 500 {
			return nil, resp.StatusCode, fmt.Errorf("%w: http %d", ErrRequestFailed, resp.StatusCode)
		}
		return nil, resp.StatusCode, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	return raw, resp.StatusCode, nil
}
