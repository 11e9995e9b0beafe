package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ayurwell-next/internal/cache"
	"github.com/ayurwell-next/internal/config"
	"github.com/ayurwell-next/internal/http/response"
	"github.com/ayurwell-next/internal/i18n"
	"github.com/ayurwell-next/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitKeyFunc 生成限流 key 的函数
type RateLimitKeyFunc func(*gin.Context) string

// RateLimitRule 限流规则；BlockSeconds > 0 时超限后整段封禁
type RateLimitRule struct {
	Prefix        string
	WindowSeconds int
	MaxRequests   int
	BlockSeconds  int
	MessageKey    string
}

// RuleFromConfig 由配置构造限流规则
func RuleFromConfig(prefix string, cfg config.RateLimitConfig) RateLimitRule {
	return RateLimitRule{
		Prefix:        prefix,
		WindowSeconds: cfg.WindowSeconds,
		MaxRequests:   cfg.MaxAttempts,
		BlockSeconds:  cfg.BlockSeconds,
	}
}

var rateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("TTL", KEYS[1])
return {current, ttl}
`)

// RateLimitMiddleware Redis 频率限制中间件；缓存未启用时放行
func RateLimitMiddleware(store *cache.Store, rule RateLimitRule, keyFunc RateLimitKeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := store.Client()
		if client == nil || rule.WindowSeconds <= 0 || rule.MaxRequests <= 0 {
			c.Next()
			return
		}

		key := ""
		if keyFunc != nil {
			key = strings.TrimSpace(keyFunc(c))
		}
		if key == "" {
			key = KeyByIP(c)
		}
		if rule.Prefix != "" {
			key = fmt.Sprintf("%s:%s", rule.Prefix, key)
		}
		blockKey := "ratelimit:block:" + key
		ctx := c.Request.Context()

		if rule.BlockSeconds > 0 {
			blocked, err := store.Exists(ctx, blockKey)
			if err == nil && blocked {
				rejectRateLimited(c, rule, rule.BlockSeconds)
				return
			}
		}

		result, err := rateLimitScript.Run(ctx, client, []string{"ratelimit:" + key}, rule.WindowSeconds).Result()
		if err != nil {
			logger.Warnw("rate_limit_script_failed", "key", key, "error", err)
			rejectRateLimitUnavailable(c)
			return
		}
		values, ok := result.([]interface{})
		if !ok || len(values) < 2 {
			rejectRateLimitUnavailable(c)
			return
		}
		count, ok := toInt64(values[0])
		if !ok {
			rejectRateLimitUnavailable(c)
			return
		}
		ttlSeconds, _ := toInt64(values[1])
		if count > int64(rule.MaxRequests) {
			waitSeconds := int(ttlSeconds)
			if rule.BlockSeconds > 0 {
				if err := store.SetFlag(ctx, blockKey, time.Duration(rule.BlockSeconds)*time.Second); err != nil {
					logger.Warnw("rate_limit_block_failed", "key", key, "error", err)
				}
				waitSeconds = rule.BlockSeconds
			}
			rejectRateLimited(c, rule, waitSeconds)
			return
		}

		c.Next()
	}
}

func rejectRateLimited(c *gin.Context, rule RateLimitRule, waitSeconds int) {
	if waitSeconds < 1 {
		waitSeconds = rule.WindowSeconds
	}
	if waitSeconds < 1 {
		waitSeconds = 1
	}
	msgKey := strings.TrimSpace(rule.MessageKey)
	if msgKey == "" {
		msgKey = "error.rate_limited"
	}
	logger.Warnw("rate_limit_rejected", "path", c.Request.URL.Path, "client_ip", c.ClientIP(), "wait_seconds", waitSeconds)
	response.ErrorWithData(c, response.CodeTooManyRequests,
		i18n.Sprintf(i18n.ResolveLocale(c), msgKey, waitSeconds),
		gin.H{"retry_after": waitSeconds},
	)
	c.Abort()
}

func rejectRateLimitUnavailable(c *gin.Context) {
	response.Error(c, response.CodeInternal, i18n.T(i18n.ResolveLocale(c), "error.rate_limit_unavailable"))
	c.Abort()
}

// KeyByIP 使用 IP 作为限流 key
func KeyByIP(c *gin.Context) string {
	return c.ClientIP()
}

// KeyByUserAndJSONField 使用登录用户（缺失时 IP）+ JSON 字段作为限流 key
func KeyByUserAndJSONField(field string) RateLimitKeyFunc {
	return func(c *gin.Context) string {
		subject := c.ClientIP()
		if userID := c.GetUint(ctxUserID); userID > 0 {
			subject = fmt.Sprintf("u%d", userID)
		}
		value := strings.ToLower(strings.TrimSpace(readJSONField(c, field)))
		if value == "" {
			return subject
		}
		return fmt.Sprintf("%s|%s", value, subject)
	}
}

func readJSONField(c *gin.Context, field string) string {
	if c == nil || c.Request == nil || c.Request.Body == nil {
		return ""
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	if len(body) == 0 {
		return ""
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	value, ok := payload[field]
	if !ok {
		return ""
	}
	if text, ok := value.(string); ok {
		return strings.TrimSpace(text)
	}
	return ""
}

func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int16:
		return int64(v), true
	case int8:
		return int64(v), true
	case uint64:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint8:
		return int64(v), true
	case float64:
		return int64(v), true
	case float32:
		return int64(v), true
	default:
		return 0, false
	}
}
