package shared

import (
	"github.com/ayurwell-next/internal/http/response"
	"github.com/ayurwell-next/internal/i18n"
	"github.com/ayurwell-next/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondError 返回国际化错误响应，并在有原始错误时记录日志。
func RespondError(c *gin.Context, code int, key string, err error) {
	locale := i18n.ResolveLocale(c)
	respondAppError(c, response.WrapError(code, i18n.T(locale, key), err))
}

// RespondUpstreamError 支付网关或物流商调用失败时返回 502，日志带上依赖标识。
func RespondUpstreamError(c *gin.Context, upstream, key string, err error) {
	locale := i18n.ResolveLocale(c)
	respondAppError(c, response.WrapUpstreamError(upstream, i18n.T(locale, key), err))
}

func respondAppError(c *gin.Context, appErr *response.AppError) {
	if appErr.Err != nil {
		fields := []interface{}{
			"code", appErr.Code,
			"message", appErr.Message,
			"error", appErr.Err,
		}
		if appErr.Upstream != "" {
			fields = append(fields, "upstream", appErr.Upstream)
		}
		RequestLog(c).Errorw("handler_error", fields...)
	}
	response.Error(c, appErr.Code, appErr.Message)
}
