package shared

import (
	"strconv"
	"strings"

	"github.com/ayurwell-next/internal/http/response"
	"github.com/ayurwell-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetContextUintWithKeys 从上下文读取 uint 值并统一处理错误响应。
func GetContextUintWithKeys(c *gin.Context, key, invalidKey, typeInvalidKey string) (uint, bool) {
	value, exists := c.Get(key)
	if !exists {
		RespondError(c, response.CodeUnauthorized, "error.unauthorized", nil)
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			RespondError(c, response.CodeBadRequest, invalidKey, nil)
			return 0, false
		}
		return uint(v), true
	case float64:
		if v < 0 {
			RespondError(c, response.CodeBadRequest, invalidKey, nil)
			return 0, false
		}
		return uint(v), true
	default:
		RespondError(c, response.CodeInternal, typeInvalidKey, nil)
		return 0, false
	}
}

// ActorFromContext 由鉴权中间件写入的 user_id 与 is_admin 构造操作人
func ActorFromContext(c *gin.Context) (service.Actor, bool) {
	uid, ok := GetContextUintWithKeys(c, "user_id", "error.user_id_invalid", "error.user_id_type_invalid")
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{UserID: uid, IsAdmin: c.GetBool("is_admin")}, true
}

// ParamUint 解析路径中的正整数 ID，失败时直接写入 400 响应
func ParamUint(c *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		RespondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return 0, false
	}
	return uint(id), true
}

// QueryPagination 读取 page/page_size 查询参数并归一化
func QueryPagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return NormalizePagination(page, pageSize)
}
