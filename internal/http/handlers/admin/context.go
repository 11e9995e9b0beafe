package admin

import (
	"strconv"
	"strings"
	"time"

	handlershared "github.com/ayurwell-next/internal/http/handlers/shared"
	"github.com/ayurwell-next/internal/service"

	"github.com/gin-gonic/gin"
)

// getActor 管理端操作人；路由组已校验管理员身份
func getActor(c *gin.Context) (service.Actor, bool) {
	actor, ok := handlershared.ActorFromContext(c)
	if !ok {
		return service.Actor{}, false
	}
	actor.IsAdmin = true
	return actor, true
}

func paramID(c *gin.Context) (uint, bool) {
	return handlershared.ParamUint(c, "id")
}

func queryUint(c *gin.Context, key string) uint {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return uint(parsed)
}

// parseTimeNullable 支持 RFC3339 与 2006-01-02 两种格式
func parseTimeNullable(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, time.Local)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
