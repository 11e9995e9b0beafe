package admin

import (
	"net/url"
	"strings"

	"github.com/ayurwell-next/internal/http/response"
	"github.com/ayurwell-next/internal/logger"

	"github.com/gin-gonic/gin"
)

type authzPolicyPayload struct {
	Role   string `json:"role" binding:"required"`
	Object string `json:"object" binding:"required"`
	Action string `json:"action" binding:"required"`
}

type authzSetUserRolesPayload struct {
	Roles []string `json:"roles"`
}

// GetAuthzMe 当前后台用户的角色与策略快照
func (h *Handler) GetAuthzMe(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	roles, err := h.AuthzService.UserRoles(actor.UserID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	policies := make([]interface{}, 0)
	for _, role := range roles {
		rolePolicies, err := h.AuthzService.RolePolicies(role)
		if err != nil {
			respondError(c, response.CodeInternal, "error.internal", err)
			return
		}
		for _, policy := range rolePolicies {
			policies = append(policies, policy)
		}
	}
	response.Success(c, gin.H{
		"user_id":  actor.UserID,
		"is_super": c.GetBool("is_super"),
		"roles":    roles,
		"policies": policies,
	})
}

// GetAuthzRolePolicies 获取角色策略
func (h *Handler) GetAuthzRolePolicies(c *gin.Context) {
	role := decodeRoleParam(c.Param("role"))
	if role == "" {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	policies, err := h.AuthzService.RolePolicies(role)
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	response.Success(c, policies)
}

// GrantAuthzPolicy 授予角色策略
func (h *Handler) GrantAuthzPolicy(c *gin.Context) {
	var req authzPolicyPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if err := h.AuthzService.GrantRolePolicy(req.Role, req.Object, req.Action); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	logger.Infow("admin_authz_policy_granted",
		"operator_user_id", c.GetUint("user_id"),
		"role", req.Role,
		"object", req.Object,
		"action", req.Action,
	)
	response.Success(c, nil)
}

// SetAuthzUserRoles 覆盖设置后台用户角色
func (h *Handler) SetAuthzUserRoles(c *gin.Context) {
	userID, ok := paramID(c)
	if !ok {
		return
	}
	var req authzSetUserRolesPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if err := h.AuthzService.SetUserRoles(userID, req.Roles); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	roles, err := h.AuthzService.UserRoles(userID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	logger.Infow("admin_authz_user_roles_updated",
		"operator_user_id", c.GetUint("user_id"),
		"user_id", userID,
		"roles", roles,
	)
	response.Success(c, gin.H{"user_id": userID, "roles": roles})
}

func decodeRoleParam(raw string) string {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return strings.TrimSpace(decoded)
}
