package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/insightvigil/biblioteca-escolar/internal/dto"
	"github.com/insightvigil/biblioteca-escolar/internal/service"
	"github.com/insightvigil/biblioteca-escolar/pkg/response"
)

// PolicyHandler 借阅策略 HTTP 处理器
type PolicyHandler struct {
	policySvc service.PolicyService
}

// NewPolicyHandler 创建 PolicyHandler
func NewPolicyHandler(policySvc service.PolicyService) *PolicyHandler {
	return &PolicyHandler{policySvc: policySvc}
}

// GetPolicy 获取当前借阅策略
// GET /api/v1/policy
func (h *PolicyHandler) GetPolicy(c *gin.Context) {
	policy, err := h.policySvc.Get(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, policy)
}

// UpdatePolicy 更新借阅策略（version 乐观锁）
// PUT /api/v1/policy
func (h *PolicyHandler) UpdatePolicy(c *gin.Context) {
	var req dto.UpdatePolicyRequest
	if !MustBindJSON(c, &req) {
		return
	}

	policy, err := h.policySvc.Update(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, policy)
}
