package httptransport

import (
	"github.com/gin-gonic/gin"

	"tempmail/bot/internal/service"
)

// AdminHandler 管理API处理器
type AdminHandler struct {
	adminService *service.AdminService
}

// NewAdminHandler 创建管理处理器
func NewAdminHandler(adminService *service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// BroadcastRequest 广播请求
type BroadcastRequest struct {
	Text string `json:"text" binding:"required"`
}

// GetStats godoc
// @Summary 获取运行统计
// @Description 用户总数、活跃会话数与所有邮箱地址（需要管理员权限）
// @Tags Admin
// @Produce json
// @Success 200 {object} service.Stats
// @Failure 403 {object} Response
// @Router /v1/admin/stats [get]
func (h *AdminHandler) GetStats(c *gin.Context) {
	Success(c, h.adminService.Stats())
}

// Broadcast godoc
// @Summary 广播消息
// @Description 向所有登记过的用户推送一条消息，单个用户失败只计数
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body BroadcastRequest true "广播内容"
// @Success 200 {object} service.BroadcastResult
// @Failure 400 {object} Response
// @Router /v1/admin/broadcast [post]
func (h *AdminHandler) Broadcast(c *gin.Context) {
	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	result, err := h.adminService.Broadcast(c.Request.Context(), req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, result)
}
