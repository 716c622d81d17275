package handler

import (
	"github.com/gin-gonic/gin"

	"edocs/backend/internal/dto"
	"edocs/backend/internal/model"
	"edocs/backend/internal/service"
	"edocs/backend/pkg/response"
)

// DashboardHandler 各角色首页数据
type DashboardHandler struct {
	accountSvc service.AccountService
	docSvc     service.DocumentService
}

// NewDashboardHandler 创建 DashboardHandler
func NewDashboardHandler(accountSvc service.AccountService, docSvc service.DocumentService) *DashboardHandler {
	return &DashboardHandler{accountSvc: accountSvc, docSvc: docSvc}
}

// Dashboard 资料 + 我的申请；审批角色附带待审批队列，办公室附带账号统计
// GET /api/v1/dashboard
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	profile, err := h.accountSvc.Profile(ctx, p.ID)
	if err != nil {
		response.InternalError(c)
		return
	}
	mine, err := h.docSvc.ListMine(ctx, p.Email)
	if err != nil {
		response.InternalError(c)
		return
	}

	resp := dto.DashboardResponse{Role: string(p.Role), Profile: *profile, Mine: mine}

	switch p.Role {
	case model.RoleOfficeStaff:
		counts, err := h.accountSvc.RoleCounts(ctx)
		if err != nil {
			response.InternalError(c)
			return
		}
		resp.Accounts = counts
		fallthrough
	case model.RoleHOD:
		queue, err := h.docSvc.ListPendingForRole(ctx, p.Role)
		if err != nil {
			response.InternalError(c)
			return
		}
		resp.Queue = queue
	case model.RoleFaculty, model.RoleStudent:
	}

	response.OK(c, resp)
}
