package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"edocs/backend/internal/dto"
	"edocs/backend/internal/service"
	"edocs/backend/pkg/response"
)

// AccountHandler 办公室账号管理 HTTP 处理器
type AccountHandler struct {
	accountSvc service.AccountService
}

// NewAccountHandler 创建 AccountHandler
func NewAccountHandler(accountSvc service.AccountService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc}
}

// CreateAccount 创建待激活账号
// POST /api/v1/office/accounts
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req dto.CreateAccountRequest
	if err := c.ShouldBind(&req); err != nil {
		response.ErrorWithData(c, http.StatusBadRequest, response.CodeParamInvalid, "参数校验失败", req)
		return
	}

	acc, err := h.accountSvc.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleAccountError(c, err, req)
		return
	}
	response.Created(c, acc)
}

// ListAccounts 账号列表，带 q 参数时按关键字检索
// GET /api/v1/office/accounts?q=
func (h *AccountHandler) ListAccounts(c *gin.Context) {
	var req dto.AccountSearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, response.CodeParamInvalid, "参数校验失败")
		return
	}

	ctx := c.Request.Context()
	query := strings.TrimSpace(req.Query)
	var (
		accounts []dto.AccountResponse
		err      error
	)
	if query == "" {
		accounts, err = h.accountSvc.ListAll(ctx)
	} else {
		accounts, err = h.accountSvc.Search(ctx, query)
	}
	if err != nil {
		response.InternalError(c)
		return
	}

	counts, err := h.accountSvc.RoleCounts(ctx)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, dto.AccountListResponse{Query: query, Accounts: accounts, Counts: counts})
}

// ImportAccounts 从 Excel 批量创建账号（multipart 字段 file）
// POST /api/v1/office/accounts/import
func (h *AccountHandler) ImportAccounts(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		if isBodyTooLarge(err) {
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodeBodyTooLarge, "请求体过大")
			return
		}
		response.BadRequest(c, response.CodeParamInvalid, "请选择 Excel 文件")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, response.CodeParamInvalid, "无法读取上传文件")
		return
	}
	defer f.Close()

	result, err := h.accountSvc.ImportAccounts(c.Request.Context(), f)
	if err != nil {
		h.handleAccountError(c, err, nil)
		return
	}
	response.OK(c, result)
}

// DeleteAccount 删除账号，账号不存在时同样返回成功
// DELETE /api/v1/office/accounts/:id
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, response.CodeParamInvalid, "学工号不能为空")
		return
	}

	warning, err := h.accountSvc.Delete(c.Request.Context(), id)
	if err != nil {
		h.handleAccountError(c, err, nil)
		return
	}
	response.OK(c, dto.WarningResponse{Warning: warning})
}

// ResetAccount 清空激活资料，账号回到待激活状态
// POST /api/v1/office/accounts/:id/reset
func (h *AccountHandler) ResetAccount(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, response.CodeParamInvalid, "学工号不能为空")
		return
	}

	if err := h.accountSvc.ResetToPending(c.Request.Context(), id); err != nil {
		h.handleAccountError(c, err, nil)
		return
	}
	response.OK(c, nil)
}

func (h *AccountHandler) handleAccountError(c *gin.Context, err error, echo interface{}) {
	switch {
	case errors.Is(err, service.ErrAccountNotFound):
		response.NotFound(c, 13001, "账号不存在")
	case errors.Is(err, service.ErrAccountIDExists):
		response.ErrorWithData(c, http.StatusConflict, 13101, err.Error(), echo)
	case errors.Is(err, service.ErrAccountEmailExists):
		response.ErrorWithData(c, http.StatusConflict, 13102, err.Error(), echo)
	case errors.Is(err, service.ErrAccountIDInvalid),
		errors.Is(err, service.ErrRoleInvalid),
		errors.Is(err, service.ErrPhoneInvalid):
		response.ErrorWithData(c, http.StatusUnprocessableEntity, 13103, err.Error(), echo)
	case errors.Is(err, service.ErrImportFileInvalid),
		errors.Is(err, service.ErrImportHeaderInvalid),
		errors.Is(err, service.ErrImportTooManyRows),
		errors.Is(err, service.ErrImportNothingToWrite):
		response.BadRequest(c, 13104, err.Error())
	default:
		response.InternalError(c)
	}
}
