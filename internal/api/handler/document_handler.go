package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"edocs/backend/internal/dto"
	"edocs/backend/internal/service"
	"edocs/backend/pkg/response"
)

// DocumentHandler 申请流转 HTTP 处理器
type DocumentHandler struct {
	docSvc service.DocumentService
}

// NewDocumentHandler 创建 DocumentHandler
func NewDocumentHandler(docSvc service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docSvc: docSvc}
}

// Submit 提交申请（multipart：app_type、app_title、description、file）
// POST /api/v1/documents
func (h *DocumentHandler) Submit(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	var req dto.SubmitDocumentRequest
	if err := c.ShouldBind(&req); err != nil {
		if isBodyTooLarge(err) {
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodeBodyTooLarge, "请求体过大")
			return
		}
		response.ErrorWithData(c, http.StatusBadRequest, response.CodeParamInvalid, "参数校验失败", req)
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		response.ErrorWithData(c, http.StatusBadRequest, response.CodeParamInvalid, "请选择附件", req)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, response.CodeParamInvalid, "无法读取上传文件")
		return
	}
	defer f.Close()

	doc, err := h.docSvc.Submit(c.Request.Context(), p.Email, &req, fh.Filename, f)
	if err != nil {
		h.handleDocumentError(c, err)
		return
	}
	response.Created(c, doc)
}

// ListMine 当前用户提交的申请
// GET /api/v1/documents/mine
func (h *DocumentHandler) ListMine(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	docs, err := h.docSvc.ListMine(c.Request.Context(), p.Email)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, gin.H{"list": docs})
}

// Queue 当前角色待审批的申请
// GET /api/v1/documents/queue
func (h *DocumentHandler) Queue(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	docs, err := h.docSvc.ListPendingForRole(c.Request.Context(), p.Role)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, gin.H{"list": docs})
}

// Get 申请详情
// GET /api/v1/documents/:appNo
func (h *DocumentHandler) Get(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	doc, err := h.docSvc.Get(c.Request.Context(), p, c.Param("appNo"))
	if err != nil {
		h.handleDocumentError(c, err)
		return
	}
	response.OK(c, doc)
}

// Download 下载申请附件
// GET /api/v1/documents/:appNo/file
func (h *DocumentHandler) Download(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	f, name, err := h.docSvc.OpenFile(c.Request.Context(), p, c.Param("appNo"))
	if err != nil {
		h.handleDocumentError(c, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		response.InternalError(c)
		return
	}
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(name))
	http.ServeContent(c.Writer, c.Request, name, info.ModTime(), f)
}

// Preview 审批人打开申请，状态变为 Under Process
// POST /api/v1/documents/:appNo/preview
func (h *DocumentHandler) Preview(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	doc, err := h.docSvc.TransitionToUnderProcess(c.Request.Context(), p, c.Param("appNo"))
	if err != nil {
		h.handleDocumentError(c, err)
		return
	}
	response.OK(c, doc)
}

// Approve 通过申请
// POST /api/v1/documents/:appNo/approve
func (h *DocumentHandler) Approve(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	doc, err := h.docSvc.Approve(c.Request.Context(), p, c.Param("appNo"))
	if err != nil {
		h.handleDocumentError(c, err)
		return
	}
	response.OK(c, doc)
}

// Reject 驳回申请，失败时回显申请编号与理由
// POST /api/v1/documents/:appNo/reject
func (h *DocumentHandler) Reject(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	appNo := c.Param("appNo")
	var req dto.RejectDocumentRequest
	if err := c.ShouldBind(&req); err != nil {
		response.ErrorWithData(c, http.StatusBadRequest, response.CodeParamInvalid, "参数校验失败",
			dto.RejectFailure{AppNo: appNo, Reason: req.Reason})
		return
	}

	doc, err := h.docSvc.Reject(c.Request.Context(), p, appNo, req.Reason)
	if err != nil {
		if errors.Is(err, service.ErrRejectReasonRequired) {
			response.ErrorWithData(c, http.StatusUnprocessableEntity, 14005, err.Error(),
				dto.RejectFailure{AppNo: appNo, Reason: req.Reason})
			return
		}
		h.handleDocumentError(c, err)
		return
	}
	response.OK(c, doc)
}

// Delete 删除申请及附件
// DELETE /api/v1/documents/:appNo
func (h *DocumentHandler) Delete(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	result, err := h.docSvc.Delete(c.Request.Context(), p, c.Param("appNo"))
	if err != nil {
		h.handleDocumentError(c, err)
		return
	}
	response.OK(c, result)
}

// Reports 申请报表检索
// GET /api/v1/office/reports?q=
func (h *DocumentHandler) Reports(c *gin.Context) {
	var req dto.ReportSearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeParamInvalid, "参数校验失败", err.Error())
		return
	}

	docs, err := h.docSvc.SearchReports(c.Request.Context(), req.Query)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, gin.H{"query": strings.TrimSpace(req.Query), "list": docs})
}

// ExportReports 导出申请报表
// GET /api/v1/office/reports/export?q=
func (h *DocumentHandler) ExportReports(c *gin.Context) {
	buf, filename, err := h.docSvc.ExportReports(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.handleDocumentError(c, err)
		return
	}

	// 设置下载响应头
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (h *DocumentHandler) handleDocumentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrDocumentNotFound):
		response.NotFound(c, 14001, err.Error())
	case errors.Is(err, service.ErrDocumentForbidden):
		response.Forbidden(c, 14002, err.Error())
	case errors.Is(err, service.ErrDocumentFinalized):
		response.Conflict(c, 14003, err.Error())
	case errors.Is(err, service.ErrDocTypeInvalid),
		errors.Is(err, service.ErrFileTypeInvalid):
		response.Error(c, http.StatusUnprocessableEntity, 14004, err.Error())
	case errors.Is(err, service.ErrRejectReasonRequired):
		response.Error(c, http.StatusUnprocessableEntity, 14005, err.Error())
	case errors.Is(err, service.ErrFileTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeBodyTooLarge, err.Error())
	case errors.Is(err, service.ErrAccountNotFound):
		response.NotFound(c, 13001, "账号不存在")
	case errors.Is(err, service.ErrOnboardingRequired):
		response.Forbidden(c, 11005, err.Error())
	default:
		response.InternalError(c)
	}
}
