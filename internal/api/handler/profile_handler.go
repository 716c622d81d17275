package handler

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"edocs/backend/internal/dto"
	"edocs/backend/internal/model"
	"edocs/backend/internal/service"
	"edocs/backend/internal/session"
	"edocs/backend/pkg/response"
)

// ProfileHandler 当前用户资料、密码与头像
type ProfileHandler struct {
	accountSvc service.AccountService
	authSvc    service.AuthService
	sessions   *session.Manager
	logger     *zap.Logger
}

// NewProfileHandler 创建 ProfileHandler
func NewProfileHandler(accountSvc service.AccountService, authSvc service.AuthService, sessions *session.Manager, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{accountSvc: accountSvc, authSvc: authSvc, sessions: sessions, logger: logger}
}

// GetMe 当前用户资料
// GET /api/v1/me
func (h *ProfileHandler) GetMe(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	profile, err := h.accountSvc.Profile(c.Request.Context(), p.ID)
	if err != nil {
		h.handleProfileError(c, err, nil)
		return
	}
	response.OK(c, profile)
}

// UpdateMe 修改姓名、生日、性别、院系，成功后刷新会话中的用户信息
// PUT /api/v1/me
func (h *ProfileHandler) UpdateMe(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	var req dto.EditProfileRequest
	if err := c.ShouldBind(&req); err != nil {
		response.ErrorWithData(c, http.StatusBadRequest, response.CodeParamInvalid, "参数校验失败", req)
		return
	}

	found, err := h.accountSvc.EditProfile(c.Request.Context(), p.Email, &req)
	if err != nil {
		h.handleProfileError(c, err, req)
		return
	}
	if !found {
		response.NotFound(c, 13001, "账号不存在")
		return
	}

	refreshed, err := service.RefreshPrincipal(c.Request.Context(), h.accountSvc, p.ID)
	if err != nil {
		h.handleProfileError(c, err, nil)
		return
	}
	s := session.FromContext(c)
	s.Data.Principal = refreshed
	if !saveSession(c, h.sessions, s, h.logger) {
		return
	}

	profile, err := h.accountSvc.Profile(c.Request.Context(), p.ID)
	if err != nil {
		h.handleProfileError(c, err, nil)
		return
	}
	response.OK(c, profile)
}

// DeleteMe 注销自己的账号并退出登录
// DELETE /api/v1/me
func (h *ProfileHandler) DeleteMe(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	warning, err := h.accountSvc.Delete(c.Request.Context(), p.ID)
	if err != nil {
		response.InternalError(c)
		return
	}
	if err := h.sessions.Destroy(c, session.FromContext(c)); err != nil {
		h.logger.Warn("删除会话失败", zap.String("id", p.ID), zap.Error(err))
	}
	response.OK(c, gin.H{"redirect": model.LoginPath, "warning": warning})
}

// ChangePassword 修改密码
// PUT /api/v1/me/password
func (h *ProfileHandler) ChangePassword(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	var req dto.ChangePasswordRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, response.CodeParamInvalid, "参数校验失败")
		return
	}

	if err := h.authSvc.ChangePassword(c.Request.Context(), p.Email, &req); err != nil {
		h.handleProfileError(c, err, nil)
		return
	}
	response.OK(c, nil)
}

// UploadPicture 上传头像（multipart 字段 picture）
// POST /api/v1/me/picture
func (h *ProfileHandler) UploadPicture(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("picture")
	if err != nil {
		if isBodyTooLarge(err) {
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodeBodyTooLarge, "请求体过大")
			return
		}
		response.BadRequest(c, response.CodeParamInvalid, "请选择头像文件")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, response.CodeParamInvalid, "无法读取上传文件")
		return
	}
	defer f.Close()

	if _, err := h.accountSvc.UploadPicture(c.Request.Context(), p.ID, fh.Filename, f); err != nil {
		h.handleProfileError(c, err, nil)
		return
	}
	response.Created(c, gin.H{"has_picture": true})
}

// DeletePicture 删除头像
// DELETE /api/v1/me/picture
func (h *ProfileHandler) DeletePicture(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	warning, err := h.accountSvc.DeletePicture(c.Request.Context(), p.ID)
	if err != nil {
		h.handleProfileError(c, err, nil)
		return
	}
	response.OK(c, dto.WarningResponse{Warning: warning})
}

// GetPicture 读取头像文件
// GET /api/v1/me/picture
func (h *ProfileHandler) GetPicture(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	f, err := h.accountSvc.OpenPicture(c.Request.Context(), p.ID)
	if err != nil {
		h.handleProfileError(c, err, nil)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		response.InternalError(c)
		return
	}
	http.ServeContent(c.Writer, c.Request, filepath.Base(f.Name()), info.ModTime(), f)
}

func (h *ProfileHandler) handleProfileError(c *gin.Context, err error, echo interface{}) {
	switch {
	case errors.Is(err, service.ErrAccountNotFound):
		response.NotFound(c, 13001, "账号不存在")
	case errors.Is(err, service.ErrPictureNotFound):
		response.NotFound(c, 13002, err.Error())
	case errors.Is(err, service.ErrDOBInvalid),
		errors.Is(err, service.ErrDepartmentInvalid):
		response.ErrorWithData(c, http.StatusUnprocessableEntity, 13003, err.Error(), echo)
	case errors.Is(err, service.ErrFileTypeInvalid):
		response.BadRequest(c, 13004, err.Error())
	case errors.Is(err, service.ErrFileTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeBodyTooLarge, err.Error())
	case errors.Is(err, service.ErrOldPasswordWrong):
		response.Error(c, http.StatusUnprocessableEntity, 11003, err.Error())
	case errors.Is(err, service.ErrWeakPassword):
		response.Error(c, http.StatusUnprocessableEntity, 11004, err.Error())
	case errors.Is(err, service.ErrOnboardingRequired):
		response.Forbidden(c, 11005, err.Error())
	default:
		response.InternalError(c)
	}
}
