package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"edocs/backend/internal/dto"
	"edocs/backend/internal/model"
	"edocs/backend/internal/service"
	"edocs/backend/internal/session"
	"edocs/backend/pkg/response"
)

// AuthHandler 认证模块 HTTP 处理器
type AuthHandler struct {
	authSvc    service.AuthService
	accountSvc service.AccountService
	sessions   *session.Manager
	logger     *zap.Logger
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(authSvc service.AuthService, accountSvc service.AccountService, sessions *session.Manager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, accountSvc: accountSvc, sessions: sessions, logger: logger}
}

// Login 用户登录（邮箱或学工号）
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		response.ErrorWithData(c, http.StatusBadRequest, response.CodeParamInvalid, "参数校验失败",
			dto.LoginFailure{Identifier: req.Identifier})
		return
	}

	p, err := h.authSvc.Login(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOnboardingRequired):
			// 待激活账号直接进入激活向导
			response.OK(c, dto.RedirectResponse{Redirect: model.OnboardingEmailPath})
		case errors.Is(err, service.ErrAccountNotFound):
			response.ErrorWithData(c, http.StatusNotFound, 11001, "账号不存在",
				dto.LoginFailure{Identifier: req.Identifier, EmailError: true})
		case errors.Is(err, service.ErrInvalidCredentials):
			response.ErrorWithData(c, http.StatusUnauthorized, 11002, "密码错误",
				dto.LoginFailure{Identifier: req.Identifier, PasswordError: true})
		default:
			response.InternalError(c)
		}
		return
	}

	s := session.FromContext(c)
	s.Data = session.Data{Principal: p}
	if err := h.sessions.Rotate(c, s); err != nil {
		h.logger.Error("保存登录会话失败", zap.String("id", p.ID), zap.Error(err))
		response.InternalError(c)
		return
	}

	profile, err := h.accountSvc.Profile(c.Request.Context(), p.ID)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, dto.LoginResponse{Redirect: p.Role.LandingPath(), User: *profile})
}

// Logout 退出登录，无论会话是否存在都清除 Cookie
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.sessions.Destroy(c, session.FromContext(c)); err != nil {
		h.logger.Warn("删除会话失败", zap.Error(err))
	}
	response.OK(c, dto.RedirectResponse{Redirect: model.LoginPath})
}

// Home 按角色返回首页路由，未登录时返回登录页
// GET /api/v1/home
func (h *AuthHandler) Home(c *gin.Context) {
	p := session.FromContext(c).Data.Principal
	if p == nil {
		response.OK(c, dto.HomeResponse{Redirect: model.LoginPath})
		return
	}
	response.OK(c, dto.HomeResponse{
		Authenticated: true,
		Role:          string(p.Role),
		Redirect:      p.Role.LandingPath(),
	})
}
