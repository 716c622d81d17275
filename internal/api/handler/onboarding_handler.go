package handler

import (
	"context"
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

// OnboardingHandler 账号激活向导 HTTP 处理器
// 向导数据保存在会话中，每一步提交成功后写回会话
type OnboardingHandler struct {
	svc      service.OnboardingService
	sessions *session.Manager
	catalog  *model.Catalog
	logger   *zap.Logger
}

// NewOnboardingHandler 创建 OnboardingHandler
func NewOnboardingHandler(svc service.OnboardingService, sessions *session.Manager, catalog *model.Catalog, logger *zap.Logger) *OnboardingHandler {
	return &OnboardingHandler{svc: svc, sessions: sessions, catalog: catalog, logger: logger}
}

type stepFunc func(ctx context.Context, state *session.Onboarding) (*dto.OnboardingStepResponse, error)

// View 返回某一步的已填数据
// GET /api/v1/onboarding/<step>
func (h *OnboardingHandler) View(step session.Step) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := session.FromContext(c).Data.Onboarding
		resp, err := h.svc.View(c.Request.Context(), state, step)
		if err != nil {
			h.fail(c, step, state, err, nil)
			return
		}
		response.OK(c, resp)
	}
}

// SubmitEmail 第 1 步
// POST /api/v1/onboarding/email
func (h *OnboardingHandler) SubmitEmail(c *gin.Context) {
	var req dto.OnboardingEmailRequest
	bindErr := c.ShouldBind(&req)
	input := map[string]string{"email": req.Email}
	h.run(c, session.StepEmail, bindErr, input, func(ctx context.Context, st *session.Onboarding) (*dto.OnboardingStepResponse, error) {
		return h.svc.SubmitEmail(ctx, st, &req)
	})
}

// SubmitName 第 2 步
// POST /api/v1/onboarding/name
func (h *OnboardingHandler) SubmitName(c *gin.Context) {
	var req dto.OnboardingNameRequest
	bindErr := c.ShouldBind(&req)
	input := map[string]string{"fname": req.FirstName, "lname": req.LastName}
	h.run(c, session.StepName, bindErr, input, func(ctx context.Context, st *session.Onboarding) (*dto.OnboardingStepResponse, error) {
		return h.svc.SubmitName(ctx, st, &req)
	})
}

// SubmitBirthGender 第 3 步
// POST /api/v1/onboarding/birth-gender
func (h *OnboardingHandler) SubmitBirthGender(c *gin.Context) {
	var req dto.OnboardingBirthGenderRequest
	bindErr := c.ShouldBind(&req)
	input := map[string]string{"dob": req.DOB, "gender": req.Gender}
	h.run(c, session.StepBirthGender, bindErr, input, func(ctx context.Context, st *session.Onboarding) (*dto.OnboardingStepResponse, error) {
		return h.svc.SubmitBirthGender(ctx, st, &req)
	})
}

// SubmitIDDepartment 第 4 步
// POST /api/v1/onboarding/id-department
func (h *OnboardingHandler) SubmitIDDepartment(c *gin.Context) {
	var req dto.OnboardingIDDepartmentRequest
	bindErr := c.ShouldBind(&req)
	input := map[string]string{"idno": req.IDNo, "department": req.Department}
	h.run(c, session.StepIDDepartment, bindErr, input, func(ctx context.Context, st *session.Onboarding) (*dto.OnboardingStepResponse, error) {
		return h.svc.SubmitIDDepartment(ctx, st, &req)
	})
}

// SubmitValidation 第 5 步
// POST /api/v1/onboarding/validate
func (h *OnboardingHandler) SubmitValidation(c *gin.Context) {
	var req dto.OnboardingValidateRequest
	bindErr := c.ShouldBind(&req)
	input := map[string]string{"validNo": req.Code}
	h.run(c, session.StepValidation, bindErr, input, func(ctx context.Context, st *session.Onboarding) (*dto.OnboardingStepResponse, error) {
		return h.svc.SubmitValidation(ctx, st, &req)
	})
}

// SubmitPassword 第 6 步，成功后清除向导数据并跳转登录页
// POST /api/v1/onboarding/password
func (h *OnboardingHandler) SubmitPassword(c *gin.Context) {
	s := session.FromContext(c)
	var req dto.OnboardingPasswordRequest
	if err := c.ShouldBind(&req); err != nil {
		h.invalid(c, session.StepPassword, nil)
		return
	}

	if err := h.svc.SubmitPassword(c.Request.Context(), s.Data.Onboarding, &req); err != nil {
		h.fail(c, session.StepPassword, s.Data.Onboarding, err, nil)
		return
	}

	s.Data.Onboarding = nil
	if !saveSession(c, h.sessions, s, h.logger) {
		return
	}
	response.OK(c, dto.RedirectResponse{Redirect: model.LoginPath})
}

// run 在向导数据的副本上执行一步，成功后写回会话
func (h *OnboardingHandler) run(c *gin.Context, step session.Step, bindErr error, input map[string]string, call stepFunc) {
	s := session.FromContext(c)
	if bindErr != nil {
		h.invalid(c, step, input)
		return
	}

	var st session.Onboarding
	if s.Data.Onboarding != nil {
		st = *s.Data.Onboarding
	}
	resp, err := call(c.Request.Context(), &st)
	if err != nil {
		h.fail(c, step, s.Data.Onboarding, err, input)
		return
	}

	s.Data.Onboarding = &st
	if !saveSession(c, h.sessions, s, h.logger) {
		return
	}
	response.OK(c, resp)
}

func (h *OnboardingHandler) fail(c *gin.Context, step session.Step, state *session.Onboarding, err error, input map[string]string) {
	failure := dto.OnboardingFailure{Step: step.String(), Input: input}
	if step == session.StepIDDepartment {
		failure.Departments = h.catalog.Departments()
	}

	switch {
	case errors.Is(err, service.ErrOnboardingOutOfOrder):
		failure.Redirect = service.OnboardingPath(session.StepEmail)
		if state != nil && state.Step > session.StepEmail {
			failure.Redirect = service.OnboardingPath(state.Step)
		}
		response.ErrorWithData(c, http.StatusConflict, 12001, err.Error(), failure)
	case errors.Is(err, service.ErrOnboardingAlreadyActive):
		failure.Redirect = model.LoginPath
		response.ErrorWithData(c, http.StatusConflict, 12002, err.Error(), failure)
	case errors.Is(err, service.ErrOnboardingEmailUnknown):
		response.ErrorWithData(c, http.StatusUnprocessableEntity, 12003, err.Error(), failure)
	case errors.Is(err, service.ErrOnboardingIDMismatch):
		response.ErrorWithData(c, http.StatusUnprocessableEntity, 12004, err.Error(), failure)
	case errors.Is(err, service.ErrOnboardingCodeMismatch):
		response.ErrorWithData(c, http.StatusUnprocessableEntity, 12005, err.Error(), failure)
	case errors.Is(err, service.ErrDepartmentInvalid),
		errors.Is(err, service.ErrDOBInvalid),
		errors.Is(err, service.ErrWeakPassword):
		response.ErrorWithData(c, http.StatusUnprocessableEntity, 12006, err.Error(), failure)
	default:
		response.InternalError(c)
	}
}

// invalid 参数绑定失败，回显已填写的内容
func (h *OnboardingHandler) invalid(c *gin.Context, step session.Step, input map[string]string) {
	failure := dto.OnboardingFailure{Step: step.String(), Input: input}
	if step == session.StepIDDepartment {
		failure.Departments = h.catalog.Departments()
	}
	response.ErrorWithData(c, http.StatusBadRequest, response.CodeParamInvalid, "参数校验失败", failure)
}
