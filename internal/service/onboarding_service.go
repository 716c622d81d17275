package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"edocs/backend/config"
	"edocs/backend/internal/dto"
	"edocs/backend/internal/model"
	"edocs/backend/internal/repository"
	"edocs/backend/internal/session"
	"edocs/backend/pkg/metrics"
)

// ── 激活向导业务错误 ──

var (
	ErrOnboardingEmailUnknown  = errors.New("该邮箱未登记，请联系办公室")
	ErrOnboardingAlreadyActive = errors.New("该账号已激活，请直接登录")
	ErrOnboardingIDMismatch    = errors.New("学工号与登记信息不一致")
	ErrOnboardingCodeMismatch  = errors.New("验证码错误")
	ErrOnboardingOutOfOrder    = errors.New("请按顺序完成激活步骤")
)

// onboardingPaths 各步骤对应的前端路由
var onboardingPaths = map[session.Step]string{
	session.StepEmail:        "/onboarding/email",
	session.StepName:         "/onboarding/name",
	session.StepBirthGender:  "/onboarding/birth-gender",
	session.StepIDDepartment: "/onboarding/id-department",
	session.StepValidation:   "/onboarding/validate",
	session.StepPassword:     "/onboarding/password",
}

// OnboardingService 账号激活向导
//
// 步骤：邮箱 → 姓名 → 生日与性别 → 学工号与院系 → 验证码 → 设置密码。
// 向导数据保存在会话中的 session.Onboarding，每一步只能在前一步完成后访问；
// 重新提交较早的步骤会使之后的步骤失效。
type OnboardingService interface {
	View(ctx context.Context, state *session.Onboarding, step session.Step) (*dto.OnboardingStepResponse, error)
	SubmitEmail(ctx context.Context, state *session.Onboarding, req *dto.OnboardingEmailRequest) (*dto.OnboardingStepResponse, error)
	SubmitName(ctx context.Context, state *session.Onboarding, req *dto.OnboardingNameRequest) (*dto.OnboardingStepResponse, error)
	SubmitBirthGender(ctx context.Context, state *session.Onboarding, req *dto.OnboardingBirthGenderRequest) (*dto.OnboardingStepResponse, error)
	SubmitIDDepartment(ctx context.Context, state *session.Onboarding, req *dto.OnboardingIDDepartmentRequest) (*dto.OnboardingStepResponse, error)
	SubmitValidation(ctx context.Context, state *session.Onboarding, req *dto.OnboardingValidateRequest) (*dto.OnboardingStepResponse, error)
	// SubmitPassword 完成激活，成功后调用方应清除会话中的向导数据
	SubmitPassword(ctx context.Context, state *session.Onboarding, req *dto.OnboardingPasswordRequest) error
}

type onboardingService struct {
	repo       *repository.Repository
	catalog    *model.Catalog
	bcryptCost int
	logger     *zap.Logger
	now        func() time.Time
}

// NewOnboardingService 创建 OnboardingService 实例
func NewOnboardingService(cfg *config.Config, repo *repository.Repository, catalog *model.Catalog, logger *zap.Logger) OnboardingService {
	return &onboardingService{
		repo:       repo,
		catalog:    catalog,
		bcryptCost: cfg.Auth.BcryptCost,
		logger:     logger,
		now:        time.Now,
	}
}

// OnboardingPath 向导步骤的前端路由
func OnboardingPath(step session.Step) string {
	return onboardingPaths[step]
}

// ────────────────────── View ──────────────────────

func (s *onboardingService) View(_ context.Context, state *session.Onboarding, step session.Step) (*dto.OnboardingStepResponse, error) {
	if !state.Allows(step) {
		return nil, ErrOnboardingOutOfOrder
	}
	resp := &dto.OnboardingStepResponse{
		Step:  step.String(),
		State: stateOf(state),
	}
	if step == session.StepIDDepartment {
		resp.Departments = s.catalog.Departments()
	}
	return resp, nil
}

// ────────────────────── Step 1: email ──────────────────────

func (s *onboardingService) SubmitEmail(ctx context.Context, state *session.Onboarding, req *dto.OnboardingEmailRequest) (*dto.OnboardingStepResponse, error) {
	email := strings.TrimSpace(req.Email)
	user, err := s.repo.User.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOnboardingEmailUnknown
		}
		s.logger.Error("查询账号失败", zap.String("email", email), zap.Error(err))
		return nil, err
	}
	if !user.IsPending() {
		return nil, ErrOnboardingAlreadyActive
	}

	state.Email = user.Email
	return s.advance(state, session.StepEmail), nil
}

// ────────────────────── Step 2: name ──────────────────────

func (s *onboardingService) SubmitName(_ context.Context, state *session.Onboarding, req *dto.OnboardingNameRequest) (*dto.OnboardingStepResponse, error) {
	if !state.Allows(session.StepName) {
		return nil, ErrOnboardingOutOfOrder
	}

	first := strings.TrimSpace(req.FirstName)
	last := strings.TrimSpace(req.LastName)
	state.Name = strings.TrimSpace(first + " " + last)
	return s.advance(state, session.StepName), nil
}

// ────────────────────── Step 3: birth date & gender ──────────────────────

func (s *onboardingService) SubmitBirthGender(_ context.Context, state *session.Onboarding, req *dto.OnboardingBirthGenderRequest) (*dto.OnboardingStepResponse, error) {
	if !state.Allows(session.StepBirthGender) {
		return nil, ErrOnboardingOutOfOrder
	}

	dob, err := parseDOB(req.DOB, s.now())
	if err != nil {
		return nil, err
	}
	state.DOB = dob.Format(dateLayout)
	state.Gender = strings.TrimSpace(req.Gender)
	return s.advance(state, session.StepBirthGender), nil
}

// ────────────────────── Step 4: id & department ──────────────────────

func (s *onboardingService) SubmitIDDepartment(ctx context.Context, state *session.Onboarding, req *dto.OnboardingIDDepartmentRequest) (*dto.OnboardingStepResponse, error) {
	if !state.Allows(session.StepIDDepartment) {
		return nil, ErrOnboardingOutOfOrder
	}

	user, err := s.pendingUser(ctx, state.Email)
	if err != nil {
		return nil, err
	}
	// 学工号与验证码均要求与登记信息完全一致，不做空白裁剪
	if req.IDNo != user.ID {
		return nil, ErrOnboardingIDMismatch
	}
	if !s.catalog.IsDepartment(req.Department) {
		return nil, ErrDepartmentInvalid
	}

	state.UserID = user.ID
	state.Department = req.Department
	return s.advance(state, session.StepIDDepartment), nil
}

// ────────────────────── Step 5: validation code ──────────────────────

func (s *onboardingService) SubmitValidation(ctx context.Context, state *session.Onboarding, req *dto.OnboardingValidateRequest) (*dto.OnboardingStepResponse, error) {
	if !state.Allows(session.StepValidation) {
		return nil, ErrOnboardingOutOfOrder
	}

	user, err := s.pendingUser(ctx, state.Email)
	if err != nil {
		return nil, err
	}
	if req.Code != ValidationCode(user.ID, user.Phone) {
		return nil, ErrOnboardingCodeMismatch
	}
	return s.advance(state, session.StepValidation), nil
}

// ValidationCode 验证码：学工号 + 登记手机号第 7 位起的部分
func ValidationCode(id, phone string) string {
	if len(phone) <= 6 {
		return id
	}
	return id + phone[6:]
}

// ────────────────────── Step 6: password ──────────────────────

func (s *onboardingService) SubmitPassword(ctx context.Context, state *session.Onboarding, req *dto.OnboardingPasswordRequest) error {
	if !state.Allows(session.StepPassword) {
		return ErrOnboardingOutOfOrder
	}
	if err := validatePassword(req.Password); err != nil {
		return err
	}

	user, err := s.pendingUser(ctx, state.Email)
	if err != nil {
		return err
	}
	dob, err := time.Parse(dateLayout, state.DOB)
	if err != nil {
		return ErrOnboardingOutOfOrder
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return err
	}

	// 角色与手机号以登记信息为准
	ok, err := s.repo.User.CompleteOnboarding(ctx, user.Email, &repository.OnboardingFields{
		ID:           user.ID,
		Name:         state.Name,
		DOB:          dob,
		Phone:        user.Phone,
		Gender:       state.Gender,
		Department:   state.Department,
		PasswordHash: string(hash),
		Role:         user.Role,
	})
	if err != nil {
		s.logger.Error("写入激活资料失败", zap.String("email", user.Email), zap.Error(err))
		return err
	}
	if !ok {
		return ErrOnboardingEmailUnknown
	}

	metrics.OnboardingCompletedTotal.Inc()
	s.logger.Info("账号激活完成", zap.String("id", user.ID))
	return nil
}

// ── 辅助函数 ──

// pendingUser 重新读取登记信息，账号在向导过程中被删除或已激活时中止
func (s *onboardingService) pendingUser(ctx context.Context, email string) (*model.User, error) {
	if email == "" {
		return nil, ErrOnboardingOutOfOrder
	}
	user, err := s.repo.User.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOnboardingEmailUnknown
		}
		s.logger.Error("查询账号失败", zap.String("email", email), zap.Error(err))
		return nil, err
	}
	if !user.IsPending() {
		return nil, ErrOnboardingAlreadyActive
	}
	return user, nil
}

func (s *onboardingService) advance(state *session.Onboarding, completed session.Step) *dto.OnboardingStepResponse {
	state.Complete(completed)
	next := completed + 1
	resp := &dto.OnboardingStepResponse{
		Step:  completed.String(),
		Next:  OnboardingPath(next),
		State: stateOf(state),
	}
	if next == session.StepIDDepartment {
		resp.Departments = s.catalog.Departments()
	}
	return resp
}

func stateOf(o *session.Onboarding) dto.OnboardingState {
	if o == nil {
		return dto.OnboardingState{Step: session.StepEmail.String()}
	}
	step := o.Step
	if step == 0 {
		step = session.StepEmail
	}
	return dto.OnboardingState{
		Step:       step.String(),
		Email:      o.Email,
		Name:       o.Name,
		DOB:        o.DOB,
		Gender:     o.Gender,
		IDNo:       o.UserID,
		Department: o.Department,
	}
}
