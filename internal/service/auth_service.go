package service

import (
	"context"
	"errors"
	"unicode"

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

var (
	ErrInvalidCredentials = errors.New("密码错误")
	ErrOnboardingRequired = errors.New("账号尚未激活，请先完成激活")
	ErrOldPasswordWrong   = errors.New("当前密码错误")
	ErrWeakPassword       = errors.New("密码需为 8-20 位，且同时包含字母和数字")
)

const (
	passwordMinLen = 8
	passwordMaxLen = 20
)

// AuthService 认证业务接口
type AuthService interface {
	// Login 按邮箱或学工号登录，成功返回写入会话的用户信息
	Login(ctx context.Context, req *dto.LoginRequest) (*session.Principal, error)
	ChangePassword(ctx context.Context, email string, req *dto.ChangePasswordRequest) error
}

type authService struct {
	repo       *repository.Repository
	bcryptCost int
	logger     *zap.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) AuthService {
	return &authService{
		repo:       repo,
		bcryptCost: cfg.Auth.BcryptCost,
		logger:     logger,
	}
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*session.Principal, error) {
	// 1. 查询用户（邮箱优先，其次学工号）
	user, err := findByIdentifier(ctx, s.repo, req.Identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.LoginAttemptsTotal.WithLabelValues("not_found").Inc()
			return nil, ErrAccountNotFound
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	switch acc := user.Account().(type) {
	case model.PendingAccount:
		// 2. 未激活账号转入激活向导
		metrics.LoginAttemptsTotal.WithLabelValues("pending").Inc()
		return nil, ErrOnboardingRequired

	case model.ActiveAccount:
		// 3. 验证密码 (bcrypt)
		if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)); err != nil {
			metrics.LoginAttemptsTotal.WithLabelValues("bad_password").Inc()
			return nil, ErrInvalidCredentials
		}

		metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
		s.logger.Info("用户登录", zap.String("id", acc.ID), zap.String("role", string(acc.Role)))
		return principalOf(acc), nil
	}

	return nil, ErrAccountNotFound
}

func (s *authService) ChangePassword(ctx context.Context, email string, req *dto.ChangePasswordRequest) error {
	user, err := s.repo.User.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		s.logger.Error("查询用户失败", zap.String("email", email), zap.Error(err))
		return err
	}

	acc, ok := user.Account().(model.ActiveAccount)
	if !ok {
		return ErrOnboardingRequired
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return ErrOldPasswordWrong
	}
	if err := validatePassword(req.NewPassword); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.bcryptCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return err
	}
	if _, err := s.repo.User.UpdatePassword(ctx, acc.Email, string(hash)); err != nil {
		s.logger.Error("更新密码失败", zap.String("id", acc.ID), zap.Error(err))
		return err
	}

	s.logger.Info("用户修改密码", zap.String("id", acc.ID))
	return nil
}

// ── 辅助函数 ──

// validatePassword 密码长度 8-20，至少包含一个字母和一个数字
func validatePassword(pw string) error {
	n := len([]rune(pw))
	if n < passwordMinLen || n > passwordMaxLen {
		return ErrWeakPassword
	}
	var hasLetter, hasDigit bool
	for _, r := range pw {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return ErrWeakPassword
	}
	return nil
}

// principalOf 构造会话中的用户信息，不包含密码哈希
func principalOf(acc model.ActiveAccount) *session.Principal {
	p := &session.Principal{
		ID:         acc.ID,
		Email:      acc.Email,
		Name:       acc.Name,
		Phone:      acc.Phone,
		Gender:     acc.Gender,
		Department: acc.Department,
		Role:       acc.Role,
	}
	if !acc.DOB.IsZero() {
		p.DOB = acc.DOB.Format(dateLayout)
	}
	return p
}

// RefreshPrincipal 资料修改后重新读取会话中的用户信息
func RefreshPrincipal(ctx context.Context, accounts AccountService, id string) (*session.Principal, error) {
	user, err := accounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	acc, ok := user.Account().(model.ActiveAccount)
	if !ok {
		return nil, ErrOnboardingRequired
	}
	return principalOf(acc), nil
}
