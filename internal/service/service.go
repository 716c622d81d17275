package service

import (
	"context"
	"io"
	"os"

	"go.uber.org/zap"

	"edocs/backend/config"
	"edocs/backend/internal/model"
	"edocs/backend/internal/repository"
)

// FileStore 上传文件存储
type FileStore interface {
	Save(key string, r io.Reader) (int64, error)
	Open(key string) (*os.File, error)
	Remove(key string) error
}

// Notifier 邮件通知
type Notifier interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SessionRevoker 撤销用户的全部登录会话
type SessionRevoker interface {
	RevokeUser(ctx context.Context, userID string) error
}

// Service 所有 Service 的聚合入口
type Service struct {
	Account    AccountService
	Onboarding OnboardingService
	Auth       AuthService
	Document   DocumentService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	catalog *model.Catalog,
	files FileStore,
	notifier Notifier,
	sessions SessionRevoker,
	logger *zap.Logger,
) *Service {
	return &Service{
		Account:    NewAccountService(repo, catalog, files, sessions, logger),
		Onboarding: NewOnboardingService(cfg, repo, catalog, logger),
		Auth:       NewAuthService(cfg, repo, logger),
		Document:   NewDocumentService(cfg, repo, catalog, files, notifier, logger),
	}
}
