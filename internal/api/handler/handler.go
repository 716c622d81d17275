package handler

import (
	"go.uber.org/zap"

	"edocs/backend/internal/model"
	"edocs/backend/internal/service"
	"edocs/backend/internal/session"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth       *AuthHandler
	Onboarding *OnboardingHandler
	Profile    *ProfileHandler
	Account    *AccountHandler
	Document   *DocumentHandler
	Dashboard  *DashboardHandler
	Catalog    *CatalogHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service, sessions *session.Manager, catalog *model.Catalog, logger *zap.Logger) *Handler {
	return &Handler{
		Auth:       NewAuthHandler(svc.Auth, svc.Account, sessions, logger),
		Onboarding: NewOnboardingHandler(svc.Onboarding, sessions, catalog, logger),
		Profile:    NewProfileHandler(svc.Account, svc.Auth, sessions, logger),
		Account:    NewAccountHandler(svc.Account),
		Document:   NewDocumentHandler(svc.Document),
		Dashboard:  NewDashboardHandler(svc.Account, svc.Document),
		Catalog:    NewCatalogHandler(catalog),
	}
}
