package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"edocs/backend/config"
	"edocs/backend/internal/api/handler"
	"edocs/backend/internal/api/middleware"
	"edocs/backend/internal/model"
	"edocs/backend/internal/session"
	"edocs/backend/pkg/redis"
)

const (
	// 登录与激活接口的限流：每个 IP 每分钟 20 次
	authRateLimit  = 20
	authRateWindow = time.Minute
	// 非上传接口的请求体上限
	jsonBodyLimit = 1 << 20
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时不做限流
func Setup(cfg *config.Config, h *handler.Handler, sessions *session.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS))

	// ── 健康检查与监控 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	jsonLimit := middleware.BodyLimit(jsonBodyLimit)
	// multipart 额外留出 1MB 给表单字段
	uploadLimit := middleware.BodyLimit(cfg.Storage.MaxUploadBytes() + 1<<20)
	authLimit := middleware.RateLimit(rdb, authRateLimit, authRateWindow, logger)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.Session(sessions))
	{
		v1.GET("/catalog", h.Catalog.GetCatalog)
		v1.GET("/home", h.Auth.Home)

		// 认证模块
		auth := v1.Group("/auth")
		{
			auth.POST("/login", authLimit, jsonLimit, h.Auth.Login)
			auth.POST("/logout", h.Auth.Logout)
		}

		// 账号激活向导（无需登录）
		onboarding := v1.Group("/onboarding")
		{
			onboarding.GET("/email", h.Onboarding.View(session.StepEmail))
			onboarding.GET("/name", h.Onboarding.View(session.StepName))
			onboarding.GET("/birth-gender", h.Onboarding.View(session.StepBirthGender))
			onboarding.GET("/id-department", h.Onboarding.View(session.StepIDDepartment))
			onboarding.GET("/validate", h.Onboarding.View(session.StepValidation))
			onboarding.GET("/password", h.Onboarding.View(session.StepPassword))

			onboarding.POST("/email", authLimit, jsonLimit, h.Onboarding.SubmitEmail)
			onboarding.POST("/name", jsonLimit, h.Onboarding.SubmitName)
			onboarding.POST("/birth-gender", jsonLimit, h.Onboarding.SubmitBirthGender)
			onboarding.POST("/id-department", authLimit, jsonLimit, h.Onboarding.SubmitIDDepartment)
			onboarding.POST("/validate", authLimit, jsonLimit, h.Onboarding.SubmitValidation)
			onboarding.POST("/password", jsonLimit, h.Onboarding.SubmitPassword)
		}

		// 需要登录的路由
		authorized := v1.Group("")
		authorized.Use(middleware.RequireLogin())
		{
			// 个人资料
			me := authorized.Group("/me")
			{
				me.GET("", h.Profile.GetMe)
				me.PUT("", jsonLimit, h.Profile.UpdateMe)
				me.DELETE("", h.Profile.DeleteMe)
				me.PUT("/password", jsonLimit, h.Profile.ChangePassword)
				me.GET("/picture", h.Profile.GetPicture)
				me.POST("/picture", uploadLimit, h.Profile.UploadPicture)
				me.DELETE("/picture", h.Profile.DeletePicture)
			}

			authorized.GET("/dashboard", h.Dashboard.Dashboard)

			// 申请流转（审批人权限在 Service 层按申请类型校验）
			documents := authorized.Group("/documents")
			{
				documents.POST("", uploadLimit, h.Document.Submit)
				documents.GET("/mine", h.Document.ListMine)
				documents.GET("/queue", middleware.RoleAuth(model.RoleOfficeStaff, model.RoleHOD), h.Document.Queue)
				documents.GET("/:appNo", h.Document.Get)
				documents.GET("/:appNo/file", h.Document.Download)
				documents.POST("/:appNo/preview", h.Document.Preview)
				documents.POST("/:appNo/approve", h.Document.Approve)
				documents.POST("/:appNo/reject", jsonLimit, h.Document.Reject)
				documents.DELETE("/:appNo", h.Document.Delete)
			}

			// 办公室
			office := authorized.Group("/office")
			office.Use(middleware.RoleAuth(model.RoleOfficeStaff))
			{
				office.POST("/accounts", jsonLimit, h.Account.CreateAccount)
				office.GET("/accounts", h.Account.ListAccounts)
				office.POST("/accounts/import", uploadLimit, h.Account.ImportAccounts)
				office.DELETE("/accounts/:id", h.Account.DeleteAccount)
				office.POST("/accounts/:id/reset", h.Account.ResetAccount)

				office.GET("/reports", h.Document.Reports)
				office.GET("/reports/export", h.Document.ExportReports)
			}
		}
	}

	return r
}
