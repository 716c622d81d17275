package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"edocs/backend/config"
	"edocs/backend/internal/api/handler"
	"edocs/backend/internal/api/router"
	"edocs/backend/internal/model"
	"edocs/backend/internal/repository"
	"edocs/backend/internal/service"
	"edocs/backend/internal/session"
	"edocs/backend/pkg/database"
	"edocs/backend/pkg/jwt"
	applogger "edocs/backend/pkg/logger"
	"edocs/backend/pkg/mail"
	"edocs/backend/pkg/redis"
	"edocs/backend/pkg/storage"
)

func main() {
	// 0. 读取 .env（可选）
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "读取 .env 失败: %v\n", err)
	}

	// 1. 加载配置
	cfg, err := config.Load(os.Getenv("EDOCS_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（失败时会话保存在进程内，且不做限流）
	var store session.Store
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，会话改为进程内保存", zap.Error(err))
		rdb = nil
		store = session.NewMemoryStore()
	} else {
		store = session.NewRedisStore(rdb)
	}

	// 5. 上传目录与邮件
	files, err := storage.New(cfg.Storage.Root, cfg.Storage.MaxUploadBytes())
	if err != nil {
		logger.Fatal("初始化上传目录失败", zap.String("root", cfg.Storage.Root), zap.Error(err))
	}
	mailer := mail.NewMailer(&cfg.Mail, logger)
	if cfg.Feature.NotifyEnabled && !mailer.Configured() {
		logger.Warn("已开启审批通知，但 SMTP 未配置，邮件将不会发送")
	}

	// 6. 依赖注入: Repository → Service → Handler
	catalog := model.NewCatalog()
	repo := repository.NewRepository(db)
	sessions := session.NewManager(store, jwt.NewManager(&cfg.Auth), cfg.Auth.Cookie, logger)
	svc := service.NewService(cfg, repo, catalog, files, mailer, sessions, logger)
	h := handler.NewHandler(svc, sessions, catalog, logger)

	// 7. 初始化路由
	engine := router.Setup(cfg, h, sessions, rdb, logger)

	// 8. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 9. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	sqlDB.Close()
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
