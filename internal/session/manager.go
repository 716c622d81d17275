package session

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"edocs/backend/config"
	"edocs/backend/pkg/jwt"
)

// Manager 会话管理：Cookie 中保存签名 Token（jti 为会话 ID），数据保存在 Store
type Manager struct {
	store  Store
	tokens *jwt.Manager
	cookie config.CookieConfig
	logger *zap.Logger
}

// NewManager 创建会话管理器
func NewManager(store Store, tokens *jwt.Manager, cookie config.CookieConfig, logger *zap.Logger) *Manager {
	if cookie.Name == "" {
		cookie.Name = "edocs_session"
	}
	return &Manager{store: store, tokens: tokens, cookie: cookie, logger: logger}
}

// Load 读取请求携带的会话
// Cookie 缺失、签名无效、已过期或存储中不存在时返回一个新的匿名会话
func (m *Manager) Load(c *gin.Context) *Session {
	raw, err := c.Cookie(m.cookie.Name)
	if err != nil || raw == "" {
		return &Session{}
	}

	claims, err := m.tokens.ParseToken(raw)
	if err != nil {
		return &Session{}
	}

	data, err := m.store.Load(c.Request.Context(), claims.SessionID())
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.logger.Warn("读取会话失败", zap.String("session_id", claims.SessionID()), zap.Error(err))
		}
		return &Session{}
	}

	return &Session{ID: claims.SessionID(), Data: *data}
}

// Save 保存会话并写回 Cookie，新会话在此时分配 ID
func (m *Manager) Save(c *gin.Context, s *Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if err := m.store.Save(c.Request.Context(), s.ID, &s.Data, m.tokens.TTL()); err != nil {
		return err
	}

	if p := s.Data.Principal; p != nil {
		if err := m.store.Track(c.Request.Context(), p.ID, s.ID, m.tokens.TTL()); err != nil {
			return err
		}
	}

	token, err := m.tokens.GenerateSessionToken(s.ID)
	if err != nil {
		return err
	}
	m.setCookie(c, token, int(m.tokens.TTL().Seconds()))
	return nil
}

// Rotate 更换会话 ID（登录成功后调用），旧 ID 立即失效
func (m *Manager) Rotate(c *gin.Context, s *Session) error {
	if s.ID != "" {
		if err := m.store.Delete(c.Request.Context(), s.ID); err != nil {
			m.logger.Warn("删除旧会话失败", zap.String("session_id", s.ID), zap.Error(err))
		}
	}
	s.ID = uuid.NewString()
	return m.Save(c, s)
}

// Destroy 销毁会话并清除 Cookie
func (m *Manager) Destroy(c *gin.Context, s *Session) error {
	var err error
	if s.ID != "" {
		err = m.store.Delete(c.Request.Context(), s.ID)
	}
	s.ID = ""
	s.Data = Data{}
	m.setCookie(c, "", -1)
	return err
}

// RevokeUser 使某个用户的全部会话立即失效（账号被删除或重置后调用）
func (m *Manager) RevokeUser(ctx context.Context, userID string) error {
	if err := m.store.DeleteUser(ctx, userID); err != nil {
		m.logger.Error("撤销用户会话失败", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	m.logger.Info("用户会话已撤销", zap.String("user_id", userID))
	return nil
}

func (m *Manager) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(parseSameSite(m.cookie.SameSite))
	c.SetCookie(m.cookie.Name, value, maxAge, "/", m.cookie.Domain, m.cookie.Secure, true)
}

func parseSameSite(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// ── gin 上下文 ──

const contextKey = "session"

// Set 将会话放入请求上下文
func Set(c *gin.Context, s *Session) {
	c.Set(contextKey, s)
}

// FromContext 取出请求上下文中的会话，未加载时返回空会话
func FromContext(c *gin.Context) *Session {
	if v, ok := c.Get(contextKey); ok {
		if s, ok := v.(*Session); ok {
			return s
		}
	}
	s := &Session{}
	c.Set(contextKey, s)
	return s
}
