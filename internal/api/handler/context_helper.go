package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"edocs/backend/internal/session"
	"edocs/backend/pkg/response"
)

// MustGetPrincipal 从会话中取出当前登录用户。
// 未登录时写入 401 响应并返回 false，调用方应直接 return。
func MustGetPrincipal(c *gin.Context) (*session.Principal, bool) {
	p := session.FromContext(c).Data.Principal
	if p == nil || p.ID == "" {
		response.Unauthorized(c, response.CodeUnauthenticated, "未认证")
		return nil, false
	}
	return p, true
}

// saveSession 保存会话，失败时写入 500 响应并返回 false
func saveSession(c *gin.Context, sessions *session.Manager, s *session.Session, logger *zap.Logger) bool {
	if err := sessions.Save(c, s); err != nil {
		logger.Error("保存会话失败", zap.Error(err))
		response.InternalError(c)
		return false
	}
	return true
}

// isBodyTooLarge 请求体超过 BodyLimit 限制
func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
