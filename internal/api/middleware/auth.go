package middleware

import (
	"github.com/gin-gonic/gin"

	"edocs/backend/internal/model"
	"edocs/backend/internal/session"
	"edocs/backend/pkg/response"
)

// Session 会话加载中间件
// 每个请求都会得到一个会话（可能是匿名的），已登录时注入 user_id 与 role
func Session(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := mgr.Load(c)
		session.Set(c, s)

		if p := s.Data.Principal; p != nil {
			c.Set("user_id", p.ID)
			c.Set("role", string(p.Role))
		}

		c.Next()
	}
}

// RequireLogin 登录校验中间件
func RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !session.FromContext(c).Authenticated() {
			response.Unauthorized(c, response.CodeUnauthenticated, "未认证")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RoleAuth 角色权限中间件
// 检查当前用户是否具有指定角色之一
func RoleAuth(allowedRoles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := session.FromContext(c).Data.Principal
		if p == nil {
			response.Unauthorized(c, response.CodeUnauthenticated, "未认证")
			c.Abort()
			return
		}

		for _, r := range allowedRoles {
			if p.Role == r {
				c.Next()
				return
			}
		}

		response.Forbidden(c, response.CodeForbidden, "无权限访问")
		c.Abort()
	}
}
