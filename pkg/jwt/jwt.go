package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"edocs/backend/config"
)

var (
	ErrTokenExpired = errors.New("token 已过期")
	ErrTokenInvalid = errors.New("token 无效")
)

const (
	issuer           = "edocs"
	tokenTypeSession = "session"
)

// Claims 会话 Cookie 携带的声明
// 会话数据本身保存在服务端，Token 只携带会话 ID（jti）
type Claims struct {
	TokenType string `json:"token_type"`
	jwtv5.RegisteredClaims
}

// SessionID 返回 Token 绑定的会话 ID
func (c *Claims) SessionID() string {
	return c.ID
}

// Manager JWT 管理器
type Manager struct {
	secret []byte
	ttl    time.Duration
}

// NewManager 创建 JWT 管理器
func NewManager(cfg *config.AuthConfig) *Manager {
	return &Manager{
		secret: []byte(cfg.SessionSecret),
		ttl:    cfg.SessionTTL,
	}
}

// TTL 会话有效期
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// GenerateSessionToken 为指定会话 ID 签发 Token
func (m *Manager) GenerateSessionToken(sessionID string) (string, error) {
	if sessionID == "" {
		return "", ErrTokenInvalid
	}
	now := time.Now()
	claims := Claims{
		TokenType: tokenTypeSession,
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        sessionID,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(m.ttl)),
			Issuer:    issuer,
		},
	}

	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ParseToken 解析并验证 Token
func (m *Manager) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwtv5.ParseWithClaims(tokenString, &Claims{}, func(t *jwtv5.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return m.secret, nil
	}, jwtv5.WithIssuer(issuer))

	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.TokenType != tokenTypeSession || claims.ID == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
