package dto

// ── 认证模块 DTO ──

// LoginRequest 登录请求，identifier 可以是邮箱或学工号
type LoginRequest struct {
	Identifier string `json:"identifier" form:"identifier" binding:"required"`
	Password   string `json:"password"   form:"password"   binding:"required"`
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" form:"current_password" binding:"required"`
	NewPassword     string `json:"new_password"     form:"new_password"     binding:"required"`
}

// LoginResponse 登录成功响应
type LoginResponse struct {
	Redirect string          `json:"redirect"`
	User     ProfileResponse `json:"user"`
}

// LoginFailure 登录失败回显
type LoginFailure struct {
	Identifier    string `json:"identifier"`
	EmailError    bool   `json:"email_error"`
	PasswordError bool   `json:"password_error"`
}

// RedirectResponse 需要前端跳转的响应
type RedirectResponse struct {
	Redirect string `json:"redirect"`
}

// HomeResponse 首页分流结果
type HomeResponse struct {
	Authenticated bool   `json:"authenticated"`
	Role          string `json:"role,omitempty"`
	Redirect      string `json:"redirect"`
}
