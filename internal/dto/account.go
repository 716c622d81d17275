package dto

// ── 账号管理 DTO ──

// CreateAccountRequest 办公室创建待激活账号
type CreateAccountRequest struct {
	ID    string `json:"id"    form:"id"    binding:"required,max=32"`
	Email string `json:"email" form:"email" binding:"required,email"`
	Phone string `json:"phone" form:"phone" binding:"required,max=20"`
	Role  string `json:"role"  form:"role"  binding:"required"`
}

// EditProfileRequest 修改个人资料
type EditProfileRequest struct {
	Name       string `json:"name"       form:"name"       binding:"required,max=100"`
	DOB        string `json:"dob"        form:"dob"        binding:"required"`
	Gender     string `json:"gender"     form:"gender"     binding:"required,max=20"`
	Department string `json:"department" form:"department" binding:"required"`
}

// AccountSearchRequest 账号检索
type AccountSearchRequest struct {
	Query string `form:"q"`
}

// AccountResponse 账号信息（脱敏）
type AccountResponse struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	Name            string `json:"name,omitempty"`
	DOB             string `json:"dob,omitempty"`
	Phone           string `json:"phone"`
	Gender          string `json:"gender,omitempty"`
	Department      string `json:"department,omitempty"`
	DepartmentLabel string `json:"department_label,omitempty"`
	Role            string `json:"role"`
	Pending         bool   `json:"pending"`
	RegisteredAt    string `json:"registered_at"`
}

// AccountListResponse 账号列表与各角色人数
type AccountListResponse struct {
	Query    string            `json:"query,omitempty"`
	Accounts []AccountResponse `json:"accounts"`
	Counts   map[string]int64  `json:"counts"`
}

// ImportRowError 导入失败的行
type ImportRowError struct {
	Row    int    `json:"row"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

// ImportAccountsResponse 批量导入结果
type ImportAccountsResponse struct {
	Created int              `json:"created"`
	Failed  []ImportRowError `json:"failed"`
}

// ProfileResponse 当前用户资料
type ProfileResponse struct {
	AccountResponse
	HasPicture bool `json:"has_picture"`
}

// WarningResponse 操作成功但附带警告（例如文件删除失败）
type WarningResponse struct {
	Warning string `json:"warning,omitempty"`
}
