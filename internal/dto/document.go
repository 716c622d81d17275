package dto

// ── 申请流转 DTO ──

// SubmitDocumentRequest 提交申请（multipart 表单，附件字段名 file）
type SubmitDocumentRequest struct {
	AppType     string `form:"app_type"    binding:"required"`
	AppTitle    string `form:"app_title"   binding:"required,max=200"`
	Description string `form:"description" binding:"required,max=5000"`
}

// RejectDocumentRequest 驳回申请，理由在服务层校验以便失败时回显申请编号
type RejectDocumentRequest struct {
	Reason string `json:"reason" form:"reason"`
}

// ReportSearchRequest 报表检索
type ReportSearchRequest struct {
	Query string `form:"q" binding:"max=200"`
}

// DocumentResponse 申请详情
type DocumentResponse struct {
	AppNo            string `json:"app_no"`
	AppType          string `json:"app_type"`
	AppTypeLabel     string `json:"app_type_label"`
	AppTitle         string `json:"app_title"`
	Description      string `json:"description"`
	SenderEmail      string `json:"sender_email"`
	SenderName       string `json:"sender_name"`
	SenderIDNo       string `json:"sender_id_no"`
	SenderDepartment string `json:"sender_department"`
	SenderRole       string `json:"sender_role"`
	RecRole          string `json:"rec_role"`
	Status           string `json:"status"`
	RejectTxt        string `json:"reject_txt,omitempty"`
	ReviewedBy       string `json:"reviewed_by,omitempty"`
	ApprovedAt       string `json:"approved_at,omitempty"`
	Date             string `json:"date"`
	UpdatedAt        string `json:"updated_at"`
}

// RejectFailure 驳回失败回显
type RejectFailure struct {
	AppNo  string `json:"app_no"`
	Reason string `json:"reason"`
}

// DeleteDocumentResponse 删除申请结果
type DeleteDocumentResponse struct {
	AppNo   string `json:"app_no"`
	Warning string `json:"warning,omitempty"`
}

// DashboardResponse 角色首页数据
type DashboardResponse struct {
	Role     string             `json:"role"`
	Profile  ProfileResponse    `json:"profile"`
	Mine     []DocumentResponse `json:"mine"`
	Queue    []DocumentResponse `json:"queue,omitempty"`
	Accounts map[string]int64   `json:"accounts,omitempty"`
}
