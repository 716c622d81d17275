package dto

import "edocs/backend/internal/model"

// ── 账号激活向导 DTO ──

// OnboardingEmailRequest 第 1 步：邮箱
type OnboardingEmailRequest struct {
	Email string `json:"email" form:"email" binding:"required,email"`
}

// OnboardingNameRequest 第 2 步：姓名
type OnboardingNameRequest struct {
	FirstName string `json:"first_name" form:"fname" binding:"required,max=50"`
	LastName  string `json:"last_name"  form:"lname" binding:"max=50"`
}

// OnboardingBirthGenderRequest 第 3 步：出生日期（YYYY-MM-DD）与性别
type OnboardingBirthGenderRequest struct {
	DOB    string `json:"dob"    form:"dob"    binding:"required"`
	Gender string `json:"gender" form:"gender" binding:"required,max=20"`
}

// OnboardingIDDepartmentRequest 第 4 步：学工号与院系
type OnboardingIDDepartmentRequest struct {
	IDNo       string `json:"id_no"      form:"idno"       binding:"required"`
	Department string `json:"department" form:"department" binding:"required"`
}

// OnboardingValidateRequest 第 5 步：验证码
type OnboardingValidateRequest struct {
	Code string `json:"code" form:"validNo" binding:"required"`
}

// OnboardingPasswordRequest 第 6 步：设置密码
type OnboardingPasswordRequest struct {
	Password string `json:"password" form:"password" binding:"required"`
}

// OnboardingState 向导当前累积的数据
type OnboardingState struct {
	Step       string `json:"step"`
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`
	DOB        string `json:"dob,omitempty"`
	Gender     string `json:"gender,omitempty"`
	IDNo       string `json:"id_no,omitempty"`
	Department string `json:"department,omitempty"`
}

// OnboardingStepResponse 某一步的展示数据或提交后的下一步
type OnboardingStepResponse struct {
	Step        string          `json:"step"`
	Next        string          `json:"next,omitempty"`
	State       OnboardingState `json:"state"`
	Departments []model.Option  `json:"departments,omitempty"`
}

// OnboardingFailure 提交失败时回显的输入
type OnboardingFailure struct {
	Step        string            `json:"step"`
	Input       map[string]string `json:"input,omitempty"`
	Departments []model.Option    `json:"departments,omitempty"`
	Redirect    string            `json:"redirect,omitempty"`
}
