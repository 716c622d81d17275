package session

import (
	"errors"

	"edocs/backend/internal/model"
)

// ErrNotFound 会话不存在或已过期
var ErrNotFound = errors.New("会话不存在")

// Principal 已登录用户信息（不含密码哈希）
type Principal struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	DOB        string     `json:"dob"`
	Phone      string     `json:"phone"`
	Gender     string     `json:"gender"`
	Department string     `json:"department"`
	Role       model.Role `json:"role"`
}

// Step 激活向导步骤
type Step int

const (
	StepEmail Step = iota + 1
	StepName
	StepBirthGender
	StepIDDepartment
	StepValidation
	StepPassword
)

// String 步骤名
func (s Step) String() string {
	switch s {
	case StepEmail:
		return "email"
	case StepName:
		return "name"
	case StepBirthGender:
		return "birth-gender"
	case StepIDDepartment:
		return "id-department"
	case StepValidation:
		return "validate"
	case StepPassword:
		return "password"
	}
	return "unknown"
}

// Onboarding 激活向导累积的数据
// Step 为当前允许访问的最远步骤，Step 之前的字段均已填写
type Onboarding struct {
	Step       Step   `json:"step"`
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`
	DOB        string `json:"dob,omitempty"`
	Gender     string `json:"gender,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	Department string `json:"department,omitempty"`
}

// Allows 是否允许访问指定步骤
func (o *Onboarding) Allows(step Step) bool {
	if step == StepEmail {
		return true
	}
	return o != nil && o.Step >= step
}

// Complete 记录某一步已完成，后续步骤需要重新填写
func (o *Onboarding) Complete(step Step) {
	o.Step = step + 1
	if step < StepIDDepartment {
		o.UserID, o.Department = "", ""
	}
	if step < StepBirthGender {
		o.DOB, o.Gender = "", ""
	}
	if step < StepName {
		o.Name = ""
	}
}

// Data 会话中保存的全部数据
type Data struct {
	Principal  *Principal  `json:"principal,omitempty"`
	Onboarding *Onboarding `json:"onboarding,omitempty"`
}

// Session 一次请求中加载的会话
type Session struct {
	ID   string
	Data Data
}

// Authenticated 是否已登录
func (s *Session) Authenticated() bool {
	return s != nil && s.Data.Principal != nil
}
