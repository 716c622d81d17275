package model

import "time"

// Role 用户角色（封闭枚举）
type Role string

const (
	RoleOfficeStaff Role = "office_staff"
	RoleHOD         Role = "hod"
	RoleFaculty     Role = "faculty"
	RoleStudent     Role = "student"
)

// AllRoles 全部角色，按后台展示顺序
var AllRoles = []Role{RoleOfficeStaff, RoleHOD, RoleFaculty, RoleStudent}

// 非角色相关的固定跳转地址
const (
	LoginPath           = "/login"
	OnboardingEmailPath = "/onboarding/email"
)

// ParseRole 解析角色字符串，未知角色返回 false
func ParseRole(s string) (Role, bool) {
	for _, r := range AllRoles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// Valid 是否为已知角色
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// Label 角色显示名
func (r Role) Label() string {
	switch r {
	case RoleOfficeStaff:
		return "OFFICE STAFF"
	case RoleHOD:
		return "HOD"
	case RoleFaculty:
		return "FACULTY"
	case RoleStudent:
		return "STUDENT"
	}
	return string(r)
}

// LandingPath 登录后按角色跳转的首页
func (r Role) LandingPath() string {
	switch r {
	case RoleOfficeStaff:
		return "/office/dashboard"
	case RoleHOD:
		return "/hod/dashboard"
	case RoleFaculty:
		return "/faculty/dashboard"
	case RoleStudent:
		return "/student/dashboard"
	}
	return LoginPath
}

// User 用户表 — 对应 users
// 待激活账号只有 id / email / phone / role / date，其余字段为 NULL
type User struct {
	ID         string     `gorm:"column:id;type:varchar(32);primaryKey" json:"id"`
	Email      string     `gorm:"type:varchar(255);not null"            json:"email"`
	Name       *string    `gorm:"type:varchar(100)"                     json:"name,omitempty"`
	DOB        *time.Time `gorm:"column:dob;type:date"                  json:"dob,omitempty"`
	Phone      string     `gorm:"type:varchar(20);not null"             json:"phone"`
	Gender     *string    `gorm:"type:varchar(20)"                      json:"gender,omitempty"`
	Department *string    `gorm:"type:varchar(32)"                      json:"department,omitempty"`
	Password   *string    `gorm:"type:varchar(255)"                     json:"-"`
	Role       Role       `gorm:"type:varchar(20);not null"             json:"role"`
	Date       time.Time  `gorm:"column:date;not null"                  json:"date"`
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// IsPending 是否仍待激活（尚未设置密码）
func (u *User) IsPending() bool {
	return u.Password == nil || *u.Password == ""
}

// ── 账号状态 ──

// Account 账号的两种状态：PendingAccount 或 ActiveAccount
type Account interface {
	account()
}

// PendingAccount 已由办公室创建、尚未完成激活的账号
type PendingAccount struct {
	ID         string
	Email      string
	Phone      string
	Role       Role
	Registered time.Time
}

// ActiveAccount 已完成激活的账号
type ActiveAccount struct {
	ID           string
	Email        string
	Name         string
	DOB          time.Time
	Phone        string
	Gender       string
	Department   string
	Role         Role
	PasswordHash string
	Registered   time.Time
}

func (PendingAccount) account() {}
func (ActiveAccount) account()  {}

// Account 按是否设置密码返回对应的账号状态
func (u *User) Account() Account {
	if u.IsPending() {
		return PendingAccount{
			ID:         u.ID,
			Email:      u.Email,
			Phone:      u.Phone,
			Role:       u.Role,
			Registered: u.Date,
		}
	}
	a := ActiveAccount{
		ID:           u.ID,
		Email:        u.Email,
		Phone:        u.Phone,
		Role:         u.Role,
		PasswordHash: *u.Password,
		Registered:   u.Date,
	}
	if u.Name != nil {
		a.Name = *u.Name
	}
	if u.DOB != nil {
		a.DOB = *u.DOB
	}
	if u.Gender != nil {
		a.Gender = *u.Gender
	}
	if u.Department != nil {
		a.Department = *u.Department
	}
	return a
}

// ProfilePicture 头像表 — 对应 profile_pic
type ProfilePicture struct {
	ID   string `gorm:"column:id;type:varchar(32);primaryKey" json:"id"`
	Path string `gorm:"type:varchar(512);not null"            json:"path"`
}

// TableName 指定表名
func (ProfilePicture) TableName() string { return "profile_pic" }
