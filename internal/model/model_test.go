package model

import (
	"errors"
	"testing"
	"time"

	pkgerrors "edocs/backend/pkg/errors"
)

func TestRole_LandingPath(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleOfficeStaff, "/office/dashboard"},
		{RoleHOD, "/hod/dashboard"},
		{RoleFaculty, "/faculty/dashboard"},
		{RoleStudent, "/student/dashboard"},
		{Role("principal"), LoginPath},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := tt.role.LandingPath(); got != tt.want {
				t.Errorf("期望 %s，实际 %s", tt.want, got)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	if r, ok := ParseRole("hod"); !ok || r != RoleHOD {
		t.Errorf("hod 应解析成功，实际 %v %v", r, ok)
	}
	if _, ok := ParseRole("principal"); ok {
		t.Error("principal 不是合法角色")
	}
	if _, ok := ParseRole("HOD"); ok {
		t.Error("角色编码区分大小写")
	}
}

func TestDocType_RecipientRole(t *testing.T) {
	want := map[DocType]Role{
		DocTypeVerification: RoleOfficeStaff,
		DocTypeEvent:        RoleOfficeStaff,
		DocTypeLeave:        RoleHOD,
		DocTypeInternship:   RoleHOD,
		DocTypeWorkshop:     RoleHOD,
	}
	for _, dt := range AllDocTypes {
		if got := dt.RecipientRole(); got != want[dt] {
			t.Errorf("%s 期望审批角色 %s，实际 %s", dt, want[dt], got)
		}
	}
	if _, ok := ParseDocType("XYZ"); ok {
		t.Error("未知申请类型不应解析成功")
	}
}

func TestDocStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    DocStatus
		to      DocStatus
		wantErr error
	}{
		{"待处理→处理中", StatusPending, StatusUnderProcess, nil},
		{"处理中→处理中（幂等）", StatusUnderProcess, StatusUnderProcess, nil},
		{"待处理→驳回", StatusPending, StatusRejected, nil},
		{"处理中→通过", StatusUnderProcess, StatusApproved, nil},
		{"驳回→驳回", StatusRejected, StatusRejected, pkgerrors.ErrFinalState},
		{"通过→处理中", StatusApproved, StatusUnderProcess, pkgerrors.ErrFinalState},
		{"处理中→待处理", StatusUnderProcess, StatusPending, pkgerrors.ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.from.CanTransitionTo(tt.to)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("期望 %v，实际 %v", tt.wantErr, err)
			}
		})
	}
}

func TestFormatApplicationNo(t *testing.T) {
	if got := FormatApplicationNo(2025, 10001); got != "EDOC-2025-010001" {
		t.Errorf("期望 EDOC-2025-010001，实际 %s", got)
	}
	if got := FormatApplicationNo(2026, 10002); got != "EDOC-2026-010002" {
		t.Errorf("期望 EDOC-2026-010002，实际 %s", got)
	}
}

func TestDocument_Transition(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	d := &Document{Status: StatusPending}

	if err := d.Transition(StatusRejected, "缺少签字", "HOD01", now); err != nil {
		t.Fatalf("驳回失败: %v", err)
	}
	if d.Status != StatusRejected || d.RejectTxt != "缺少签字" {
		t.Errorf("驳回后状态错误: %+v", d)
	}
	if d.ReviewedBy == nil || *d.ReviewedBy != "HOD01" {
		t.Error("应记录审批人")
	}
	if err := d.Transition(StatusRejected, "again", "HOD01", now); !errors.Is(err, pkgerrors.ErrFinalState) {
		t.Errorf("重复驳回期望 ErrFinalState，实际 %v", err)
	}

	d2 := &Document{Status: StatusUnderProcess}
	if err := d2.Transition(StatusApproved, "", "", now); err != nil {
		t.Fatalf("通过失败: %v", err)
	}
	if d2.ApprovedAt == nil || !d2.ApprovedAt.Equal(now) {
		t.Error("通过后应记录通过时间")
	}
}

func TestUser_Account(t *testing.T) {
	pending := &User{ID: "S001", Email: "a@x.edu", Phone: "9876512345", Role: RoleStudent}
	switch acc := pending.Account().(type) {
	case PendingAccount:
		if acc.ID != "S001" {
			t.Errorf("期望 ID=S001，实际 %s", acc.ID)
		}
	default:
		t.Fatalf("未设置密码应为 PendingAccount，实际 %T", acc)
	}

	hash := "$2a$10$hash"
	name := "Asha K"
	dept := "UG_BSC_CS"
	active := &User{ID: "S001", Email: "a@x.edu", Name: &name, Department: &dept, Password: &hash, Role: RoleStudent}
	acc, ok := active.Account().(ActiveAccount)
	if !ok {
		t.Fatalf("已设置密码应为 ActiveAccount")
	}
	if acc.Name != "Asha K" || acc.Department != "UG_BSC_CS" || acc.PasswordHash != hash {
		t.Errorf("ActiveAccount 字段错误: %+v", acc)
	}
}

func TestCatalog(t *testing.T) {
	c := NewCatalog()

	if len(c.Departments()) != 16 {
		t.Errorf("期望 16 个院系，实际 %d", len(c.Departments()))
	}
	if !c.IsDepartment("UG_BSC_CS") || c.IsDepartment("CS") {
		t.Error("院系编码校验错误")
	}
	if got := c.DepartmentLabel("PG_MCA"); got != "MCA" {
		t.Errorf("期望 MCA，实际 %s", got)
	}
	if len(c.Roles()) != 4 || len(c.DocTypes()) != 5 {
		t.Errorf("角色或申请类型数量错误: %d %d", len(c.Roles()), len(c.DocTypes()))
	}

	// 返回副本，外部修改不影响字典
	d := c.Departments()
	d[0].Label = "changed"
	if c.Departments()[0].Label != "B.A. English" {
		t.Error("字典不应被外部修改")
	}
}
