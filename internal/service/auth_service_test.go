package service

import (
	"context"
	"errors"
	"testing"

	"edocs/backend/internal/dto"
	"edocs/backend/internal/model"
)

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	svc := env.authService()
	env.addActiveUser("H001", "hod@college.edu", "Passw0rd", model.RoleHOD, "UG_BCA")

	for _, identifier := range []string{"hod@college.edu", "HOD@college.edu", "H001"} {
		p, err := svc.Login(context.Background(), &dto.LoginRequest{Identifier: identifier, Password: "Passw0rd"})
		if err != nil {
			t.Fatalf("%s 登录应成功: %v", identifier, err)
		}
		if p.ID != "H001" || p.Role != model.RoleHOD {
			t.Errorf("期望 H001/hod，实际 %s/%s", p.ID, p.Role)
		}
		if p.Role.LandingPath() != "/hod/dashboard" {
			t.Errorf("期望 /hod/dashboard，实际 %s", p.Role.LandingPath())
		}
		if p.DOB != "2003-08-21" {
			t.Errorf("期望生日 2003-08-21，实际 %s", p.DOB)
		}
	}
}

func TestLogin_Failures(t *testing.T) {
	env := newTestEnv(t)
	svc := env.authService()
	env.addActiveUser("S001", "s001@college.edu", "Passw0rd", model.RoleStudent, "UG_BCA")
	env.addPendingUser("S002", "s002@college.edu", "9999912345", model.RoleStudent)

	tests := []struct {
		name       string
		identifier string
		password   string
		want       error
	}{
		{"账号不存在", "ghost@college.edu", "Passw0rd", ErrAccountNotFound},
		{"密码错误", "s001@college.edu", "wrong123", ErrInvalidCredentials},
		{"待激活账号", "s002@college.edu", "anything1", ErrOnboardingRequired},
		{"待激活账号按学工号", "S002", "", ErrOnboardingRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), &dto.LoginRequest{Identifier: tt.identifier, Password: tt.password})
			if !errors.Is(err, tt.want) {
				t.Errorf("期望 %v，实际 %v", tt.want, err)
			}
		})
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	svc := env.authService()
	ctx := context.Background()
	env.addActiveUser("F001", "f001@college.edu", "Passw0rd", model.RoleFaculty, "UG_BCOM")

	err := svc.ChangePassword(ctx, "f001@college.edu", &dto.ChangePasswordRequest{CurrentPassword: "nope1234", NewPassword: "NewPass99"})
	if !errors.Is(err, ErrOldPasswordWrong) {
		t.Errorf("期望 ErrOldPasswordWrong，实际 %v", err)
	}
	err = svc.ChangePassword(ctx, "f001@college.edu", &dto.ChangePasswordRequest{CurrentPassword: "Passw0rd", NewPassword: "onlyletters"})
	if !errors.Is(err, ErrWeakPassword) {
		t.Errorf("期望 ErrWeakPassword，实际 %v", err)
	}
	if err := svc.ChangePassword(ctx, "f001@college.edu", &dto.ChangePasswordRequest{CurrentPassword: "Passw0rd", NewPassword: "NewPass99"}); err != nil {
		t.Fatalf("修改密码应成功: %v", err)
	}

	if _, err := svc.Login(ctx, &dto.LoginRequest{Identifier: "F001", Password: "Passw0rd"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("旧密码应失效，实际 %v", err)
	}
	if _, err := svc.Login(ctx, &dto.LoginRequest{Identifier: "F001", Password: "NewPass99"}); err != nil {
		t.Errorf("新密码应可登录: %v", err)
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		pw      string
		wantErr bool
	}{
		{"Passw0rd", false},
		{"abc12345", false},
		{"abc1234", true},
		{"abcdefgh", true},
		{"12345678", true},
		{"a1234567890123456789x", true},
	}
	for _, tt := range tests {
		if err := validatePassword(tt.pw); (err != nil) != tt.wantErr {
			t.Errorf("validatePassword(%q) 期望 wantErr=%v，实际 %v", tt.pw, tt.wantErr, err)
		}
	}
}
