package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"edocs/backend/config"
	"edocs/backend/internal/api/middleware"
	"edocs/backend/internal/dto"
	"edocs/backend/internal/model"
	"edocs/backend/internal/service"
	"edocs/backend/internal/session"
	"edocs/backend/pkg/jwt"
	"edocs/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ═══════════════════════════════════════════════════════════
// Mock Services（只实现用到的方法，其余调用会 panic）
// ═══════════════════════════════════════════════════════════

// ── Mock AuthService ──

type mockAuthService struct {
	service.AuthService
	principal     *session.Principal
	loginErr      error
	changePassErr error
}

func (m *mockAuthService) Login(_ context.Context, _ *dto.LoginRequest) (*session.Principal, error) {
	return m.principal, m.loginErr
}

func (m *mockAuthService) ChangePassword(_ context.Context, _ string, _ *dto.ChangePasswordRequest) error {
	return m.changePassErr
}

// ── Mock AccountService ──

type mockAccountService struct {
	service.AccountService
	profile    *dto.ProfileResponse
	createErr  error
	deleted    []string
	searchedQ  string
	roleCounts map[string]int64
}

func (m *mockAccountService) Profile(_ context.Context, id string) (*dto.ProfileResponse, error) {
	if m.profile == nil {
		return &dto.ProfileResponse{AccountResponse: dto.AccountResponse{ID: id}}, nil
	}
	return m.profile, nil
}

func (m *mockAccountService) Create(_ context.Context, req *dto.CreateAccountRequest) (*dto.AccountResponse, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &dto.AccountResponse{ID: req.ID, Email: req.Email, Role: req.Role, Pending: true}, nil
}

func (m *mockAccountService) Delete(_ context.Context, id string) (string, error) {
	m.deleted = append(m.deleted, id)
	return "", nil
}

func (m *mockAccountService) Search(_ context.Context, q string) ([]dto.AccountResponse, error) {
	m.searchedQ = q
	return []dto.AccountResponse{{ID: "S010"}}, nil
}

func (m *mockAccountService) ListAll(_ context.Context) ([]dto.AccountResponse, error) {
	return []dto.AccountResponse{{ID: "S010"}, {ID: "S011"}}, nil
}

func (m *mockAccountService) RoleCounts(_ context.Context) (map[string]int64, error) {
	return m.roleCounts, nil
}

// ── Mock OnboardingService ──

type mockOnboardingService struct {
	service.OnboardingService
	emailErr error
}

func (m *mockOnboardingService) View(_ context.Context, state *session.Onboarding, step session.Step) (*dto.OnboardingStepResponse, error) {
	if !state.Allows(step) {
		return nil, service.ErrOnboardingOutOfOrder
	}
	return &dto.OnboardingStepResponse{Step: step.String(), State: dto.OnboardingState{Email: state.Email}}, nil
}

func (m *mockOnboardingService) SubmitEmail(_ context.Context, state *session.Onboarding, req *dto.OnboardingEmailRequest) (*dto.OnboardingStepResponse, error) {
	if m.emailErr != nil {
		return nil, m.emailErr
	}
	state.Email = req.Email
	state.Complete(session.StepEmail)
	return &dto.OnboardingStepResponse{Step: "email", Next: service.OnboardingPath(session.StepName)}, nil
}

func (m *mockOnboardingService) SubmitName(_ context.Context, state *session.Onboarding, _ *dto.OnboardingNameRequest) (*dto.OnboardingStepResponse, error) {
	if !state.Allows(session.StepName) {
		return nil, service.ErrOnboardingOutOfOrder
	}
	state.Complete(session.StepName)
	return &dto.OnboardingStepResponse{Step: "name"}, nil
}

// ── Mock DocumentService ──

type mockDocumentService struct {
	service.DocumentService
	doc       *dto.DocumentResponse
	err       error
	rejectErr error
	export    *bytes.Buffer
}

func (m *mockDocumentService) Approve(_ context.Context, _ *session.Principal, _ string) (*dto.DocumentResponse, error) {
	return m.doc, m.err
}

func (m *mockDocumentService) Reject(_ context.Context, _ *session.Principal, _, _ string) (*dto.DocumentResponse, error) {
	return m.doc, m.rejectErr
}

func (m *mockDocumentService) Get(_ context.Context, _ *session.Principal, _ string) (*dto.DocumentResponse, error) {
	return m.doc, m.err
}

func (m *mockDocumentService) ListMine(_ context.Context, _ string) ([]dto.DocumentResponse, error) {
	return []dto.DocumentResponse{}, nil
}

func (m *mockDocumentService) ListPendingForRole(_ context.Context, _ model.Role) ([]dto.DocumentResponse, error) {
	return []dto.DocumentResponse{{AppNo: "EDOC-2025-010001"}}, nil
}

func (m *mockDocumentService) ExportReports(_ context.Context, _ string) (*bytes.Buffer, string, error) {
	return m.export, "edoc_reports_20250314.xlsx", m.err
}

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

func newSessions() *session.Manager {
	tokens := jwt.NewManager(&config.AuthConfig{SessionSecret: "handler-test-secret-123", SessionTTL: time.Hour})
	return session.NewManager(session.NewMemoryStore(), tokens, config.CookieConfig{Name: "edocs_session"}, zap.NewNop())
}

// newEngine 带会话中间件的测试路由
func newEngine(sessions *session.Manager) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Session(sessions))
	return r
}

// loginAs 向会话写入已登录用户，返回对应 Cookie
func loginAs(t *testing.T, sessions *session.Manager, p *session.Principal) *http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if err := sessions.Save(c, &session.Session{Data: session.Data{Principal: p}}); err != nil {
		t.Fatalf("写入会话失败: %v", err)
	}
	return sessionCookie(t, w)
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "edocs_session" {
			return ck
		}
	}
	t.Fatal("响应中没有会话 Cookie")
	return nil
}

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func doRequest(r *gin.Engine, method, path string, body io.Reader, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

// parseData 将响应中的 data 解析到 dest
func parseData(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	var raw struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if err := json.Unmarshal(raw.Data, dest); err != nil {
		t.Fatalf("解析 data 失败: %v, body=%s", err, w.Body.String())
	}
}

var student = &session.Principal{ID: "S001", Email: "s001@college.edu", Role: model.RoleStudent}

// ═══════════════════════════════════════════════════════════
// AuthHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAuthHandler_Login_Success(t *testing.T) {
	sessions := newSessions()
	h := NewAuthHandler(&mockAuthService{principal: student}, &mockAccountService{}, sessions, zap.NewNop())
	r := newEngine(sessions)
	r.POST("/auth/login", h.Login)
	r.GET("/home", h.Home)

	w := doRequest(r, http.MethodPost, "/auth/login", jsonBody(dto.LoginRequest{Identifier: "S001", Password: "Passw0rd"}))
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d: %s", w.Code, w.Body.String())
	}
	var login dto.LoginResponse
	parseData(t, w, &login)
	if login.Redirect != "/student/dashboard" {
		t.Errorf("期望跳转 /student/dashboard，实际 %s", login.Redirect)
	}

	// 登录后的 Cookie 可以识别出角色
	w = doRequest(r, http.MethodGet, "/home", nil, sessionCookie(t, w))
	var home dto.HomeResponse
	parseData(t, w, &home)
	if !home.Authenticated || home.Role != "student" {
		t.Errorf("期望已登录的 student，实际 %+v", home)
	}
}

func TestAuthHandler_Login_RotatesSession(t *testing.T) {
	sessions := newSessions()
	h := NewAuthHandler(&mockAuthService{principal: student}, &mockAccountService{}, sessions, zap.NewNop())
	r := newEngine(sessions)
	r.POST("/auth/login", h.Login)
	r.GET("/home", h.Home)

	before := loginAs(t, sessions, &session.Principal{ID: "X", Role: model.RoleFaculty})
	w := doRequest(r, http.MethodPost, "/auth/login", jsonBody(dto.LoginRequest{Identifier: "S001", Password: "Passw0rd"}), before)
	after := sessionCookie(t, w)
	if after.Value == before.Value {
		t.Error("登录后应更换会话")
	}

	w = doRequest(r, http.MethodGet, "/home", nil, before)
	var home dto.HomeResponse
	parseData(t, w, &home)
	if home.Authenticated {
		t.Error("旧会话应已失效")
	}
}

func TestAuthHandler_Login_Failures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
		emailErr   bool
		passErr    bool
	}{
		{"账号不存在", service.ErrAccountNotFound, http.StatusNotFound, 11001, true, false},
		{"密码错误", service.ErrInvalidCredentials, http.StatusUnauthorized, 11002, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := newSessions()
			h := NewAuthHandler(&mockAuthService{loginErr: tt.err}, &mockAccountService{}, sessions, zap.NewNop())
			r := newEngine(sessions)
			r.POST("/auth/login", h.Login)

			w := doRequest(r, http.MethodPost, "/auth/login", jsonBody(dto.LoginRequest{Identifier: "who", Password: "x"}))
			if w.Code != tt.wantStatus {
				t.Errorf("期望 %d，实际 %d", tt.wantStatus, w.Code)
			}
			if resp := parseResponse(w); resp.Code != tt.wantCode {
				t.Errorf("期望错误码 %d，实际 %d", tt.wantCode, resp.Code)
			}
			var failure dto.LoginFailure
			parseData(t, w, &failure)
			if failure.Identifier != "who" || failure.EmailError != tt.emailErr || failure.PasswordError != tt.passErr {
				t.Errorf("回显不正确: %+v", failure)
			}
		})
	}
}

func TestAuthHandler_Login_PendingRedirectsToOnboarding(t *testing.T) {
	sessions := newSessions()
	h := NewAuthHandler(&mockAuthService{loginErr: service.ErrOnboardingRequired}, &mockAccountService{}, sessions, zap.NewNop())
	r := newEngine(sessions)
	r.POST("/auth/login", h.Login)

	w := doRequest(r, http.MethodPost, "/auth/login", jsonBody(dto.LoginRequest{Identifier: "S002", Password: "x"}))
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d", w.Code)
	}
	var redirect dto.RedirectResponse
	parseData(t, w, &redirect)
	if redirect.Redirect != model.OnboardingEmailPath {
		t.Errorf("期望跳转激活向导，实际 %s", redirect.Redirect)
	}
}

func TestAuthHandler_Login_BadJSON(t *testing.T) {
	sessions := newSessions()
	h := NewAuthHandler(&mockAuthService{}, &mockAccountService{}, sessions, zap.NewNop())
	r := newEngine(sessions)
	r.POST("/auth/login", h.Login)

	w := doRequest(r, http.MethodPost, "/auth/login", strings.NewReader("invalid json"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("期望 400，实际 %d", w.Code)
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	sessions := newSessions()
	h := NewAuthHandler(&mockAuthService{}, &mockAccountService{}, sessions, zap.NewNop())
	r := newEngine(sessions)
	r.POST("/auth/logout", h.Logout)
	r.GET("/home", h.Home)

	ck := loginAs(t, sessions, student)
	w := doRequest(r, http.MethodPost, "/auth/logout", nil, ck)
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d", w.Code)
	}

	w = doRequest(r, http.MethodGet, "/home", nil, ck)
	var home dto.HomeResponse
	parseData(t, w, &home)
	if home.Authenticated || home.Redirect != model.LoginPath {
		t.Errorf("退出后应回到登录页，实际 %+v", home)
	}
}

// ═══════════════════════════════════════════════════════════
// OnboardingHandler Tests
// ═══════════════════════════════════════════════════════════

func newOnboardingEngine(svc service.OnboardingService) (*gin.Engine, *session.Manager) {
	sessions := newSessions()
	h := NewOnboardingHandler(svc, sessions, model.NewCatalog(), zap.NewNop())
	r := newEngine(sessions)
	r.POST("/onboarding/email", h.SubmitEmail)
	r.POST("/onboarding/name", h.SubmitName)
	r.GET("/onboarding/name", h.View(session.StepName))
	return r, sessions
}

func TestOnboardingHandler_StateKeptInSession(t *testing.T) {
	r, _ := newOnboardingEngine(&mockOnboardingService{})

	w := doRequest(r, http.MethodPost, "/onboarding/email", jsonBody(dto.OnboardingEmailRequest{Email: "s001@college.edu"}))
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d: %s", w.Code, w.Body.String())
	}
	ck := sessionCookie(t, w)

	w = doRequest(r, http.MethodGet, "/onboarding/name", nil, ck)
	if w.Code != http.StatusOK {
		t.Fatalf("第 2 步应可访问，实际 %d", w.Code)
	}
	var step dto.OnboardingStepResponse
	parseData(t, w, &step)
	if step.State.Email != "s001@college.edu" {
		t.Errorf("会话中应保存邮箱，实际 %+v", step.State)
	}
}

func TestOnboardingHandler_OutOfOrder(t *testing.T) {
	r, _ := newOnboardingEngine(&mockOnboardingService{})

	w := doRequest(r, http.MethodPost, "/onboarding/name", jsonBody(dto.OnboardingNameRequest{FirstName: "Asha"}))
	if w.Code != http.StatusConflict {
		t.Fatalf("期望 409，实际 %d", w.Code)
	}
	var failure dto.OnboardingFailure
	parseData(t, w, &failure)
	if failure.Redirect != "/onboarding/email" {
		t.Errorf("期望回到第 1 步，实际 %s", failure.Redirect)
	}
}

func TestOnboardingHandler_UnknownEmailEchoesInput(t *testing.T) {
	r, _ := newOnboardingEngine(&mockOnboardingService{emailErr: service.ErrOnboardingEmailUnknown})

	w := doRequest(r, http.MethodPost, "/onboarding/email", jsonBody(dto.OnboardingEmailRequest{Email: "ghost@college.edu"}))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("期望 422，实际 %d", w.Code)
	}
	var failure dto.OnboardingFailure
	parseData(t, w, &failure)
	if failure.Input["email"] != "ghost@college.edu" {
		t.Errorf("应回显输入的邮箱，实际 %+v", failure.Input)
	}
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "edocs_session" {
			t.Error("失败时不应写入会话")
		}
	}
}

// ═══════════════════════════════════════════════════════════
// AccountHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAccountHandler_CreateConflict(t *testing.T) {
	h := NewAccountHandler(&mockAccountService{createErr: service.ErrAccountIDExists})
	r := gin.New()
	r.POST("/office/accounts", h.CreateAccount)

	w := doRequest(r, http.MethodPost, "/office/accounts", jsonBody(dto.CreateAccountRequest{
		ID: "S001", Email: "s001@college.edu", Phone: "9999912345", Role: "student",
	}))
	if w.Code != http.StatusConflict {
		t.Errorf("期望 409，实际 %d", w.Code)
	}
	var echo dto.CreateAccountRequest
	parseData(t, w, &echo)
	if echo.ID != "S001" {
		t.Errorf("应回显输入，实际 %+v", echo)
	}
}

func TestAccountHandler_ListWithQuery(t *testing.T) {
	mock := &mockAccountService{roleCounts: map[string]int64{"student": 2}}
	h := NewAccountHandler(mock)
	r := gin.New()
	r.GET("/office/accounts", h.ListAccounts)

	w := doRequest(r, http.MethodGet, "/office/accounts?q=+cs+", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d", w.Code)
	}
	if mock.searchedQ != "cs" {
		t.Errorf("期望检索关键字 cs，实际 %q", mock.searchedQ)
	}
	var list dto.AccountListResponse
	parseData(t, w, &list)
	if len(list.Accounts) != 1 || list.Counts["student"] != 2 {
		t.Errorf("列表或统计不正确: %+v", list)
	}
}

// ═══════════════════════════════════════════════════════════
// DocumentHandler Tests
// ═══════════════════════════════════════════════════════════

func newDocumentEngine(t *testing.T, mock *mockDocumentService, p *session.Principal) (*gin.Engine, *http.Cookie) {
	t.Helper()
	sessions := newSessions()
	h := NewDocumentHandler(mock)
	r := newEngine(sessions)
	r.GET("/documents/:appNo", h.Get)
	r.POST("/documents/:appNo/approve", h.Approve)
	r.POST("/documents/:appNo/reject", h.Reject)
	r.GET("/office/reports/export", h.ExportReports)
	return r, loginAs(t, sessions, p)
}

func TestDocumentHandler_RequiresLogin(t *testing.T) {
	r, _ := newDocumentEngine(t, &mockDocumentService{}, student)

	w := doRequest(r, http.MethodGet, "/documents/EDOC-2025-010001", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("期望 401，实际 %d", w.Code)
	}
}

func TestDocumentHandler_ErrorMapping(t *testing.T) {
	hod := &session.Principal{ID: "H001", Email: "hod@college.edu", Role: model.RoleHOD}
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"不存在", service.ErrDocumentNotFound, http.StatusNotFound},
		{"无权限", service.ErrDocumentForbidden, http.StatusForbidden},
		{"已终态", service.ErrDocumentFinalized, http.StatusConflict},
		{"未知错误", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ck := newDocumentEngine(t, &mockDocumentService{err: tt.err}, hod)
			w := doRequest(r, http.MethodPost, "/documents/EDOC-2025-010001/approve", nil, ck)
			if w.Code != tt.wantStatus {
				t.Errorf("期望 %d，实际 %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestDocumentHandler_RejectWithoutReasonEchoesAppNo(t *testing.T) {
	hod := &session.Principal{ID: "H001", Email: "hod@college.edu", Role: model.RoleHOD}
	r, ck := newDocumentEngine(t, &mockDocumentService{rejectErr: service.ErrRejectReasonRequired}, hod)

	w := doRequest(r, http.MethodPost, "/documents/EDOC-2025-010007/reject", jsonBody(dto.RejectDocumentRequest{}), ck)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("期望 422，实际 %d", w.Code)
	}
	var failure dto.RejectFailure
	parseData(t, w, &failure)
	if failure.AppNo != "EDOC-2025-010007" {
		t.Errorf("应回显申请编号，实际 %+v", failure)
	}
}

func TestDocumentHandler_ExportReports(t *testing.T) {
	officer := &session.Principal{ID: "O001", Email: "office@college.edu", Role: model.RoleOfficeStaff}
	r, ck := newDocumentEngine(t, &mockDocumentService{export: bytes.NewBufferString("xlsx")}, officer)

	w := doRequest(r, http.MethodGet, "/office/reports/export?q=leave", nil, ck)
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "edoc_reports_20250314.xlsx") {
		t.Errorf("下载文件名不正确: %s", cd)
	}
	if w.Body.String() != "xlsx" {
		t.Errorf("响应体不正确: %q", w.Body.String())
	}
}

// ═══════════════════════════════════════════════════════════
// DashboardHandler / CatalogHandler Tests
// ═══════════════════════════════════════════════════════════

func TestDashboardHandler_ByRole(t *testing.T) {
	tests := []struct {
		role         model.Role
		wantQueue    bool
		wantAccounts bool
	}{
		{model.RoleOfficeStaff, true, true},
		{model.RoleHOD, true, false},
		{model.RoleFaculty, false, false},
		{model.RoleStudent, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			sessions := newSessions()
			h := NewDashboardHandler(&mockAccountService{roleCounts: map[string]int64{"student": 1}}, &mockDocumentService{})
			r := newEngine(sessions)
			r.GET("/dashboard", h.Dashboard)
			ck := loginAs(t, sessions, &session.Principal{ID: "U1", Email: "u1@college.edu", Role: tt.role})

			w := doRequest(r, http.MethodGet, "/dashboard", nil, ck)
			if w.Code != http.StatusOK {
				t.Fatalf("期望 200，实际 %d", w.Code)
			}
			var resp dto.DashboardResponse
			parseData(t, w, &resp)
			if (len(resp.Queue) > 0) != tt.wantQueue {
				t.Errorf("队列期望 %v，实际 %+v", tt.wantQueue, resp.Queue)
			}
			if (resp.Accounts != nil) != tt.wantAccounts {
				t.Errorf("账号统计期望 %v，实际 %+v", tt.wantAccounts, resp.Accounts)
			}
		})
	}
}

func TestCatalogHandler(t *testing.T) {
	h := NewCatalogHandler(model.NewCatalog())
	r := gin.New()
	r.GET("/catalog", h.GetCatalog)

	w := doRequest(r, http.MethodGet, "/catalog", nil)
	var resp dto.CatalogResponse
	parseData(t, w, &resp)
	if len(resp.Departments) != 16 || len(resp.Roles) != 4 || len(resp.DocTypes) != 5 {
		t.Errorf("字典数量不正确: %d/%d/%d", len(resp.Departments), len(resp.Roles), len(resp.DocTypes))
	}
}
