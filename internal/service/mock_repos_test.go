package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"edocs/backend/config"
	"edocs/backend/internal/model"
	"edocs/backend/internal/repository"
	"edocs/backend/pkg/storage"
)

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User // key: id
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) byEmail(email string) *model.User {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u
		}
	}
	return nil
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	if _, ok := m.users[user.ID]; ok || m.byEmail(user.Email) != nil {
		return gorm.ErrDuplicatedKey
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if u := m.byEmail(email); u != nil {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) CompleteOnboarding(_ context.Context, email string, f *repository.OnboardingFields) (bool, error) {
	u := m.byEmail(email)
	if u == nil {
		return false, nil
	}
	delete(m.users, u.ID)
	name, gender, dept, hash := f.Name, f.Gender, f.Department, f.PasswordHash
	dob := f.DOB
	u.ID, u.Name, u.DOB, u.Phone, u.Gender, u.Department, u.Password, u.Role =
		f.ID, &name, &dob, f.Phone, &gender, &dept, &hash, f.Role
	m.users[u.ID] = u
	return true, nil
}

func (m *mockUserRepo) UpdateProfile(_ context.Context, email string, f *repository.ProfileFields) (bool, error) {
	u := m.byEmail(email)
	if u == nil {
		return false, nil
	}
	name, gender, dept, dob := f.Name, f.Gender, f.Department, f.DOB
	u.Name, u.Gender, u.Department, u.DOB = &name, &gender, &dept, &dob
	return true, nil
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, email, passwordHash string) (bool, error) {
	u := m.byEmail(email)
	if u == nil {
		return false, nil
	}
	u.Password = &passwordHash
	return true, nil
}

func (m *mockUserRepo) ResetToPending(_ context.Context, id string) (bool, error) {
	u, ok := m.users[id]
	if !ok {
		return false, nil
	}
	u.Name, u.DOB, u.Gender, u.Department, u.Password = nil, nil, nil, nil, nil
	return true, nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string) (bool, error) {
	if _, ok := m.users[id]; !ok {
		return false, nil
	}
	delete(m.users, id)
	return true, nil
}

func (m *mockUserRepo) CountByRole(_ context.Context, role model.Role) (int64, error) {
	var n int64
	for _, u := range m.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (m *mockUserRepo) Search(_ context.Context, text string) ([]model.User, error) {
	q := strings.ToLower(text)
	deref := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	var result []model.User
	for _, u := range m.users {
		fields := []string{deref(u.Name), u.Email, u.ID, u.Phone, deref(u.Department), string(u.Role)}
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), q) {
				result = append(result, *u)
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return deref(result[i].Name) < deref(result[j].Name)
	})
	return result, nil
}

func (m *mockUserRepo) ListAll(_ context.Context) ([]model.User, error) {
	var result []model.User
	for _, u := range m.users {
		result = append(result, *u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

// ── Mock ProfilePictureRepository ──

type mockPictureRepo struct {
	pics map[string]*model.ProfilePicture
}

func newMockPictureRepo() *mockPictureRepo {
	return &mockPictureRepo{pics: make(map[string]*model.ProfilePicture)}
}

func (m *mockPictureRepo) Upsert(_ context.Context, pic *model.ProfilePicture) error {
	cp := *pic
	m.pics[pic.ID] = &cp
	return nil
}

func (m *mockPictureRepo) Get(_ context.Context, userID string) (*model.ProfilePicture, error) {
	if p, ok := m.pics[userID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPictureRepo) Delete(_ context.Context, userID string) (bool, error) {
	if _, ok := m.pics[userID]; !ok {
		return false, nil
	}
	delete(m.pics, userID)
	return true, nil
}

// ── Mock DocumentRepository ──

type mockDocumentRepo struct {
	docs      map[string]*model.Document
	counter   int64
	createErr error
}

func newMockDocumentRepo() *mockDocumentRepo {
	return &mockDocumentRepo{docs: make(map[string]*model.Document), counter: 10000}
}

func (m *mockDocumentRepo) NextSequence(_ context.Context) (int64, error) {
	m.counter++
	return m.counter, nil
}

func (m *mockDocumentRepo) Create(_ context.Context, doc *model.Document) error {
	if m.createErr != nil {
		m.counter-- // 模拟事务回滚归还序号
		return m.createErr
	}
	if _, ok := m.docs[doc.AppNo]; ok {
		return gorm.ErrDuplicatedKey
	}
	cp := *doc
	m.docs[doc.AppNo] = &cp
	return nil
}

func (m *mockDocumentRepo) GetByAppNo(_ context.Context, appNo string) (*model.Document, error) {
	if d, ok := m.docs[appNo]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDocumentRepo) UpdateReview(_ context.Context, doc *model.Document) (bool, error) {
	stored, ok := m.docs[doc.AppNo]
	if !ok || stored.Status.IsFinal() {
		return false, nil
	}
	cp := *doc
	m.docs[doc.AppNo] = &cp
	return true, nil
}

func (m *mockDocumentRepo) Delete(_ context.Context, appNo string) (bool, error) {
	if _, ok := m.docs[appNo]; !ok {
		return false, nil
	}
	delete(m.docs, appNo)
	return true, nil
}

func (m *mockDocumentRepo) sorted(filter func(d *model.Document) bool, asc bool) []model.Document {
	var result []model.Document
	for _, d := range m.docs {
		if filter(d) {
			result = append(result, *d)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if asc {
			return result[i].Seq < result[j].Seq
		}
		return result[i].Seq > result[j].Seq
	})
	return result
}

func (m *mockDocumentRepo) ListActionable(_ context.Context, role model.Role) ([]model.Document, error) {
	return m.sorted(func(d *model.Document) bool {
		return d.RecRole == role && !d.Status.IsFinal()
	}, true), nil
}

func (m *mockDocumentRepo) ListBySender(_ context.Context, email string) ([]model.Document, error) {
	return m.sorted(func(d *model.Document) bool {
		return strings.EqualFold(d.SenderEmail, email)
	}, false), nil
}

func (m *mockDocumentRepo) Search(_ context.Context, text string) ([]model.Document, error) {
	q := strings.ToLower(text)
	return m.sorted(func(d *model.Document) bool {
		for _, f := range []string{d.AppNo, d.AppTitle, d.Description, string(d.AppType), string(d.Status),
			d.SenderEmail, d.SenderName, d.SenderIDNo, d.SenderDepartment} {
			if strings.Contains(strings.ToLower(f), q) {
				return true
			}
		}
		return false
	}, false), nil
}

// ── Mock Notifier ──

type sentMail struct {
	to, subject, body string
}

type mockNotifier struct {
	sent []sentMail
	err  error
}

func (m *mockNotifier) Send(_ context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

// ── Mock SessionRevoker ──

type mockRevoker struct {
	revoked []string
	err     error
}

func (m *mockRevoker) RevokeUser(_ context.Context, userID string) error {
	if m.err != nil {
		return m.err
	}
	m.revoked = append(m.revoked, userID)
	return nil
}

var errMockDB = errors.New("mock db failure")

// ── 测试环境 ──

type testEnv struct {
	cfg      *config.Config
	repo     *repository.Repository
	users    *mockUserRepo
	pictures *mockPictureRepo
	docs     *mockDocumentRepo
	files    *storage.Storage
	notifier *mockNotifier
	sessions *mockRevoker
	catalog  *model.Catalog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	files, err := storage.New(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("创建存储失败: %v", err)
	}
	env := &testEnv{
		cfg: &config.Config{
			Server:  config.ServerConfig{BaseURL: "http://localhost:8080"},
			Auth:    config.AuthConfig{BcryptCost: bcrypt.MinCost},
			Feature: config.FeatureConfig{NotifyEnabled: true},
		},
		users:    newMockUserRepo(),
		pictures: newMockPictureRepo(),
		docs:     newMockDocumentRepo(),
		files:    files,
		notifier: &mockNotifier{},
		sessions: &mockRevoker{},
		catalog:  model.NewCatalog(),
	}
	env.repo = &repository.Repository{
		User:           env.users,
		ProfilePicture: env.pictures,
		Document:       env.docs,
	}
	return env
}

func (e *testEnv) accountService() *accountService {
	return NewAccountService(e.repo, e.catalog, e.files, e.sessions, zap.NewNop()).(*accountService)
}

func (e *testEnv) onboardingService() *onboardingService {
	return NewOnboardingService(e.cfg, e.repo, e.catalog, zap.NewNop()).(*onboardingService)
}

func (e *testEnv) authService() AuthService {
	return NewAuthService(e.cfg, e.repo, zap.NewNop())
}

func (e *testEnv) documentService(now time.Time) *documentService {
	svc := NewDocumentService(e.cfg, e.repo, e.catalog, e.files, e.notifier, zap.NewNop()).(*documentService)
	svc.now = func() time.Time { return now }
	return svc
}

// addPendingUser 直接写入一个待激活账号
func (e *testEnv) addPendingUser(id, email, phone string, role model.Role) *model.User {
	u := &model.User{ID: id, Email: email, Phone: phone, Role: role, Date: time.Now()}
	e.users.users[id] = u
	return u
}

// addActiveUser 直接写入一个已激活账号
func (e *testEnv) addActiveUser(id, email, password string, role model.Role, department string) *model.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	h := string(hash)
	name := "User " + id
	gender := "Female"
	dob := time.Date(2003, 8, 21, 0, 0, 0, 0, time.UTC)
	u := &model.User{
		ID:         id,
		Email:      email,
		Name:       &name,
		DOB:        &dob,
		Phone:      "9876512345",
		Gender:     &gender,
		Department: &department,
		Password:   &h,
		Role:       role,
		Date:       time.Now(),
	}
	e.users.users[id] = u
	return u
}
