package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"edocs/backend/internal/dto"
	"edocs/backend/internal/model"
	"edocs/backend/internal/repository"
	"edocs/backend/pkg/storage"
)

// ── 账号模块业务错误 ──

var (
	ErrAccountNotFound      = errors.New("账号不存在")
	ErrAccountIDExists      = errors.New("该学工号已存在")
	ErrAccountEmailExists   = errors.New("该邮箱已被使用")
	ErrAccountIDInvalid     = errors.New("学工号只能包含字母、数字、下划线和连字符")
	ErrRoleInvalid          = errors.New("角色不合法")
	ErrPhoneInvalid         = errors.New("手机号只能包含 6-15 位数字")
	ErrDepartmentInvalid    = errors.New("院系不合法")
	ErrDOBInvalid           = errors.New("出生日期格式应为 YYYY-MM-DD 且不能晚于今天")
	ErrPictureNotFound      = errors.New("尚未上传头像")
	ErrFileTypeInvalid      = errors.New("不支持的文件类型")
	ErrFileTooLarge         = errors.New("文件超过大小限制")
	ErrImportFileInvalid    = errors.New("无法解析 Excel 文件")
	ErrImportHeaderInvalid  = errors.New("Excel 表头必须包含 id、email、phone、role 四列")
	ErrImportTooManyRows    = errors.New("单次导入不能超过 1000 行")
	ErrImportNothingToWrite = errors.New("没有可导入的有效行")
)

const (
	dateLayout     = "2006-01-02"
	maxImportRows  = 1000
	importSheetIdx = 0
)

var (
	accountIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)
	phonePattern     = regexp.MustCompile(`^[0-9]{6,15}$`)
)

// AccountService 账号目录业务接口
type AccountService interface {
	Create(ctx context.Context, req *dto.CreateAccountRequest) (*dto.AccountResponse, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	// IsPendingOnboarding 按邮箱（找不到时按学工号）查找账号，存在且未设置密码时返回 true
	IsPendingOnboarding(ctx context.Context, identifier string) (bool, error)
	// CompleteOnboarding 按邮箱写入激活资料，账号不存在时不做任何操作
	CompleteOnboarding(ctx context.Context, email string, f *repository.OnboardingFields) error
	// EditProfile 只修改姓名、生日、性别、院系，返回是否找到账号
	EditProfile(ctx context.Context, email string, req *dto.EditProfileRequest) (bool, error)
	// ResetToPending 清空激活资料并撤销该用户的登录会话
	ResetToPending(ctx context.Context, id string) error
	// Delete 删除账号及头像并撤销登录会话，账号不存在时不做任何操作；头像文件删除失败作为警告返回
	Delete(ctx context.Context, id string) (string, error)
	CountByRole(ctx context.Context, role model.Role) (int64, error)
	RoleCounts(ctx context.Context) (map[string]int64, error)
	Search(ctx context.Context, text string) ([]dto.AccountResponse, error)
	ListAll(ctx context.Context) ([]dto.AccountResponse, error)
	ImportAccounts(ctx context.Context, r io.Reader) (*dto.ImportAccountsResponse, error)

	Profile(ctx context.Context, userID string) (*dto.ProfileResponse, error)
	UploadPicture(ctx context.Context, userID, filename string, r io.Reader) (*model.ProfilePicture, error)
	DeletePicture(ctx context.Context, userID string) (string, error)
	OpenPicture(ctx context.Context, userID string) (*os.File, error)
}

type accountService struct {
	repo     *repository.Repository
	catalog  *model.Catalog
	files    FileStore
	sessions SessionRevoker
	logger   *zap.Logger
	now      func() time.Time
}

// NewAccountService 创建 AccountService 实例
func NewAccountService(repo *repository.Repository, catalog *model.Catalog, files FileStore, sessions SessionRevoker, logger *zap.Logger) AccountService {
	return &accountService{
		repo:     repo,
		catalog:  catalog,
		files:    files,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// ────────────────────── Create ──────────────────────

func (s *accountService) Create(ctx context.Context, req *dto.CreateAccountRequest) (*dto.AccountResponse, error) {
	user, err := s.newPendingUser(req.ID, req.Email, req.Phone, req.Role)
	if err != nil {
		return nil, err
	}

	if err := s.checkConflict(ctx, user.ID, user.Email); err != nil {
		return nil, err
	}

	if err := s.repo.User.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// 并发创建时由唯一索引兜底
			if _, getErr := s.repo.User.GetByID(ctx, user.ID); getErr == nil {
				return nil, ErrAccountIDExists
			}
			return nil, ErrAccountEmailExists
		}
		s.logger.Error("创建账号失败", zap.String("id", user.ID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("账号已创建", zap.String("id", user.ID), zap.String("role", string(user.Role)))
	resp := s.toAccountResponse(user)
	return &resp, nil
}

// newPendingUser 校验并构造待激活账号
func (s *accountService) newPendingUser(id, email, phone, role string) (*model.User, error) {
	id = strings.TrimSpace(id)
	email = strings.TrimSpace(email)
	phone = strings.TrimSpace(phone)

	r, ok := model.ParseRole(strings.TrimSpace(role))
	if !ok {
		return nil, ErrRoleInvalid
	}
	if !accountIDPattern.MatchString(id) {
		return nil, ErrAccountIDInvalid
	}
	if !phonePattern.MatchString(phone) {
		return nil, ErrPhoneInvalid
	}

	return &model.User{
		ID:    id,
		Email: email,
		Phone: phone,
		Role:  r,
		Date:  s.now(),
	}, nil
}

// checkConflict 学工号与邮箱均不能已存在
func (s *accountService) checkConflict(ctx context.Context, id, email string) error {
	if _, err := s.repo.User.GetByID(ctx, id); err == nil {
		return ErrAccountIDExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询账号失败", zap.String("id", id), zap.Error(err))
		return err
	}

	if _, err := s.repo.User.GetByEmail(ctx, email); err == nil {
		return ErrAccountEmailExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询账号失败", zap.String("email", email), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── Lookup ──────────────────────

func (s *accountService) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.repo.User.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		s.logger.Error("查询账号失败", zap.String("email", email), zap.Error(err))
		return nil, err
	}
	return user, nil
}

func (s *accountService) GetByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.User.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		s.logger.Error("查询账号失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return user, nil
}

func (s *accountService) IsPendingOnboarding(ctx context.Context, identifier string) (bool, error) {
	user, err := findByIdentifier(ctx, s.repo, identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		s.logger.Error("查询账号失败", zap.String("identifier", identifier), zap.Error(err))
		return false, err
	}
	return user.IsPending(), nil
}

// findByIdentifier 先按邮箱、再按学工号查找账号
func findByIdentifier(ctx context.Context, repo *repository.Repository, identifier string) (*model.User, error) {
	identifier = strings.TrimSpace(identifier)
	user, err := repo.User.GetByEmail(ctx, identifier)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return repo.User.GetByID(ctx, identifier)
}

// ────────────────────── Update ──────────────────────

func (s *accountService) CompleteOnboarding(ctx context.Context, email string, f *repository.OnboardingFields) error {
	ok, err := s.repo.User.CompleteOnboarding(ctx, email, f)
	if err != nil {
		s.logger.Error("写入激活资料失败", zap.String("email", email), zap.Error(err))
		return err
	}
	if !ok {
		s.logger.Warn("激活资料未写入：账号不存在", zap.String("email", email))
	}
	return nil
}

func (s *accountService) EditProfile(ctx context.Context, email string, req *dto.EditProfileRequest) (bool, error) {
	dob, err := parseDOB(req.DOB, s.now())
	if err != nil {
		return false, err
	}
	if !s.catalog.IsDepartment(req.Department) {
		return false, ErrDepartmentInvalid
	}

	ok, err := s.repo.User.UpdateProfile(ctx, email, &repository.ProfileFields{
		Name:       strings.TrimSpace(req.Name),
		DOB:        dob,
		Gender:     strings.TrimSpace(req.Gender),
		Department: req.Department,
	})
	if err != nil {
		s.logger.Error("更新资料失败", zap.String("email", email), zap.Error(err))
		return false, err
	}
	return ok, nil
}

func (s *accountService) ResetToPending(ctx context.Context, id string) error {
	ok, err := s.repo.User.ResetToPending(ctx, id)
	if err != nil {
		s.logger.Error("重置账号失败", zap.String("id", id), zap.Error(err))
		return err
	}
	if !ok {
		return ErrAccountNotFound
	}
	if err := s.sessions.RevokeUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info("账号已重置为待激活", zap.String("id", id))
	return nil
}

// ────────────────────── Delete ──────────────────────

func (s *accountService) Delete(ctx context.Context, id string) (string, error) {
	pic, err := s.repo.ProfilePicture.Get(ctx, id)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询头像失败", zap.String("id", id), zap.Error(err))
		return "", err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		s.logger.Error("开启事务失败", zap.Error(err))
		return "", err
	}
	txRepo := s.repo.WithTx(tx)

	if _, err := txRepo.ProfilePicture.Delete(ctx, id); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		s.logger.Error("删除头像记录失败", zap.String("id", id), zap.Error(err))
		return "", err
	}
	deleted, err := txRepo.User.Delete(ctx, id)
	if err != nil {
		if tx != nil {
			tx.Rollback()
		}
		s.logger.Error("删除账号失败", zap.String("id", id), zap.Error(err))
		return "", err
	}
	if tx != nil {
		if err := tx.Commit().Error; err != nil {
			s.logger.Error("提交事务失败", zap.Error(err))
			return "", err
		}
	}

	// 账号不存在时同样撤销，重试删除可以补上上次失败的撤销
	if err := s.sessions.RevokeUser(ctx, id); err != nil {
		return "", err
	}
	if deleted {
		s.logger.Info("账号已删除", zap.String("id", id))
	}
	if pic == nil {
		return "", nil
	}
	return s.removeFile(pic.Path, "头像文件删除失败"), nil
}

// removeFile 删除文件，失败时记录日志并返回警告文本
func (s *accountService) removeFile(key, warning string) string {
	if err := s.files.Remove(key); err != nil {
		s.logger.Warn(warning, zap.String("path", key), zap.Error(err))
		return warning
	}
	return ""
}

// ────────────────────── Query ──────────────────────

func (s *accountService) CountByRole(ctx context.Context, role model.Role) (int64, error) {
	return s.repo.User.CountByRole(ctx, role)
}

func (s *accountService) RoleCounts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(model.AllRoles))
	for _, r := range model.AllRoles {
		n, err := s.repo.User.CountByRole(ctx, r)
		if err != nil {
			s.logger.Error("统计账号失败", zap.String("role", string(r)), zap.Error(err))
			return nil, err
		}
		counts[string(r)] = n
	}
	return counts, nil
}

func (s *accountService) Search(ctx context.Context, text string) ([]dto.AccountResponse, error) {
	users, err := s.repo.User.Search(ctx, strings.TrimSpace(text))
	if err != nil {
		s.logger.Error("检索账号失败", zap.String("q", text), zap.Error(err))
		return nil, err
	}
	return s.toAccountResponses(users), nil
}

func (s *accountService) ListAll(ctx context.Context) ([]dto.AccountResponse, error) {
	users, err := s.repo.User.ListAll(ctx)
	if err != nil {
		s.logger.Error("查询账号列表失败", zap.Error(err))
		return nil, err
	}
	return s.toAccountResponses(users), nil
}

// ────────────────────── ImportAccounts ──────────────────────

// ImportAccounts 从 Excel 批量创建待激活账号
// 第一张表第一行为表头（id / email / phone / role，顺序不限），有效行在同一事务内写入
func (s *accountService) ImportAccounts(ctx context.Context, r io.Reader) (*dto.ImportAccountsResponse, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, ErrImportFileInvalid
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrImportFileInvalid
	}
	rows, err := f.GetRows(sheets[importSheetIdx])
	if err != nil {
		return nil, ErrImportFileInvalid
	}
	if len(rows) == 0 {
		return nil, ErrImportHeaderInvalid
	}

	cols, err := importColumns(rows[0])
	if err != nil {
		return nil, err
	}
	if len(rows)-1 > maxImportRows {
		return nil, ErrImportTooManyRows
	}

	result := &dto.ImportAccountsResponse{Failed: []dto.ImportRowError{}}
	seenIDs := make(map[string]bool)
	seenEmails := make(map[string]bool)
	var users []*model.User

	for i, row := range rows[1:] {
		rowNo := i + 2 // Excel 行号
		get := func(col string) string {
			idx := cols[col]
			if idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
			return ""
		}
		id, email, phone, role := get("id"), get("email"), get("phone"), get("role")
		if id == "" && email == "" && phone == "" && role == "" {
			continue
		}

		fail := func(reason string) {
			result.Failed = append(result.Failed, dto.ImportRowError{Row: rowNo, ID: id, Reason: reason})
		}

		if !strings.Contains(email, "@") {
			fail("邮箱格式不正确")
			continue
		}
		user, err := s.newPendingUser(id, email, phone, strings.ToLower(role))
		if err != nil {
			fail(err.Error())
			continue
		}
		emailKey := strings.ToLower(user.Email)
		if seenIDs[user.ID] {
			fail("文件内学工号重复")
			continue
		}
		if seenEmails[emailKey] {
			fail("文件内邮箱重复")
			continue
		}
		if err := s.checkConflict(ctx, user.ID, user.Email); err != nil {
			if errors.Is(err, ErrAccountIDExists) || errors.Is(err, ErrAccountEmailExists) {
				fail(err.Error())
				continue
			}
			return nil, err
		}

		seenIDs[user.ID] = true
		seenEmails[emailKey] = true
		users = append(users, user)
	}

	if len(users) == 0 {
		if len(result.Failed) == 0 {
			return nil, ErrImportNothingToWrite
		}
		return result, nil
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		s.logger.Error("开启事务失败", zap.Error(err))
		return nil, err
	}
	txRepo := s.repo.WithTx(tx)
	for _, u := range users {
		if err := txRepo.User.Create(ctx, u); err != nil {
			if tx != nil {
				tx.Rollback()
			}
			s.logger.Error("批量导入账号失败", zap.String("id", u.ID), zap.Error(err))
			return nil, fmt.Errorf("导入账号 %s 失败: %w", u.ID, err)
		}
	}
	if tx != nil {
		if err := tx.Commit().Error; err != nil {
			s.logger.Error("提交事务失败", zap.Error(err))
			return nil, err
		}
	}

	result.Created = len(users)
	s.logger.Info("批量导入账号完成", zap.Int("created", result.Created), zap.Int("failed", len(result.Failed)))
	return result, nil
}

// importColumns 解析表头，返回列名到列下标的映射
func importColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, 4)
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	for _, required := range []string{"id", "email", "phone", "role"} {
		if _, ok := cols[required]; !ok {
			return nil, ErrImportHeaderInvalid
		}
	}
	return cols, nil
}

// ────────────────────── Profile & picture ──────────────────────

func (s *accountService) Profile(ctx context.Context, userID string) (*dto.ProfileResponse, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	_, err = s.repo.ProfilePicture.Get(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询头像失败", zap.String("id", userID), zap.Error(err))
		return nil, err
	}

	return &dto.ProfileResponse{
		AccountResponse: s.toAccountResponse(user),
		HasPicture:      err == nil,
	}, nil
}

func (s *accountService) UploadPicture(ctx context.Context, userID, filename string, r io.Reader) (*model.ProfilePicture, error) {
	if _, err := s.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	key, err := storage.ProfilePictureKey(userID, filename)
	if err != nil {
		return nil, ErrFileTypeInvalid
	}

	old, err := s.repo.ProfilePicture.Get(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询头像失败", zap.String("id", userID), zap.Error(err))
		return nil, err
	}

	if _, err := s.files.Save(key, r); err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, ErrFileTooLarge
		}
		s.logger.Error("保存头像文件失败", zap.String("id", userID), zap.Error(err))
		return nil, err
	}

	pic := &model.ProfilePicture{ID: userID, Path: key}
	if err := s.repo.ProfilePicture.Upsert(ctx, pic); err != nil {
		if old == nil || old.Path != key {
			s.removeFile(key, "回滚头像文件失败")
		}
		s.logger.Error("保存头像记录失败", zap.String("id", userID), zap.Error(err))
		return nil, err
	}

	// 扩展名变化时旧文件不会被覆盖，需要单独删除
	if old != nil && old.Path != key {
		s.removeFile(old.Path, "旧头像文件删除失败")
	}
	return pic, nil
}

func (s *accountService) DeletePicture(ctx context.Context, userID string) (string, error) {
	pic, err := s.repo.ProfilePicture.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrPictureNotFound
		}
		s.logger.Error("查询头像失败", zap.String("id", userID), zap.Error(err))
		return "", err
	}

	warning := s.removeFile(pic.Path, "头像文件删除失败")
	if _, err := s.repo.ProfilePicture.Delete(ctx, userID); err != nil {
		s.logger.Error("删除头像记录失败", zap.String("id", userID), zap.Error(err))
		return "", err
	}
	return warning, nil
}

func (s *accountService) OpenPicture(ctx context.Context, userID string) (*os.File, error) {
	pic, err := s.repo.ProfilePicture.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPictureNotFound
		}
		s.logger.Error("查询头像失败", zap.String("id", userID), zap.Error(err))
		return nil, err
	}

	f, err := s.files.Open(pic.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("头像文件缺失", zap.String("path", pic.Path))
			return nil, ErrPictureNotFound
		}
		return nil, err
	}
	return f, nil
}

// ── 辅助函数 ──

// parseDOB 解析出生日期，不能晚于今天
func parseDOB(value string, now time.Time) (time.Time, error) {
	dob, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, ErrDOBInvalid
	}
	today := now.Format(dateLayout)
	if dob.Format(dateLayout) > today {
		return time.Time{}, ErrDOBInvalid
	}
	return dob, nil
}

func (s *accountService) toAccountResponse(u *model.User) dto.AccountResponse {
	resp := dto.AccountResponse{
		ID:           u.ID,
		Email:        u.Email,
		Phone:        u.Phone,
		Role:         string(u.Role),
		RegisteredAt: u.Date.Format(time.RFC3339),
	}
	switch acc := u.Account().(type) {
	case model.PendingAccount:
		resp.Pending = true
	case model.ActiveAccount:
		resp.Name = acc.Name
		resp.Gender = acc.Gender
		resp.Department = acc.Department
		if acc.Department != "" {
			resp.DepartmentLabel = s.catalog.DepartmentLabel(acc.Department)
		}
		if !acc.DOB.IsZero() {
			resp.DOB = acc.DOB.Format(dateLayout)
		}
	}
	return resp
}

func (s *accountService) toAccountResponses(users []model.User) []dto.AccountResponse {
	list := make([]dto.AccountResponse, 0, len(users))
	for i := range users {
		list = append(list, s.toAccountResponse(&users[i]))
	}
	return list
}
