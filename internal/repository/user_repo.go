package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"edocs/backend/internal/model"
)

// ProfileFields 用户可自行修改的资料字段
type ProfileFields struct {
	Name       string
	DOB        time.Time
	Gender     string
	Department string
}

// OnboardingFields 激活时写入的完整资料
type OnboardingFields struct {
	ID           string
	Name         string
	DOB          time.Time
	Phone        string
	Gender       string
	Department   string
	PasswordHash string
	Role         model.Role
}

// UserRepository 用户数据访问接口
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	CompleteOnboarding(ctx context.Context, email string, f *OnboardingFields) (bool, error)
	UpdateProfile(ctx context.Context, email string, f *ProfileFields) (bool, error)
	UpdatePassword(ctx context.Context, email, passwordHash string) (bool, error)
	ResetToPending(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	CountByRole(ctx context.Context, role model.Role) (int64, error)
	Search(ctx context.Context, text string) ([]model.User, error)
	ListAll(ctx context.Context) ([]model.User, error)
}

// userRepo UserRepository 的 GORM 实现
type userRepo struct {
	db *gorm.DB
}

// NewUserRepo 创建 UserRepository 实例
func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = LOWER(?)", email).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) CompleteOnboarding(ctx context.Context, email string, f *OnboardingFields) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("LOWER(email) = LOWER(?)", email).
		Updates(map[string]interface{}{
			"id":         f.ID,
			"name":       f.Name,
			"dob":        f.DOB,
			"phone":      f.Phone,
			"gender":     f.Gender,
			"department": f.Department,
			"password":   f.PasswordHash,
			"role":       f.Role,
		})
	return result.RowsAffected > 0, result.Error
}

func (r *userRepo) UpdateProfile(ctx context.Context, email string, f *ProfileFields) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("LOWER(email) = LOWER(?)", email).
		Updates(map[string]interface{}{
			"name":       f.Name,
			"dob":        f.DOB,
			"gender":     f.Gender,
			"department": f.Department,
		})
	return result.RowsAffected > 0, result.Error
}

func (r *userRepo) UpdatePassword(ctx context.Context, email, passwordHash string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("LOWER(email) = LOWER(?)", email).
		Update("password", passwordHash)
	return result.RowsAffected > 0, result.Error
}

// ResetToPending 清空激活资料与密码，账号回到待激活状态
func (r *userRepo) ResetToPending(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"name":       nil,
			"dob":        nil,
			"gender":     nil,
			"department": nil,
			"password":   nil,
		})
	return result.RowsAffected > 0, result.Error
}

func (r *userRepo) Delete(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&model.User{})
	return result.RowsAffected > 0, result.Error
}

func (r *userRepo) CountByRole(ctx context.Context, role model.Role) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("role = ?", role).
		Count(&count).Error
	return count, err
}

// Search 按姓名、邮箱、学工号、电话、院系编码、角色做不区分大小写的子串匹配
func (r *userRepo) Search(ctx context.Context, text string) ([]model.User, error) {
	var users []model.User
	p := likePattern(text)
	err := r.db.WithContext(ctx).
		Where("name ILIKE ? OR email ILIKE ? OR id ILIKE ? OR phone ILIKE ? OR department ILIKE ? OR role ILIKE ?",
			p, p, p, p, p, p).
		Order("name ASC NULLS LAST").
		Order("id ASC").
		Find(&users).Error
	return users, err
}

func (r *userRepo) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Order("date ASC").
		Find(&users).Error
	return users, err
}
