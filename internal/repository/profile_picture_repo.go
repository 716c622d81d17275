package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"edocs/backend/internal/model"
)

// ProfilePictureRepository 头像数据访问接口
type ProfilePictureRepository interface {
	Upsert(ctx context.Context, pic *model.ProfilePicture) error
	Get(ctx context.Context, userID string) (*model.ProfilePicture, error)
	Delete(ctx context.Context, userID string) (bool, error)
}

type profilePictureRepo struct {
	db *gorm.DB
}

// NewProfilePictureRepo 创建 ProfilePictureRepository 实例
func NewProfilePictureRepo(db *gorm.DB) ProfilePictureRepository {
	return &profilePictureRepo{db: db}
}

func (r *profilePictureRepo) Upsert(ctx context.Context, pic *model.ProfilePicture) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"path"}),
		}).
		Create(pic).Error
}

func (r *profilePictureRepo) Get(ctx context.Context, userID string) (*model.ProfilePicture, error) {
	var pic model.ProfilePicture
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&pic).Error; err != nil {
		return nil, err
	}
	return &pic, nil
}

func (r *profilePictureRepo) Delete(ctx context.Context, userID string) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ?", userID).Delete(&model.ProfilePicture{})
	return result.RowsAffected > 0, result.Error
}
