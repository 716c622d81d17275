package repository

import (
	"context"

	"gorm.io/gorm"

	"edocs/backend/internal/model"
)

const documentCounterName = "document"

// DocumentRepository 申请数据访问接口
type DocumentRepository interface {
	// NextSequence 递增并返回申请序号，须在事务内调用，行锁保证并发提交不会拿到相同序号
	NextSequence(ctx context.Context) (int64, error)
	Create(ctx context.Context, doc *model.Document) error
	GetByAppNo(ctx context.Context, appNo string) (*model.Document, error)
	// UpdateReview 写回审批结果，仅当库中状态仍可处理时生效
	UpdateReview(ctx context.Context, doc *model.Document) (bool, error)
	Delete(ctx context.Context, appNo string) (bool, error)
	ListActionable(ctx context.Context, role model.Role) ([]model.Document, error)
	ListBySender(ctx context.Context, email string) ([]model.Document, error)
	Search(ctx context.Context, text string) ([]model.Document, error)
}

type documentRepo struct {
	db *gorm.DB
}

// NewDocumentRepo 创建 DocumentRepository 实例
func NewDocumentRepo(db *gorm.DB) DocumentRepository {
	return &documentRepo{db: db}
}

func (r *documentRepo) NextSequence(ctx context.Context) (int64, error) {
	var seq int64
	err := r.db.WithContext(ctx).
		Raw("UPDATE document_counters SET last_value = last_value + 1 WHERE name = ? RETURNING last_value",
			documentCounterName).
		Scan(&seq).Error
	if err != nil {
		return 0, err
	}
	if seq == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return seq, nil
}

func (r *documentRepo) Create(ctx context.Context, doc *model.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *documentRepo) GetByAppNo(ctx context.Context, appNo string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).Where("app_no = ?", appNo).First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepo) UpdateReview(ctx context.Context, doc *model.Document) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("app_no = ? AND status IN ?", doc.AppNo, model.ActionableStatuses).
		Updates(map[string]interface{}{
			"status":      doc.Status,
			"reject_txt":  doc.RejectTxt,
			"reviewed_by": doc.ReviewedBy,
			"approved_at": doc.ApprovedAt,
			"updated_at":  doc.UpdatedAt,
		})
	return result.RowsAffected > 0, result.Error
}

func (r *documentRepo) Delete(ctx context.Context, appNo string) (bool, error) {
	result := r.db.WithContext(ctx).Where("app_no = ?", appNo).Delete(&model.Document{})
	return result.RowsAffected > 0, result.Error
}

// ListActionable 指定审批角色待处理（Pending / Under Process）的申请，按提交时间升序
func (r *documentRepo) ListActionable(ctx context.Context, role model.Role) ([]model.Document, error) {
	var docs []model.Document
	err := r.db.WithContext(ctx).
		Where("rec_role = ? AND status IN ?", role, model.ActionableStatuses).
		Order("date ASC").
		Order("seq ASC").
		Find(&docs).Error
	return docs, err
}

func (r *documentRepo) ListBySender(ctx context.Context, email string) ([]model.Document, error) {
	var docs []model.Document
	err := r.db.WithContext(ctx).
		Where("LOWER(sender_email) = LOWER(?)", email).
		Order("date DESC").
		Order("seq DESC").
		Find(&docs).Error
	return docs, err
}

// Search 申请报表检索，按提交时间倒序
func (r *documentRepo) Search(ctx context.Context, text string) ([]model.Document, error) {
	var docs []model.Document
	p := likePattern(text)
	err := r.db.WithContext(ctx).
		Where(`app_no ILIKE ? OR app_title ILIKE ? OR description ILIKE ? OR app_type ILIKE ? OR status ILIKE ?
			OR sender_email ILIKE ? OR sender_name ILIKE ? OR sender_id_no ILIKE ? OR sender_department ILIKE ?`,
			p, p, p, p, p, p, p, p, p).
		Order("date DESC").
		Order("seq DESC").
		Find(&docs).Error
	return docs, err
}
