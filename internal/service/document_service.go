package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"edocs/backend/config"
	"edocs/backend/internal/dto"
	"edocs/backend/internal/model"
	"edocs/backend/internal/repository"
	"edocs/backend/internal/session"
	pkgerrors "edocs/backend/pkg/errors"
	"edocs/backend/pkg/metrics"
	"edocs/backend/pkg/storage"
)

// ── 申请模块业务错误 ──

var (
	ErrDocumentNotFound     = errors.New("申请不存在")
	ErrDocTypeInvalid       = errors.New("申请类型不合法")
	ErrDocumentFinalized    = errors.New("申请已审批结束，不能再操作")
	ErrDocumentForbidden    = errors.New("无权处理该申请")
	ErrRejectReasonRequired = errors.New("请填写驳回理由")
	ErrExportGenerateFail   = errors.New("生成 Excel 文件失败")
)

// DocumentService 申请流转业务接口
//
// 状态机：Pending → Under Process → Rejected / Approved，
// Pending 也可直接驳回或通过；Rejected 与 Approved 为终态。
// 只有申请类型对应的审批角色可以预览、驳回、通过；办公室或审批角色可以删除。
type DocumentService interface {
	Submit(ctx context.Context, senderEmail string, req *dto.SubmitDocumentRequest, filename string, file io.Reader) (*dto.DocumentResponse, error)
	Get(ctx context.Context, viewer *session.Principal, appNo string) (*dto.DocumentResponse, error)
	// OpenFile 打开申请附件，返回文件与下载文件名
	OpenFile(ctx context.Context, viewer *session.Principal, appNo string) (*os.File, string, error)
	TransitionToUnderProcess(ctx context.Context, reviewer *session.Principal, appNo string) (*dto.DocumentResponse, error)
	Approve(ctx context.Context, reviewer *session.Principal, appNo string) (*dto.DocumentResponse, error)
	Reject(ctx context.Context, reviewer *session.Principal, appNo, reason string) (*dto.DocumentResponse, error)
	Delete(ctx context.Context, actor *session.Principal, appNo string) (*dto.DeleteDocumentResponse, error)
	ListPendingForRole(ctx context.Context, role model.Role) ([]dto.DocumentResponse, error)
	ListMine(ctx context.Context, email string) ([]dto.DocumentResponse, error)
	SearchReports(ctx context.Context, text string) ([]dto.DocumentResponse, error)
	ExportReports(ctx context.Context, text string) (*bytes.Buffer, string, error)
}

type documentService struct {
	repo          *repository.Repository
	catalog       *model.Catalog
	files         FileStore
	notifier      Notifier
	notifyEnabled bool
	baseURL       string
	logger        *zap.Logger
	now           func() time.Time
}

// NewDocumentService 创建 DocumentService 实例
func NewDocumentService(
	cfg *config.Config,
	repo *repository.Repository,
	catalog *model.Catalog,
	files FileStore,
	notifier Notifier,
	logger *zap.Logger,
) DocumentService {
	return &documentService{
		repo:          repo,
		catalog:       catalog,
		files:         files,
		notifier:      notifier,
		notifyEnabled: cfg.Feature.NotifyEnabled,
		baseURL:       strings.TrimRight(cfg.Server.BaseURL, "/"),
		logger:        logger,
		now:           time.Now,
	}
}

// ═══════════════════════════════════════════════════════════
// Submit — 提交申请
// ═══════════════════════════════════════════════════════════
//
// 同一事务内：递增序号 → 生成编号 → 写入附件 → 插入记录 → 提交。
// 附件写入之后的任何失败都会删除已写入的文件。

func (s *documentService) Submit(ctx context.Context, senderEmail string, req *dto.SubmitDocumentRequest, filename string, file io.Reader) (*dto.DocumentResponse, error) {
	// 1. 发起人与申请类型
	sender, err := s.repo.User.GetByEmail(ctx, senderEmail)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		s.logger.Error("查询发起人失败", zap.String("email", senderEmail), zap.Error(err))
		return nil, err
	}
	acc, ok := sender.Account().(model.ActiveAccount)
	if !ok {
		return nil, ErrOnboardingRequired
	}

	docType, ok := model.ParseDocType(req.AppType)
	if !ok {
		return nil, ErrDocTypeInvalid
	}
	if _, err := storage.Ext(filename); err != nil {
		return nil, ErrFileTypeInvalid
	}

	// 2. 事务内取号
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		s.logger.Error("开启事务失败", zap.Error(err))
		return nil, err
	}
	rollback := func() {
		if tx != nil {
			tx.Rollback()
		}
	}
	txRepo := s.repo.WithTx(tx)

	seq, err := txRepo.Document.NextSequence(ctx)
	if err != nil {
		rollback()
		s.logger.Error("获取申请序号失败", zap.Error(err))
		return nil, err
	}
	now := s.now()
	appNo := model.FormatApplicationNo(now.Year(), seq)
	key, _ := storage.DocumentKey(appNo, filename)

	// 3. 先写附件
	if _, err := s.files.Save(key, file); err != nil {
		rollback()
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, ErrFileTooLarge
		}
		s.logger.Error("保存申请附件失败", zap.String("app_no", appNo), zap.Error(err))
		return nil, err
	}
	cleanup := func() {
		if err := s.files.Remove(key); err != nil {
			s.logger.Warn("清理申请附件失败", zap.String("path", key), zap.Error(err))
		}
	}

	// 4. 插入记录并提交
	doc := &model.Document{
		AppNo:            appNo,
		Seq:              seq,
		AppPath:          key,
		AppType:          docType,
		AppTitle:         strings.TrimSpace(req.AppTitle),
		Description:      strings.TrimSpace(req.Description),
		SenderEmail:      acc.Email,
		SenderName:       acc.Name,
		SenderIDNo:       acc.ID,
		SenderDepartment: acc.Department,
		SenderRole:       acc.Role,
		RecRole:          docType.RecipientRole(),
		Status:           model.StatusPending,
		Date:             now,
		UpdatedAt:        now,
	}
	if err := txRepo.Document.Create(ctx, doc); err != nil {
		rollback()
		cleanup()
		s.logger.Error("创建申请失败", zap.String("app_no", appNo), zap.Error(err))
		return nil, err
	}
	if tx != nil {
		if err := tx.Commit().Error; err != nil {
			cleanup()
			s.logger.Error("提交事务失败", zap.String("app_no", appNo), zap.Error(err))
			return nil, err
		}
	}

	metrics.DocumentsSubmittedTotal.WithLabelValues(string(docType)).Inc()
	s.logger.Info("申请已提交",
		zap.String("app_no", appNo),
		zap.String("type", string(docType)),
		zap.String("sender", acc.ID),
	)
	resp := s.toDocumentResponse(doc)
	return &resp, nil
}

// ────────────────────── Get / OpenFile ──────────────────────

func (s *documentService) Get(ctx context.Context, viewer *session.Principal, appNo string) (*dto.DocumentResponse, error) {
	doc, err := s.load(ctx, appNo)
	if err != nil {
		return nil, err
	}
	if !canView(viewer, doc) {
		return nil, ErrDocumentForbidden
	}
	resp := s.toDocumentResponse(doc)
	return &resp, nil
}

func (s *documentService) OpenFile(ctx context.Context, viewer *session.Principal, appNo string) (*os.File, string, error) {
	doc, err := s.load(ctx, appNo)
	if err != nil {
		return nil, "", err
	}
	if !canView(viewer, doc) {
		return nil, "", ErrDocumentForbidden
	}

	f, err := s.files.Open(doc.AppPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("申请附件缺失", zap.String("app_no", appNo), zap.String("path", doc.AppPath))
			return nil, "", ErrDocumentNotFound
		}
		s.logger.Error("打开申请附件失败", zap.String("app_no", appNo), zap.Error(err))
		return nil, "", err
	}
	return f, path.Base(doc.AppPath), nil
}

// ────────────────────── Review ──────────────────────

func (s *documentService) TransitionToUnderProcess(ctx context.Context, reviewer *session.Principal, appNo string) (*dto.DocumentResponse, error) {
	return s.review(ctx, reviewer, appNo, model.StatusUnderProcess, "")
}

func (s *documentService) Approve(ctx context.Context, reviewer *session.Principal, appNo string) (*dto.DocumentResponse, error) {
	return s.review(ctx, reviewer, appNo, model.StatusApproved, "")
}

func (s *documentService) Reject(ctx context.Context, reviewer *session.Principal, appNo, reason string) (*dto.DocumentResponse, error) {
	return s.review(ctx, reviewer, appNo, model.StatusRejected, strings.TrimSpace(reason))
}

func (s *documentService) review(ctx context.Context, reviewer *session.Principal, appNo string, next model.DocStatus, reason string) (*dto.DocumentResponse, error) {
	doc, err := s.load(ctx, appNo)
	if err != nil {
		return nil, err
	}
	if reviewer == nil || reviewer.Role != doc.RecRole {
		return nil, ErrDocumentForbidden
	}
	if doc.Status.IsFinal() {
		return nil, ErrDocumentFinalized
	}
	if next == model.StatusRejected && reason == "" {
		return nil, ErrRejectReasonRequired
	}

	if err := doc.Transition(next, reason, reviewer.ID, s.now()); err != nil {
		if errors.Is(err, pkgerrors.ErrFinalState) {
			return nil, ErrDocumentFinalized
		}
		return nil, err
	}

	ok, err := s.repo.Document.UpdateReview(ctx, doc)
	if err != nil {
		s.logger.Error("更新申请状态失败", zap.String("app_no", appNo), zap.Error(err))
		return nil, err
	}
	if !ok {
		// 读取之后被其他审批人处理为终态或删除
		return nil, ErrDocumentFinalized
	}

	metrics.DocumentTransitionsTotal.WithLabelValues(string(next)).Inc()
	s.logger.Info("申请状态变更",
		zap.String("app_no", appNo),
		zap.String("status", string(next)),
		zap.String("reviewer", reviewer.ID),
	)

	if next.IsFinal() {
		s.notifyDecision(ctx, doc)
	}
	resp := s.toDocumentResponse(doc)
	return &resp, nil
}

// notifyDecision 审批结束后邮件通知发起人，发送失败只记录日志
func (s *documentService) notifyDecision(ctx context.Context, doc *model.Document) {
	if !s.notifyEnabled || s.notifier == nil {
		return
	}

	result := "已通过"
	if doc.Status == model.StatusRejected {
		result = "已被驳回"
	}
	subject := fmt.Sprintf("[eDocs] 申请 %s %s", doc.AppNo, result)

	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><body style="font-family: Arial, sans-serif;">`)
	fmt.Fprintf(&b, "<p>%s，您好：</p>", html.EscapeString(doc.SenderName))
	fmt.Fprintf(&b, "<p>您提交的 %s《%s》（编号 %s）%s。</p>",
		html.EscapeString(doc.AppType.Label()), html.EscapeString(doc.AppTitle), doc.AppNo, result)
	if doc.Status == model.StatusRejected {
		fmt.Fprintf(&b, "<p>驳回理由：%s</p>", html.EscapeString(doc.RejectTxt))
	}
	if s.baseURL != "" {
		fmt.Fprintf(&b, `<p><a href="%s/documents/%s">查看详情</a></p>`, s.baseURL, doc.AppNo)
	}
	b.WriteString("</body></html>")

	if err := s.notifier.Send(ctx, doc.SenderEmail, subject, b.String()); err != nil {
		s.logger.Warn("审批结果通知发送失败", zap.String("app_no", doc.AppNo), zap.Error(err))
	}
}

// ────────────────────── Delete ──────────────────────

func (s *documentService) Delete(ctx context.Context, actor *session.Principal, appNo string) (*dto.DeleteDocumentResponse, error) {
	doc, err := s.load(ctx, appNo)
	if err != nil {
		return nil, err
	}
	if actor == nil || (actor.Role != model.RoleOfficeStaff && actor.Role != doc.RecRole) {
		return nil, ErrDocumentForbidden
	}

	resp := &dto.DeleteDocumentResponse{AppNo: appNo}
	if err := s.files.Remove(doc.AppPath); err != nil {
		resp.Warning = "附件删除失败，记录仍将删除"
		s.logger.Warn("删除申请附件失败", zap.String("app_no", appNo), zap.String("path", doc.AppPath), zap.Error(err))
	}

	deleted, err := s.repo.Document.Delete(ctx, appNo)
	if err != nil {
		s.logger.Error("删除申请失败", zap.String("app_no", appNo), zap.Error(err))
		return nil, err
	}
	if !deleted {
		return nil, ErrDocumentNotFound
	}

	s.logger.Info("申请已删除", zap.String("app_no", appNo), zap.String("by", actor.ID))
	return resp, nil
}

// ────────────────────── Lists ──────────────────────

func (s *documentService) ListPendingForRole(ctx context.Context, role model.Role) ([]dto.DocumentResponse, error) {
	docs, err := s.repo.Document.ListActionable(ctx, role)
	if err != nil {
		s.logger.Error("查询审批队列失败", zap.String("role", string(role)), zap.Error(err))
		return nil, err
	}
	return s.toDocumentResponses(docs), nil
}

func (s *documentService) ListMine(ctx context.Context, email string) ([]dto.DocumentResponse, error) {
	docs, err := s.repo.Document.ListBySender(ctx, email)
	if err != nil {
		s.logger.Error("查询我的申请失败", zap.String("email", email), zap.Error(err))
		return nil, err
	}
	return s.toDocumentResponses(docs), nil
}

func (s *documentService) SearchReports(ctx context.Context, text string) ([]dto.DocumentResponse, error) {
	docs, err := s.repo.Document.Search(ctx, strings.TrimSpace(text))
	if err != nil {
		s.logger.Error("检索申请报表失败", zap.String("q", text), zap.Error(err))
		return nil, err
	}
	return s.toDocumentResponses(docs), nil
}

// ═══════════════════════════════════════════════════════════
// ExportReports — 导出申请报表为 Excel
// ═══════════════════════════════════════════════════════════

var reportHeaders = []string{
	"申请编号", "类型", "标题", "状态", "发起人", "学工号", "邮箱", "院系", "审批角色", "提交时间", "驳回理由",
}

func (s *documentService) ExportReports(ctx context.Context, text string) (*bytes.Buffer, string, error) {
	docs, err := s.repo.Document.Search(ctx, strings.TrimSpace(text))
	if err != nil {
		s.logger.Error("检索申请报表失败", zap.String("q", text), zap.Error(err))
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Reports"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	for i, h := range reportHeaders {
		f.SetCellValue(sheetName, cell(colName(i), 1), h)
	}
	f.SetCellStyle(sheetName, "A1", cell(colName(len(reportHeaders)-1), 1), headerStyle)
	f.SetColWidth(sheetName, "A", "A", 20)
	f.SetColWidth(sheetName, "B", "H", 18)
	f.SetColWidth(sheetName, "J", "K", 24)

	for i := range docs {
		d := &docs[i]
		row := i + 2
		values := []interface{}{
			d.AppNo,
			d.AppType.Label(),
			d.AppTitle,
			string(d.Status),
			d.SenderName,
			d.SenderIDNo,
			d.SenderEmail,
			s.catalog.DepartmentLabel(d.SenderDepartment),
			d.RecRole.Label(),
			d.Date.Format("2006-01-02 15:04"),
			d.RejectTxt,
		}
		for col, v := range values {
			f.SetCellValue(sheetName, cell(colName(col), row), v)
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("edoc_reports_%s.xlsx", s.now().Format("20060102"))
	return buf, filename, nil
}

// ── 辅助函数 ──

func (s *documentService) load(ctx context.Context, appNo string) (*model.Document, error) {
	doc, err := s.repo.Document.GetByAppNo(ctx, appNo)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		s.logger.Error("查询申请失败", zap.String("app_no", appNo), zap.Error(err))
		return nil, err
	}
	return doc, nil
}

// canView 发起人、审批角色与办公室可以查看申请
func canView(p *session.Principal, doc *model.Document) bool {
	if p == nil {
		return false
	}
	return strings.EqualFold(p.Email, doc.SenderEmail) ||
		p.Role == doc.RecRole ||
		p.Role == model.RoleOfficeStaff
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func (s *documentService) toDocumentResponse(d *model.Document) dto.DocumentResponse {
	resp := dto.DocumentResponse{
		AppNo:            d.AppNo,
		AppType:          string(d.AppType),
		AppTypeLabel:     d.AppType.Label(),
		AppTitle:         d.AppTitle,
		Description:      d.Description,
		SenderEmail:      d.SenderEmail,
		SenderName:       d.SenderName,
		SenderIDNo:       d.SenderIDNo,
		SenderDepartment: d.SenderDepartment,
		SenderRole:       string(d.SenderRole),
		RecRole:          string(d.RecRole),
		Status:           string(d.Status),
		RejectTxt:        d.RejectTxt,
		Date:             d.Date.Format(time.RFC3339),
		UpdatedAt:        d.UpdatedAt.Format(time.RFC3339),
	}
	if d.ReviewedBy != nil {
		resp.ReviewedBy = *d.ReviewedBy
	}
	if d.ApprovedAt != nil {
		resp.ApprovedAt = d.ApprovedAt.Format(time.RFC3339)
	}
	return resp
}

func (s *documentService) toDocumentResponses(docs []model.Document) []dto.DocumentResponse {
	list := make([]dto.DocumentResponse, 0, len(docs))
	for i := range docs {
		list = append(list, s.toDocumentResponse(&docs[i]))
	}
	return list
}
