package model

import (
	"fmt"
	"time"

	pkgerrors "edocs/backend/pkg/errors"
)

// DocType 申请类型（封闭枚举）
type DocType string

const (
	DocTypeVerification DocType = "DOC_VER"
	DocTypeLeave        DocType = "LEA_REQ"
	DocTypeEvent        DocType = "EVE_REQ"
	DocTypeInternship   DocType = "INT_REQ"
	DocTypeWorkshop     DocType = "WORK_REQ"
)

// AllDocTypes 全部申请类型
var AllDocTypes = []DocType{DocTypeVerification, DocTypeLeave, DocTypeEvent, DocTypeInternship, DocTypeWorkshop}

// ParseDocType 解析申请类型
func ParseDocType(s string) (DocType, bool) {
	for _, t := range AllDocTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Label 申请类型显示名
func (t DocType) Label() string {
	switch t {
	case DocTypeVerification:
		return "Document Verification"
	case DocTypeLeave:
		return "Leave Request"
	case DocTypeEvent:
		return "Event Request"
	case DocTypeInternship:
		return "Internship Request"
	case DocTypeWorkshop:
		return "Workshop Request"
	}
	return string(t)
}

// RecipientRole 该类型申请的审批角色
// 材料核验、活动申请 → 办公室；请假、实习、讲座 → 系主任
func (t DocType) RecipientRole() Role {
	switch t {
	case DocTypeVerification, DocTypeEvent:
		return RoleOfficeStaff
	case DocTypeLeave, DocTypeInternship, DocTypeWorkshop:
		return RoleHOD
	}
	return ""
}

// DocStatus 申请状态
type DocStatus string

const (
	StatusPending      DocStatus = "Pending"
	StatusUnderProcess DocStatus = "Under Process"
	StatusRejected     DocStatus = "Rejected"
	StatusApproved     DocStatus = "Approved"
)

// ActionableStatuses 审批队列中可处理的状态
var ActionableStatuses = []DocStatus{StatusPending, StatusUnderProcess}

// IsFinal 是否为终态
func (s DocStatus) IsFinal() bool {
	return s == StatusRejected || s == StatusApproved
}

// CanTransitionTo 校验状态流转
// Pending / Under Process 可进入 Under Process（幂等）、Rejected、Approved；终态不可再变
func (s DocStatus) CanTransitionTo(next DocStatus) error {
	if s.IsFinal() {
		return pkgerrors.ErrFinalState
	}
	switch s {
	case StatusPending, StatusUnderProcess:
		switch next {
		case StatusUnderProcess, StatusRejected, StatusApproved:
			return nil
		}
	}
	return pkgerrors.ErrInvalidTransition
}

// FormatApplicationNo 生成申请编号：EDOC-<年份>-0<序号>
func FormatApplicationNo(year int, seq int64) string {
	return fmt.Sprintf("EDOC-%d-0%d", year, seq)
}

// Document 申请表 — 对应 documents
// 发起人信息为提交时快照，之后不随用户资料变化
type Document struct {
	AppNo            string     `gorm:"column:app_no;type:varchar(32);primaryKey" json:"app_no"`
	Seq              int64      `gorm:"not null;uniqueIndex"                      json:"-"`
	AppPath          string     `gorm:"type:varchar(512);not null"                json:"-"`
	AppType          DocType    `gorm:"type:varchar(16);not null"                 json:"app_type"`
	AppTitle         string     `gorm:"type:varchar(200);not null"                json:"app_title"`
	Description      string     `gorm:"type:text;not null"                        json:"description"`
	SenderEmail      string     `gorm:"type:varchar(255);not null"                json:"sender_email"`
	SenderName       string     `gorm:"type:varchar(100);not null"                json:"sender_name"`
	SenderIDNo       string     `gorm:"column:sender_id_no;type:varchar(32)"      json:"sender_id_no"`
	SenderDepartment string     `gorm:"type:varchar(32);not null"                 json:"sender_department"`
	SenderRole       Role       `gorm:"type:varchar(20);not null"                 json:"sender_role"`
	RecRole          Role       `gorm:"type:varchar(20);not null"                 json:"rec_role"`
	Status           DocStatus  `gorm:"type:varchar(20);not null"                 json:"status"`
	RejectTxt        string     `gorm:"column:reject_txt;type:text"               json:"reject_txt"`
	ReviewedBy       *string    `gorm:"type:varchar(32)"                          json:"reviewed_by,omitempty"`
	ApprovedAt       *time.Time `gorm:"type:timestamptz"                          json:"approved_at,omitempty"`
	Date             time.Time  `gorm:"column:date;not null"                      json:"date"`
	UpdatedAt        time.Time  `gorm:"not null"                                  json:"updated_at"`
}

// TableName 指定表名
func (Document) TableName() string { return "documents" }

// Transition 执行状态流转并记录审批信息
func (d *Document) Transition(next DocStatus, reason, reviewerID string, now time.Time) error {
	if err := d.Status.CanTransitionTo(next); err != nil {
		return err
	}
	d.Status = next
	d.UpdatedAt = now
	if reviewerID != "" {
		d.ReviewedBy = &reviewerID
	}
	switch next {
	case StatusRejected:
		d.RejectTxt = reason
	case StatusApproved:
		d.ApprovedAt = &now
	}
	return nil
}
