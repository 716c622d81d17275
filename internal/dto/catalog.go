package dto

import "edocs/backend/internal/model"

// CatalogResponse 字典数据
type CatalogResponse struct {
	Departments []model.Option `json:"departments"`
	Roles       []model.Option `json:"roles"`
	DocTypes    []model.Option `json:"doc_types"`
}
