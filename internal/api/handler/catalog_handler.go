package handler

import (
	"github.com/gin-gonic/gin"

	"edocs/backend/internal/dto"
	"edocs/backend/internal/model"
	"edocs/backend/pkg/response"
)

// CatalogHandler 院系、角色、申请类型字典
type CatalogHandler struct {
	catalog *model.Catalog
}

// NewCatalogHandler 创建 CatalogHandler
func NewCatalogHandler(catalog *model.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// GetCatalog 字典数据
// GET /api/v1/catalog
func (h *CatalogHandler) GetCatalog(c *gin.Context) {
	response.OK(c, dto.CatalogResponse{
		Departments: h.catalog.Departments(),
		Roles:       h.catalog.Roles(),
		DocTypes:    h.catalog.DocTypes(),
	})
}
