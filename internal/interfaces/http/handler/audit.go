package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	catalogapp "github.com/petshop/backend/internal/application/catalog"
	"github.com/petshop/backend/internal/interfaces/http/dto"
)

// AuditHandler exposes the read-only catalog audit trail
type AuditHandler struct {
	BaseHandler
	auditService *catalogapp.AuditService
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(auditService *catalogapp.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// ChangeCountResponse reports how many changes were recorded since a cutoff
type ChangeCountResponse struct {
	Since time.Time `json:"since"`
	Count int64     `json:"count"`
}

// ListProductChanges returns a page of change log entries for one product
func (h *AuditHandler) ListProductChanges(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid product ID")
		return
	}

	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	page, err := h.auditService.ListProductChanges(c.Request.Context(), tenantID, productID, toFilter(req))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, toChangeLogResponses(page.Items), page.Total, page.Page, page.PageSize)
}

// ListPriceHistory returns a page of price snapshots for one product
func (h *AuditHandler) ListPriceHistory(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid product ID")
		return
	}

	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	page, err := h.auditService.ListPriceHistory(c.Request.Context(), tenantID, productID, toFilter(req))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, toPriceHistoryResponses(page.Items), page.Total, page.Page, page.PageSize)
}

// CountChanges returns the number of change log entries since a cutoff
func (h *AuditHandler) CountChanges(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	sinceStr := c.Query("since")
	if sinceStr == "" {
		h.BadRequest(c, "Query parameter 'since' is required")
		return
	}
	since, err := time.Parse(time.RFC3339, sinceStr)
	if err != nil {
		h.BadRequest(c, "Query parameter 'since' must be RFC 3339")
		return
	}

	count, err := h.auditService.CountChangesSince(c.Request.Context(), tenantID, since)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, ChangeCountResponse{Since: since, Count: count})
}

// RegisterRoutes registers all audit trail routes
func (h *AuditHandler) RegisterRoutes(rg *gin.RouterGroup) {
	catalog := rg.Group("/catalog")
	{
		catalog.GET("/products/:id/changes", h.ListProductChanges)
		catalog.GET("/products/:id/price-history", h.ListPriceHistory)
		catalog.GET("/changes/count", h.CountChanges)
	}
}
