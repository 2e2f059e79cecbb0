package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	syncapp "github.com/petshop/backend/internal/application/sync"
	syncdomain "github.com/petshop/backend/internal/domain/sync"
	"github.com/petshop/backend/internal/interfaces/http/dto"
)

// SourceHandler handles synchronization source API endpoints
type SourceHandler struct {
	BaseHandler
	sourceService *syncapp.SourceService
}

// NewSourceHandler creates a new SourceHandler
func NewSourceHandler(sourceService *syncapp.SourceService) *SourceHandler {
	return &SourceHandler{sourceService: sourceService}
}

// CreateSourceRequest represents a request to register a new source
type CreateSourceRequest struct {
	Name          string          `json:"name" binding:"required,min=1,max=100"`
	SourceType    string          `json:"source_type" binding:"required,oneof=supplier_feed marketplace file_drop"`
	ConnectorType string          `json:"connector_type" binding:"required,oneof=rest file database"`
	Config        json.RawMessage `json:"config" binding:"required"`
	SyncMode      string          `json:"sync_mode" binding:"required,oneof=manual scheduled hybrid"`
	Schedule      string          `json:"schedule" binding:"max=100"`
}

// UpdateSourceRequest represents a request to update a source's settings
type UpdateSourceRequest struct {
	Name     string          `json:"name" binding:"required,min=1,max=100"`
	Config   json.RawMessage `json:"config" binding:"required"`
	SyncMode string          `json:"sync_mode" binding:"required,oneof=manual scheduled hybrid"`
	Schedule string          `json:"schedule" binding:"max=100"`
}

// Create registers a new synchronization source
func (h *SourceHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req CreateSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	source, err := h.sourceService.CreateSource(c.Request.Context(), syncapp.CreateSourceInput{
		TenantID:      tenantID,
		Name:          req.Name,
		SourceType:    syncdomain.SourceType(req.SourceType),
		ConnectorType: syncdomain.ConnectorType(req.ConnectorType),
		Config:        req.Config,
		SyncMode:      syncdomain.SyncMode(req.SyncMode),
		Schedule:      req.Schedule,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toSourceResponse(source))
}

// Update changes a source's mutable settings
func (h *SourceHandler) Update(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	sourceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid source ID")
		return
	}

	var req UpdateSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	source, err := h.sourceService.UpdateSource(c.Request.Context(), syncapp.UpdateSourceInput{
		TenantID: tenantID,
		SourceID: sourceID,
		Name:     req.Name,
		Config:   req.Config,
		SyncMode: syncdomain.SyncMode(req.SyncMode),
		Schedule: req.Schedule,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toSourceResponse(source))
}

// GetByID returns one source
func (h *SourceHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	sourceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid source ID")
		return
	}

	source, err := h.sourceService.GetSource(c.Request.Context(), tenantID, sourceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toSourceResponse(source))
}

// List returns a page of the tenant's sources
func (h *SourceHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	page, err := h.sourceService.ListSources(c.Request.Context(), tenantID, toFilter(req))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, toSourceResponses(page.Items), page.Total, page.Page, page.PageSize)
}

// Activate re-enables triggers against a source
func (h *SourceHandler) Activate(c *gin.Context) {
	h.setActive(c, true)
}

// Deactivate disables triggers against a source
func (h *SourceHandler) Deactivate(c *gin.Context) {
	h.setActive(c, false)
}

func (h *SourceHandler) setActive(c *gin.Context, active bool) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	sourceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid source ID")
		return
	}

	if active {
		err = h.sourceService.ActivateSource(c.Request.Context(), tenantID, sourceID)
	} else {
		err = h.sourceService.DeactivateSource(c.Request.Context(), tenantID, sourceID)
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// Test performs a bounded, side-effect-free connection test against a source
func (h *SourceHandler) Test(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	sourceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid source ID")
		return
	}

	result, err := h.sourceService.TestSource(c.Request.Context(), tenantID, sourceID)
	if err != nil {
		// A failing connection is a diagnostic result, not a server fault
		var connErr *syncdomain.ConnectorError
		if errors.As(err, &connErr) {
			h.Error(c, http.StatusUnprocessableEntity, dto.ErrCodeSyncConfigInvalid, connErr.Error())
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Success(c, TestConnectionResponse{
		SampleCount: result.SampleCount,
		Message:     result.Message,
	})
}

// RegisterRoutes registers all source management routes
func (h *SourceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sources := rg.Group("/sync/sources")
	{
		sources.POST("", h.Create)
		sources.GET("", h.List)
		sources.GET("/:id", h.GetByID)
		sources.PUT("/:id", h.Update)
		sources.POST("/:id/activate", h.Activate)
		sources.POST("/:id/deactivate", h.Deactivate)
		sources.POST("/:id/test", h.Test)
	}
}
