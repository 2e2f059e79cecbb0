package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	catalogapp "github.com/petshop/backend/internal/application/catalog"
	syncapp "github.com/petshop/backend/internal/application/sync"
	syncdomain "github.com/petshop/backend/internal/domain/sync"
	"github.com/petshop/backend/internal/interfaces/http/dto"
)

// SyncJobHandler handles synchronization job API endpoints
type SyncJobHandler struct {
	BaseHandler
	syncService  *syncapp.SyncService
	auditService *catalogapp.AuditService
}

// NewSyncJobHandler creates a new SyncJobHandler
func NewSyncJobHandler(syncService *syncapp.SyncService, auditService *catalogapp.AuditService) *SyncJobHandler {
	return &SyncJobHandler{
		syncService:  syncService,
		auditService: auditService,
	}
}

// TriggerSyncRequest represents a request to start a synchronization job
type TriggerSyncRequest struct {
	SyncType     string     `json:"sync_type" binding:"required,oneof=full incremental"`
	UpdatedSince *time.Time `json:"updated_since"`
	PageSize     int        `json:"page_size" binding:"omitempty,min=1,max=1000"`
}

// ListJobsRequest represents job listing query parameters
type ListJobsRequest struct {
	dto.ListRequest
	SourceID string `form:"source_id" binding:"omitempty,uuid"`
	Status   string `form:"status" binding:"omitempty,oneof=pending running completed failed cancelled"`
}

// Trigger starts a synchronization job for a source. The reconciliation runs
// in the background; the response carries the accepted job.
func (h *SyncJobHandler) Trigger(c *gin.Context) {
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

	var req TriggerSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	triggeredBy := "api"
	if userID, err := getUserID(c); err == nil {
		triggeredBy = userID.String()
	}

	job, err := h.syncService.TriggerSync(c.Request.Context(), syncapp.TriggerSyncInput{
		TenantID:     tenantID,
		SourceID:     sourceID,
		TriggeredBy:  triggeredBy,
		SyncType:     syncdomain.SyncType(req.SyncType),
		UpdatedSince: req.UpdatedSince,
		PageSize:     req.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	names, err := h.syncService.SourceNames(c.Request.Context(), tenantID, []syncdomain.SyncJob{*job})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Accepted(c, toSyncJobResponse(job, names[job.SourceID]))
}

// GetByID returns one job with its counts
func (h *SyncJobHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID")
		return
	}

	job, err := h.syncService.GetJob(c.Request.Context(), tenantID, jobID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	names, err := h.syncService.SourceNames(c.Request.Context(), tenantID, []syncdomain.SyncJob{*job})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toSyncJobResponse(job, names[job.SourceID]))
}

// List returns a page of jobs, optionally narrowed by source and status
func (h *SyncJobHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	req := ListJobsRequest{ListRequest: dto.DefaultListRequest()}
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	input := syncapp.ListJobsInput{
		TenantID: tenantID,
		Filter:   toFilter(req.ListRequest),
	}
	if req.SourceID != "" {
		sourceID, err := uuid.Parse(req.SourceID)
		if err != nil {
			h.BadRequest(c, "Invalid source ID")
			return
		}
		input.SourceID = &sourceID
	}
	if req.Status != "" {
		status := syncdomain.JobStatus(req.Status)
		input.Status = &status
	}

	page, err := h.syncService.ListJobs(c.Request.Context(), input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	names, err := h.syncService.SourceNames(c.Request.Context(), tenantID, page.Items)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, toSyncJobResponses(page.Items, names), page.Total, page.Page, page.PageSize)
}

// Cancel requests cancellation of a running job. The engine honors the
// request between pages; already applied records stay applied.
func (h *SyncJobHandler) Cancel(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID")
		return
	}

	if err := h.syncService.CancelJob(c.Request.Context(), tenantID, jobID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// ListItems returns a page of per-record outcomes for one job
func (h *SyncJobHandler) ListItems(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID")
		return
	}

	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	page, err := h.syncService.ListJobItems(c.Request.Context(), tenantID, jobID, toFilter(req))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, toJobItemResponses(page.Items), page.Total, page.Page, page.PageSize)
}

// ListChanges returns every change log entry written by one job
func (h *SyncJobHandler) ListChanges(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID")
		return
	}

	entries, err := h.auditService.ListJobChanges(c.Request.Context(), tenantID, jobID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toChangeLogResponses(entries))
}

// RegisterRoutes registers all sync job routes
func (h *SyncJobHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sync/sources/:id/jobs", h.Trigger)

	jobs := rg.Group("/sync/jobs")
	{
		jobs.GET("", h.List)
		jobs.GET("/:id", h.GetByID)
		jobs.POST("/:id/cancel", h.Cancel)
		jobs.GET("/:id/items", h.ListItems)
		jobs.GET("/:id/changes", h.ListChanges)
	}
}
