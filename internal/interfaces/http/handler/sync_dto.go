package handler

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/petshop/backend/internal/domain/catalog"
	"github.com/petshop/backend/internal/domain/shared"
	syncdomain "github.com/petshop/backend/internal/domain/sync"
	"github.com/petshop/backend/internal/interfaces/http/dto"
)

// SourceResponse represents a synchronization source in API responses
type SourceResponse struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	SourceType    string          `json:"source_type"`
	ConnectorType string          `json:"connector_type"`
	Config        json.RawMessage `json:"config"`
	Active        bool            `json:"active"`
	SyncMode      string          `json:"sync_mode"`
	Schedule      string          `json:"schedule,omitempty"`
	LastSyncAt    *time.Time      `json:"last_sync_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func toSourceResponse(s *syncdomain.Source) SourceResponse {
	return SourceResponse{
		ID:            s.ID,
		Name:          s.Name,
		SourceType:    string(s.SourceType),
		ConnectorType: string(s.ConnectorType),
		Config:        s.Config,
		Active:        s.Active,
		SyncMode:      string(s.SyncMode),
		Schedule:      s.Schedule,
		LastSyncAt:    s.LastSyncAt,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func toSourceResponses(sources []syncdomain.Source) []SourceResponse {
	out := make([]SourceResponse, len(sources))
	for i := range sources {
		out[i] = toSourceResponse(&sources[i])
	}
	return out
}

// TestConnectionResponse reports the outcome of a source connection test
type TestConnectionResponse struct {
	SampleCount int    `json:"sample_count"`
	Message     string `json:"message"`
}

// JobCountsResponse represents per-outcome record counts of a job
type JobCountsResponse struct {
	TotalFetched int `json:"total_fetched"`
	Inserted     int `json:"inserted"`
	Updated      int `json:"updated"`
	Unchanged    int `json:"unchanged"`
	Skipped      int `json:"skipped"`
	Conflicts    int `json:"conflicts"`
}

// SyncJobResponse represents a synchronization job in API responses
type SyncJobResponse struct {
	ID              uuid.UUID         `json:"id"`
	SourceID        uuid.UUID         `json:"source_id"`
	SourceName      string            `json:"source_name"`
	TriggeredBy     string            `json:"triggered_by"`
	SyncType        string            `json:"sync_type"`
	Status          string            `json:"status"`
	Counts          JobCountsResponse `json:"counts"`
	CancelRequested bool              `json:"cancel_requested"`
	StartedAt       *time.Time        `json:"started_at,omitempty"`
	FinishedAt      *time.Time        `json:"finished_at,omitempty"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

func toSyncJobResponse(j *syncdomain.SyncJob, sourceName string) SyncJobResponse {
	return SyncJobResponse{
		ID:          j.ID,
		SourceID:    j.SourceID,
		SourceName:  sourceName,
		TriggeredBy: j.TriggeredBy,
		SyncType:    string(j.SyncType),
		Status:      string(j.Status),
		Counts: JobCountsResponse{
			TotalFetched: j.Counts.TotalFetched,
			Inserted:     j.Counts.Inserted,
			Updated:      j.Counts.Updated,
			Unchanged:    j.Counts.Unchanged,
			Skipped:      j.Counts.Skipped,
			Conflicts:    j.Counts.Conflicts,
		},
		CancelRequested: j.CancelRequested,
		StartedAt:       j.StartedAt,
		FinishedAt:      j.FinishedAt,
		ErrorMessage:    j.ErrorMessage,
		CreatedAt:       j.CreatedAt,
	}
}

func toSyncJobResponses(jobs []syncdomain.SyncJob, sourceNames map[uuid.UUID]string) []SyncJobResponse {
	out := make([]SyncJobResponse, len(jobs))
	for i := range jobs {
		out[i] = toSyncJobResponse(&jobs[i], sourceNames[jobs[i].SourceID])
	}
	return out
}

// JobItemResponse represents one per-record outcome in API responses
type JobItemResponse struct {
	ID             uuid.UUID       `json:"id"`
	JobID          uuid.UUID       `json:"job_id"`
	ExternalID     string          `json:"external_id,omitempty"`
	InternalCode   string          `json:"internal_code,omitempty"`
	Barcode        string          `json:"barcode,omitempty"`
	Action         string          `json:"action"`
	Reason         string          `json:"reason,omitempty"`
	BeforeSnapshot json.RawMessage `json:"before_snapshot,omitempty"`
	AfterSnapshot  json.RawMessage `json:"after_snapshot,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func toJobItemResponses(items []syncdomain.SyncJobItem) []JobItemResponse {
	out := make([]JobItemResponse, len(items))
	for i := range items {
		item := &items[i]
		out[i] = JobItemResponse{
			ID:             item.ID,
			JobID:          item.JobID,
			ExternalID:     item.ExternalID,
			InternalCode:   item.InternalCode,
			Barcode:        item.Barcode,
			Action:         string(item.Action),
			Reason:         item.Reason,
			BeforeSnapshot: json.RawMessage(item.BeforeSnapshot),
			AfterSnapshot:  json.RawMessage(item.AfterSnapshot),
			CreatedAt:      item.CreatedAt,
		}
	}
	return out
}

// ChangeLogResponse represents one field-level change log entry
type ChangeLogResponse struct {
	ID           uuid.UUID  `json:"id"`
	ProductID    uuid.UUID  `json:"product_id"`
	ChangeSource string     `json:"change_source"`
	SourceID     *uuid.UUID `json:"source_id,omitempty"`
	SyncJobID    *uuid.UUID `json:"sync_job_id,omitempty"`
	FieldName    string     `json:"field_name"`
	OldValue     string     `json:"old_value"`
	NewValue     string     `json:"new_value"`
	ChangedBy    *uuid.UUID `json:"changed_by,omitempty"`
	ChangedAt    time.Time  `json:"changed_at"`
}

func toChangeLogResponses(entries []catalog.ProductChangeLog) []ChangeLogResponse {
	out := make([]ChangeLogResponse, len(entries))
	for i := range entries {
		e := &entries[i]
		out[i] = ChangeLogResponse{
			ID:           e.ID,
			ProductID:    e.ProductID,
			ChangeSource: string(e.ChangeSource),
			SourceID:     e.SourceID,
			SyncJobID:    e.SyncJobID,
			FieldName:    e.FieldName,
			OldValue:     e.OldValue,
			NewValue:     e.NewValue,
			ChangedBy:    e.ChangedBy,
			ChangedAt:    e.ChangedAt,
		}
	}
	return out
}

// PriceHistoryResponse represents one price snapshot
type PriceHistoryResponse struct {
	ID            uuid.UUID  `json:"id"`
	ProductID     uuid.UUID  `json:"product_id"`
	PriceCents    int64      `json:"price_cents"`
	CostCents     int64      `json:"cost_cents"`
	MarginPercent string     `json:"margin_percent"`
	ChangeSource  string     `json:"change_source"`
	SyncJobID     *uuid.UUID `json:"sync_job_id,omitempty"`
	ChangedAt     time.Time  `json:"changed_at"`
}

func toPriceHistoryResponses(entries []catalog.ProductPriceHistory) []PriceHistoryResponse {
	out := make([]PriceHistoryResponse, len(entries))
	for i := range entries {
		e := &entries[i]
		out[i] = PriceHistoryResponse{
			ID:            e.ID,
			ProductID:     e.ProductID,
			PriceCents:    e.PriceCents,
			CostCents:     e.CostCents,
			MarginPercent: e.MarginPercent.String(),
			ChangeSource:  string(e.ChangeSource),
			SyncJobID:     e.SyncJobID,
			ChangedAt:     e.ChangedAt,
		}
	}
	return out
}

// toFilter converts list query parameters to a repository filter,
// applying defaults for anything the caller left unset
func toFilter(req dto.ListRequest) shared.Filter {
	filter := shared.DefaultFilter()
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}
	if req.OrderBy != "" {
		filter.OrderBy = req.OrderBy
	}
	if req.OrderDir != "" {
		filter.OrderDir = req.OrderDir
	}
	return filter
}
