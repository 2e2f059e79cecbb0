package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/petshop/backend/internal/domain/sync"
)

// maxFeedResponseSize limits the response body size to prevent memory exhaustion
const maxFeedResponseSize = 10 * 1024 * 1024 // 10MB max response

// restItem is the wire shape of one product in a REST feed page
type restItem struct {
	ExternalID string    `json:"external_id"`
	Code       string    `json:"code"`
	Barcode    string    `json:"barcode"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	CostCents  int64     `json:"cost_cents"`
	Stock      int64     `json:"stock"`
	Active     bool      `json:"active"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// restPage is the wire shape of one REST feed page
type restPage struct {
	Items      []json.RawMessage `json:"items"`
	NextCursor string            `json:"next_cursor"`
	HasMore    bool              `json:"has_more"`
}

// RESTConnector fetches catalog pages from an HTTP JSON feed using
// cursor pagination.
type RESTConnector struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// NewRESTConnector creates a new RESTConnector. The per-request timeout comes
// from each source's configuration, so the shared client carries none.
func NewRESTConnector(logger *zap.Logger) *RESTConnector {
	return &RESTConnector{
		httpClient: &http.Client{},
		logger:     logger.Named("connector.rest"),
	}
}

// Type returns the connector type this implementation handles
func (c *RESTConnector) Type() sync.ConnectorType {
	return sync.ConnectorTypeREST
}

// Fetch retrieves one page of records from the feed
func (c *RESTConnector) Fetch(ctx context.Context, source *sync.Source, req sync.FetchRequest) (*sync.FetchPage, error) {
	cfg, err := ParseConfig(sync.ConnectorTypeREST, source.Config)
	if err != nil {
		return nil, sync.NewPermanentError("invalid REST configuration", err)
	}
	restCfg := cfg.(*RESTConfig)

	fetchCtx, cancel := context.WithTimeout(ctx, time.Duration(restCfg.TimeoutSeconds)*time.Second)
	defer cancel()

	page, err := c.fetchPage(fetchCtx, restCfg, req)
	if err != nil {
		return nil, err
	}

	records := make([]sync.ExternalRecord, 0, len(page.Items))
	for _, raw := range page.Items {
		var item restItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, sync.NewPermanentError("malformed feed item", err)
		}
		records = append(records, sync.ExternalRecord{
			ExternalID:       item.ExternalID,
			InternalCodeHint: item.Code,
			Barcode:          item.Barcode,
			Name:             item.Name,
			PriceCents:       item.PriceCents,
			CostCents:        item.CostCents,
			Stock:            item.Stock,
			Active:           item.Active,
			UpdatedAt:        item.UpdatedAt,
			Raw:              string(raw),
		})
	}

	return &sync.FetchPage{
		Records:    records,
		NextCursor: sync.Cursor(page.NextCursor),
		HasMore:    page.HasMore,
	}, nil
}

// TestConnection fetches a single record to validate the configuration
func (c *RESTConnector) TestConnection(ctx context.Context, source *sync.Source) (*sync.TestResult, error) {
	page, err := c.Fetch(ctx, source, sync.FetchRequest{PageSize: 1})
	if err != nil {
		return nil, err
	}
	return &sync.TestResult{
		SampleCount: len(page.Records),
		Message:     "feed reachable",
	}, nil
}

func (c *RESTConnector) fetchPage(ctx context.Context, cfg *RESTConfig, req sync.FetchRequest) (*restPage, error) {
	endpoint, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, sync.NewPermanentError("invalid base URL", err)
	}

	query := endpoint.Query()
	if req.Cursor != "" {
		query.Set("cursor", string(req.Cursor))
	}
	if req.PageSize > 0 {
		query.Set("page_size", strconv.Itoa(req.PageSize))
	}
	if req.UpdatedSince != nil {
		query.Set("updated_since", req.UpdatedSince.UTC().Format(time.RFC3339))
	}
	endpoint.RawQuery = query.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, sync.NewPermanentError("failed to build request", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Timeouts, resets and DNS failures are all worth retrying
		return nil, sync.NewTransientError("request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedResponseSize))
	if err != nil {
		return nil, sync.NewTransientError("failed to read response", err)
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, sync.NewTransientError(fmt.Sprintf("HTTP %d from feed", resp.StatusCode), nil)
	case resp.StatusCode >= 400:
		return nil, sync.NewPermanentError(fmt.Sprintf("HTTP %d from feed", resp.StatusCode), nil)
	}

	var page restPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, sync.NewPermanentError("malformed feed response", err)
	}

	c.logger.Debug("fetched feed page",
		zap.Int("records", len(page.Items)),
		zap.Bool("has_more", page.HasMore))

	return &page, nil
}

var _ sync.Connector = (*RESTConnector)(nil)
