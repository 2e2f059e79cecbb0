package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/petshop/backend/internal/domain/sync"
)

// CSV column names a file drop must carry. Remaining columns are optional.
const (
	columnExternalID = "external_id"
	columnCode       = "code"
	columnBarcode    = "barcode"
	columnName       = "name"
	columnPriceCents = "price_cents"
	columnCostCents  = "cost_cents"
	columnStock      = "stock"
	columnActive     = "active"
	columnUpdatedAt  = "updated_at"
)

var requiredColumns = []string{columnExternalID, columnName, columnPriceCents}

// defaultFilePageSize bounds a page when the engine does not say otherwise
const defaultFilePageSize = 500

// FileConnector reads catalog records from a CSV file drop. The whole file
// is parsed per fetch and paged by row offset; file drops are bounded in
// practice and the file may be replaced between syncs, so no state is kept.
type FileConnector struct {
	logger *zap.Logger
}

// NewFileConnector creates a new FileConnector
func NewFileConnector(logger *zap.Logger) *FileConnector {
	return &FileConnector{logger: logger.Named("connector.file")}
}

// Type returns the connector type this implementation handles
func (c *FileConnector) Type() sync.ConnectorType {
	return sync.ConnectorTypeFile
}

// Fetch retrieves one page of records from the file
func (c *FileConnector) Fetch(ctx context.Context, source *sync.Source, req sync.FetchRequest) (*sync.FetchPage, error) {
	cfg, err := ParseConfig(sync.ConnectorTypeFile, source.Config)
	if err != nil {
		return nil, sync.NewPermanentError("invalid file configuration", err)
	}
	fileCfg := cfg.(*FileConfig)

	if err := ctx.Err(); err != nil {
		return nil, sync.NewTransientError("fetch aborted", err)
	}

	offset := 0
	if req.Cursor != "" {
		offset, err = strconv.Atoi(string(req.Cursor))
		if err != nil || offset < 0 {
			return nil, sync.NewPermanentError("malformed cursor", err)
		}
	}

	records, err := c.readFile(fileCfg, req.UpdatedSince)
	if err != nil {
		return nil, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultFilePageSize
	}

	if offset > len(records) {
		offset = len(records)
	}
	end := offset + pageSize
	if end > len(records) {
		end = len(records)
	}

	page := &sync.FetchPage{
		Records: records[offset:end],
		HasMore: end < len(records),
	}
	if page.HasMore {
		page.NextCursor = sync.Cursor(strconv.Itoa(end))
	}

	c.logger.Debug("read file page",
		zap.String("path", fileCfg.Path),
		zap.Int("offset", offset),
		zap.Int("records", len(page.Records)),
		zap.Bool("has_more", page.HasMore))

	return page, nil
}

// TestConnection parses the file header and first row to validate the
// configuration without touching the catalog
func (c *FileConnector) TestConnection(ctx context.Context, source *sync.Source) (*sync.TestResult, error) {
	page, err := c.Fetch(ctx, source, sync.FetchRequest{PageSize: 1})
	if err != nil {
		return nil, err
	}
	return &sync.TestResult{
		SampleCount: len(page.Records),
		Message:     "file readable",
	}, nil
}

func (c *FileConnector) readFile(cfg *FileConfig, updatedSince *time.Time) ([]sync.ExternalRecord, error) {
	file, err := os.Open(cfg.Path)
	if err != nil {
		if os.IsNotExist(err) {
			// A missing drop may simply not have landed yet
			return nil, sync.NewTransientError("file not found", err)
		}
		return nil, sync.NewPermanentError("cannot open file", err)
	}
	defer file.Close()

	parser, err := newCSVParser(file, cfg.comma())
	if err != nil {
		return nil, sync.NewPermanentError("cannot parse file", err)
	}
	if missing := parser.missingHeaders(requiredColumns); len(missing) > 0 {
		return nil, sync.NewPermanentError(
			fmt.Sprintf("file is missing columns: %s", strings.Join(missing, ", ")), nil)
	}

	rows, err := parser.readAllRows()
	if err != nil {
		return nil, sync.NewPermanentError("cannot read file rows", err)
	}

	records := make([]sync.ExternalRecord, 0, len(rows))
	for _, row := range rows {
		record := rowToRecord(row)
		if updatedSince != nil && !record.UpdatedAt.IsZero() && !record.UpdatedAt.After(*updatedSince) {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// rowToRecord maps one CSV row to the normalized record shape. Unparseable
// numeric fields become zero values, which the validity check downstream
// turns into Skip outcomes rather than failing the whole file.
func rowToRecord(row *csvRow) sync.ExternalRecord {
	record := sync.ExternalRecord{
		ExternalID:       row.get(columnExternalID),
		InternalCodeHint: row.get(columnCode),
		Barcode:          row.get(columnBarcode),
		Name:             row.get(columnName),
	}
	record.PriceCents, _ = strconv.ParseInt(row.get(columnPriceCents), 10, 64)
	record.CostCents, _ = strconv.ParseInt(row.get(columnCostCents), 10, 64)
	record.Stock, _ = strconv.ParseInt(row.get(columnStock), 10, 64)
	record.Active = parseActive(row.get(columnActive))
	if ts := row.get(columnUpdatedAt); ts != "" {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			record.UpdatedAt = parsed
		}
	}
	if raw, err := json.Marshal(row.data); err == nil {
		record.Raw = string(raw)
	}
	return record
}

// parseActive interprets the active column; a missing value means sellable
func parseActive(value string) bool {
	if value == "" {
		return true
	}
	switch strings.ToLower(value) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

var _ sync.Connector = (*FileConnector)(nil)
