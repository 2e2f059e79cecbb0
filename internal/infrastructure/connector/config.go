package connector

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"

	"github.com/petshop/backend/internal/domain/sync"
)

// Configuration errors shared by the connector variants
var (
	ErrConfigMissingBaseURL = errors.New("connector: base URL is required")
	ErrConfigInvalidBaseURL = errors.New("connector: base URL must be a valid http(s) URL")
	ErrConfigMissingPath    = errors.New("connector: file path is required")
	ErrConfigMissingDSN     = errors.New("connector: database DSN is required")
	ErrConfigMissingTable   = errors.New("connector: table name is required")
	ErrConfigInvalidTable   = errors.New("connector: table name must be a plain SQL identifier")
	ErrUnknownConnectorType = errors.New("connector: unknown connector type")
)

// identifierPattern accepts plain SQL identifiers, optionally schema-qualified.
// The table name is interpolated into queries and must never carry quoting
// or punctuation.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?$`)

// RESTConfig is the connection configuration for REST sources
type RESTConfig struct {
	// BaseURL is the feed endpoint, queried with cursor pagination
	BaseURL string `json:"base_url"`
	// APIKey is sent as a bearer token when present
	APIKey string `json:"api_key"`
	// TimeoutSeconds bounds each page fetch
	TimeoutSeconds int `json:"timeout_seconds"`
}

// Validate validates the REST configuration
func (c *RESTConfig) Validate() error {
	if c.BaseURL == "" {
		return ErrConfigMissingBaseURL
	}
	parsed, err := url.Parse(c.BaseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return ErrConfigInvalidBaseURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}

// FileConfig is the connection configuration for CSV file drop sources
type FileConfig struct {
	// Path is the CSV file to read
	Path string `json:"path"`
	// Delimiter overrides the comma field separator, e.g. ";"
	Delimiter string `json:"delimiter"`
}

// Validate validates the file configuration
func (c *FileConfig) Validate() error {
	if c.Path == "" {
		return ErrConfigMissingPath
	}
	return nil
}

// comma returns the configured field separator rune
func (c *FileConfig) comma() rune {
	if c.Delimiter == "" {
		return ','
	}
	return []rune(c.Delimiter)[0]
}

// DatabaseConfig is the connection configuration for direct database sources
type DatabaseConfig struct {
	// DSN is the postgres connection string of the remote catalog database
	DSN string `json:"dsn"`
	// Table is the table or view exposing the external catalog shape
	Table string `json:"table"`
}

// Validate validates the database configuration
func (c *DatabaseConfig) Validate() error {
	if c.DSN == "" {
		return ErrConfigMissingDSN
	}
	if c.Table == "" {
		return ErrConfigMissingTable
	}
	if !identifierPattern.MatchString(c.Table) {
		return ErrConfigInvalidTable
	}
	return nil
}

// ParseConfig decodes and validates a source's opaque config payload against
// its connector type. Unknown JSON keys are rejected so that typos surface at
// source creation rather than at sync time.
func ParseConfig(connectorType sync.ConnectorType, raw json.RawMessage) (interface{}, error) {
	switch connectorType {
	case sync.ConnectorTypeREST:
		cfg := &RESTConfig{}
		if err := strictUnmarshal(raw, cfg); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	case sync.ConnectorTypeFile:
		cfg := &FileConfig{}
		if err := strictUnmarshal(raw, cfg); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	case sync.ConnectorTypeDatabase:
		cfg := &DatabaseConfig{}
		if err := strictUnmarshal(raw, cfg); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownConnectorType, connectorType)
	}
}

func strictUnmarshal(raw json.RawMessage, target interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("connector: invalid configuration: %w", err)
	}
	return nil
}
