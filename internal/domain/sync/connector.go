package sync

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ExternalRecord is the normalized shape every connector variant produces,
// regardless of how the underlying source represents its data.
type ExternalRecord struct {
	// ExternalID is the record's identifier on the source
	ExternalID string
	// InternalCodeHint is the source's idea of our product code, if it has one
	InternalCodeHint string
	// Barcode is the EAN/UPC barcode, if present
	Barcode string
	// Name is the product name as the source reports it
	Name string
	// PriceCents is the selling price in integer minor-currency units
	PriceCents int64
	// CostCents is the cost price in integer minor-currency units
	CostCents int64
	// Stock is the reported stock quantity
	Stock int64
	// Active reports whether the source considers the record sellable
	Active bool
	// UpdatedAt is when the record last changed on the source
	UpdatedAt time.Time
	// Raw is the original source payload, kept for snapshots
	Raw string
}

// Valid reports whether the record carries the minimum data needed to be
// applied to the catalog. Invalid records become Skip outcomes, never errors.
func (r *ExternalRecord) Valid() bool {
	if r.Name == "" {
		return false
	}
	if r.PriceCents <= 0 {
		return false
	}
	if r.ExternalID == "" && r.InternalCodeHint == "" && r.Barcode == "" {
		return false
	}
	return true
}

// Cursor is an opaque connector-specific pagination token. Empty means
// "start from the beginning".
type Cursor string

// FetchRequest describes one page fetch against a source
type FetchRequest struct {
	// Cursor is the pagination position from the previous page, if any
	Cursor Cursor
	// UpdatedSince limits results to records changed after this instant;
	// nil means a full fetch
	UpdatedSince *time.Time
	// PageSize bounds how many records the connector may return
	PageSize int
}

// FetchPage is the result of one connector fetch
type FetchPage struct {
	Records    []ExternalRecord
	NextCursor Cursor
	HasMore    bool
}

// TestResult reports the outcome of a side-effect-free test fetch
type TestResult struct {
	SampleCount int
	Message     string
}

// Connector is the pluggable fetch capability bound to a source's connector
// type. Each variant owns its own pagination semantics but must normalize
// output to ExternalRecord. Implementations must not mutate anything.
type Connector interface {
	// Type returns the connector type this implementation handles
	Type() ConnectorType

	// Fetch retrieves one page of records from the source
	Fetch(ctx context.Context, source *Source, req FetchRequest) (*FetchPage, error)

	// TestConnection performs one bounded fetch without side effects,
	// used to validate a source configuration before activation
	TestConnection(ctx context.Context, source *Source) (*TestResult, error)
}

// ConnectorErrorKind classifies connector failures for retry decisions
type ConnectorErrorKind string

const (
	// ErrorKindTransient marks failures worth retrying (timeouts, 5xx, resets)
	ErrorKindTransient ConnectorErrorKind = "transient"
	// ErrorKindPermanent marks failures that will not resolve on retry
	ErrorKindPermanent ConnectorErrorKind = "permanent"
)

// ConnectorError is a typed connector failure
type ConnectorError struct {
	Kind    ConnectorErrorKind
	Message string
	Err     error
}

// Error implements the error interface
func (e *ConnectorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connector: %s: %v", e.Message, e.Err)
	}
	return "connector: " + e.Message
}

// Unwrap returns the underlying cause
func (e *ConnectorError) Unwrap() error {
	return e.Err
}

// NewTransientError creates a retryable connector error
func NewTransientError(message string, cause error) *ConnectorError {
	return &ConnectorError{Kind: ErrorKindTransient, Message: message, Err: cause}
}

// NewPermanentError creates a non-retryable connector error
func NewPermanentError(message string, cause error) *ConnectorError {
	return &ConnectorError{Kind: ErrorKindPermanent, Message: message, Err: cause}
}

// IsTransient reports whether err is a transient connector error
func IsTransient(err error) bool {
	var ce *ConnectorError
	if errors.As(err, &ce) {
		return ce.Kind == ErrorKindTransient
	}
	return false
}
