package ledger

import (
	"context"
	"time"

	"mercator-hq/minerva/pkg/meter"
)

// Record status values.
const (
	// StatusOK marks a call that completed and returned usage.
	StatusOK = "ok"

	// StatusError marks a call that failed.
	StatusError = "error"
)

// Record is one persisted provider call. The in-request meter answers "what
// did this request cost"; the ledger answers the same question across
// requests, for audit and the usage CLI.
type Record struct {
	// ID is a UUID v4 assigned when the record is enqueued.
	ID string `json:"id"`

	// Time is when the call was recorded.
	Time time.Time `json:"time"`

	// RequestID ties the record to the HTTP request that caused the call.
	RequestID string `json:"request_id"`

	// Endpoint is the API surface that handled the request, such as
	// /reasoning/deepthink.
	Endpoint string `json:"endpoint"`

	// Engine is the reasoning mode ("deep-think", "ultra-think"), empty for
	// passthrough endpoints.
	Engine string `json:"engine"`

	// Stage is the engine stage that made the call ("initial",
	// "verification", ...), empty outside engine runs.
	Stage string `json:"stage"`

	// Provider is the provider that served the call.
	Provider string `json:"provider"`

	// Model is the backend model that served the call.
	Model string `json:"model"`

	// Usage holds the token counts of this call.
	Usage meter.UsageStats `json:"usage"`

	// CostUSD is the estimated cost of this call.
	CostUSD float64 `json:"cost_usd"`

	// DurationMS is the provider round-trip time in milliseconds.
	DurationMS int64 `json:"duration_ms"`

	// Status is StatusOK or StatusError.
	Status string `json:"status"`
}

// Query defines filter parameters for reading ledger records.
type Query struct {
	// StartTime and EndTime bound Record.Time inclusively.
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// Exact-match filters; empty means no filter.
	RequestID string `json:"request_id,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	Engine    string `json:"engine,omitempty"`
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
	Status    string `json:"status,omitempty"`

	// Pagination. A zero limit applies the backend default.
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// TotalsRow aggregates the matching records of one provider/model pair.
type TotalsRow struct {
	Provider string           `json:"provider"`
	Model    string           `json:"model"`
	Calls    int64            `json:"calls"`
	Usage    meter.UsageStats `json:"usage"`
	CostUSD  float64          `json:"cost_usd"`
}

// Store is the persistence interface for ledger records. Implementations
// must be safe for concurrent use.
type Store interface {
	// Store persists a record.
	Store(ctx context.Context, record *Record) error

	// Query retrieves records matching the filters, newest first.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// Count returns the number of records matching the filters.
	Count(ctx context.Context, query *Query) (int64, error)

	// Totals aggregates matching records by provider and model.
	Totals(ctx context.Context, query *Query) ([]*TotalsRow, error)

	// Delete removes records matching the filters and returns how many.
	// Retention enforcement is built on this.
	Delete(ctx context.Context, query *Query) (int64, error)

	// Close releases backend resources.
	Close() error
}
