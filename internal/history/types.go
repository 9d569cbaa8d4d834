// Package history keeps a log of diagnosis runs submitted through the
// console, the CLI and the MCP tools.
package history

import (
	"errors"
	"time"

	"github.com/sourpat/payresolve/internal/apiclient"
)

// Source identifies which surface submitted a run.
type Source string

const (
	SourceWeb Source = "web"
	SourceCLI Source = "cli"
	SourceMCP Source = "mcp"
)

// Outcome is the result of a run.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = errors.New("diagnosis run not found")

// Run is a single recorded diagnosis.
type Run struct {
	ID        string                     `json:"id"`
	StartedAt time.Time                  `json:"started_at"`
	Duration  time.Duration              `json:"duration"`
	Source    Source                     `json:"source"`
	ClientID  string                     `json:"client_id,omitempty"`
	BaseURL   string                     `json:"base_url"`
	ErrorCode string                     `json:"error_code"`
	Message   string                     `json:"message"`
	HasTrace  bool                       `json:"has_trace"`
	Outcome   Outcome                    `json:"outcome"`
	Category  string                     `json:"category,omitempty"`
	Severity  string                     `json:"severity,omitempty"`
	Error     string                     `json:"error,omitempty"`
	Result    *apiclient.DiagnosisResult `json:"result,omitempty"`
}

// Filter controls which runs List returns.
type Filter struct {
	Outcome   Outcome
	ErrorCode string
	Category  string
	Source    Source
	Since     *time.Time
	Limit     int
	Offset    int
}
