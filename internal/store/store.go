// Package store persists audit runs, per-unit reports, and the
// LinkedIn enrichment caches. Two implementations share one logical
// schema: SQLite (default) and Postgres.
package store

import (
	"context"
	"time"

	"github.com/sells-group/audit-cli/internal/consolidate"
	"github.com/sells-group/audit-cli/internal/linkedin"
	"github.com/sells-group/audit-cli/internal/report"
	"github.com/sells-group/audit-cli/internal/scoring"
)

// RunStatus is the lifecycle state of an audit run.
type RunStatus string

const (
	RunStatusRunning             RunStatus = "running"
	RunStatusCompleted           RunStatus = "completed"
	RunStatusCompletedWithErrors RunStatus = "completed_with_errors"
	RunStatusFailed              RunStatus = "failed"
)

// RunSeed is the intake data a new run row starts from.
type RunSeed struct {
	DealID      string `json:"deal_id,omitempty"`
	StageID     string `json:"stage_id,omitempty"`
	CompanyName string `json:"company_name"`
	Domain      string `json:"domain"`
	Country     string `json:"country"`
}

// Outcome is everything synthesis writes back onto the run row.
type Outcome struct {
	Status       RunStatus            `json:"status"`
	Verdict      string               `json:"verdict,omitempty"`
	ScoreTotal   float64              `json:"score_total"`
	ScoreMax     int                  `json:"score_max"`
	DataQuality  float64              `json:"data_quality"`
	FinalReport  string               `json:"final_report,omitempty"`
	Scoring      *scoring.Result      `json:"scoring,omitempty"`
	Errors       map[string]string    `json:"errors,omitempty"`
	Consolidated *consolidate.Dataset `json:"consolidated,omitempty"`
}

// Run is one audit run row.
type Run struct {
	ID           string               `json:"id"`
	DealID       string               `json:"deal_id,omitempty"`
	StageID      string               `json:"stage_id,omitempty"`
	CompanyName  string               `json:"company_name"`
	Domain       string               `json:"domain"`
	Country      string               `json:"country"`
	Status       RunStatus            `json:"status"`
	Verdict      string               `json:"verdict,omitempty"`
	ScoreTotal   float64              `json:"score_total"`
	ScoreMax     int                  `json:"score_max"`
	DataQuality  float64              `json:"data_quality"`
	FinalReport  string               `json:"final_report,omitempty"`
	Scoring      *scoring.Result      `json:"scoring,omitempty"`
	Errors       map[string]string    `json:"errors,omitempty"`
	Consolidated *consolidate.Dataset `json:"consolidated,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	CompletedAt  *time.Time           `json:"completed_at,omitempty"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status RunStatus `json:"status,omitempty"`
	Domain string    `json:"domain,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}

// Store defines the persistence interface for the audit pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, seed RunSeed) (*Run, error)
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)
	FinalizeRun(ctx context.Context, runID string, out Outcome) error
	FailRun(ctx context.Context, runID, reason string) error

	// Per-unit reports
	SaveReport(ctx context.Context, runID string, rep report.AgentReport) error
	ListReports(ctx context.Context, runID string) ([]report.AgentReport, error)

	// LinkedIn enrichment cache, as the enrichment session consumes it.
	linkedin.Store

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
