package pipeline

import (
	"time"

	"github.com/sells-group/audit-cli/internal/consolidate"
	"github.com/sells-group/audit-cli/internal/linkedin"
	"github.com/sells-group/audit-cli/internal/report"
	"github.com/sells-group/audit-cli/internal/scoring"
	"github.com/sells-group/audit-cli/internal/store"
)

// TeamMember is one seller on the account team. The connections unit
// matches the roster against the leadership graph.
type TeamMember struct {
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
}

// RunState is the single record threaded through the task graph. Every
// field except Reports and Errors has exactly one writing node; those
// two merge from concurrent branches under the executor's applier.
type RunState struct {
	// Intake identity. Written by intake.
	RunID       string
	DealID      string
	StageID     string
	CompanyName string
	Domain      string
	Country     string
	SalesTeam   []TeamMember
	StartedAt   time.Time

	// Enrichment outputs. Written by enrich.
	LinkedInAvailable bool
	LinkedInID        string
	LinkedInURL       string
	Growth            *linkedin.Growth
	Executives        []linkedin.Executive
	Posts             []linkedin.Post
	Providers         map[string]string

	// Extraction outputs. Written by batch_extract.
	Lots          []consolidate.LotResult
	LotsAttempted int
	LotsSucceeded int

	// Written by consolidate.
	Dataset *consolidate.Dataset

	// Written by route.
	Slices *Slices

	// Written by score and synthesize.
	Scoring     *scoring.Result
	FinalReport string
	Status      store.RunStatus

	// Reducer-merged fields.
	Reports []report.AgentReport
	Errors  map[string]string
}

// IntakeResult is the intake node's contribution.
type IntakeResult struct {
	RunID     string
	Domain    string
	Country   string
	StartedAt time.Time
}

// Enrichment is the enrich node's contribution. Available false means
// the company never resolved to a LinkedIn page; the zero value is the
// fully degraded form.
type Enrichment struct {
	Available  bool
	CompanyID  string
	CompanyURL string
	Growth     *linkedin.Growth
	Executives []linkedin.Executive
	Posts      []linkedin.Post
	Providers  map[string]string
}

// Extraction is the batch_extract node's contribution.
type Extraction struct {
	Lots      []consolidate.LotResult
	Attempted int
	Succeeded int
}

// Patch carries one node's writes. Single-writer fields travel as
// pointers so nil means untouched; Reports appends and Errors key-
// unions, which keeps Apply associative for any completion order of
// the parallel branches.
type Patch struct {
	Intake      *IntakeResult
	Enrichment  *Enrichment
	Extraction  *Extraction
	Dataset     *consolidate.Dataset
	Slices      *Slices
	Scoring     *scoring.Result
	FinalReport *string
	Status      *store.RunStatus
	Reports     []report.AgentReport
	Errors      map[string]string
}

// Apply folds one patch into the state. Only the executor's applier
// goroutine calls it, so no locking is needed.
func Apply(s *RunState, p Patch) {
	if p.Intake != nil {
		s.RunID = p.Intake.RunID
		s.Domain = p.Intake.Domain
		s.Country = p.Intake.Country
		s.StartedAt = p.Intake.StartedAt
	}
	if p.Enrichment != nil {
		s.LinkedInAvailable = p.Enrichment.Available
		s.LinkedInID = p.Enrichment.CompanyID
		s.LinkedInURL = p.Enrichment.CompanyURL
		s.Growth = p.Enrichment.Growth
		s.Executives = p.Enrichment.Executives
		s.Posts = p.Enrichment.Posts
		s.Providers = p.Enrichment.Providers
	}
	if p.Extraction != nil {
		s.Lots = p.Extraction.Lots
		s.LotsAttempted = p.Extraction.Attempted
		s.LotsSucceeded = p.Extraction.Succeeded
	}
	if p.Dataset != nil {
		s.Dataset = p.Dataset
	}
	if p.Slices != nil {
		s.Slices = p.Slices
	}
	if p.Scoring != nil {
		s.Scoring = p.Scoring
	}
	if p.FinalReport != nil {
		s.FinalReport = *p.FinalReport
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	s.Reports = append(s.Reports, p.Reports...)
	if len(p.Errors) > 0 {
		if s.Errors == nil {
			s.Errors = make(map[string]string, len(p.Errors))
		}
		for k, v := range p.Errors {
			s.Errors[k] = v
		}
	}
}

// errorPatch converts an escaped node error into a degraded patch so
// the branch completes and the join still fires.
func errorPatch(node string, err error) Patch {
	return Patch{Errors: map[string]string{node: err.Error()}}
}

// errorMap is a single-key Errors value for nodes degrading in place.
func errorMap(node string, err error) map[string]string {
	return map[string]string{node: err.Error()}
}
