package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/audit-cli/internal/consolidate"
	"github.com/sells-group/audit-cli/internal/linkedin"
	"github.com/sells-group/audit-cli/internal/report"
	"github.com/sells-group/audit-cli/internal/scoring"
	"github.com/sells-group/audit-cli/internal/store"
)

func TestApply_SingleWriterFields(t *testing.T) {
	started := time.Date(2026, 5, 12, 9, 0, 0, 0, time.UTC)
	employees := 420

	var s RunState
	Apply(&s, Patch{Intake: &IntakeResult{
		RunID:     "run-1",
		Domain:    "acme.fr",
		Country:   "France",
		StartedAt: started,
	}})
	Apply(&s, Patch{Enrichment: &Enrichment{
		Available:  true,
		CompanyID:  "12345",
		CompanyURL: "https://www.linkedin.com/company/acme",
		Growth:     &linkedin.Growth{Employees: &employees},
		Executives: []linkedin.Executive{{FullName: "Marie Dupont"}},
		Posts:      []linkedin.Post{{Text: "we are hiring"}},
		Providers:  map[string]string{"resolve": "evaboot"},
	}})
	Apply(&s, Patch{Extraction: &Extraction{
		Lots:      []consolidate.LotResult{{}},
		Attempted: 2,
		Succeeded: 1,
	}})

	ds := consolidate.EmptyDataset("Acme", started)
	Apply(&s, Patch{Dataset: &ds})
	Apply(&s, Patch{Slices: &Slices{}})

	res := scoring.Result{Total: 95, Verdict: scoring.VerdictExplore}
	text := "# Audit"
	status := store.RunStatusCompleted
	Apply(&s, Patch{Scoring: &res, FinalReport: &text, Status: &status})

	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, "acme.fr", s.Domain)
	assert.Equal(t, "France", s.Country)
	assert.Equal(t, started, s.StartedAt)
	assert.True(t, s.LinkedInAvailable)
	assert.Equal(t, "12345", s.LinkedInID)
	assert.Len(t, s.Executives, 1)
	assert.Len(t, s.Posts, 1)
	assert.Equal(t, 2, s.LotsAttempted)
	assert.Equal(t, 1, s.LotsSucceeded)
	assert.NotNil(t, s.Dataset)
	assert.NotNil(t, s.Slices)
	assert.Equal(t, 95.0, s.Scoring.Total)
	assert.Equal(t, "# Audit", s.FinalReport)
	assert.Equal(t, store.RunStatusCompleted, s.Status)
}

func TestApply_EmptyPatchLeavesStateUntouched(t *testing.T) {
	s := RunState{
		RunID:             "run-1",
		Domain:            "acme.fr",
		LinkedInAvailable: true,
		Reports:           []report.AgentReport{{Unit: report.UnitFinance}},
		Errors:            map[string]string{"enrich": "down"},
	}
	Apply(&s, Patch{})

	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, "acme.fr", s.Domain)
	assert.True(t, s.LinkedInAvailable)
	assert.Len(t, s.Reports, 1)
	assert.Len(t, s.Errors, 1)
}

func TestApply_ReportsAppend(t *testing.T) {
	var s RunState
	Apply(&s, Patch{Reports: []report.AgentReport{{Unit: report.UnitFinance}}})
	Apply(&s, Patch{Reports: []report.AgentReport{{Unit: report.UnitMomentum}}})
	Apply(&s, Patch{Reports: []report.AgentReport{{Unit: report.UnitLeadership}}})

	assert.Len(t, s.Reports, 3)
	assert.Equal(t, report.UnitFinance, s.Reports[0].Unit)
	assert.Equal(t, report.UnitMomentum, s.Reports[1].Unit)
	assert.Equal(t, report.UnitLeadership, s.Reports[2].Unit)
}

func TestApply_ErrorsKeyUnion(t *testing.T) {
	var s RunState
	Apply(&s, Patch{Errors: map[string]string{"enrich": "resolution failed"}})
	Apply(&s, Patch{Errors: map[string]string{"momentum": "timeout"}})
	Apply(&s, Patch{Errors: map[string]string{"momentum": "second attempt"}})

	assert.Len(t, s.Errors, 2)
	assert.Equal(t, "resolution failed", s.Errors["enrich"])
	assert.Equal(t, "second attempt", s.Errors["momentum"])
}

func TestErrorPatch(t *testing.T) {
	p := errorPatch("enrich", errors.New("no account available"))

	assert.Equal(t, map[string]string{"enrich": "no account available"}, p.Errors)
	assert.Nil(t, p.Intake)
	assert.Nil(t, p.Enrichment)
	assert.Empty(t, p.Reports)
}
