package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/audit-cli/internal/agent"
	"github.com/sells-group/audit-cli/internal/config"
	"github.com/sells-group/audit-cli/internal/report"
	"github.com/sells-group/audit-cli/internal/scoring"
	"github.com/sells-group/audit-cli/internal/store"
	"github.com/sells-group/audit-cli/pkg/anthropic"
	"github.com/sells-group/audit-cli/pkg/slack"
)

func scoredResult() *scoring.Result {
	return &scoring.Result{
		Signals: []scoring.SignalScore{{
			SignalID:       "strong_revenue_growth",
			Status:         report.StatusDetected,
			BasePoints:     20,
			WeightedPoints: 20,
			Unit:           report.UnitFinance,
			Evidence:       "Revenue grew 12% in 2025",
		}},
		Total:       180,
		MaxPossible: 330,
		DataQuality: 82.5,
		Verdict:     scoring.VerdictGo,
	}
}

func synthState(runID string) RunState {
	return RunState{
		RunID:       runID,
		DealID:      "006Dn000012abc",
		CompanyName: "Acme",
		Domain:      "acme.fr",
		Reports: []report.AgentReport{
			{Unit: report.UnitFinance},
			{Unit: report.UnitLeadership},
		},
		Scoring: scoredResult(),
	}
}

func synthPipeline(st *memStore, fake *fakeCompletion) *Pipeline {
	return &Pipeline{
		cfg:       &config.Config{},
		store:     st,
		anthropic: fake,
		tiers:     agent.Tiers{Fast: "fast-model", Strong: "strong-model"},
	}
}

func TestSynthesizeNode_CompletedRun(t *testing.T) {
	st := newMemStore()
	run, err := st.CreateRun(context.Background(), store.RunSeed{CompanyName: "Acme"})
	require.NoError(t, err)

	fake := &fakeCompletion{fn: func(_ int, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		assert.Equal(t, "strong-model", req.Model)
		return textResponse("## Verdict: GO\n\nAcme is mid-transformation."), nil
	}}
	p := synthPipeline(st, fake)

	patch, err := p.synthesizeNode(context.Background(), synthState(run.ID))
	require.NoError(t, err)

	require.NotNil(t, patch.Status)
	assert.Equal(t, store.RunStatusCompleted, *patch.Status)
	require.NotNil(t, patch.FinalReport)
	assert.Contains(t, *patch.FinalReport, "mid-transformation")
	assert.Empty(t, patch.Errors)
	assert.Equal(t, 1, fake.callCount())

	prompt := fake.calls[0].Messages[0].Content[0].Text
	assert.Contains(t, prompt, "Company: Acme (acme.fr)")
	assert.Contains(t, prompt, "# Unit reports")
	assert.Contains(t, prompt, "# Scoring")
	assert.NotContains(t, prompt, "# Degraded stages")

	saved := st.run(run.ID)
	require.NotNil(t, saved)
	assert.Equal(t, store.RunStatusCompleted, saved.Status)
	assert.Equal(t, "GO", saved.Verdict)
	assert.InDelta(t, 180, saved.ScoreTotal, 0.01)
	assert.Equal(t, 330, saved.ScoreMax)
	assert.Contains(t, saved.FinalReport, "mid-transformation")
	require.NotNil(t, saved.CompletedAt)
	assert.Equal(t, 2, st.reportCount(run.ID))
}

func TestSynthesizeNode_UpstreamErrorsMarkDegraded(t *testing.T) {
	st := newMemStore()
	run, err := st.CreateRun(context.Background(), store.RunSeed{CompanyName: "Acme"})
	require.NoError(t, err)

	p := synthPipeline(st, scriptedCompletion())
	state := synthState(run.ID)
	state.Errors = map[string]string{"enrich": "provider quota exhausted"}

	patch, err := p.synthesizeNode(context.Background(), state)
	require.NoError(t, err)

	require.NotNil(t, patch.Status)
	assert.Equal(t, store.RunStatusCompletedWithErrors, *patch.Status)
	// The node itself succeeded, so it adds no error of its own.
	assert.Empty(t, patch.Errors)

	saved := st.run(run.ID)
	assert.Equal(t, store.RunStatusCompletedWithErrors, saved.Status)
	assert.Equal(t, "provider quota exhausted", saved.Errors["enrich"])
}

func TestSynthesizeNode_FallbackOnCompletionFailure(t *testing.T) {
	st := newMemStore()
	run, err := st.CreateRun(context.Background(), store.RunSeed{CompanyName: "Acme"})
	require.NoError(t, err)

	fake := &fakeCompletion{fn: func(_ int, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		return nil, assert.AnError
	}}
	p := synthPipeline(st, fake)

	patch, err := p.synthesizeNode(context.Background(), synthState(run.ID))
	require.NoError(t, err)

	// One strong attempt plus the single retry.
	assert.Equal(t, 2, fake.callCount())
	require.NotNil(t, patch.Status)
	assert.Equal(t, store.RunStatusCompletedWithErrors, *patch.Status)
	assert.Contains(t, patch.Errors, "synthesize")

	require.NotNil(t, patch.FinalReport)
	assert.Contains(t, *patch.FinalReport, "# Audit: Acme")
	assert.Contains(t, *patch.FinalReport, "**Verdict: GO**")
	assert.Contains(t, *patch.FinalReport, "strong_revenue_growth")

	saved := st.run(run.ID)
	assert.Equal(t, store.RunStatusCompletedWithErrors, saved.Status)
	assert.Contains(t, saved.FinalReport, "# Audit: Acme")
	assert.Contains(t, saved.Errors, "synthesize")
}

func TestSynthesizeNode_NoRunRowSkipsPersistence(t *testing.T) {
	st := newMemStore()
	p := synthPipeline(st, scriptedCompletion())

	state := synthState("")
	patch, err := p.synthesizeNode(context.Background(), state)
	require.NoError(t, err)
	require.NotNil(t, patch.Status)
	assert.Equal(t, store.RunStatusCompleted, *patch.Status)
	assert.Equal(t, 0, st.reportCount(""))
}

func TestSynthesizeNode_SinksFireAndLog(t *testing.T) {
	st := newMemStore()
	run, err := st.CreateRun(context.Background(), store.RunSeed{CompanyName: "Acme"})
	require.NoError(t, err)

	sf := &mockSalesforce{}
	sf.On("InsertOne", mock.Anything, "Note", mock.MatchedBy(func(rec map[string]any) bool {
		return rec["Title"] == "Audit Acme: GO (180/330)" && rec["ParentId"] == "006Dn000012abc"
	})).Return("", assert.AnError)

	ch := &mockSlack{}
	ch.On("Notify", mock.Anything, mock.MatchedBy(func(n slack.Notification) bool {
		return n.CompanyName == "Acme" && n.Verdict == "GO" && n.ScoreMax == 330
	})).Return(assert.AnError)

	p := synthPipeline(st, scriptedCompletion())
	p.cfg.Slack.DealFormat = "https://example.my.salesforce.com/%s"
	p.salesforce = sf
	p.slack = ch

	// Both sinks fail; the node still completes and persists.
	patch, err := p.synthesizeNode(context.Background(), synthState(run.ID))
	require.NoError(t, err)
	assert.Equal(t, store.RunStatusCompleted, *patch.Status)

	sf.AssertExpectations(t)
	ch.AssertExpectations(t)
	assert.Equal(t, store.RunStatusCompleted, st.run(run.ID).Status)
}

func TestNoteTitle(t *testing.T) {
	assert.Equal(t, "Audit Acme", noteTitle(RunState{CompanyName: "Acme"}))

	s := RunState{CompanyName: "Acme", Scoring: scoredResult()}
	assert.Equal(t, "Audit Acme: GO (180/330)", noteTitle(s))
}

func TestFallbackReport(t *testing.T) {
	t.Run("no scoring", func(t *testing.T) {
		out := fallbackReport(RunState{CompanyName: "Acme"})
		assert.Contains(t, out, "No scoring result")
	})

	t.Run("signals and degraded stages", func(t *testing.T) {
		s := RunState{
			CompanyName: "Acme",
			Scoring:     scoredResult(),
			Errors:      map[string]string{"enrich": "quota", "momentum": "timeout"},
		}
		out := fallbackReport(s)
		assert.Contains(t, out, "strong_revenue_growth")
		assert.Contains(t, out, "Revenue grew 12% in 2025")
		assert.Contains(t, out, "- enrich: quota")
		assert.Contains(t, out, "- momentum: timeout")
	})

	t.Run("nothing detected", func(t *testing.T) {
		sc := scoredResult()
		sc.Signals[0].Status = report.StatusNotDetected
		out := fallbackReport(RunState{CompanyName: "Acme", Scoring: sc})
		assert.Contains(t, out, "None.")
	})
}

func TestDealURL(t *testing.T) {
	p := synthPipeline(newMemStore(), nil)
	assert.Empty(t, p.dealURL("006Dn000012abc"))

	p.cfg.Slack.DealFormat = "https://example.my.salesforce.com/%s"
	assert.Equal(t, "https://example.my.salesforce.com/006Dn000012abc", p.dealURL("006Dn000012abc"))
	assert.Empty(t, p.dealURL(""))
}
