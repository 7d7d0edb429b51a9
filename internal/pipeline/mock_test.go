package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/audit-cli/internal/linkedin"
	"github.com/sells-group/audit-cli/internal/report"
	"github.com/sells-group/audit-cli/internal/store"
	"github.com/sells-group/audit-cli/pkg/anthropic"
	"github.com/sells-group/audit-cli/pkg/slack"
)

// --- In-memory store ---

// memStore implements store.Store for pipeline tests. Concurrent
// branches hit it, so every method locks.
type memStore struct {
	mu        sync.Mutex
	seq       int
	runs      map[string]*store.Run
	reports   map[string]map[string]report.AgentReport
	createErr error
}

func newMemStore() *memStore {
	return &memStore{
		runs:    map[string]*store.Run{},
		reports: map[string]map[string]report.AgentReport{},
	}
}

func (m *memStore) CreateRun(_ context.Context, seed store.RunSeed) (*store.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.seq++
	run := &store.Run{
		ID:          fmt.Sprintf("run-%d", m.seq),
		DealID:      seed.DealID,
		StageID:     seed.StageID,
		CompanyName: seed.CompanyName,
		Domain:      seed.Domain,
		Country:     seed.Country,
		Status:      store.RunStatusRunning,
		CreatedAt:   time.Now().UTC(),
	}
	m.runs[run.ID] = run
	return run, nil
}

func (m *memStore) GetRun(_ context.Context, runID string) (*store.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	cp := *run
	return &cp, nil
}

func (m *memStore) ListRuns(_ context.Context, _ store.RunFilter) ([]store.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.Run, 0, len(m.runs))
	for _, run := range m.runs {
		out = append(out, *run)
	}
	return out, nil
}

func (m *memStore) FinalizeRun(_ context.Context, runID string, out store.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("run not found: %s", runID)
	}
	now := time.Now().UTC()
	run.Status = out.Status
	run.Verdict = out.Verdict
	run.ScoreTotal = out.ScoreTotal
	run.ScoreMax = out.ScoreMax
	run.DataQuality = out.DataQuality
	run.FinalReport = out.FinalReport
	run.Scoring = out.Scoring
	run.Errors = out.Errors
	run.Consolidated = out.Consolidated
	run.CompletedAt = &now
	return nil
}

func (m *memStore) FailRun(_ context.Context, runID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("run not found: %s", runID)
	}
	run.Status = store.RunStatusFailed
	run.Errors = map[string]string{"run": reason}
	return nil
}

func (m *memStore) SaveReport(_ context.Context, runID string, rep report.AgentReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reports[runID] == nil {
		m.reports[runID] = map[string]report.AgentReport{}
	}
	m.reports[runID][rep.Unit] = rep
	return nil
}

func (m *memStore) ListReports(_ context.Context, runID string) ([]report.AgentReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []report.AgentReport
	for _, rep := range m.reports[runID] {
		out = append(out, rep)
	}
	return out, nil
}

func (m *memStore) LookupCompany(_ context.Context, _, _ string, _ time.Duration) (*linkedin.CompanyCacheEntry, error) {
	return nil, nil
}

func (m *memStore) SaveCompany(_ context.Context, _ linkedin.CompanyCacheEntry) error { return nil }

func (m *memStore) LookupExecutive(_ context.Context, _ string, _ time.Duration) (*linkedin.Executive, error) {
	return nil, nil
}

func (m *memStore) SaveExecutives(_ context.Context, _ string, _ []linkedin.Executive) error {
	return nil
}

func (m *memStore) SavePosts(_ context.Context, _ string, _ []linkedin.Post) error { return nil }

func (m *memStore) Migrate(_ context.Context) error { return nil }

func (m *memStore) Close() error { return nil }

func (m *memStore) run(runID string) *store.Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil
	}
	cp := *run
	return &cp
}

func (m *memStore) reportCount(runID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reports[runID])
}

// --- Completion client ---

// fakeCompletion routes CreateMessage through a test-provided func
// that also receives the 1-based call number.
type fakeCompletion struct {
	mu    sync.Mutex
	calls []anthropic.MessageRequest
	fn    func(n int, req anthropic.MessageRequest) (*anthropic.MessageResponse, error)
}

func (f *fakeCompletion) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	n := len(f.calls)
	f.mu.Unlock()
	return f.fn(n, req)
}

func (f *fakeCompletion) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content:    []anthropic.ContentBlock{{Type: "text", Text: text}},
		StopReason: "end_turn",
	}
}

// reportToolResponse carries one DETECTED signal so extraction never
// looks degenerate.
func reportToolResponse() *anthropic.MessageResponse {
	input := `{
		"signals": [{
			"signal_id": "strong_revenue_growth",
			"status": "DETECTED",
			"value": "12 percent",
			"evidence": "Revenue grew 12% in 2025",
			"confidence": "high"
		}],
		"data_quality": {"sources_count": 0, "confidence_overall": "medium"}
	}`
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{
			{Type: "tool_use", ID: "tu-1", Name: "record_report", Input: json.RawMessage(input)},
		},
		StopReason: "tool_use",
	}
}

// scriptedCompletion answers every analysis turn with text and every
// forced-tool extraction with a minimal valid report.
func scriptedCompletion() *fakeCompletion {
	return &fakeCompletion{fn: func(_ int, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		if req.ToolChoice != nil {
			return reportToolResponse(), nil
		}
		return textResponse("The available material supports a single verdict."), nil
	}}
}

// --- Sinks ---

type mockSlack struct {
	mock.Mock
}

func (m *mockSlack) Notify(ctx context.Context, n slack.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

type mockSalesforce struct {
	mock.Mock
}

func (m *mockSalesforce) InsertOne(ctx context.Context, sObjectName string, record map[string]any) (string, error) {
	args := m.Called(ctx, sObjectName, record)
	return args.String(0), args.Error(1)
}
