package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/audit-cli/internal/consolidate"
	"github.com/sells-group/audit-cli/internal/linkedin"
	"github.com/sells-group/audit-cli/internal/report"
	"github.com/sells-group/audit-cli/internal/scoring"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndGetRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		seed := RunSeed{
			DealID:      "006Aa000004XyZ",
			StageID:     "stage-audit",
			CompanyName: "Acme SAS",
			Domain:      "acme.fr",
			Country:     "France",
		}

		run, err := s.CreateRun(ctx, seed)
		require.NoError(t, err)
		assert.NotEmpty(t, run.ID)
		assert.Equal(t, RunStatusRunning, run.Status)
		assert.Equal(t, "acme.fr", run.Domain)
		assert.False(t, run.CreatedAt.IsZero())

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.ID, got.ID)
		assert.Equal(t, RunStatusRunning, got.Status)
		assert.Equal(t, "Acme SAS", got.CompanyName)
		assert.Equal(t, "006Aa000004XyZ", got.DealID)
		assert.Equal(t, "France", got.Country)
		assert.Nil(t, got.CompletedAt)
	})

	t.Run("GetRun_NotFound", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.GetRun(ctx, "nonexistent")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("FinalizeRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, RunSeed{CompanyName: "Acme", Domain: "acme.fr", Country: "France"})
		require.NoError(t, err)

		out := Outcome{
			Status:      RunStatusCompleted,
			Verdict:     string(scoring.VerdictGo),
			ScoreTotal:  241.5,
			ScoreMax:    330,
			DataQuality: 0.82,
			FinalReport: "# Audit Acme\n\nStrong signals across the board.",
			Scoring: &scoring.Result{
				Signals: []scoring.SignalScore{
					{SignalID: "hiring_finance", Status: report.StatusDetected, BasePoints: 25, WeightedPoints: 22.5, Unit: "momentum"},
				},
				Total:       241.5,
				MaxPossible: 330,
				DataQuality: 0.82,
				Verdict:     scoring.VerdictGo,
			},
			Consolidated: &consolidate.Dataset{
				CompanyName:  "Acme",
				ProfileCount: 42,
				CLevelCount:  4,
			},
		}

		require.NoError(t, s.FinalizeRun(ctx, run.ID, out))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, RunStatusCompleted, got.Status)
		assert.Equal(t, "GO", got.Verdict)
		assert.InDelta(t, 241.5, got.ScoreTotal, 0.001)
		assert.Equal(t, 330, got.ScoreMax)
		assert.InDelta(t, 0.82, got.DataQuality, 0.001)
		assert.Contains(t, got.FinalReport, "Audit Acme")
		require.NotNil(t, got.CompletedAt)
		require.NotNil(t, got.Scoring)
		assert.Equal(t, scoring.VerdictGo, got.Scoring.Verdict)
		require.Len(t, got.Scoring.Signals, 1)
		assert.Equal(t, "hiring_finance", got.Scoring.Signals[0].SignalID)
		require.NotNil(t, got.Consolidated)
		assert.Equal(t, 42, got.Consolidated.ProfileCount)
		assert.Empty(t, got.Errors)
	})

	t.Run("FinalizeRun_WithErrors", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, RunSeed{CompanyName: "Acme", Domain: "acme.fr", Country: "France"})
		require.NoError(t, err)

		out := Outcome{
			Status:      RunStatusCompletedWithErrors,
			Verdict:     string(scoring.VerdictExplore),
			ScoreTotal:  120,
			ScoreMax:    330,
			DataQuality: 0.4,
			Errors: map[string]string{
				"finance":  "pappers: HTTP 503",
				"profiles": "timeout after 3 attempts",
			},
		}

		require.NoError(t, s.FinalizeRun(ctx, run.ID, out))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, RunStatusCompletedWithErrors, got.Status)
		require.Len(t, got.Errors, 2)
		assert.Equal(t, "pappers: HTTP 503", got.Errors["finance"])
	})

	t.Run("FinalizeRun_NotFound", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		err := s.FinalizeRun(ctx, "nonexistent", Outcome{Status: RunStatusCompleted})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("FailRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, RunSeed{CompanyName: "Acme", Domain: "acme.fr", Country: "France"})
		require.NoError(t, err)

		require.NoError(t, s.FailRun(ctx, run.ID, "store unreachable"))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, RunStatusFailed, got.Status)
		assert.Equal(t, "store unreachable", got.Errors["run"])
		require.NotNil(t, got.CompletedAt)
	})

	t.Run("FailRun_NotFound", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		err := s.FailRun(ctx, "nonexistent", "boom")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("SaveAndListReports", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, RunSeed{CompanyName: "Acme", Domain: "acme.fr", Country: "France"})
		require.NoError(t, err)

		finance := report.AgentReport{
			Unit: "finance",
			Facts: []report.Fact{
				{Category: "finance", Statement: "Revenue 12M EUR in 2024", Confidence: report.ConfidenceHigh},
			},
			Signals: []report.Signal{
				{ID: "revenue_growth", Status: report.StatusDetected, Value: "+18%", Confidence: report.ConfidenceHigh},
			},
			DataQuality: report.DataQuality{SourceCount: 3, OverallConfidence: report.ConfidenceHigh},
		}
		momentum := report.AgentReport{
			Unit:        "momentum",
			DataQuality: report.DataQuality{SourceCount: 1, OverallConfidence: report.ConfidenceLow},
		}

		require.NoError(t, s.SaveReport(ctx, run.ID, finance))
		require.NoError(t, s.SaveReport(ctx, run.ID, momentum))

		reports, err := s.ListReports(ctx, run.ID)
		require.NoError(t, err)
		require.Len(t, reports, 2)
		assert.Equal(t, "finance", reports[0].Unit)
		require.Len(t, reports[0].Signals, 1)
		assert.Equal(t, "revenue_growth", reports[0].Signals[0].ID)
	})

	t.Run("SaveReport_Overwrite", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, RunSeed{CompanyName: "Acme", Domain: "acme.fr", Country: "France"})
		require.NoError(t, err)

		first := report.AgentReport{Unit: "finance", DataQuality: report.DataQuality{SourceCount: 1}}
		second := report.AgentReport{Unit: "finance", DataQuality: report.DataQuality{SourceCount: 5}}

		require.NoError(t, s.SaveReport(ctx, run.ID, first))
		require.NoError(t, s.SaveReport(ctx, run.ID, second))

		reports, err := s.ListReports(ctx, run.ID)
		require.NoError(t, err)
		require.Len(t, reports, 1)
		assert.Equal(t, 5, reports[0].DataQuality.SourceCount)
	})

	t.Run("ListReports_Empty", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		reports, err := s.ListReports(ctx, "nonexistent")
		require.NoError(t, err)
		assert.Empty(t, reports)
	})

	t.Run("ListRuns_Filters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		runA, err := s.CreateRun(ctx, RunSeed{CompanyName: "A", Domain: "a.fr", Country: "France"})
		require.NoError(t, err)
		_, err = s.CreateRun(ctx, RunSeed{CompanyName: "B", Domain: "b.fr", Country: "France"})
		require.NoError(t, err)
		require.NoError(t, s.FailRun(ctx, runA.ID, "boom"))

		all, err := s.ListRuns(ctx, RunFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 2)

		failed, err := s.ListRuns(ctx, RunFilter{Status: RunStatusFailed})
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, "A", failed[0].CompanyName)

		byDomain, err := s.ListRuns(ctx, RunFilter{Domain: "b.fr"})
		require.NoError(t, err)
		require.Len(t, byDomain, 1)
		assert.Equal(t, "B", byDomain[0].CompanyName)

		limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, limited, 1)

		paged, err := s.ListRuns(ctx, RunFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Len(t, paged, 1)
	})

	t.Run("ListRuns_Empty", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		runs, err := s.ListRuns(ctx, RunFilter{})
		require.NoError(t, err)
		assert.Empty(t, runs)
	})

	t.Run("CompanyCache_SaveAndLookup", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		employees := 87
		growth := &linkedin.Growth{Employees: &employees, Source: "ghostgenius"}
		entry := linkedin.CompanyCacheEntry{
			Domain:      "acme.fr",
			CompanyName: "Acme SAS",
			LinkedInID:  "123456",
			LinkedInURL: "https://www.linkedin.com/company/acme-sas",
			Growth:      growth,
		}

		require.NoError(t, s.SaveCompany(ctx, entry))

		got, err := s.LookupCompany(ctx, "acme.fr", "", 24*time.Hour)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "123456", got.LinkedInID)
		require.NotNil(t, got.Growth)
		require.NotNil(t, got.Growth.Employees)
		assert.Equal(t, 87, *got.Growth.Employees)
		assert.False(t, got.FetchedAt.IsZero())

		miss, err := s.LookupCompany(ctx, "other.fr", "", 24*time.Hour)
		require.NoError(t, err)
		assert.Nil(t, miss)
	})

	t.Run("CompanyCache_NameFallback", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		entry := linkedin.CompanyCacheEntry{
			Domain:      "acme.fr",
			CompanyName: "Acme SAS",
			LinkedInURL: "https://www.linkedin.com/company/acme-sas",
		}
		require.NoError(t, s.SaveCompany(ctx, entry))

		// Domain misses, case-insensitive name match hits.
		got, err := s.LookupCompany(ctx, "acme-group.fr", "ACME sas", 24*time.Hour)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "acme.fr", got.Domain)

		miss, err := s.LookupCompany(ctx, "acme-group.fr", "", 24*time.Hour)
		require.NoError(t, err)
		assert.Nil(t, miss)
	})

	t.Run("CompanyCache_Staleness", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		entry := linkedin.CompanyCacheEntry{
			Domain:      "old.fr",
			CompanyName: "Old SARL",
			FetchedAt:   time.Now().UTC().Add(-48 * time.Hour),
		}
		require.NoError(t, s.SaveCompany(ctx, entry))

		stale, err := s.LookupCompany(ctx, "old.fr", "Old SARL", 24*time.Hour)
		require.NoError(t, err)
		assert.Nil(t, stale)

		fresh, err := s.LookupCompany(ctx, "old.fr", "", 100*24*time.Hour)
		require.NoError(t, err)
		assert.NotNil(t, fresh)

		// maxAge <= 0 disables the freshness check.
		unbounded, err := s.LookupCompany(ctx, "old.fr", "", 0)
		require.NoError(t, err)
		assert.NotNil(t, unbounded)
	})

	t.Run("CompanyCache_Overwrite", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.SaveCompany(ctx, linkedin.CompanyCacheEntry{Domain: "acme.fr", CompanyName: "Acme"}))
		require.NoError(t, s.SaveCompany(ctx, linkedin.CompanyCacheEntry{Domain: "acme.fr", CompanyName: "Acme Group", LinkedInID: "789"}))

		got, err := s.LookupCompany(ctx, "acme.fr", "", 24*time.Hour)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Acme Group", got.CompanyName)
		assert.Equal(t, "789", got.LinkedInID)
	})

	t.Run("Executives_SaveAndLookup", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		execs := []linkedin.Executive{
			{ID: "prov-1", FullName: "Marie Dupont", URL: "https://www.linkedin.com/in/marie-dupont", Title: "CEO", IsCurrent: true},
			{ID: "prov-2", FullName: "Jean Martin", URL: "https://www.linkedin.com/in/jean-martin", Title: "CFO", IsCurrent: true},
		}
		require.NoError(t, s.SaveExecutives(ctx, "acme.fr", execs))

		got, err := s.LookupExecutive(ctx, "https://www.linkedin.com/in/marie-dupont", 24*time.Hour)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Marie Dupont", got.FullName)
		assert.Equal(t, "CEO", got.Title)

		miss, err := s.LookupExecutive(ctx, "https://www.linkedin.com/in/nobody", 24*time.Hour)
		require.NoError(t, err)
		assert.Nil(t, miss)
	})

	t.Run("Executives_RefreshReplaces", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.SaveExecutives(ctx, "acme.fr", []linkedin.Executive{
			{ID: "prov-1", FullName: "Marie Dupont", URL: "https://www.linkedin.com/in/marie-dupont", Title: "CEO"},
			{ID: "prov-2", FullName: "Jean Martin", URL: "https://www.linkedin.com/in/jean-martin", Title: "CFO"},
		}))
		require.NoError(t, s.SaveExecutives(ctx, "acme.fr", []linkedin.Executive{
			{ID: "prov-1", FullName: "Marie Dupont", URL: "https://www.linkedin.com/in/marie-dupont", Title: "CEO & Founder"},
		}))

		kept, err := s.LookupExecutive(ctx, "https://www.linkedin.com/in/marie-dupont", 24*time.Hour)
		require.NoError(t, err)
		require.NotNil(t, kept)
		assert.Equal(t, "CEO & Founder", kept.Title)

		gone, err := s.LookupExecutive(ctx, "https://www.linkedin.com/in/jean-martin", 24*time.Hour)
		require.NoError(t, err)
		assert.Nil(t, gone)
	})

	t.Run("Executives_DupedProviderID", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		// Same provider ID twice keeps the last payload.
		require.NoError(t, s.SaveExecutives(ctx, "acme.fr", []linkedin.Executive{
			{ID: "prov-1", FullName: "Marie Dupont", URL: "https://www.linkedin.com/in/md-old"},
			{ID: "prov-1", FullName: "Marie Dupont", URL: "https://www.linkedin.com/in/md-new"},
		}))

		got, err := s.LookupExecutive(ctx, "https://www.linkedin.com/in/md-new", 24*time.Hour)
		require.NoError(t, err)
		assert.NotNil(t, got)
	})

	t.Run("Executives_EmptySet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.SaveExecutives(ctx, "acme.fr", []linkedin.Executive{
			{ID: "prov-1", FullName: "Marie Dupont", URL: "https://www.linkedin.com/in/marie-dupont"},
		}))
		require.NoError(t, s.SaveExecutives(ctx, "acme.fr", nil))

		gone, err := s.LookupExecutive(ctx, "https://www.linkedin.com/in/marie-dupont", 24*time.Hour)
		require.NoError(t, err)
		assert.Nil(t, gone)
	})

	t.Run("Posts_Save", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		posts := []linkedin.Post{
			{AuthorName: "Acme SAS", Date: "2026-07-02", Text: "We are hiring a Head of Finance", Reactions: 54},
			{AuthorName: "Acme SAS", Date: "2026-06-18", Text: "Series A announcement", Reactions: 210},
		}
		require.NoError(t, s.SavePosts(ctx, "acme.fr", posts))
		require.NoError(t, s.SavePosts(ctx, "acme.fr", posts[:1]))
		require.NoError(t, s.SavePosts(ctx, "acme.fr", nil))
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}
