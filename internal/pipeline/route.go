package pipeline

import (
	"context"
	"encoding/json"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/audit-cli/internal/consolidate"
	"github.com/sells-group/audit-cli/internal/linkedin"
	"github.com/sells-group/audit-cli/internal/report"
	"github.com/sells-group/audit-cli/internal/scoring"
)

// Profile-selection bounds for the deep-dive unit.
const (
	minProfileRelevance = 3
	maxFullProfiles     = 8
)

// Slices holds the per-unit views of the consolidated dataset. Each
// unit sees only the fields its analysis needs, which keeps the
// prompts small and the signals attributable.
type Slices struct {
	Finance     FinanceSlice     `json:"finance"`
	Company     CompanySlice     `json:"company"`
	Momentum    MomentumSlice    `json:"momentum"`
	Leadership  LeadershipSlice  `json:"leadership"`
	Profiles    ProfilesSlice    `json:"profiles"`
	Connections ConnectionsSlice `json:"connections"`
}

// FinanceSlice carries the headcount statistics.
type FinanceSlice struct {
	Growth *linkedin.Growth `json:"headcount_growth,omitempty"`
}

// CompanySlice carries the cross-cutting discussion themes.
type CompanySlice struct {
	Themes []consolidate.Theme `json:"themes,omitempty"`
}

// MomentumSlice feeds the transformation-dynamics unit.
type MomentumSlice struct {
	Posts      []consolidate.Post      `json:"posts,omitempty"`
	Movements  []consolidate.Movement  `json:"movements,omitempty"`
	Growth     *linkedin.Growth        `json:"headcount_growth,omitempty"`
	PreSignals []consolidate.PreSignal `json:"pre_signals,omitempty"`
}

// LeadershipSlice feeds the org-structure unit.
type LeadershipSlice struct {
	Profiles   []consolidate.Profile    `json:"profiles,omitempty"`
	CLevels    []consolidate.CLevel     `json:"c_levels,omitempty"`
	OrgChart   []consolidate.OrgLink    `json:"org_chart,omitempty"`
	Movements  []consolidate.Movement   `json:"movements,omitempty"`
	Stack      []consolidate.StackEntry `json:"stack,omitempty"`
	PreSignals []consolidate.PreSignal  `json:"pre_signals,omitempty"`
}

// RankedProfile is a full profile annotated with the inferred role and
// sales relevance from its C-level entry.
type RankedProfile struct {
	consolidate.Profile
	Role           string `json:"role,omitempty"`
	SalesRelevance int    `json:"sales_relevance"`
}

// ProfilesSlice feeds the per-executive deep dive: the most relevant
// C-levels with full profile data, plus their posts.
type ProfilesSlice struct {
	CLevels  []RankedProfile       `json:"c_levels,omitempty"`
	OrgChart []consolidate.OrgLink `json:"org_chart,omitempty"`
	Posts    []consolidate.Post    `json:"posts,omitempty"`
}

// ConnectionCard is the slim per-person view the connections unit
// matches the sales roster against.
type ConnectionCard struct {
	Name              string   `json:"name"`
	CurrentTitle      string   `json:"current_title,omitempty"`
	IsCLevel          bool     `json:"is_c_level"`
	ConnectedWith     []string `json:"connected_with,omitempty"`
	PreviousEmployers []string `json:"previous_employers,omitempty"`
}

// ConnectionsSlice feeds the warm-intro unit.
type ConnectionsSlice struct {
	People []ConnectionCard `json:"people,omitempty"`
}

// Empty reports whether the slice carries nothing to analyze.
func (s FinanceSlice) Empty() bool { return s.Growth == nil }

// Empty reports whether the slice carries nothing to analyze.
func (s CompanySlice) Empty() bool { return len(s.Themes) == 0 }

// Empty reports whether the slice carries nothing to analyze.
func (s MomentumSlice) Empty() bool {
	return len(s.Posts) == 0 && len(s.Movements) == 0 && s.Growth == nil && len(s.PreSignals) == 0
}

// Empty reports whether the slice carries nothing to analyze.
func (s LeadershipSlice) Empty() bool {
	return len(s.Profiles) == 0 && len(s.CLevels) == 0 && len(s.Movements) == 0 &&
		len(s.Stack) == 0 && len(s.PreSignals) == 0
}

// Empty reports whether the slice carries nothing to analyze.
func (s ProfilesSlice) Empty() bool { return len(s.CLevels) == 0 }

// Empty reports whether the slice carries nothing to analyze.
func (s ConnectionsSlice) Empty() bool { return len(s.People) == 0 }

// BuildSlices projects the consolidated dataset into per-unit views.
// A nil or profile-less dataset yields empty slices so every unit runs
// degraded instead of analyzing noise.
func BuildSlices(d *consolidate.Dataset) *Slices {
	if d == nil || len(d.Profiles) == 0 {
		return &Slices{}
	}

	ranked := rankedProfiles(d)
	authors := make(map[string]bool, len(ranked))
	for _, r := range ranked {
		authors[r.Name] = true
	}

	return &Slices{
		Finance: FinanceSlice{Growth: d.Growth},
		Company: CompanySlice{Themes: d.Themes},
		Momentum: MomentumSlice{
			Posts:      d.Posts,
			Movements:  d.Movements,
			Growth:     d.Growth,
			PreSignals: preSignalsFor(d, report.UnitMomentum),
		},
		Leadership: LeadershipSlice{
			Profiles:   d.Profiles,
			CLevels:    d.CLevels,
			OrgChart:   d.OrgChart,
			Movements:  d.Movements,
			Stack:      d.Stack,
			PreSignals: preSignalsFor(d, report.UnitLeadership),
		},
		Profiles: ProfilesSlice{
			CLevels:  ranked,
			OrgChart: d.OrgChart,
			Posts:    postsByAuthors(d.Posts, authors),
		},
		Connections: ConnectionsSlice{People: connectionCards(d.Profiles)},
	}
}

// rankedProfiles selects C-levels worth a deep dive: sales relevance
// at or above the floor, sorted by relevance descending, capped, and
// joined back to their full profile.
func rankedProfiles(d *consolidate.Dataset) []RankedProfile {
	relevant := make([]consolidate.CLevel, 0, len(d.CLevels))
	for _, c := range d.CLevels {
		if c.SalesRelevance >= minProfileRelevance {
			relevant = append(relevant, c)
		}
	}
	sort.SliceStable(relevant, func(i, j int) bool {
		return relevant[i].SalesRelevance > relevant[j].SalesRelevance
	})
	if len(relevant) > maxFullProfiles {
		relevant = relevant[:maxFullProfiles]
	}

	byName := make(map[string]consolidate.Profile, len(d.Profiles))
	for _, p := range d.Profiles {
		byName[p.Name] = p
	}

	out := make([]RankedProfile, 0, len(relevant))
	for _, c := range relevant {
		full, ok := byName[c.Name]
		if !ok {
			continue
		}
		out = append(out, RankedProfile{
			Profile:        full,
			Role:           c.Role,
			SalesRelevance: c.SalesRelevance,
		})
	}
	return out
}

func postsByAuthors(posts []consolidate.Post, authors map[string]bool) []consolidate.Post {
	var out []consolidate.Post
	for _, p := range posts {
		if authors[p.Author] {
			out = append(out, p)
		}
	}
	return out
}

func connectionCards(profiles []consolidate.Profile) []ConnectionCard {
	out := make([]ConnectionCard, 0, len(profiles))
	for _, p := range profiles {
		card := ConnectionCard{
			Name:          p.Name,
			CurrentTitle:  p.CurrentTitle,
			IsCLevel:      p.IsCLevel,
			ConnectedWith: p.ConnectedWith,
		}
		for _, prev := range p.PreviousEmployers {
			if prev.Company != "" {
				card.PreviousEmployers = append(card.PreviousEmployers, prev.Company)
			}
		}
		out = append(out, card)
	}
	return out
}

// preSignalsFor keeps the pre-detected signals whose grille source is
// the given unit, resolving retired IDs first.
func preSignalsFor(d *consolidate.Dataset, unit string) []consolidate.PreSignal {
	expected := make(map[string]bool)
	for _, id := range scoring.ExpectedSignals(unit) {
		expected[id] = true
	}
	var out []consolidate.PreSignal
	for _, s := range d.PreSignals {
		if expected[scoring.ResolveAlias(s.SignalID)] {
			out = append(out, s)
		}
	}
	return out
}

// routeNode projects the dataset and logs per-slice sizes. Pure: no
// external calls.
func (p *Pipeline) routeNode(_ context.Context, s RunState) (Patch, error) {
	slices := BuildSlices(s.Dataset)

	for _, entry := range []struct {
		unit string
		v    any
	}{
		{report.UnitFinance, slices.Finance},
		{report.UnitCompany, slices.Company},
		{report.UnitMomentum, slices.Momentum},
		{report.UnitLeadership, slices.Leadership},
		{report.UnitProfiles, slices.Profiles},
		{report.UnitConnections, slices.Connections},
	} {
		b, err := json.Marshal(entry.v)
		if err != nil {
			continue
		}
		zap.L().Info("pipeline: slice routed",
			zap.String("unit", entry.unit),
			zap.Int("chars", len(b)),
		)
	}
	return Patch{Slices: slices}, nil
}
