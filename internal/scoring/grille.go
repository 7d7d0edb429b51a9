// Package scoring turns the analysis units' signals into the final
// verdict. The grille, aliases, and thresholds are closed tables; the
// computation is pure and deterministic.
package scoring

import "github.com/sells-group/audit-cli/internal/report"

// GrilleSignal is one row of the scoring grille.
type GrilleSignal struct {
	ID     string
	Points int
	Unit   string
	// IntentTiming marks buying-intent and timing signals; the rest
	// score the structural sub-total.
	IntentTiming bool
	// DecayExempt signals describe standing facts and never take the
	// temporal decay penalty.
	DecayExempt bool
}

// MaxScore is the sum of the grille's positive points.
const MaxScore = 330

// Grille is the closed signal table.
var Grille = []GrilleSignal{
	{ID: "new_cio_appointed", Points: 30, Unit: report.UnitLeadership, IntentTiming: true},
	{ID: "new_ceo_appointed", Points: 30, Unit: report.UnitLeadership, IntentTiming: true},
	{ID: "transformation_program_announced", Points: 30, Unit: report.UnitMomentum, IntentTiming: true},
	{ID: "strong_revenue_growth", Points: 20, Unit: report.UnitFinance, DecayExempt: true},
	{ID: "recent_acquisition", Points: 20, Unit: report.UnitMomentum, IntentTiming: true},
	{ID: "strategic_plan_announced", Points: 20, Unit: report.UnitMomentum, IntentTiming: true},
	{ID: "transformation_office_exists", Points: 20, Unit: report.UnitLeadership, DecayExempt: true},
	{ID: "structural_turnover", Points: 20, Unit: report.UnitLeadership, IntentTiming: true},
	{ID: "recent_fundraising", Points: 20, Unit: report.UnitFinance, IntentTiming: true},
	{ID: "digital_budget_announced", Points: 20, Unit: report.UnitMomentum, IntentTiming: true},
	{ID: "strong_headcount_growth", Points: 15, Unit: report.UnitMomentum, DecayExempt: true},
	{ID: "it_team_over_40", Points: 15, Unit: report.UnitLeadership, DecayExempt: true},
	{ID: "pmo_identified", Points: 15, Unit: report.UnitLeadership, DecayExempt: true},
	{ID: "seller_connected_to_leadership", Points: 15, Unit: report.UnitConnections, DecayExempt: true},
	{ID: "transformation_posts", Points: 15, Unit: report.UnitMomentum, IntentTiming: true},
	{ID: "it_hiring_wave", Points: 15, Unit: report.UnitMomentum, IntentTiming: true},
	{ID: "headcount_over_1000", Points: 10, Unit: report.UnitFinance, DecayExempt: true},
	{ID: "company_in_distress", Points: -30, Unit: report.UnitFinance, DecayExempt: true},
	{ID: "layoffs_restructuring", Points: -20, Unit: report.UnitMomentum, IntentTiming: true},
	{ID: "headcount_under_500", Points: -20, Unit: report.UnitFinance, DecayExempt: true},
	{ID: "headcount_decline", Points: -15, Unit: report.UnitMomentum, DecayExempt: true},
	{ID: "it_team_under_10", Points: -15, Unit: report.UnitLeadership, DecayExempt: true},
	{ID: "no_leadership_info", Points: -10, Unit: report.UnitLeadership, DecayExempt: true},
	{ID: "cio_in_seat_over_5_years", Points: -10, Unit: report.UnitLeadership, DecayExempt: true},
	{ID: "declining_sector", Points: -10, Unit: report.UnitCompany, DecayExempt: true},
}

// aliases maps retired signal identifiers onto their current names.
// Resolution happens before grille lookup so older prompt revisions
// keep scoring.
var aliases = map[string]string{
	"new_cio":                   "new_cio_appointed",
	"new_transformation_leader": "new_cio_appointed",
	"new_ceo":                   "new_ceo_appointed",
	"comex_turnover_detected":   "structural_turnover",
	"transfo_posts_detected":    "transformation_posts",
	"transformation_program":    "transformation_program_announced",
}

// ResolveAlias maps a possibly retired signal ID onto its current
// grille name.
func ResolveAlias(id string) string {
	if current, ok := aliases[id]; ok {
		return current
	}
	return id
}

// ExpectedSignals returns the grille IDs sourced from the given unit,
// in grille order. The extraction step uses them to pin each unit's
// schema.
func ExpectedSignals(unit string) []string {
	var out []string
	for _, g := range Grille {
		if g.Unit == unit {
			out = append(out, g.ID)
		}
	}
	return out
}
