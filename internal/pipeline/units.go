package pipeline

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/sells-group/audit-cli/internal/agent"
	"github.com/sells-group/audit-cli/internal/report"
)

// emptier lets the renderers skip slices with nothing to say, so the
// runner seeds those units with "no internal data" instead of an empty
// JSON shell.
type emptier interface {
	Empty() bool
}

func sliceJSON(s emptier) string {
	if s.Empty() {
		return ""
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		zap.L().Warn("pipeline: slice render failed", zap.Error(err))
		return ""
	}
	return string(b)
}

// runUnit executes one analysis unit and folds the outcome into a
// patch. The runner returns a degraded report alongside any error, so
// the branch always contributes exactly one report.
func (p *Pipeline) runUnit(ctx context.Context, unit agent.Unit, input agent.Input) (Patch, error) {
	rep, err := p.runner.Run(ctx, unit, input)
	if err != nil {
		zap.L().Warn("pipeline: unit degraded",
			zap.String("unit", unit.Name),
			zap.Error(err),
		)
		return Patch{
			Reports: []report.AgentReport{rep},
			Errors:  errorMap(unit.Name, err),
		}, nil
	}
	return Patch{Reports: []report.AgentReport{rep}}, nil
}

func (p *Pipeline) unitInput(s RunState, sliceText string) agent.Input {
	return agent.Input{
		CompanyName:       s.CompanyName,
		Domain:            s.Domain,
		Country:           s.Country,
		Context:           sliceText,
		LinkedInAvailable: s.LinkedInAvailable,
	}
}

// financeNode runs in parallel with enrichment, so it researches from
// public sources only; headcount statistics reach scoring through the
// momentum unit instead.
func (p *Pipeline) financeNode(ctx context.Context, s RunState) (Patch, error) {
	return p.runUnit(ctx, agent.Finance, p.unitInput(s, ""))
}

// companyNode profiles the business itself: sector, model, positioning.
// Like finance it starts at intake and works from public sources.
func (p *Pipeline) companyNode(ctx context.Context, s RunState) (Patch, error) {
	return p.runUnit(ctx, agent.Company, p.unitInput(s, ""))
}

func (p *Pipeline) momentumNode(ctx context.Context, s RunState) (Patch, error) {
	var slice MomentumSlice
	if s.Slices != nil {
		slice = s.Slices.Momentum
	}
	return p.runUnit(ctx, agent.Momentum, p.unitInput(s, sliceJSON(slice)))
}

func (p *Pipeline) leadershipNode(ctx context.Context, s RunState) (Patch, error) {
	var slice LeadershipSlice
	if s.Slices != nil {
		slice = s.Slices.Leadership
	}
	return p.runUnit(ctx, agent.Leadership, p.unitInput(s, sliceJSON(slice)))
}

// profilesNode deep-dives the ranked C-levels. The leadership report
// is handed down so the dive starts from the org findings instead of
// rediscovering them.
func (p *Pipeline) profilesNode(ctx context.Context, s RunState) (Patch, error) {
	var slice ProfilesSlice
	if s.Slices != nil {
		slice = s.Slices.Profiles
	}
	input := p.unitInput(s, sliceJSON(slice))
	if rep, ok := findReport(s.Reports, report.UnitLeadership); ok {
		input.Extra = renderReport(rep)
	}
	return p.runUnit(ctx, agent.Profiles, input)
}

// connectionsNode matches the account team against the leadership
// graph. Tool-less: everything it needs is in the cards and roster.
func (p *Pipeline) connectionsNode(ctx context.Context, s RunState) (Patch, error) {
	return p.runUnit(ctx, agent.Connections, p.unitInput(s, connectionsContext(s)))
}

// connectionsContext joins the routed connection cards with the sales
// roster from intake.
func connectionsContext(s RunState) string {
	var people []ConnectionCard
	if s.Slices != nil {
		people = s.Slices.Connections.People
	}
	if len(people) == 0 && len(s.SalesTeam) == 0 {
		return ""
	}
	payload := struct {
		People    []ConnectionCard `json:"people,omitempty"`
		SalesTeam []TeamMember     `json:"sales_team,omitempty"`
	}{People: people, SalesTeam: s.SalesTeam}

	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		zap.L().Warn("pipeline: connections render failed", zap.Error(err))
		return ""
	}
	return string(b)
}

func findReport(reports []report.AgentReport, unit string) (report.AgentReport, bool) {
	for _, r := range reports {
		if r.Unit == unit {
			return r, true
		}
	}
	return report.AgentReport{}, false
}

func renderReport(rep report.AgentReport) string {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}
