package agent

import "github.com/sells-group/audit-cli/internal/report"

// Unit describes one analysis unit.
type Unit struct {
	Name string
	// TwoPass units first summarize their routed slice without tools,
	// then research the gaps with tool access over the summary only.
	TwoPass bool
	// Tools grants the loop tool access. A tool-less unit answers from
	// its routed slice alone.
	Tools  bool
	System string
}

// The six analysis units.
var (
	Finance = Unit{
		Name:   report.UnitFinance,
		Tools:  true,
		System: financeSystem,
	}
	Company = Unit{
		Name:   report.UnitCompany,
		Tools:  true,
		System: companySystem,
	}
	Momentum = Unit{
		Name:    report.UnitMomentum,
		TwoPass: true,
		Tools:   true,
		System:  momentumSystem,
	}
	Leadership = Unit{
		Name:    report.UnitLeadership,
		TwoPass: true,
		Tools:   true,
		System:  leadershipSystem,
	}
	Profiles = Unit{
		Name:    report.UnitProfiles,
		TwoPass: true,
		Tools:   true,
		System:  profilesSystem,
	}
	Connections = Unit{
		Name:   report.UnitConnections,
		System: connectionsSystem,
	}
)

// AllUnits lists the units in canonical order.
func AllUnits() []Unit {
	return []Unit{Finance, Company, Leadership, Profiles, Connections, Momentum}
}
