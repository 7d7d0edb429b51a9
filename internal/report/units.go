package report

// Analysis unit names.
const (
	UnitFinance     = "finance"
	UnitCompany     = "company"
	UnitLeadership  = "leadership"
	UnitProfiles    = "profiles"
	UnitConnections = "connections"
	UnitMomentum    = "momentum"
)

// CanonicalUnits fixes the precedence order for the scoring merge:
// when two reports emit the same signal ID, the report from the unit
// appearing later in this list wins.
var CanonicalUnits = []string{
	UnitFinance,
	UnitCompany,
	UnitLeadership,
	UnitProfiles,
	UnitConnections,
	UnitMomentum,
}
