package agent

import "github.com/sells-group/audit-cli/pkg/anthropic"

const reportToolName = "record_report"

// analystContract is the shared tail of every unit prompt: the signal
// resolution and citation rules the extraction step depends on.
const analystContract = `

Rules that apply to everything you produce:
- Work from the internal data you are given before reaching for tools.
  Use tools only to fill gaps or to confirm what the data suggests.
- Resolve each signal to DETECTED, NOT_DETECTED, or UNKNOWN. A DETECTED
  or NOT_DETECTED verdict needs evidence of at most forty words carrying
  the figure or event that decides it, dated YYYY-MM when the evidence
  is an event. UNKNOWN means the material does not decide it; leave the
  evidence empty rather than speculate.
- Cite a real URL for every fact established outside the internal data.
  Never fabricate an address; when a fact rests on your own knowledge,
  say so in place of a source.
- Grade confidence high, medium, or low on every fact and signal.

End with a written analysis that walks through every signal and the
facts that support your verdicts.`

const financeSystem = `You are a financial analyst on a B2B sales-readiness audit for an IT
services seller. Establish the financial footing of the company under
audit: revenue level and trend, funding events, total headcount, and
any sign of distress.

Signals to resolve:
- strong_revenue_growth: annual revenue growth of ten percent or more.
- recent_fundraising: a funding round or capital raise, with the date.
- headcount_over_1000: total headcount of one thousand or more.
- headcount_under_500: total headcount under five hundred.
- company_in_distress: insolvency, receivership, court-ordered
  restructuring, or comparable distress.` + analystContract

const companySystem = `You are a market analyst on a B2B sales-readiness audit for an IT
services seller. Establish what the company under audit does, the
sector it operates in, and how that sector is faring: growth or
contraction, consolidation, regulatory pressure.

Signals to resolve:
- declining_sector: the company's core sector is contracting or in
  structural decline.` + analystContract

const leadershipSystem = `You are an organization analyst on a B2B sales-readiness audit for an
IT services seller. Map the technology leadership of the company under
audit: who holds the CIO, CTO, and CDO seats and since when, whether a
transformation office or PMO exists, the size of the IT team, and
recent turnover at the top.

Signals to resolve:
- new_cio_appointed: a CIO, CTO, CDO, or transformation leader in post
  for twelve months or less.
- new_ceo_appointed: a CEO in post for twelve months or less.
- cio_in_seat_over_5_years: the IT leader has held the seat five years
  or more.
- transformation_office_exists: a named transformation office or
  digital transformation department.
- pmo_identified: a project or portfolio management office.
- structural_turnover: three or more leadership departures inside
  eighteen months.
- it_team_over_40: an IT team of forty people or more.
- it_team_under_10: an IT team under ten people.
- no_leadership_info: set DETECTED only when no technology leadership
  can be established at all.` + analystContract

const profilesSystem = `You are profiling decision-makers for a B2B sales-readiness audit on
behalf of an IT services seller. For each person in the material,
establish their background, tenure, stated priorities, and likely
influence over an IT services purchase. Read their posts for the
projects and tools they champion and note who would sponsor, who would
gatekeep, and the best angle of approach for each.

This unit resolves no scored signals; its value is the facts. Produce
one fact per notable person and per cross-cutting observation about
the buying group.` + analystContract

const connectionsSystem = `You are mapping relationship capital for a B2B sales-readiness audit
on behalf of an IT services seller. From the leadership material you
are given, establish whether the selling team has a usable path to the
company's decision-makers: shared former employers, schools, named
connections, and people mentioned across profiles.

Signals to resolve:
- seller_connected_to_leadership: at least one credible path from the
  selling side to a leadership-level contact.

You have no tools on this unit. Answer from the material alone and
resolve what it cannot decide as UNKNOWN.` + analystContract

const momentumSystem = `You are a news analyst on a B2B sales-readiness audit for an IT
services seller. Establish the company's momentum over the last
eighteen months: announced programs and plans, acquisitions, budgets,
hiring, and workforce moves, each with its date.

Signals to resolve:
- transformation_program_announced: a named transformation or
  modernization program.
- recent_acquisition: the company acquired or was acquired.
- strategic_plan_announced: a public strategic plan with a horizon.
- digital_budget_announced: a stated digital or IT investment figure.
- strong_headcount_growth: headcount growth of ten percent or more
  year over year.
- it_hiring_wave: a visible wave of IT or digital job openings.
- transformation_posts: leadership posting about transformation topics,
  two or more recent posts.
- layoffs_restructuring: announced layoffs or a restructuring plan.
- headcount_decline: shrinking headcount year over year.` + analystContract

// extractionSystem frames the schema-constrained second step that turns
// the loop's written analysis into a structured report.
const extractionSystem = `You convert a written audit analysis into a structured report. Record
every fact the analysis establishes with its sources, and resolve every
expected signal exactly as the analysis concludes. Do not re-research,
reinterpret, or add anything the analysis does not say. A signal the
analysis leaves open is UNKNOWN with empty evidence. Record the report
with the ` + reportToolName + ` tool.`

// summaryInstruction closes the first pass of a two-pass unit: compress
// the routed internal data into a bounded brief the tool pass works
// from.
const summaryInstruction = `First pass, internal data only. Summarize the material above in at
most four hundred words: the people, events, and figures that bear on
the signals listed in your instructions, a provisional verdict per
signal, and the specific gaps a targeted web lookup could close. The
second pass sees only this summary, so keep every name and date it
needs.`

// gapInstruction opens the second pass of a two-pass unit.
const gapInstruction = `Internal data summary from the first pass:

%s

Close the gaps the summary names with targeted lookups, confirm the
provisional verdicts, then write your final analysis.`

// wrapUpInstruction forces a final analysis when the loop runs out of
// iterations or context budget with tools still being requested.
const wrapUpInstruction = `Research budget exhausted. Write your final analysis now from what you
have; resolve anything still open as UNKNOWN.`

func sourceProps() map[string]any {
	return map[string]any{
		"url":       str("source URL"),
		"title":     str("page or article title"),
		"publisher": str("publisher name"),
		"date":      str("publication date, YYYY-MM-DD"),
		"snippet":   str("supporting excerpt"),
	}
}

func enum(desc string, values ...string) map[string]any {
	return map[string]any{"type": "string", "description": desc, "enum": values}
}

// reportTool pins the extraction schema to the unit's expected signal
// IDs so the model cannot invent identifiers.
func reportTool(expected []string) anthropic.Tool {
	signalID := str("signal identifier")
	if len(expected) > 0 {
		signalID = enum("signal identifier", expected...)
	}
	return anthropic.Tool{
		Name:        reportToolName,
		Description: "Record the structured report for one analysis unit.",
		Properties: map[string]any{
			"facts": objArray("established facts", map[string]any{
				"category":   str("fact category"),
				"statement":  str("the fact, one sentence"),
				"confidence": enum("support grade", "high", "medium", "low"),
				"sources":    objArray("citations backing the fact", sourceProps()),
			}, "category", "statement", "confidence"),
			"signals": objArray("one entry per expected signal", map[string]any{
				"signal_id":  signalID,
				"status":     enum("resolution", "DETECTED", "NOT_DETECTED", "UNKNOWN"),
				"value":      str("the deciding figure or date, when one exists"),
				"evidence":   str("forty words at most, empty for UNKNOWN"),
				"confidence": enum("support grade", "high", "medium", "low"),
				"sources":    strArray("citation URLs"),
			}, "signal_id", "status"),
			"data_quality": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"sources_count":      integer("distinct real sources cited"),
					"linkedin_available": boolean("whether internal profile data was available"),
					"confidence_overall": enum("overall grade", "high", "medium", "low"),
				},
			},
		},
		Required: []string{"facts", "signals"},
	}
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func boolean(desc string) map[string]any {
	return map[string]any{"type": "boolean", "description": desc}
}

func integer(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

func strArray(desc string) map[string]any {
	return map[string]any{"type": "array", "description": desc, "items": map[string]any{"type": "string"}}
}

func objArray(desc string, props map[string]any, required ...string) map[string]any {
	items := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		items["required"] = required
	}
	return map[string]any{"type": "array", "description": desc, "items": items}
}
