package consolidate

import "github.com/sells-group/audit-cli/pkg/anthropic"

const (
	lotToolName           = "record_lot_extraction"
	consolidationToolName = "record_consolidation"
)

const mapSystemPrompt = `You are an analyst preparing a B2B sales-readiness audit.
You receive one lot of raw LinkedIn profiles for employees of the company
under audit, each profile followed by the posts that person authored.

Extract, for this lot only:
- profiles: one entry per person. Infer is_c_level from the title
  (C-suite, VP, director-level leadership). Set role_start (YYYY-MM) and
  tenure_months from the current position when dates are present. Record
  the stated current employer in employer_name. Keep previous employers
  with durations, headline keywords, mentioned people, key skills, and
  the about text when present.
- relevant_posts: only posts that say something about transformation,
  technology, organization, hiring, budgets, or company momentum. Count
  the rest in posts_ignored_count. For each kept post record tools
  mentioned, topics, and the single most telling quote.
- stack_detected: tool and platform names visible in titles, posts, or
  skills.
- movements: arrivals, departures, promotions, and role changes you can
  read from the profiles or posts, with approximate dates (YYYY-MM) and
  a context of at most fifteen words.

Never invent people or dates. Leave a field empty rather than guess.
Record the extraction with the ` + lotToolName + ` tool.`

const reduceSystemPrompt = `You are an analyst consolidating per-lot LinkedIn extractions for a
B2B sales-readiness audit. You receive every lot for one company: the
profiles, posts, detected stack, and movements have already been merged
and deduplicated for you.

From the merged material infer:
- c_levels: the leadership team. For each person give the inferred role
  (CEO, CFO, CIO, CTO, CDO, COO, CMO, CHRO, VP_IT, VP_Digital,
  VP_Sales, VP_Transformation, VP_Operations, BU_Head, Other) and a
  sales relevance from 1 (irrelevant to an IT services seller) to 5
  (owns the transformation budget).
- org_chart: probable reporting edges between named people, only when a
  profile or post states the relation. Use relations reports_to,
  same_leadership, team_mention, supervises with a confidence grade.
- themes: topics recurring across several authors' posts, with author
  lists.
- pre_signals: for each signal id below, whether the merged material
  makes it probable, with evidence of at most thirty words naming the
  person or post it rests on: new_cio_appointed, new_ceo_appointed,
  structural_turnover, transformation_posts,
  transformation_office_exists, pmo_identified, it_hiring_wave,
  digital_budget_announced.

Only use what the lots contain. Record the consolidation with the
` + consolidationToolName + ` tool.`

// generationResult is the model-inferred portion of the dataset. The
// merged lists themselves never round-trip through the model.
type generationResult struct {
	CLevels    []CLevel    `json:"c_levels"`
	OrgChart   []OrgLink   `json:"org_chart,omitempty"`
	Themes     []Theme     `json:"themes,omitempty"`
	PreSignals []PreSignal `json:"pre_signals,omitempty"`
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

func profileProps() map[string]any {
	return map[string]any{
		"name":                str("full name"),
		"current_title":       str("current job title"),
		"role_start":          str("current role start, YYYY-MM"),
		"tenure_months":       integer("months in current role"),
		"is_c_level":          boolean("leadership-level position"),
		"is_current_employee": boolean("currently employed at the audited company"),
		"employer_name":       str("stated current employer"),
		"previous_employers": objArray("prior positions", map[string]any{
			"company":         str("employer name"),
			"title":           str("title held"),
			"duration_months": integer("months in the position"),
		}, "company"),
		"headline_keywords":  strArray("notable headline keywords"),
		"reports_to_mention": str("stated manager or reporting line, when mentioned"),
		"people_mentioned":   strArray("colleagues named in the profile or posts"),
		"key_skills":         strArray("skills relevant to the audit"),
		"connected_with":     strArray("known connections"),
		"about":              str("about section text"),
	}
}

func postProps() map[string]any {
	return map[string]any{
		"author":          str("post author full name"),
		"author_title":    str("author title at posting time"),
		"date":            str("post date, YYYY-MM-DD"),
		"text":            str("full post text"),
		"tools_mentioned": strArray("tool or platform names in the post"),
		"topics":          strArray("post topics"),
		"key_quote":       str("most telling quote"),
	}
}

func movementProps() map[string]any {
	return map[string]any{
		"person":  str("who moved"),
		"type":    str("arrival, departure, promotion, or role_change"),
		"date":    str("approximate date, YYYY-MM"),
		"context": str("context, fifteen words at most"),
	}
}

func lotExtractionTool() anthropic.Tool {
	return anthropic.Tool{
		Name:        lotToolName,
		Description: "Record the structured extraction for one lot of profiles.",
		Properties: map[string]any{
			"company_name":        str("audited company name"),
			"profiles":            objArray("one entry per person in the lot", profileProps(), "name"),
			"relevant_posts":      objArray("signal-relevant posts only", postProps(), "author"),
			"posts_ignored_count": integer("posts dropped as irrelevant"),
			"stack_detected":      strArray("tool and platform names seen in the lot"),
			"movements":           objArray("leadership movements", movementProps(), "person", "type"),
		},
		Required: []string{"company_name", "profiles"},
	}
}

func consolidationTool() anthropic.Tool {
	return anthropic.Tool{
		Name:        consolidationToolName,
		Description: "Record the consolidated organization reading.",
		Properties: map[string]any{
			"c_levels": objArray("leadership team", map[string]any{
				"name":            str("full name"),
				"current_title":   str("current title"),
				"tenure_months":   integer("months in current role"),
				"role":            str("inferred role label"),
				"sales_relevance": integer("1 to 5"),
			}, "name", "role"),
			"org_chart": objArray("probable reporting edges", map[string]any{
				"from":       str("person"),
				"to":         str("person or team"),
				"relation":   str("reports_to, same_leadership, team_mention, or supervises"),
				"confidence": str("high, medium, or low"),
			}, "from", "to", "relation"),
			"themes": objArray("cross-cutting post themes", map[string]any{
				"theme":   str("theme"),
				"count":   integer("posts carrying the theme"),
				"authors": strArray("authors"),
			}, "theme"),
			"pre_signals": objArray("pre-detected signals", map[string]any{
				"signal_id": str("signal identifier"),
				"probable":  boolean("whether the material makes it probable"),
				"evidence":  str("thirty words at most"),
				"source":    str("person or post the evidence rests on"),
			}, "signal_id", "probable"),
		},
		Required: []string{"c_levels"},
	}
}
