// Package consolidate turns raw enrichment output into one dataset:
// a batch extraction stage fans profiles out to per-lot structured
// calls, and a reduce stage merges the lots deterministically before a
// single generation pass infers the org-level reading.
package consolidate

import (
	"time"

	"github.com/sells-group/audit-cli/internal/linkedin"
)

// PreviousEmployer is one prior position on a profile.
type PreviousEmployer struct {
	Company        string `json:"company"`
	Title          string `json:"title,omitempty"`
	DurationMonths *int   `json:"duration_months,omitempty"`
}

// Profile is a person-at-company record extracted from a raw LinkedIn
// profile. ID carries the provider identifier when one was available;
// merging falls back to the folded name otherwise.
type Profile struct {
	ID                string             `json:"id,omitempty"`
	Name              string             `json:"name"`
	CurrentTitle      string             `json:"current_title,omitempty"`
	RoleStart         string             `json:"role_start,omitempty"` // YYYY-MM
	TenureMonths      *int               `json:"tenure_months,omitempty"`
	IsCLevel          bool               `json:"is_c_level"`
	IsCurrentEmployee bool               `json:"is_current_employee"`
	EmployerName      string             `json:"employer_name,omitempty"`
	PreviousEmployers []PreviousEmployer `json:"previous_employers,omitempty"`
	HeadlineKeywords  []string           `json:"headline_keywords,omitempty"`
	ReportsToMention  string             `json:"reports_to_mention,omitempty"`
	PeopleMentioned   []string           `json:"people_mentioned,omitempty"`
	KeySkills         []string           `json:"key_skills,omitempty"`
	ConnectedWith     []string           `json:"connected_with,omitempty"`
	About             string             `json:"about,omitempty"`
}

// Key returns the merge identity for the profile.
func (p Profile) Key() string {
	if p.ID != "" {
		return p.ID
	}
	return FoldName(p.Name)
}

// Post is one signal-relevant LinkedIn post kept by extraction.
type Post struct {
	Author         string   `json:"author"`
	AuthorTitle    string   `json:"author_title,omitempty"`
	Date           string   `json:"date,omitempty"` // YYYY-MM-DD
	Text           string   `json:"text,omitempty"`
	ToolsMentioned []string `json:"tools_mentioned,omitempty"`
	Topics         []string `json:"topics,omitempty"`
	KeyQuote       string   `json:"key_quote,omitempty"`
}

// Canonical movement types. Extraction output is normalized onto these
// through NormalizeMovementType before any dedup or detection.
const (
	MovementArrival    = "arrival"
	MovementDeparture  = "departure"
	MovementPromotion  = "promotion"
	MovementRoleChange = "role_change"
)

// Movement is one leadership movement event.
type Movement struct {
	Person  string `json:"person"`
	Type    string `json:"type"`
	Date    string `json:"date,omitempty"` // YYYY-MM, approximate
	Context string `json:"context,omitempty"`
}

// CLevel is one inferred leadership-team member.
type CLevel struct {
	Name           string `json:"name"`
	CurrentTitle   string `json:"current_title,omitempty"`
	TenureMonths   *int   `json:"tenure_months,omitempty"`
	Role           string `json:"role"`
	SalesRelevance int    `json:"sales_relevance"` // 1 to 5
}

// OrgLink is one probable reporting-structure edge.
type OrgLink struct {
	From       string `json:"from"`
	To         string `json:"to"`
	Relation   string `json:"relation"` // reports_to, same_leadership, team_mention, supervises
	Confidence string `json:"confidence,omitempty"`
}

// Theme is a topic recurring across several authors' posts.
type Theme struct {
	Theme   string   `json:"theme"`
	Count   int      `json:"count"`
	Authors []string `json:"authors,omitempty"`
}

// StackEntry is one tool or platform detected in use at the company.
type StackEntry struct {
	Tool        string `json:"tool"`
	Source      string `json:"source,omitempty"` // post, profile, headline, job_ad
	MentionedBy string `json:"mentioned_by,omitempty"`
}

// PreSignal is a signal hint raised before the analysis units run.
type PreSignal struct {
	SignalID string `json:"signal_id"`
	Probable bool   `json:"probable"`
	Evidence string `json:"evidence,omitempty"` // 30 words at most
	Source   string `json:"source,omitempty"`
}

// LotResult is the structured output of one extraction batch.
type LotResult struct {
	LotNumber    int        `json:"lot_number"`
	CompanyName  string     `json:"company_name"`
	Profiles     []Profile  `json:"profiles"`
	Posts        []Post     `json:"relevant_posts,omitempty"`
	PostsIgnored int        `json:"posts_ignored_count,omitempty"`
	Stack        []string   `json:"stack_detected,omitempty"`
	Movements    []Movement `json:"movements,omitempty"`
}

// Dataset is the consolidated output of the reduce stage. Profile and
// C-level counts are always recomputed from the merged lists, never
// taken from generation output.
type Dataset struct {
	CompanyName    string           `json:"company_name"`
	ExtractionDate string           `json:"extraction_date"` // YYYY-MM-DD
	ProfileCount   int              `json:"profile_count"`
	CLevelCount    int              `json:"c_level_count"`
	BatchesMerged  int              `json:"batches_merged"`
	Profiles       []Profile        `json:"profiles,omitempty"`
	CLevels        []CLevel         `json:"c_levels,omitempty"`
	OrgChart       []OrgLink        `json:"org_chart,omitempty"`
	Posts          []Post           `json:"posts,omitempty"`
	Themes         []Theme          `json:"themes,omitempty"`
	Stack          []StackEntry     `json:"stack,omitempty"`
	Movements      []Movement       `json:"movements,omitempty"`
	Growth         *linkedin.Growth `json:"headcount_growth,omitempty"`
	PreSignals     []PreSignal      `json:"pre_signals,omitempty"`
}

// EmptyDataset returns the minimal dataset for a company with no
// usable enrichment data. Downstream units then run degraded.
func EmptyDataset(companyName string, now time.Time) Dataset {
	return Dataset{
		CompanyName:    companyName,
		ExtractionDate: now.Format("2006-01-02"),
	}
}

// Empty reports whether the dataset carries no extracted material at
// all.
func (d Dataset) Empty() bool {
	return len(d.Profiles) == 0 && len(d.Posts) == 0 &&
		len(d.Movements) == 0 && d.Growth == nil
}

// HasProbablePreSignal reports whether the generation pass already
// flagged the given signal as probable. The deterministic detectors
// use it to avoid emitting duplicates.
func (d Dataset) HasProbablePreSignal(id string) bool {
	for _, s := range d.PreSignals {
		if s.SignalID == id && s.Probable {
			return true
		}
	}
	return false
}

// completeness counts the populated fields of a profile. The merge
// keeps the more complete version when two lots describe the same
// person.
func completeness(p Profile) int {
	n := 0
	for _, s := range []string{
		p.CurrentTitle, p.RoleStart, p.EmployerName,
		p.ReportsToMention, p.About,
	} {
		if s != "" {
			n++
		}
	}
	if p.TenureMonths != nil {
		n++
	}
	for _, l := range [][]string{p.HeadlineKeywords, p.PeopleMentioned, p.KeySkills, p.ConnectedWith} {
		if len(l) > 0 {
			n++
		}
	}
	if len(p.PreviousEmployers) > 0 {
		n++
	}
	return n
}
