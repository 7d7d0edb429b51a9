package linkedin

import "regexp"

// Company is a resolved LinkedIn company identity.
type Company struct {
	ID   string // numeric LinkedIn organization ID
	Name string
	URL  string
}

// Growth holds normalized headcount statistics for a company.
type Growth struct {
	Employees     *int     `json:"employees,omitempty"`
	Growth6Months *float64 `json:"growth_6_months,omitempty"`
	Growth1Year   *float64 `json:"growth_1_year,omitempty"`
	Growth2Years  *float64 `json:"growth_2_years,omitempty"`
	AverageTenure *float64 `json:"average_tenure,omitempty"`
	Source        string   `json:"source,omitempty"`
}

// Useful reports whether the statistics carry a real 12-month growth
// value. Providers sometimes answer with an all-null placeholder for
// companies they track but have no data on; those must not stop a
// fallback chain.
func (g *Growth) Useful() bool {
	return g != nil && g.Growth1Year != nil
}

// Executive is a person found through executive search, possibly
// deepened with full profile detail.
type Executive struct {
	ID          string       `json:"id"`
	FullName    string       `json:"full_name"`
	URL         string       `json:"url,omitempty"`
	Headline    string       `json:"headline,omitempty"`
	Title       string       `json:"title,omitempty"`
	CompanyName string       `json:"company_name,omitempty"`
	About       string       `json:"about,omitempty"`
	IsCurrent   bool         `json:"is_current"`
	Enriched    bool         `json:"enriched"`
	Skills      []string     `json:"skills,omitempty"`
	Connections []string     `json:"connected_with,omitempty"`
	Experiences []Experience `json:"experiences,omitempty"`
	Educations  []Education  `json:"educations,omitempty"`
	Source      string       `json:"source,omitempty"`
}

// Experience is one work entry on an executive's profile.
type Experience struct {
	Company   string `json:"company"`
	Title     string `json:"title,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	IsCurrent bool   `json:"is_current,omitempty"`
}

// Education is one education entry on an executive's profile.
type Education struct {
	School string `json:"school"`
	Degree string `json:"degree,omitempty"`
}

// Post is a LinkedIn post attributed to its author.
type Post struct {
	AuthorName string `json:"author_name"`
	AuthorURL  string `json:"author_url,omitempty"`
	Date       string `json:"date,omitempty"`
	Text       string `json:"text"`
	URL        string `json:"url,omitempty"`
	Reactions  int    `json:"reactions,omitempty"`
	Comments   int    `json:"comments,omitempty"`
}

var (
	companyURLPattern  = regexp.MustCompile(`https?://(?:www\.)?linkedin\.com/company/[a-zA-Z0-9_-]+/?`)
	companySlugPattern = regexp.MustCompile(`linkedin\.com/company/([a-zA-Z0-9_-]+)`)
	companyIDPattern   = regexp.MustCompile(`linkedin\.com/company/(\d+)`)
)

// ExtractCompanyURL returns the first LinkedIn company URL found in a
// blob of HTML or markdown, or "" when there is none.
func ExtractCompanyURL(content string) string {
	return companyURLPattern.FindString(content)
}

// CompanySlug extracts the slug (or numeric ID) from a LinkedIn company
// URL: "linkedin.com/company/acme-corp" yields "acme-corp".
func CompanySlug(url string) string {
	m := companySlugPattern.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1]
}

// CompanyID extracts the numeric organization ID from a LinkedIn
// company URL. Returns "" when the URL uses a text slug instead; the
// ID then has to come from a provider lookup.
func CompanyID(url string) string {
	m := companyIDPattern.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1]
}
