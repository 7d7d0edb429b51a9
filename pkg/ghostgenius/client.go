// Package ghostgenius is a client for the Ghost Genius LinkedIn API. Public
// endpoints (company lookup, post feeds) need only the bearer key; the
// private Sales Navigator endpoints additionally debit a connected account
// passed per call, so callers can rotate accounts across a pool when one
// hits its rate limit.
package ghostgenius

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/audit-cli/internal/resilience"
)

// Default base URL for the Ghost Genius API.
const defaultBaseURL = "https://api.ghostgenius.fr/v2"

// DefaultSeniorityLevels is the Sales Navigator seniority filter used for
// executive searches: CXO, Owner/Partner, VP, Director.
var DefaultSeniorityLevels = []string{"310", "320", "300", "220"}

// Client defines the Ghost Genius API operations.
type Client interface {
	CompanyByURL(ctx context.Context, linkedinURL string) (*Company, error)
	SearchCompanies(ctx context.Context, keywords string) ([]Company, error)
	EmployeesGrowth(ctx context.Context, accountID, companyURL string) (*Growth, error)
	SearchPeople(ctx context.Context, accountID string, query PeopleQuery) ([]Person, error)
	Profile(ctx context.Context, profileURL string) (*Profile, error)
	ProfilePosts(ctx context.Context, profileURL string, page int, paginationToken string) (*PostsPage, error)
}

// Company describes a LinkedIn company page.
type Company struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Website  string `json:"website"`
	Industry string `json:"industry"`
}

// IDString returns the numeric company ID as a string, or "" when unset.
func (c Company) IDString() string {
	if c.ID == 0 {
		return ""
	}
	return strconv.FormatInt(c.ID, 10)
}

// Growth holds headcount statistics for a company.
type Growth struct {
	Employees      *int             `json:"employees"`
	Growth6Months  *float64         `json:"growth_6_months"`
	Growth1Year    *float64         `json:"growth_1_year"`
	Growth2Years   *float64         `json:"growth_2_years"`
	HeadcountGraph []map[string]any `json:"headcount_growth"`
}

// PeopleQuery selects people via the Sales Navigator endpoint. Exactly one
// of CurrentCompany or PastCompany must be set; both take the numeric
// LinkedIn organization ID.
type PeopleQuery struct {
	CurrentCompany  string
	PastCompany     string
	SeniorityLevels []string
	Keywords        string
	Locations       string
}

// Person is one Sales Navigator search hit.
type Person struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	URL      string `json:"url"`
	Headline string `json:"headline"`
}

// Profile is a full LinkedIn member profile.
type Profile struct {
	ID              string       `json:"id"`
	FullName        string       `json:"full_name"`
	URL             string       `json:"url"`
	Headline        string       `json:"headline"`
	CurrentJobTitle string       `json:"current_job_title"`
	CompanyName     string       `json:"company_name"`
	About           string       `json:"about"`
	Skills          []string     `json:"skills"`
	ConnectedWith   []string     `json:"connected_with"`
	Experiences     []Experience `json:"experiences"`
	Educations      []Education  `json:"educations"`
}

// Experience is one work entry on a profile.
type Experience struct {
	Company   string `json:"company"`
	Title     string `json:"title"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	IsCurrent bool   `json:"is_current"`
}

// Education is one education entry on a profile.
type Education struct {
	School string `json:"school"`
	Degree string `json:"degree"`
}

// PostsPage is one page of a profile's post feed.
type PostsPage struct {
	Data            []Post `json:"data"`
	PaginationToken string `json:"pagination_token"`
}

// Post is a single LinkedIn post.
type Post struct {
	Text           string `json:"text"`
	Date           string `json:"date"`
	URL            string `json:"url"`
	ReactionsCount int    `json:"reactions_count"`
	CommentsCount  int    `json:"comments_count"`
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new Ghost Genius client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) CompanyByURL(ctx context.Context, linkedinURL string) (*Company, error) {
	params := url.Values{}
	params.Set("url", linkedinURL)

	var company Company
	if err := c.get(ctx, "/company", params, &company); err != nil {
		return nil, eris.Wrap(err, "ghostgenius: company by url")
	}
	return &company, nil
}

func (c *httpClient) SearchCompanies(ctx context.Context, keywords string) ([]Company, error) {
	params := url.Values{}
	params.Set("keywords", keywords)

	data, err := c.getRaw(ctx, "/search/companies", params)
	if err != nil {
		return nil, eris.Wrap(err, "ghostgenius: search companies")
	}

	companies, err := decodeList[Company](data)
	if err != nil {
		return nil, eris.Wrap(err, "ghostgenius: search companies: decode response")
	}
	return companies, nil
}

func (c *httpClient) EmployeesGrowth(ctx context.Context, accountID, companyURL string) (*Growth, error) {
	params := url.Values{}
	params.Set("account_id", accountID)
	params.Set("url", companyURL)

	var growth Growth
	if err := c.get(ctx, "/private/employees-growth", params, &growth); err != nil {
		return nil, eris.Wrap(err, "ghostgenius: employees growth")
	}
	return &growth, nil
}

func (c *httpClient) SearchPeople(ctx context.Context, accountID string, query PeopleQuery) ([]Person, error) {
	params := url.Values{}
	params.Set("account_id", accountID)
	if query.CurrentCompany != "" {
		params.Set("current_company", query.CurrentCompany)
	}
	if query.PastCompany != "" {
		params.Set("past_company", query.PastCompany)
	}
	if len(query.SeniorityLevels) > 0 {
		params.Set("seniority_level", strings.Join(query.SeniorityLevels, ","))
	}
	if query.Keywords != "" {
		params.Set("keywords", query.Keywords)
	}
	if query.Locations != "" {
		params.Set("locations", query.Locations)
	}

	data, err := c.getRaw(ctx, "/private/sales-navigator", params)
	if err != nil {
		return nil, eris.Wrap(err, "ghostgenius: search people")
	}

	people, err := decodeList[Person](data)
	if err != nil {
		return nil, eris.Wrap(err, "ghostgenius: search people: decode response")
	}
	return people, nil
}

func (c *httpClient) Profile(ctx context.Context, profileURL string) (*Profile, error) {
	params := url.Values{}
	params.Set("url", profileURL)

	var profile Profile
	if err := c.get(ctx, "/profile", params, &profile); err != nil {
		return nil, eris.Wrap(err, "ghostgenius: profile")
	}
	return &profile, nil
}

func (c *httpClient) ProfilePosts(ctx context.Context, profileURL string, page int, paginationToken string) (*PostsPage, error) {
	params := url.Values{}
	params.Set("url", profileURL)
	params.Set("page", strconv.Itoa(page))
	if paginationToken != "" {
		params.Set("pagination_token", paginationToken)
	}

	var posts PostsPage
	if err := c.get(ctx, "/profile/posts", params, &posts); err != nil {
		return nil, eris.Wrap(err, "ghostgenius: profile posts")
	}
	return &posts, nil
}

func (c *httpClient) get(ctx context.Context, path string, params url.Values, out any) error {
	data, err := c.getRaw(ctx, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}

func (c *httpClient) getRaw(ctx context.Context, path string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := eris.Errorf("status %d: %s", resp.StatusCode, string(data))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	return data, nil
}

// decodeList parses endpoints that return either a bare JSON array or a
// {"data": [...]} wrapper depending on pagination.
func decodeList[T any](data []byte) ([]T, error) {
	var direct []T
	if err := json.Unmarshal(data, &direct); err == nil {
		return direct, nil
	}

	var wrapped struct {
		Data []T `json:"data"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Data, nil
}
