// Package unipile is a client for the Unipile LinkedIn API. It exposes the
// two endpoints this codebase uses: company insights (headcount growth) and
// people search by Sales Navigator URL. Both run through a connected
// LinkedIn account identified by account_id.
package unipile

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/audit-cli/internal/resilience"
)

const (
	defaultBaseURL    = "https://api.unipile.com/v1"
	defaultRetryDelay = 5 * time.Second

	maxAttempts = 3
)

// Client defines the Unipile API operations.
type Client interface {
	CompanyInsights(ctx context.Context, slug string) (*CompanyInsights, error)
	SearchPeople(ctx context.Context, salesNavURL string) ([]Person, error)
}

// CompanyInsights is the insights block of GET /linkedin/company/{slug}.
type CompanyInsights struct {
	EmployeesCount *EmployeesCount `json:"employeesCount"`
}

// Empty reports whether the insights carry no headcount data at all.
func (ci *CompanyInsights) Empty() bool {
	return ci == nil || ci.EmployeesCount == nil
}

// EmployeesCount holds headcount statistics for a company.
type EmployeesCount struct {
	TotalCount    *int             `json:"totalCount"`
	AverageTenure *float64         `json:"averageTenure"`
	GrowthGraph   []GrowthPoint    `json:"growthGraph"`
	CountGraph    []map[string]any `json:"employeesCountGraph"`
}

// GrowthPoint is one entry of the growth graph: the headcount change over a
// trailing window of monthRange months.
type GrowthPoint struct {
	MonthRange       int      `json:"monthRange"`
	GrowthPercentage *float64 `json:"growthPercentage"`
}

// GrowthOver returns the growth percentage over the given trailing window
// in months, or nil when the graph has no such window.
func (e *EmployeesCount) GrowthOver(months int) *float64 {
	if e == nil {
		return nil
	}
	for _, p := range e.GrowthGraph {
		if p.MonthRange == months {
			return p.GrowthPercentage
		}
	}
	return nil
}

// Person is one item of a people search result.
type Person struct {
	ID               string `json:"id"`
	PublicIdentifier string `json:"public_identifier"`
	PublicProfileURL string `json:"public_profile_url"`
	Name             string `json:"name"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Headline         string `json:"headline"`
}

// ProfileID returns a stable identifier for the person.
func (p Person) ProfileID() string {
	switch {
	case p.PublicIdentifier != "":
		return p.PublicIdentifier
	case p.ID != "":
		return p.ID
	default:
		return p.PublicProfileURL
	}
}

// FullName returns the display name, joining first and last name when the
// search result carries no combined one.
func (p Person) FullName() string {
	if p.Name != "" {
		return p.Name
	}
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
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

// WithRetryDelay overrides the wait between rate-limit retries.
func WithRetryDelay(d time.Duration) Option {
	return func(c *httpClient) {
		c.retryDelay = d
	}
}

type httpClient struct {
	apiKey     string
	accountID  string
	baseURL    string
	retryDelay time.Duration
	http       *http.Client
}

// NewClient creates a new Unipile client bound to one connected account.
func NewClient(apiKey, accountID string, opts ...Option) Client {
	c := &httpClient{
		apiKey:     apiKey,
		accountID:  accountID,
		baseURL:    defaultBaseURL,
		retryDelay: defaultRetryDelay,
		http: &http.Client{
			Timeout: 60 * time.Second,
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

func (c *httpClient) CompanyInsights(ctx context.Context, slug string) (*CompanyInsights, error) {
	var resp struct {
		Insights *CompanyInsights `json:"insights"`
	}
	if err := c.call(ctx, http.MethodGet, "/linkedin/company/"+url.PathEscape(slug), nil, &resp); err != nil {
		return nil, eris.Wrap(err, "unipile: company insights")
	}
	return resp.Insights, nil
}

func (c *httpClient) SearchPeople(ctx context.Context, salesNavURL string) ([]Person, error) {
	body := map[string]string{"url": salesNavURL}

	var resp struct {
		Items  []Person `json:"items"`
		Paging struct {
			TotalCount int `json:"total_count"`
		} `json:"paging"`
	}
	if err := c.call(ctx, http.MethodPost, "/linkedin/search", body, &resp); err != nil {
		return nil, eris.Wrap(err, "unipile: search people")
	}
	return resp.Items, nil
}

// call sends one request with the account_id bound at construction,
// retrying rate limits after a fixed delay before giving up.
func (c *httpClient) call(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return eris.Wrap(err, "marshal request")
		}
	}

	for attempt := 1; ; attempt++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return eris.Wrap(err, "create request")
		}
		req.Header.Set("X-API-KEY", c.apiKey)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		q := req.URL.Query()
		q.Set("account_id", c.accountID)
		req.URL.RawQuery = q.Encode()

		resp, err := c.http.Do(req)
		if err != nil {
			return eris.Wrap(err, "execute request")
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return eris.Wrap(err, "read response body")
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return eris.Wrap(ctx.Err(), "rate-limit wait")
			case <-time.After(c.retryDelay):
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			err := eris.Errorf("status %d: %s", resp.StatusCode, string(data))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return resilience.NewTransientError(err, resp.StatusCode)
			}
			return err
		}

		if err := json.Unmarshal(data, out); err != nil {
			return eris.Wrap(err, "decode response")
		}
		return nil
	}
}
