// Package evaboot is a client for the Evaboot extraction API, which runs
// LinkedIn Sales Navigator searches asynchronously: an extraction is created
// from a Sales Navigator URL, then polled until it has executed.
package evaboot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/audit-cli/internal/resilience"
)

// Default base URL for the Evaboot API.
const defaultBaseURL = "https://api.evaboot.com/v1"

// Extraction lifecycle statuses reported by GET /extractions/{id}/.
const (
	StatusExecuted  = "EXECUTED"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
)

// Client defines the Evaboot API operations.
type Client interface {
	CreateExtraction(ctx context.Context, req ExtractionRequest) (*ExtractionCreated, error)
	GetExtraction(ctx context.Context, id string) (*Extraction, error)
}

// ExtractionRequest is the body for POST /extractions/url/. EnrichEmail
// defaults to "none"; email lookups are slow and unused here.
type ExtractionRequest struct {
	LinkedInURL string `json:"linkedin_url"`
	SearchName  string `json:"search_name"`
	EnrichEmail string `json:"enrich_email"`
}

// ExtractionCreated is the response from POST /extractions/url/.
type ExtractionCreated struct {
	ExtractionID string `json:"extraction_id"`
	Count        int    `json:"count"`
}

// Extraction is the response from GET /extractions/{id}/.
type Extraction struct {
	Status    string     `json:"status"`
	Prospects []Prospect `json:"prospects"`
}

// Prospect is one search hit. Evaboot reports its spreadsheet-style column
// names verbatim in JSON.
type Prospect struct {
	UniqueID       string `json:"Linkedin URL Unique ID"`
	PublicURL      string `json:"Linkedin URL Public"`
	FirstName      string `json:"First Name"`
	LastName       string `json:"Last Name"`
	CurrentJob     string `json:"Current Job"`
	MatchesFilters string `json:"Matches Filters"`
}

// Matches reports whether the prospect actually satisfied the search
// filters. Evaboot includes near-misses in the export with "NO" here.
func (p Prospect) Matches() bool {
	return p.MatchesFilters == "YES"
}

// FullName joins the first and last name.
func (p Prospect) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// ProfileID returns a stable identifier for the prospect, preferring the
// unique LinkedIn URL over the public one.
func (p Prospect) ProfileID() string {
	if p.UniqueID != "" {
		return p.UniqueID
	}
	return p.PublicURL
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

// NewClient creates a new Evaboot client.
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

func (c *httpClient) CreateExtraction(ctx context.Context, req ExtractionRequest) (*ExtractionCreated, error) {
	if req.EnrichEmail == "" {
		req.EnrichEmail = "none"
	}

	var resp ExtractionCreated
	if err := c.post(ctx, "/extractions/url/", req, &resp); err != nil {
		return nil, eris.Wrap(err, "evaboot: create extraction")
	}
	return &resp, nil
}

func (c *httpClient) GetExtraction(ctx context.Context, id string) (*Extraction, error) {
	var resp Extraction
	if err := c.get(ctx, fmt.Sprintf("/extractions/%s/", id), &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("evaboot: get extraction %s", id))
	}
	return &resp, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.apiKey)

	return c.do(req, out)
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)

	return c.do(req, out)
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
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
