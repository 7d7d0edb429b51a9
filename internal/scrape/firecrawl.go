package scrape

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/audit-cli/pkg/firecrawl"
)

// FirecrawlAdapter wraps a Firecrawl client as the primary scraper.
type FirecrawlAdapter struct {
	client firecrawl.Client
}

// NewFirecrawlAdapter creates a FirecrawlAdapter from a Firecrawl client.
func NewFirecrawlAdapter(client firecrawl.Client) *FirecrawlAdapter {
	return &FirecrawlAdapter{client: client}
}

// Name implements Scraper.
func (f *FirecrawlAdapter) Name() string { return "firecrawl" }

// Supports always returns true; Firecrawl can attempt any URL.
func (f *FirecrawlAdapter) Supports(_ string) bool { return true }

// Scrape fetches a single URL via Firecrawl's scrape API. An empty
// markdown body counts as a failure so the chain falls through.
func (f *FirecrawlAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	resp, err := f.client.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:     targetURL,
		Formats: []string{"markdown"},
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Markdown()) == "" {
		return nil, eris.New("firecrawl: empty scrape result")
	}
	return &Result{
		URL:      targetURL,
		Title:    resp.Title(),
		Markdown: resp.Markdown(),
		Source:   "firecrawl",
	}, nil
}
