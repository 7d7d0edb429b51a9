package scrape

import "context"

// Result holds one scraped page.
type Result struct {
	URL      string
	Title    string
	Markdown string
	Source   string // e.g. "firecrawl", "jina"
}

// Scraper fetches a single URL and returns its content.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
	// Supports reports whether the scraper will attempt the URL right
	// now. A tripped circuit breaker makes it false.
	Supports(url string) bool
}
