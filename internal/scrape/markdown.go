package scrape

import "context"

// Markdown adapts a Chain to the plain markdown-returning signature
// the enrichment deps and the web_scrape tool consume.
type Markdown struct {
	chain *Chain
}

// NewMarkdown wraps a chain.
func NewMarkdown(chain *Chain) *Markdown {
	return &Markdown{chain: chain}
}

// Scrape fetches url through the chain and returns its markdown.
func (m *Markdown) Scrape(ctx context.Context, url string) (string, error) {
	result, err := m.chain.Scrape(ctx, url)
	if err != nil {
		return "", err
	}
	return result.Markdown, nil
}
