package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/audit-cli/pkg/anthropic"
	"github.com/sells-group/audit-cli/pkg/perplexity"
)

// Tool names exposed to the analysis loop.
const (
	toolWebSearch     = "web_search"
	toolWebScrape     = "web_scrape"
	toolCompanyLookup = "company_lookup"
)

// Scraper fetches one page as markdown.
type Scraper interface {
	Scrape(ctx context.Context, url string) (string, error)
}

// CompanyLookup reads the cached company identity for a domain and
// renders it for the model.
type CompanyLookup func(ctx context.Context, domain string) (string, error)

// Toolset executes the loop's tool calls. Any backend may be nil; its
// tool is then simply not offered.
type Toolset struct {
	search      perplexity.Client
	searchModel string
	scraper     Scraper
	lookup      CompanyLookup
}

// NewToolset builds a Toolset over the given backends.
func NewToolset(search perplexity.Client, searchModel string, scraper Scraper, lookup CompanyLookup) *Toolset {
	return &Toolset{search: search, searchModel: searchModel, scraper: scraper, lookup: lookup}
}

// Definitions returns the declarations for the tools whose backends
// are wired.
func (t *Toolset) Definitions() []anthropic.Tool {
	if t == nil {
		return nil
	}
	var defs []anthropic.Tool
	if t.search != nil {
		defs = append(defs, anthropic.Tool{
			Name:        toolWebSearch,
			Description: "Search the web. Returns a sourced answer plus the citation URLs.",
			Properties: map[string]any{
				"query": map[string]any{"type": "string", "description": "search query"},
			},
			Required: []string{"query"},
		})
	}
	if t.scraper != nil {
		defs = append(defs, anthropic.Tool{
			Name:        toolWebScrape,
			Description: "Fetch one web page as markdown.",
			Properties: map[string]any{
				"url": map[string]any{"type": "string", "description": "absolute http(s) URL"},
			},
			Required: []string{"url"},
		})
	}
	if t.lookup != nil {
		defs = append(defs, anthropic.Tool{
			Name:        toolCompanyLookup,
			Description: "Look up the audited company's cached registry identity by domain.",
			Properties: map[string]any{
				"domain": map[string]any{"type": "string", "description": "company domain"},
			},
			Required: []string{"domain"},
		})
	}
	return defs
}

// Execute runs one tool call. The returned error marks the tool result
// block as failed; the loop itself continues either way.
func (t *Toolset) Execute(ctx context.Context, name string, input json.RawMessage) (string, error) {
	if t == nil {
		return "", eris.Errorf("agent: tool %s not available", name)
	}
	switch name {
	case toolWebSearch:
		return t.webSearch(ctx, input)
	case toolWebScrape:
		return t.webScrape(ctx, input)
	case toolCompanyLookup:
		return t.companyLookup(ctx, input)
	default:
		return "", eris.Errorf("agent: unknown tool %s", name)
	}
}

func (t *Toolset) webSearch(ctx context.Context, input json.RawMessage) (string, error) {
	if t.search == nil {
		return "", eris.New("agent: web_search not available")
	}
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", eris.Wrap(err, "agent: web_search input")
	}
	zap.L().Debug("agent: web_search", zap.String("query", args.Query))

	resp, err := t.search.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model: t.searchModel,
		Messages: []perplexity.Message{
			{Role: "user", Content: args.Query},
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "agent: web_search")
	}

	var b strings.Builder
	b.WriteString(resp.Answer())
	if len(resp.Citations) > 0 {
		b.WriteString("\n\nSources:\n")
		for _, c := range resp.Citations {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	return b.String(), nil
}

func (t *Toolset) webScrape(ctx context.Context, input json.RawMessage) (string, error) {
	if t.scraper == nil {
		return "", eris.New("agent: web_scrape not available")
	}
	var args struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", eris.Wrap(err, "agent: web_scrape input")
	}
	zap.L().Debug("agent: web_scrape", zap.String("url", args.URL))

	markdown, err := t.scraper.Scrape(ctx, args.URL)
	if err != nil {
		return "", eris.Wrap(err, "agent: web_scrape")
	}
	return markdown, nil
}

func (t *Toolset) companyLookup(ctx context.Context, input json.RawMessage) (string, error) {
	if t.lookup == nil {
		return "", eris.New("agent: company_lookup not available")
	}
	var args struct {
		Domain string `json:"domain"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", eris.Wrap(err, "agent: company_lookup input")
	}
	zap.L().Debug("agent: company_lookup", zap.String("domain", args.Domain))

	return t.lookup(ctx, args.Domain)
}
