package main

import (
	"context"
	"os"

	gosf "github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/audit-cli/internal/pipeline"
	"github.com/sells-group/audit-cli/internal/scrape"
	"github.com/sells-group/audit-cli/internal/store"
	anthropicpkg "github.com/sells-group/audit-cli/pkg/anthropic"
	"github.com/sells-group/audit-cli/pkg/evaboot"
	"github.com/sells-group/audit-cli/pkg/firecrawl"
	"github.com/sells-group/audit-cli/pkg/ghostgenius"
	"github.com/sells-group/audit-cli/pkg/jina"
	"github.com/sells-group/audit-cli/pkg/perplexity"
	sfpkg "github.com/sells-group/audit-cli/pkg/salesforce"
	"github.com/sells-group/audit-cli/pkg/slack"
	"github.com/sells-group/audit-cli/pkg/unipile"
)

// auditEnv holds the initialized store and pipeline shared by the run,
// batch, and serve commands.
type auditEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (e *auditEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initAudit validates config for the given mode, opens the store, and
// wires every configured client into the pipeline. Callers should
// defer env.Close().
func initAudit(ctx context.Context, mode string) (*auditEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	deps := pipeline.Deps{
		Store:     st,
		Anthropic: anthropicpkg.NewClient(cfg.Anthropic.Key),
	}
	if sc := initScraper(); sc != nil {
		deps.Scraper = sc
	}

	if cfg.Perplexity.Key != "" {
		deps.Perplexity = perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		)
	} else {
		zap.L().Warn("AUDIT_PERPLEXITY_KEY not set, web search tool disabled")
	}

	if cfg.Providers.Evaboot.Key != "" {
		deps.Evaboot = evaboot.NewClient(cfg.Providers.Evaboot.Key,
			evaboot.WithBaseURL(cfg.Providers.Evaboot.BaseURL))
	}
	if cfg.Providers.Unipile.Key != "" && cfg.Providers.Unipile.AccountID != "" {
		deps.Unipile = unipile.NewClient(cfg.Providers.Unipile.Key, cfg.Providers.Unipile.AccountID,
			unipile.WithBaseURL(cfg.Providers.Unipile.BaseURL))
	}
	if cfg.Providers.GhostGenius.Key != "" {
		deps.GhostGenius = ghostgenius.NewClient(cfg.Providers.GhostGenius.Key,
			ghostgenius.WithBaseURL(cfg.Providers.GhostGenius.BaseURL))
	}
	if deps.Evaboot == nil && deps.Unipile == nil && deps.GhostGenius == nil {
		zap.L().Warn("no linkedin providers configured, enrichment will be skipped")
	}

	sfClient, err := initSalesforce()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	deps.Salesforce = sfClient

	if cfg.Slack.WebhookURL != "" {
		deps.Slack = slack.NewClient(cfg.Slack.WebhookURL)
	}

	p, err := pipeline.New(cfg, deps)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &auditEnv{Store: st, Pipeline: p}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.Path
		if dsn == "" {
			dsn = "audit.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		pool := &store.PoolConfig{
			MaxConns: cfg.Store.Pool.MaxConns,
			MinConns: cfg.Store.Pool.MinConns,
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initScraper builds the markdown scrape chain from whichever scraping
// providers are configured. Returns nil when none are.
func initScraper() *scrape.Markdown {
	var scrapers []scrape.Scraper
	if cfg.Firecrawl.Key != "" {
		fc := firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))
		scrapers = append(scrapers, scrape.NewFirecrawlAdapter(fc))
	}
	if cfg.Jina.Key != "" {
		jc := jina.NewClient(cfg.Jina.Key, jina.WithBaseURL(cfg.Jina.BaseURL))
		scrapers = append(scrapers, scrape.NewJinaAdapter(jc))
	}
	if len(scrapers) == 0 {
		zap.L().Warn("no scraping providers configured, page fetch tool disabled")
		return nil
	}
	return scrape.NewMarkdown(scrape.NewChain(scrapers...))
}

// initSalesforce builds the JWT-authenticated CRM client. The deal
// note sink is optional; an unconfigured client ID disables it.
func initSalesforce() (sfpkg.Client, error) {
	if cfg.Salesforce.ClientID == "" {
		zap.L().Info("salesforce not configured, deal note sink disabled")
		return nil, nil
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := gosf.Init(gosf.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf), nil
}
