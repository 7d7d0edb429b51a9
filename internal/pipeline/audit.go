package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/audit-cli/internal/agent"
	"github.com/sells-group/audit-cli/internal/config"
	"github.com/sells-group/audit-cli/internal/consolidate"
	"github.com/sells-group/audit-cli/internal/graph"
	"github.com/sells-group/audit-cli/internal/linkedin"
	"github.com/sells-group/audit-cli/internal/scoring"
	"github.com/sells-group/audit-cli/internal/store"
	"github.com/sells-group/audit-cli/pkg/anthropic"
	"github.com/sells-group/audit-cli/pkg/evaboot"
	"github.com/sells-group/audit-cli/pkg/ghostgenius"
	"github.com/sells-group/audit-cli/pkg/perplexity"
	"github.com/sells-group/audit-cli/pkg/salesforce"
	"github.com/sells-group/audit-cli/pkg/slack"
	"github.com/sells-group/audit-cli/pkg/unipile"
)

// Graph node names. The unit nodes reuse the unit names so the error
// map keys line up with the report units.
const (
	nodeIntake      = "intake"
	nodeFinance     = "finance"
	nodeCompany     = "company"
	nodeEnrich      = "enrich"
	nodeExtract     = "batch_extract"
	nodeConsolidate = "consolidate"
	nodeRoute       = "route"
	nodeLeadership  = "leadership"
	nodeMomentum    = "momentum"
	nodeProfiles    = "profiles"
	nodeConnections = "connections"
	nodeScore       = "score"
	nodeSynthesize  = "synthesize"
)

// Pipeline runs company audits over the compiled task graph. One
// Pipeline serves many runs; all per-run state lives in RunState.
type Pipeline struct {
	cfg   *config.Config
	store store.Store

	anthropic anthropic.Client
	tiers     agent.Tiers
	runner    *agent.Runner
	mapper    *consolidate.Mapper
	reducer   *consolidate.Reducer

	evaboot      evaboot.Client
	unipile      unipile.Client
	ghostgenius  ghostgenius.Client
	accounts     []string
	scraper      linkedin.Scraper
	enrichParams linkedin.Params
	tuning       linkedin.Tuning

	salesforce salesforce.Client
	slack      slack.Client

	graph *graph.Graph[RunState, Patch]
}

// Deps bundles the pipeline's collaborators. Store and Anthropic are
// required; any other client may be nil, and the stage or sink that
// needs it degrades.
type Deps struct {
	Store       store.Store
	Anthropic   anthropic.Client
	Perplexity  perplexity.Client
	Scraper     linkedin.Scraper
	Evaboot     evaboot.Client
	Unipile     unipile.Client
	GhostGenius ghostgenius.Client
	Salesforce  salesforce.Client
	Slack       slack.Client
}

// Request identifies one company to audit.
type Request struct {
	DealID      string
	StageID     string
	CompanyName string
	Domain      string
	Country     string
	SalesTeam   []TeamMember
}

// Outcome is what a finished run hands back to the caller.
type Outcome struct {
	RunID       string
	Status      store.RunStatus
	Verdict     string
	Scoring     *scoring.Result
	FinalReport string
	Errors      map[string]string
}

// New wires the pipeline from config and clients and compiles the task
// graph.
func New(cfg *config.Config, deps Deps) (*Pipeline, error) {
	if deps.Store == nil {
		return nil, eris.New("pipeline: store is required")
	}
	if deps.Anthropic == nil {
		return nil, eris.New("pipeline: anthropic client is required")
	}

	tiers := agent.Tiers{Fast: cfg.Anthropic.FastModel, Strong: cfg.Anthropic.StrongModel}
	params := enrichParams(cfg.Enrich)

	tools := agent.NewToolset(
		deps.Perplexity,
		cfg.Perplexity.Model,
		deps.Scraper,
		companyLookup(deps.Store, params.CacheMaxAge),
	)
	agentCfg := agent.Config{
		MaxIterations:      cfg.Agent.MaxIterations,
		MaxContextChars:    cfg.Agent.MaxContextChars,
		ToolResultMaxChars: cfg.Agent.ToolResultMaxChars,
		MaxTokens:          int64(cfg.Anthropic.MaxTokens),
	}
	batchCfg := consolidate.Config{
		BatchSize:     cfg.Batch.Size,
		TokenBudget:   cfg.Batch.TokenBudget,
		CharsPerToken: cfg.Batch.CharsPerToken,
		StrongLots:    cfg.Batch.StrongLots,
		MaxTokens:     int64(cfg.Anthropic.MaxTokens),
	}

	p := &Pipeline{
		cfg:          cfg,
		store:        deps.Store,
		anthropic:    deps.Anthropic,
		tiers:        tiers,
		runner:       agent.NewRunner(deps.Anthropic, tiers, tools, agentCfg),
		mapper:       consolidate.NewMapper(deps.Anthropic, tiers.Fast, batchCfg),
		reducer:      consolidate.NewReducer(deps.Anthropic, tiers, batchCfg),
		evaboot:      deps.Evaboot,
		unipile:      deps.Unipile,
		ghostgenius:  deps.GhostGenius,
		accounts:     cfg.Providers.GhostGenius.AccountIDs,
		scraper:      deps.Scraper,
		enrichParams: params,
		tuning:       loadTuning(cfg.Providers.TuningFile),
		salesforce:   deps.Salesforce,
		slack:        deps.Slack,
	}

	g, err := p.buildGraph()
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: compile graph")
	}
	p.graph = g
	return p, nil
}

// buildGraph declares the audit topology. finance and company need no
// LinkedIn data and launch straight from intake; the routed units wait
// for the dataset, and scoring joins every leaf report.
func (p *Pipeline) buildGraph() (*graph.Graph[RunState, Patch], error) {
	return graph.NewBuilder[RunState, Patch](Apply, errorPatch).
		AddNode(nodeIntake, p.intakeNode).
		AddNode(nodeFinance, p.financeNode).
		AddNode(nodeCompany, p.companyNode).
		AddNode(nodeEnrich, p.enrichNode).
		AddNode(nodeExtract, p.extractNode).
		AddNode(nodeConsolidate, p.consolidateNode).
		AddNode(nodeRoute, p.routeNode).
		AddNode(nodeLeadership, p.leadershipNode).
		AddNode(nodeMomentum, p.momentumNode).
		AddNode(nodeProfiles, p.profilesNode).
		AddNode(nodeConnections, p.connectionsNode).
		AddNode(nodeScore, p.scoreNode).
		AddNode(nodeSynthesize, p.synthesizeNode).
		AddEdge(nodeIntake, nodeFinance).
		AddEdge(nodeIntake, nodeCompany).
		AddEdge(nodeIntake, nodeEnrich).
		AddEdge(nodeEnrich, nodeExtract).
		AddEdge(nodeExtract, nodeConsolidate).
		AddEdge(nodeConsolidate, nodeRoute).
		AddEdge(nodeRoute, nodeLeadership).
		AddEdge(nodeRoute, nodeMomentum).
		AddEdge(nodeLeadership, nodeProfiles).
		AddEdge(nodeLeadership, nodeConnections).
		AddJoin([]string{nodeFinance, nodeCompany, nodeMomentum, nodeProfiles, nodeConnections}, nodeScore).
		AddEdge(nodeScore, nodeSynthesize).
		SetEntryPoint(nodeIntake).
		SetFinishPoint(nodeSynthesize).
		Compile()
}

// Run executes one audit to completion. Only cancellation aborts a
// run; everything else degrades in-branch and lands in the error map.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Outcome, error) {
	final, err := p.graph.Run(ctx, p.seedState(req))
	if err != nil {
		if final.RunID != "" {
			if failErr := p.store.FailRun(context.Background(), final.RunID, err.Error()); failErr != nil {
				zap.L().Warn("pipeline: run row not marked failed", zap.Error(failErr))
			}
		}
		return nil, eris.Wrap(err, "pipeline: run")
	}
	return outcomeOf(final), nil
}

// Submit creates the run row and launches the audit detached. The
// returned run ID is immediately queryable through the store.
func (p *Pipeline) Submit(ctx context.Context, req Request) (string, error) {
	domain, country := p.resolveIdentity(req.CompanyName, req.Domain, req.Country)
	run, err := p.store.CreateRun(ctx, store.RunSeed{
		DealID:      req.DealID,
		StageID:     req.StageID,
		CompanyName: req.CompanyName,
		Domain:      domain,
		Country:     country,
	})
	if err != nil {
		return "", eris.Wrap(err, "pipeline: create run")
	}

	state := p.seedState(req)
	state.RunID = run.ID
	state.Domain = domain
	state.Country = country
	state.StartedAt = run.CreatedAt

	go func() {
		// The audit outlives the webhook request.
		ctx := context.Background()
		if _, err := p.graph.Run(ctx, state); err != nil {
			zap.L().Error("pipeline: background run failed",
				zap.String("run_id", run.ID),
				zap.Error(err),
			)
			if failErr := p.store.FailRun(ctx, run.ID, err.Error()); failErr != nil {
				zap.L().Warn("pipeline: run row not marked failed", zap.Error(failErr))
			}
		}
	}()
	return run.ID, nil
}

func (p *Pipeline) seedState(req Request) RunState {
	return RunState{
		DealID:      req.DealID,
		StageID:     req.StageID,
		CompanyName: req.CompanyName,
		Domain:      req.Domain,
		Country:     req.Country,
		SalesTeam:   req.SalesTeam,
	}
}

// resolveIdentity applies domain normalization and the country
// default. The company field sometimes carries the website, so it
// backs an absent domain.
func (p *Pipeline) resolveIdentity(companyName, domain, country string) (string, string) {
	d := NormalizeDomain(domain)
	if d == "" {
		d = NormalizeDomain(companyName)
	}
	c := country
	if c == "" {
		c = p.cfg.Intake.DefaultCountry
	}
	if c == "" {
		c = defaultCountry
	}
	return d, c
}

func outcomeOf(s RunState) *Outcome {
	out := &Outcome{
		RunID:       s.RunID,
		Status:      s.Status,
		Scoring:     s.Scoring,
		FinalReport: s.FinalReport,
		Errors:      s.Errors,
	}
	if s.Scoring != nil {
		out.Verdict = string(s.Scoring.Verdict)
	}
	return out
}

// companyLookup adapts the store's company cache into the agents'
// lookup tool.
func companyLookup(st store.Store, maxAge time.Duration) agent.CompanyLookup {
	if maxAge <= 0 {
		maxAge = linkedin.DefaultParams().CacheMaxAge
	}
	return func(ctx context.Context, domain string) (string, error) {
		entry, err := st.LookupCompany(ctx, NormalizeDomain(domain), "", maxAge)
		if err != nil {
			return "", eris.Wrap(err, "pipeline: company lookup")
		}
		if entry == nil {
			return "No cached company data for " + domain + ".", nil
		}
		return renderCompanyEntry(entry), nil
	}
}

func renderCompanyEntry(e *linkedin.CompanyCacheEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)", e.CompanyName, e.Domain)
	if e.LinkedInURL != "" {
		fmt.Fprintf(&b, "\nLinkedIn: %s", e.LinkedInURL)
	}
	if g := e.Growth; g != nil {
		if g.Employees != nil {
			fmt.Fprintf(&b, "\nEmployees: %d", *g.Employees)
		}
		if g.Growth1Year != nil {
			fmt.Fprintf(&b, "\nHeadcount growth, 1 year: %+.1f%%", *g.Growth1Year)
		}
		if g.Growth2Years != nil {
			fmt.Fprintf(&b, "\nHeadcount growth, 2 years: %+.1f%%", *g.Growth2Years)
		}
	}
	fmt.Fprintf(&b, "\nFetched: %s", e.FetchedAt.Format("2006-01-02"))
	return b.String()
}

func enrichParams(c config.EnrichConfig) linkedin.Params {
	p := linkedin.Params{
		MaxExecutives:     c.MaxExecutives,
		MaxPastExecutives: c.MaxPastExecutives,
		PostsTopN:         c.PostsTopN,
		PostsPages:        c.PostsPages,
	}
	if c.CacheFreshnessDays > 0 {
		p.CacheMaxAge = time.Duration(c.CacheFreshnessDays) * 24 * time.Hour
	}
	if c.RatePerSecond > 0 {
		p.ProfileEvery = time.Duration(float64(time.Second) / c.RatePerSecond)
	}
	if c.RetryDelaySecs > 0 {
		p.RetryDelay = time.Duration(c.RetryDelaySecs) * time.Second
	}
	return p
}

func loadTuning(path string) linkedin.Tuning {
	if path == "" {
		return linkedin.DefaultTuning()
	}
	t, err := linkedin.LoadTuning(path)
	if err != nil {
		zap.L().Warn("pipeline: tuning file not loaded, using defaults",
			zap.String("path", path),
			zap.Error(err),
		)
		return linkedin.DefaultTuning()
	}
	return t
}
