// Package linkedin turns a company identifier into LinkedIn ground
// truth: the resolved company page, headcount growth, current and
// former leadership with full profile detail, and recent posts. Three
// vendor APIs (Evaboot, Unipile, Ghost Genius) cover overlapping
// capabilities; every capability runs through a fixed-order fallback
// cascade so one flaky vendor degrades the result instead of killing
// the run.
package linkedin

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/audit-cli/pkg/evaboot"
	"github.com/sells-group/audit-cli/pkg/ghostgenius"
	"github.com/sells-group/audit-cli/pkg/unipile"
)

// Scraper fetches one page as markdown. The resolution step uses it to
// find a LinkedIn company link on the company homepage.
type Scraper interface {
	Scrape(ctx context.Context, url string) (string, error)
}

// CompanyCacheEntry is one row of the company resolution cache.
type CompanyCacheEntry struct {
	Domain      string
	CompanyName string
	LinkedInID  string
	LinkedInURL string
	Growth      *Growth
	FetchedAt   time.Time
}

// Store is the slice of the persistent store the enrichment pipeline
// reads and writes. Lookups respect maxAge; stale rows come back nil.
type Store interface {
	LookupCompany(ctx context.Context, domain, companyName string, maxAge time.Duration) (*CompanyCacheEntry, error)
	SaveCompany(ctx context.Context, entry CompanyCacheEntry) error
	LookupExecutive(ctx context.Context, profileURL string, maxAge time.Duration) (*Executive, error)
	SaveExecutives(ctx context.Context, domain string, execs []Executive) error
	SavePosts(ctx context.Context, domain string, posts []Post) error
}

// Params bounds the enrichment work per run.
type Params struct {
	// MaxExecutives caps the merged executive list.
	MaxExecutives int
	// MaxPastExecutives caps how many of those slots former leadership
	// may occupy.
	MaxPastExecutives int
	// PostsTopN is how many current executives get their feed pulled.
	PostsTopN int
	// PostsPages is the page depth per feed.
	PostsPages int
	// CacheMaxAge is the freshness window for cache hits.
	CacheMaxAge time.Duration
	// ProfileEvery paces live profile fetches. Zero disables pacing.
	ProfileEvery time.Duration
	// RetryDelay overrides the cascade's server-error retry delay.
	// Zero keeps the default.
	RetryDelay time.Duration
	// PollInterval overrides the extraction poll cadence. Zero keeps
	// the client default.
	PollInterval time.Duration
}

// DefaultParams returns the production bounds.
func DefaultParams() Params {
	return Params{
		MaxExecutives:     50,
		MaxPastExecutives: 10,
		PostsTopN:         15,
		PostsPages:        2,
		CacheMaxAge:       100 * 24 * time.Hour,
		ProfileEvery:      2 * time.Second,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.MaxExecutives <= 0 {
		p.MaxExecutives = d.MaxExecutives
	}
	if p.MaxPastExecutives <= 0 {
		p.MaxPastExecutives = d.MaxPastExecutives
	}
	if p.PostsTopN <= 0 {
		p.PostsTopN = d.PostsTopN
	}
	if p.PostsPages <= 0 {
		p.PostsPages = d.PostsPages
	}
	if p.CacheMaxAge <= 0 {
		p.CacheMaxAge = d.CacheMaxAge
	}
	return p
}

// Deps bundles the session's collaborators. Store and Scraper may be
// nil; the steps needing them are skipped then. A nil Pool acts as an
// empty one.
type Deps struct {
	Evaboot     evaboot.Client
	Unipile     unipile.Client
	GhostGenius ghostgenius.Client
	Pool        *Pool
	Store       Store
	Scraper     Scraper
}

// Session runs LinkedIn enrichment for a single audit run. Build a
// fresh one per run so account exhaustion in the pool does not leak
// across runs.
type Session struct {
	evaboot evaboot.Client
	unipile unipile.Client
	gg      ghostgenius.Client
	pool    *Pool
	store   Store
	scraper Scraper
	params  Params
	tuning  Tuning
	limiter *rate.Limiter
}

// NewSession creates a session over the given collaborators.
func NewSession(deps Deps, params Params, tuning Tuning) *Session {
	params = params.withDefaults()
	if deps.Pool == nil {
		deps.Pool = NewPool(nil)
	}

	var limiter *rate.Limiter
	if params.ProfileEvery > 0 {
		limiter = rate.NewLimiter(rate.Every(params.ProfileEvery), 1)
	}

	return &Session{
		evaboot: deps.Evaboot,
		unipile: deps.Unipile,
		gg:      deps.GhostGenius,
		pool:    deps.Pool,
		store:   deps.Store,
		scraper: deps.Scraper,
		params:  params,
		tuning:  tuning,
		limiter: limiter,
	}
}

// Request identifies the company to enrich.
type Request struct {
	Domain      string
	CompanyName string
	Country     string
	// LinkedInURL is an operator-supplied company page that skips
	// discovery when set.
	LinkedInURL string
}

// Result is what enrichment contributes to the run.
type Result struct {
	// Available is false when the company could not be resolved to a
	// LinkedIn page at all; everything else is empty then.
	Available  bool
	Company    Company
	Growth     *Growth
	Executives []Executive
	Posts      []Post
	// Providers records which provider served each capability.
	Providers map[string]string
}

// Enrich resolves the company and collects growth, executives and
// posts. Only resolution failure returns an error; every later step
// degrades to an empty capability instead.
func (s *Session) Enrich(ctx context.Context, req Request) (*Result, error) {
	regionID, regionName := s.resolveRegion(req.Country)
	if req.Country != "" && regionID == "" {
		zap.L().Warn("linkedin: no region mapping for country, searching unfiltered",
			zap.String("country", req.Country))
	}

	company, err := s.resolve(ctx, req)
	if err != nil {
		return &Result{}, err
	}
	zap.L().Info("linkedin: company resolved",
		zap.String("company_id", company.ID),
		zap.String("url", company.URL),
	)

	result := &Result{
		Available: true,
		Company:   company,
		Providers: map[string]string{},
	}

	// Growth is always fetched fresh. Headcount numbers go stale far
	// faster than the company identity does.
	growth, provider := cascade(ctx, "growth", s.params.RetryDelay,
		s.growthAttempts(company.URL),
		func(g *Growth) bool { return !g.Useful() })
	if growth.Useful() {
		result.Growth = growth
		result.Providers["growth"] = provider
	}

	// Executive discovery: a seniority-filtered pass over current and
	// former leadership, then a title keyword pass for the hands-on
	// decision makers the seniority facets miss.
	seniority, provider := cascade(ctx, "executive_search", s.params.RetryDelay,
		s.seniorityAttempts(company, regionID, regionName),
		seniorityResult.empty)
	if provider != "" {
		result.Providers["executive_search"] = provider
	}

	keyword, provider := s.SearchByTitle(ctx, company, s.tuning.TitleKeywords, req.Country)
	if provider != "" {
		result.Providers["keyword_search"] = provider
	}

	result.Executives = mergeExecutives(seniority.Current, keyword, seniority.Past,
		s.params.MaxExecutives, s.params.MaxPastExecutives)
	zap.L().Info("linkedin: executives discovered",
		zap.Int("count", len(result.Executives)),
		zap.Int("keyword_hits", len(keyword)),
	)

	s.deepen(ctx, result.Executives)
	result.Posts = s.collectPosts(ctx, result.Executives)

	s.persist(ctx, req, company, result)

	return result, nil
}

// SearchByTitle runs a title keyword search over the company's current
// employees, trying each provider in order. The leadership agent also
// exposes this as a tool.
func (s *Session) SearchByTitle(ctx context.Context, company Company, keywords []string, country string) ([]Executive, string) {
	if len(keywords) == 0 {
		return nil, ""
	}
	regionID, regionName := s.resolveRegion(country)

	return cascade(ctx, "keyword_search", s.params.RetryDelay,
		s.keywordAttempts(company, keywords, regionID, regionName),
		func(execs []Executive) bool { return len(execs) == 0 })
}

// The attempt builders register only the providers that were actually
// configured, in their fixed priority order.

func (s *Session) growthAttempts(companyURL string) []Attempt[*Growth] {
	var attempts []Attempt[*Growth]
	if s.unipile != nil {
		attempts = append(attempts, Attempt[*Growth]{Provider: providerUnipile, Call: func(ctx context.Context) (*Growth, error) {
			return s.unipileGrowth(ctx, companyURL)
		}})
	}
	if s.gg != nil {
		attempts = append(attempts, Attempt[*Growth]{Provider: providerGhostGenius, Call: func(ctx context.Context) (*Growth, error) {
			return s.ghostGrowth(ctx, companyURL)
		}})
	}
	return attempts
}

func (s *Session) seniorityAttempts(company Company, regionID, regionName string) []Attempt[seniorityResult] {
	var attempts []Attempt[seniorityResult]
	if s.evaboot != nil {
		attempts = append(attempts, Attempt[seniorityResult]{Provider: providerEvaboot, Call: func(ctx context.Context) (seniorityResult, error) {
			return s.evabootSeniority(ctx, company, regionID, regionName)
		}})
	}
	if s.unipile != nil {
		attempts = append(attempts, Attempt[seniorityResult]{Provider: providerUnipile, Call: func(ctx context.Context) (seniorityResult, error) {
			return s.unipileSeniority(ctx, company, regionID, regionName)
		}})
	}
	if s.gg != nil {
		attempts = append(attempts, Attempt[seniorityResult]{Provider: providerGhostGenius, Call: func(ctx context.Context) (seniorityResult, error) {
			return s.ghostSeniority(ctx, company, regionID)
		}})
	}
	return attempts
}

func (s *Session) keywordAttempts(company Company, keywords []string, regionID, regionName string) []Attempt[[]Executive] {
	var attempts []Attempt[[]Executive]
	if s.evaboot != nil {
		attempts = append(attempts, Attempt[[]Executive]{Provider: providerEvaboot, Call: func(ctx context.Context) ([]Executive, error) {
			return s.evabootKeywords(ctx, company, keywords, regionID, regionName)
		}})
	}
	if s.unipile != nil {
		attempts = append(attempts, Attempt[[]Executive]{Provider: providerUnipile, Call: func(ctx context.Context) ([]Executive, error) {
			return s.unipileKeywords(ctx, company, keywords, regionID, regionName)
		}})
	}
	if s.gg != nil {
		attempts = append(attempts, Attempt[[]Executive]{Provider: providerGhostGenius, Call: func(ctx context.Context) ([]Executive, error) {
			return s.ghostKeywords(ctx, company, keywords, regionID)
		}})
	}
	return attempts
}

// resolve finds the company's LinkedIn page and numeric organization
// ID: operator-supplied URL first, then the resolution cache, then a
// link on the company homepage, then a provider name search.
func (s *Session) resolve(ctx context.Context, req Request) (Company, error) {
	if req.LinkedInURL != "" {
		company, err := s.identify(ctx, req.LinkedInURL)
		if err == nil {
			return withName(company, req.CompanyName), nil
		}
		zap.L().Warn("linkedin: could not confirm supplied company page, discovering instead",
			zap.String("url", req.LinkedInURL), zap.Error(err))
	}

	if s.store != nil {
		entry, err := s.store.LookupCompany(ctx, req.Domain, req.CompanyName, s.params.CacheMaxAge)
		if err != nil {
			zap.L().Warn("linkedin: company cache lookup failed", zap.Error(err))
		}
		if entry != nil && entry.LinkedInURL != "" {
			id := entry.LinkedInID
			if id == "" {
				id = CompanyID(entry.LinkedInURL)
			}
			if id != "" {
				zap.L().Debug("linkedin: resolution cache hit", zap.String("domain", req.Domain))
				return withName(Company{ID: id, Name: entry.CompanyName, URL: entry.LinkedInURL}, req.CompanyName), nil
			}
		}
	}

	if req.Domain != "" && s.scraper != nil {
		markdown, err := s.scraper.Scrape(ctx, "https://"+req.Domain)
		if err != nil {
			zap.L().Warn("linkedin: homepage scrape failed",
				zap.String("domain", req.Domain), zap.Error(err))
		} else if pageURL := ExtractCompanyURL(markdown); pageURL != "" {
			company, err := s.identify(ctx, pageURL)
			if err == nil {
				return withName(company, req.CompanyName), nil
			}
			zap.L().Warn("linkedin: could not confirm company page found on homepage",
				zap.String("url", pageURL), zap.Error(err))
		}
	}

	if req.CompanyName != "" && s.gg != nil {
		hits, err := s.gg.SearchCompanies(ctx, req.CompanyName)
		if err != nil {
			zap.L().Warn("linkedin: company name search failed", zap.Error(err))
		} else if hit := pickCompanyMatch(req.CompanyName, hits); hit != nil {
			id := hit.IDString()
			if id == "" {
				id = CompanyID(hit.URL)
			}
			if id != "" {
				return Company{ID: id, Name: req.CompanyName, URL: hit.URL}, nil
			}
		}
	}

	return Company{}, eris.Errorf("linkedin: could not resolve %q (domain %q) to a company page",
		req.CompanyName, req.Domain)
}

// identify turns a company page URL into a Company, confirming it with
// a provider lookup when one is configured.
func (s *Session) identify(ctx context.Context, pageURL string) (Company, error) {
	if s.gg != nil {
		return s.confirmCompany(ctx, pageURL)
	}
	if id := CompanyID(pageURL); id != "" {
		return Company{ID: id, URL: pageURL}, nil
	}
	return Company{}, eris.Errorf("linkedin: no numeric organization id for %s", pageURL)
}

// confirmCompany looks the page up to obtain the numeric organization
// ID the search filters need.
func (s *Session) confirmCompany(ctx context.Context, pageURL string) (Company, error) {
	hit, err := s.gg.CompanyByURL(ctx, pageURL)
	if err != nil {
		return Company{}, err
	}

	id := hit.IDString()
	if id == "" {
		id = CompanyID(pageURL)
	}
	if id == "" {
		return Company{}, eris.Errorf("linkedin: no numeric organization id for %s", pageURL)
	}

	resolvedURL := hit.URL
	if resolvedURL == "" {
		resolvedURL = pageURL
	}
	return Company{ID: id, Name: hit.Name, URL: resolvedURL}, nil
}

// withName prefers the caller's company name for search filters over
// whatever the provider reports.
func withName(c Company, name string) Company {
	if name != "" {
		c.Name = name
	}
	return c
}

func (s *Session) resolveRegion(country string) (regionID, regionName string) {
	if country == "" {
		return "", ""
	}
	if id, ok := s.tuning.Regions[country]; ok {
		return id, country
	}
	return "", ""
}

// mergeExecutives unions the search passes in priority order: current
// seniority hits, then keyword hits, then former leadership.
// Duplicates collapse on provider ID. Former executives take at most
// maxPast slots and current ones fill the rest of the cap.
func mergeExecutives(current, keyword, past []Executive, maxTotal, maxPast int) []Executive {
	seen := make(map[string]bool)
	dedup := func(execs []Executive) []Executive {
		out := make([]Executive, 0, len(execs))
		for _, e := range execs {
			if e.ID == "" || seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			out = append(out, e)
		}
		return out
	}

	currents := dedup(append(append([]Executive{}, current...), keyword...))
	pasts := dedup(past)

	if len(pasts) > maxPast {
		pasts = pasts[:maxPast]
	}
	slots := maxTotal - len(pasts)
	if slots < 0 {
		slots = 0
	}
	if len(currents) > slots {
		currents = currents[:slots]
	}
	return append(currents, pasts...)
}

// deepen fills full profile detail onto each executive, preferring the
// profile cache and pacing live fetches. A failed fetch leaves the
// shallow search result in place.
func (s *Session) deepen(ctx context.Context, execs []Executive) {
	if s.gg == nil {
		return
	}
	for i := range execs {
		e := &execs[i]
		if e.URL == "" {
			continue
		}

		if s.store != nil {
			cached, err := s.store.LookupExecutive(ctx, e.URL, s.params.CacheMaxAge)
			if err != nil {
				zap.L().Warn("linkedin: executive cache lookup failed",
					zap.String("url", e.URL), zap.Error(err))
			} else if cached != nil && cached.Enriched {
				mergeProfile(e, cached)
				continue
			}
		}

		if err := s.pace(ctx); err != nil {
			return
		}
		profile, err := s.gg.Profile(ctx, e.URL)
		if err != nil {
			zap.L().Warn("linkedin: profile fetch failed, keeping shallow result",
				zap.String("url", e.URL), zap.Error(err))
			continue
		}
		applyProfile(e, profile)
	}
}

func (s *Session) pace(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

// collectPosts pulls the recent post feed of the top current
// executives. Page two is fetched only when the feed reports more.
func (s *Session) collectPosts(ctx context.Context, execs []Executive) []Post {
	if s.gg == nil {
		return nil
	}
	var authors []Executive
	for _, e := range execs {
		if e.IsCurrent && e.URL != "" {
			authors = append(authors, e)
		}
		if len(authors) == s.params.PostsTopN {
			break
		}
	}

	var posts []Post
	for _, author := range authors {
		token := ""
		for page := 1; page <= s.params.PostsPages; page++ {
			feed, err := s.gg.ProfilePosts(ctx, author.URL, page, token)
			if err != nil {
				zap.L().Warn("linkedin: posts fetch failed",
					zap.String("executive", author.FullName),
					zap.Int("page", page),
					zap.Error(err))
				break
			}
			for _, p := range feed.Data {
				posts = append(posts, Post{
					AuthorName: author.FullName,
					AuthorURL:  author.URL,
					Date:       p.Date,
					Text:       p.Text,
					URL:        p.URL,
					Reactions:  p.ReactionsCount,
					Comments:   p.CommentsCount,
				})
			}
			token = feed.PaginationToken
			if token == "" {
				break
			}
		}
	}
	return posts
}

// persist writes the run's findings through to the cache tables. Cache
// write failures never fail the run.
func (s *Session) persist(ctx context.Context, req Request, company Company, result *Result) {
	if s.store == nil {
		return
	}

	entry := CompanyCacheEntry{
		Domain:      req.Domain,
		CompanyName: req.CompanyName,
		LinkedInID:  company.ID,
		LinkedInURL: company.URL,
		Growth:      result.Growth,
		FetchedAt:   time.Now().UTC(),
	}
	if err := s.store.SaveCompany(ctx, entry); err != nil {
		zap.L().Warn("linkedin: company cache write failed", zap.Error(err))
	}

	if len(result.Executives) > 0 {
		if err := s.store.SaveExecutives(ctx, req.Domain, result.Executives); err != nil {
			zap.L().Warn("linkedin: executives cache write failed", zap.Error(err))
		}
	}
	if len(result.Posts) > 0 {
		if err := s.store.SavePosts(ctx, req.Domain, result.Posts); err != nil {
			zap.L().Warn("linkedin: posts cache write failed", zap.Error(err))
		}
	}
}

func (s *Session) pollOpts() []evaboot.PollOption {
	if s.params.PollInterval > 0 {
		return []evaboot.PollOption{evaboot.WithPollInterval(s.params.PollInterval)}
	}
	return nil
}

// applyProfile copies live profile detail onto the executive.
func applyProfile(e *Executive, p *ghostgenius.Profile) {
	if p.FullName != "" {
		e.FullName = p.FullName
	}
	if p.Headline != "" {
		e.Headline = p.Headline
	}
	e.Title = p.CurrentJobTitle
	e.CompanyName = p.CompanyName
	e.About = p.About
	e.Skills = p.Skills
	e.Connections = p.ConnectedWith

	e.Experiences = make([]Experience, 0, len(p.Experiences))
	for _, x := range p.Experiences {
		e.Experiences = append(e.Experiences, Experience{
			Company:   x.Company,
			Title:     x.Title,
			StartDate: x.StartDate,
			EndDate:   x.EndDate,
			IsCurrent: x.IsCurrent,
		})
	}
	e.Educations = make([]Education, 0, len(p.Educations))
	for _, ed := range p.Educations {
		e.Educations = append(e.Educations, Education{School: ed.School, Degree: ed.Degree})
	}
	e.Enriched = true
}

// mergeProfile copies cached profile detail onto the executive.
func mergeProfile(e *Executive, cached *Executive) {
	if cached.FullName != "" {
		e.FullName = cached.FullName
	}
	if cached.Headline != "" {
		e.Headline = cached.Headline
	}
	e.Title = cached.Title
	e.CompanyName = cached.CompanyName
	e.About = cached.About
	e.Skills = cached.Skills
	e.Connections = cached.Connections
	e.Experiences = cached.Experiences
	e.Educations = cached.Educations
	e.Enriched = true
}
