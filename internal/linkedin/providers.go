package linkedin

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/audit-cli/internal/resilience"
	"github.com/sells-group/audit-cli/pkg/evaboot"
	"github.com/sells-group/audit-cli/pkg/ghostgenius"
	"github.com/sells-group/audit-cli/pkg/unipile"
)

// Provider names as they appear in source fields and logs.
const (
	providerEvaboot     = "evaboot"
	providerUnipile     = "unipile"
	providerGhostGenius = "ghost_genius"
)

// withRotation draws an account from the pool for a Ghost Genius call.
// A rate-limited account is marked exhausted and the call repeats once
// on the next account; any other failure is returned as-is.
func withRotation[T any](ctx context.Context, pool *Pool, call func(ctx context.Context, accountID string) (T, error)) (T, error) {
	var zero T

	accountID, err := pool.Next()
	if err != nil {
		return zero, err
	}

	result, err := call(ctx, accountID)
	if err == nil || !resilience.IsRateLimited(err) {
		return result, err
	}
	pool.MarkExhausted(accountID)

	accountID, err = pool.Next()
	if err != nil {
		return zero, err
	}
	result, err = call(ctx, accountID)
	if err != nil && resilience.IsRateLimited(err) {
		pool.MarkExhausted(accountID)
	}
	return result, err
}

// seniorityResult pairs the two halves of a seniority-filtered search.
type seniorityResult struct {
	Current []Executive
	Past    []Executive
}

func (r seniorityResult) empty() bool {
	return len(r.Current) == 0 && len(r.Past) == 0
}

// evabootExtract creates one extraction and waits for it, keeping only
// prospects that actually matched the search filters.
func (s *Session) evabootExtract(ctx context.Context, salesNavURL, searchName string, isCurrent bool) ([]Executive, error) {
	created, err := s.evaboot.CreateExtraction(ctx, evaboot.ExtractionRequest{
		LinkedInURL: salesNavURL,
		SearchName:  searchName,
	})
	if err != nil {
		return nil, err
	}

	extraction, err := evaboot.PollExtraction(ctx, s.evaboot, created.ExtractionID, s.pollOpts()...)
	if err != nil {
		return nil, err
	}

	execs := make([]Executive, 0, len(extraction.Prospects))
	for _, p := range extraction.Prospects {
		if !p.Matches() {
			continue
		}
		execs = append(execs, Executive{
			ID:        p.ProfileID(),
			FullName:  p.FullName(),
			URL:       p.PublicURL,
			Headline:  p.CurrentJob,
			IsCurrent: isCurrent,
			Source:    providerEvaboot,
		})
	}
	return execs, nil
}

func (s *Session) evabootSeniority(ctx context.Context, company Company, regionID, regionName string) (seniorityResult, error) {
	currentURL := salesNavSeniorityURL(filterCurrentCompany, company.ID, company.Name, regionID, regionName)
	pastURL := salesNavSeniorityURL(filterPastCompany, company.ID, company.Name, regionID, regionName)

	var result seniorityResult
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		execs, err := s.evabootExtract(ctx, currentURL, company.Name+" - current executives", true)
		if err != nil {
			return err
		}
		result.Current = execs
		return nil
	})
	g.Go(func() error {
		execs, err := s.evabootExtract(ctx, pastURL, company.Name+" - past executives", false)
		if err != nil {
			return err
		}
		result.Past = execs
		return nil
	})
	if err := g.Wait(); err != nil {
		return seniorityResult{}, err
	}
	return result, nil
}

func (s *Session) evabootKeywords(ctx context.Context, company Company, keywords []string, regionID, regionName string) ([]Executive, error) {
	searchURL := salesNavTitleURL(company.ID, company.Name, keywords, regionID, regionName)
	return s.evabootExtract(ctx, searchURL, company.Name+" - title search", true)
}

func (s *Session) unipileSeniority(ctx context.Context, company Company, regionID, regionName string) (seniorityResult, error) {
	current, err := s.unipile.SearchPeople(ctx, salesNavSeniorityURL(filterCurrentCompany, company.ID, company.Name, regionID, regionName))
	if err != nil {
		return seniorityResult{}, err
	}
	past, err := s.unipile.SearchPeople(ctx, salesNavSeniorityURL(filterPastCompany, company.ID, company.Name, regionID, regionName))
	if err != nil {
		return seniorityResult{}, err
	}
	return seniorityResult{
		Current: execsFromUnipile(current, true),
		Past:    execsFromUnipile(past, false),
	}, nil
}

func (s *Session) unipileKeywords(ctx context.Context, company Company, keywords []string, regionID, regionName string) ([]Executive, error) {
	people, err := s.unipile.SearchPeople(ctx, salesNavTitleURL(company.ID, company.Name, keywords, regionID, regionName))
	if err != nil {
		return nil, err
	}
	return execsFromUnipile(people, true), nil
}

func (s *Session) ghostSeniority(ctx context.Context, company Company, regionID string) (seniorityResult, error) {
	current, err := withRotation(ctx, s.pool, func(ctx context.Context, accountID string) ([]ghostgenius.Person, error) {
		return s.gg.SearchPeople(ctx, accountID, ghostgenius.PeopleQuery{
			CurrentCompany:  company.ID,
			SeniorityLevels: ghostgenius.DefaultSeniorityLevels,
			Locations:       regionID,
		})
	})
	if err != nil {
		return seniorityResult{}, err
	}
	past, err := withRotation(ctx, s.pool, func(ctx context.Context, accountID string) ([]ghostgenius.Person, error) {
		return s.gg.SearchPeople(ctx, accountID, ghostgenius.PeopleQuery{
			PastCompany:     company.ID,
			SeniorityLevels: ghostgenius.DefaultSeniorityLevels,
			Locations:       regionID,
		})
	})
	if err != nil {
		return seniorityResult{}, err
	}
	return seniorityResult{
		Current: execsFromGhostGenius(current, true),
		Past:    execsFromGhostGenius(past, false),
	}, nil
}

func (s *Session) ghostKeywords(ctx context.Context, company Company, keywords []string, regionID string) ([]Executive, error) {
	people, err := withRotation(ctx, s.pool, func(ctx context.Context, accountID string) ([]ghostgenius.Person, error) {
		return s.gg.SearchPeople(ctx, accountID, ghostgenius.PeopleQuery{
			CurrentCompany: company.ID,
			Keywords:       strings.Join(keywords, " OR "),
			Locations:      regionID,
		})
	})
	if err != nil {
		return nil, err
	}
	return execsFromGhostGenius(people, true), nil
}

func (s *Session) unipileGrowth(ctx context.Context, companyURL string) (*Growth, error) {
	slug := CompanySlug(companyURL)
	if slug == "" {
		return nil, eris.Errorf("linkedin: no company slug in %q", companyURL)
	}
	insights, err := s.unipile.CompanyInsights(ctx, slug)
	if err != nil {
		return nil, err
	}
	return growthFromInsights(insights), nil
}

func (s *Session) ghostGrowth(ctx context.Context, companyURL string) (*Growth, error) {
	return withRotation(ctx, s.pool, func(ctx context.Context, accountID string) (*Growth, error) {
		g, err := s.gg.EmployeesGrowth(ctx, accountID, companyURL)
		if err != nil {
			return nil, err
		}
		return growthFromGhost(g), nil
	})
}

func growthFromInsights(ci *unipile.CompanyInsights) *Growth {
	if ci.Empty() {
		return nil
	}
	ec := ci.EmployeesCount
	return &Growth{
		Employees:     ec.TotalCount,
		Growth6Months: ec.GrowthOver(6),
		Growth1Year:   ec.GrowthOver(12),
		Growth2Years:  ec.GrowthOver(24),
		AverageTenure: ec.AverageTenure,
		Source:        providerUnipile,
	}
}

func growthFromGhost(g *ghostgenius.Growth) *Growth {
	if g == nil {
		return nil
	}
	return &Growth{
		Employees:     g.Employees,
		Growth6Months: g.Growth6Months,
		Growth1Year:   g.Growth1Year,
		Growth2Years:  g.Growth2Years,
		Source:        providerGhostGenius,
	}
}

func execsFromUnipile(people []unipile.Person, isCurrent bool) []Executive {
	execs := make([]Executive, 0, len(people))
	for _, p := range people {
		execs = append(execs, Executive{
			ID:        p.ProfileID(),
			FullName:  p.FullName(),
			URL:       p.PublicProfileURL,
			Headline:  p.Headline,
			IsCurrent: isCurrent,
			Source:    providerUnipile,
		})
	}
	return execs
}

func execsFromGhostGenius(people []ghostgenius.Person, isCurrent bool) []Executive {
	execs := make([]Executive, 0, len(people))
	for _, p := range people {
		id := p.ID
		if id == "" {
			id = p.URL
		}
		execs = append(execs, Executive{
			ID:        id,
			FullName:  p.FullName,
			URL:       p.URL,
			Headline:  p.Headline,
			IsCurrent: isCurrent,
			Source:    providerGhostGenius,
		})
	}
	return execs
}

// pickCompanyMatch selects the search hit whose name and the wanted
// company name contain one another, falling back to the first hit.
func pickCompanyMatch(companyName string, hits []ghostgenius.Company) *ghostgenius.Company {
	if len(hits) == 0 {
		return nil
	}
	want := strings.ToLower(companyName)
	for i, hit := range hits {
		got := strings.ToLower(hit.Name)
		if got == "" {
			continue
		}
		if strings.Contains(got, want) || strings.Contains(want, got) {
			return &hits[i]
		}
	}
	return &hits[0]
}
