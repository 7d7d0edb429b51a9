package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/audit-cli/internal/linkedin"
)

// enrichNode resolves the company on LinkedIn and collects growth,
// executives and posts. The session is built fresh per run so account
// exhaustion never leaks across runs. Resolution failure degrades the
// branch; the downstream units then run on web research alone.
func (p *Pipeline) enrichNode(ctx context.Context, s RunState) (Patch, error) {
	if p.evaboot == nil && p.unipile == nil && p.ghostgenius == nil {
		zap.L().Info("pipeline: no linkedin providers configured, skipping enrichment")
		return Patch{Enrichment: &Enrichment{}}, nil
	}

	session := linkedin.NewSession(linkedin.Deps{
		Evaboot:     p.evaboot,
		Unipile:     p.unipile,
		GhostGenius: p.ghostgenius,
		Pool:        linkedin.NewPool(p.accounts),
		Store:       p.store,
		Scraper:     p.scraper,
	}, p.enrichParams, p.tuning)

	res, err := session.Enrich(ctx, linkedin.Request{
		Domain:      s.Domain,
		CompanyName: s.CompanyName,
		Country:     s.Country,
	})
	if err != nil {
		zap.L().Warn("pipeline: linkedin enrichment unavailable",
			zap.String("company", s.CompanyName),
			zap.Error(err),
		)
		return Patch{Enrichment: &Enrichment{}, Errors: errorMap("enrich", err)}, nil
	}

	zap.L().Info("pipeline: enrichment complete",
		zap.Bool("available", res.Available),
		zap.Int("executives", len(res.Executives)),
		zap.Int("posts", len(res.Posts)),
	)
	return Patch{Enrichment: &Enrichment{
		Available:  res.Available,
		CompanyID:  res.Company.ID,
		CompanyURL: res.Company.URL,
		Growth:     res.Growth,
		Executives: res.Executives,
		Posts:      res.Posts,
		Providers:  res.Providers,
	}}, nil
}
