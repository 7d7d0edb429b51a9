package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/audit-cli/internal/store"
)

// defaultCountry anchors region resolution when the request and the
// config are both silent.
const defaultCountry = "France"

// NormalizeDomain reduces a company identifier to its bare lower-case
// domain: scheme, credentials, "www." prefix, port, path, query and
// fragment are stripped. The result keys the company cache and the run
// row.
func NormalizeDomain(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	if s == "" {
		return ""
	}
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "www.")
	return strings.Trim(s, ".")
}

// intakeNode normalizes the request identity, applies defaults, and
// creates the run row. A store failure is recorded and the audit runs
// unpersisted rather than aborting.
func (p *Pipeline) intakeNode(ctx context.Context, s RunState) (Patch, error) {
	domain, country := p.resolveIdentity(s.CompanyName, s.Domain, s.Country)
	res := &IntakeResult{
		RunID:     s.RunID,
		Domain:    domain,
		Country:   country,
		StartedAt: s.StartedAt,
	}
	if res.StartedAt.IsZero() {
		res.StartedAt = time.Now().UTC()
	}

	if res.RunID != "" {
		// Submit created the run row before launching the graph.
		return Patch{Intake: res}, nil
	}

	run, err := p.store.CreateRun(ctx, store.RunSeed{
		DealID:      s.DealID,
		StageID:     s.StageID,
		CompanyName: s.CompanyName,
		Domain:      res.Domain,
		Country:     res.Country,
	})
	if err != nil {
		zap.L().Error("pipeline: run row not created, continuing unpersisted",
			zap.String("company", s.CompanyName),
			zap.Error(err),
		)
		return Patch{Intake: res, Errors: errorMap("intake", err)}, nil
	}
	res.RunID = run.ID

	zap.L().Info("pipeline: run started",
		zap.String("run_id", run.ID),
		zap.String("company", s.CompanyName),
		zap.String("domain", res.Domain),
		zap.String("country", res.Country),
	)
	return Patch{Intake: res}, nil
}
