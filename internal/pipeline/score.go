package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/audit-cli/internal/scoring"
)

// scoreNode folds the unit reports into the verdict. Deterministic;
// the run start time anchors temporal decay so replays score the same.
func (p *Pipeline) scoreNode(_ context.Context, s RunState) (Patch, error) {
	now := s.StartedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	res := scoring.Score(s.Reports, now)

	zap.L().Info("pipeline: scored",
		zap.String("company", s.CompanyName),
		zap.Float64("total", res.Total),
		zap.Int("max", res.MaxPossible),
		zap.Float64("data_quality", res.DataQuality),
		zap.String("verdict", string(res.Verdict)),
	)
	return Patch{Scoring: &res}, nil
}
