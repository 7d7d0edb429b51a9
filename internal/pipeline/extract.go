package pipeline

import (
	"context"

	"go.uber.org/zap"
)

// extractNode fans the executive roster out into batched extraction
// calls. Without enrichment data the stage is a no-op and the dataset
// consolidates empty.
func (p *Pipeline) extractNode(ctx context.Context, s RunState) (Patch, error) {
	if !s.LinkedInAvailable || len(s.Executives) == 0 {
		zap.L().Info("pipeline: no profiles to extract",
			zap.Bool("linkedin_available", s.LinkedInAvailable),
		)
		return Patch{Extraction: &Extraction{}}, nil
	}

	out := p.mapper.Extract(ctx, s.CompanyName, s.Executives, s.Posts)
	if out.Attempted > 0 && out.Succeeded == 0 {
		zap.L().Warn("pipeline: every extraction lot failed",
			zap.Int("attempted", out.Attempted),
		)
	}
	return Patch{Extraction: &Extraction{
		Lots:      out.Lots,
		Attempted: out.Attempted,
		Succeeded: out.Succeeded,
	}}, nil
}

// consolidateNode reduces the lot results into the dataset the router
// slices. The reducer owns dedup, conflict resolution and the fallback
// detectors; with no lots it returns the empty dataset and downstream
// units run degraded.
func (p *Pipeline) consolidateNode(ctx context.Context, s RunState) (Patch, error) {
	ds := p.reducer.Reduce(ctx, s.CompanyName, s.Lots, s.Growth)
	return Patch{Dataset: &ds}, nil
}
