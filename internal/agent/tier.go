package agent

import (
	"context"

	"go.uber.org/zap"
)

// Tier is a completion capability class.
type Tier int

const (
	// TierFast handles extraction and single-unit analysis.
	TierFast Tier = iota
	// TierStrong handles consolidation over large inputs, escalated
	// retries, and final synthesis.
	TierStrong
)

func (t Tier) String() string {
	if t == TierStrong {
		return "strong"
	}
	return "fast"
}

// Tiers resolves tiers to concrete model names.
type Tiers struct {
	Fast   string
	Strong string
}

// Model returns the model name for a tier.
func (t Tiers) Model(tier Tier) string {
	if tier == TierStrong {
		return t.Strong
	}
	return t.Fast
}

// EscalateOnce runs fn on the start tier and retries exactly once on
// the strong tier when the attempt errors or degenerate reports the
// value unusable. A start on the strong tier still gets its one retry
// there. The second outcome is final either way.
func EscalateOnce[T any](ctx context.Context, tiers Tiers, start Tier, scope string,
	fn func(ctx context.Context, model string) (T, error),
	degenerate func(T) bool,
) (T, error) {
	v, err := fn(ctx, tiers.Model(start))
	if err == nil && (degenerate == nil || !degenerate(v)) {
		return v, nil
	}
	if err != nil {
		zap.L().Warn("agent: tier attempt failed, escalating",
			zap.String("scope", scope),
			zap.String("tier", start.String()),
			zap.Error(err),
		)
	} else {
		zap.L().Warn("agent: tier attempt degenerate, escalating",
			zap.String("scope", scope),
			zap.String("tier", start.String()),
		)
	}
	return fn(ctx, tiers.Model(TierStrong))
}
