package linkedin

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/audit-cli/internal/resilience"
)

// serverRetryDelay is the pause before the single retry a provider call
// gets after a server-side failure.
const serverRetryDelay = 30 * time.Second

// Attempt is one provider's bid to serve a capability.
type Attempt[T any] struct {
	Provider string
	Call     func(ctx context.Context) (T, error)
}

// cascade tries each attempt in priority order and returns the first
// useful result together with the name of the provider that produced
// it. A provider error and an empty result are the same outcome: move
// on to the next provider. Each call is retried once after a fixed
// delay when it fails with a server error; rate limits and client
// errors fail the attempt immediately. When no provider delivers, the
// zero value is returned with provider "" and the capability is simply
// unavailable for this run.
func cascade[T any](ctx context.Context, capability string, retryDelay time.Duration, attempts []Attempt[T], empty func(T) bool) (T, string) {
	if retryDelay <= 0 {
		retryDelay = serverRetryDelay
	}

	var zero T
	for _, attempt := range attempts {
		cfg := resilience.FixedDelay(2, retryDelay)
		cfg.ShouldRetry = resilience.IsServerError
		cfg.OnRetry = resilience.RetryLogger(attempt.Provider, capability)

		result, err := resilience.DoVal(ctx, cfg, attempt.Call)
		if err != nil {
			zap.L().Warn("linkedin: provider failed, falling through",
				zap.String("capability", capability),
				zap.String("provider", attempt.Provider),
				zap.Error(err),
			)
			continue
		}
		if empty != nil && empty(result) {
			zap.L().Debug("linkedin: provider returned nothing, falling through",
				zap.String("capability", capability),
				zap.String("provider", attempt.Provider),
			)
			continue
		}
		return result, attempt.Provider
	}

	zap.L().Warn("linkedin: no provider could serve capability",
		zap.String("capability", capability),
		zap.Int("providers_tried", len(attempts)),
	)
	return zero, ""
}
