package evaboot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/audit-cli/internal/resilience"
)

const (
	defaultPollInterval = 10 * time.Second
	defaultPollTimeout  = 10 * time.Minute
)

// PollOption configures polling behavior.
type PollOption func(*pollConfig)

type pollConfig struct {
	interval time.Duration
	timeout  time.Duration
}

func defaultPollConfig() pollConfig {
	return pollConfig{
		interval: defaultPollInterval,
		timeout:  defaultPollTimeout,
	}
}

// WithPollInterval overrides the fixed poll interval.
func WithPollInterval(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.interval = d
	}
}

// WithPollTimeout overrides the default timeout (applied only if the parent
// context has no deadline).
func WithPollTimeout(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.timeout = d
	}
}

// PollExtraction polls GetExtraction until the search has executed, failed,
// or the context expires. Transient poll errors keep polling; anything else
// ends the wait.
func PollExtraction(ctx context.Context, client Client, id string, opts ...PollOption) (*Extraction, error) {
	cfg := defaultPollConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	for {
		extraction, err := client.GetExtraction(ctx, id)
		switch {
		case err != nil && resilience.IsTransient(err):
			// fall through to the wait below
		case err != nil:
			return nil, eris.Wrap(err, fmt.Sprintf("evaboot: poll extraction %s", id))
		case extraction.Status == StatusExecuted:
			return extraction, nil
		case extraction.Status == StatusFailed || extraction.Status == StatusCancelled:
			return nil, eris.Errorf("evaboot: extraction %s %s", id, strings.ToLower(extraction.Status))
		}

		select {
		case <-ctx.Done():
			return nil, eris.Wrap(ctx.Err(), fmt.Sprintf("evaboot: poll extraction %s timed out", id))
		case <-time.After(cfg.interval):
		}
	}
}
