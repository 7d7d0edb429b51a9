package linkedin

import (
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrExhausted is returned by Pool.Next when every account has been
// marked exhausted.
var ErrExhausted = eris.New("linkedin: all provider accounts are rate-limited")

// Pool hands out provider account IDs round-robin, skipping accounts
// that hit their rate limit. Exhaustion is tracked for the life of the
// pool only; build a fresh pool for each run so a limit reached in one
// run never starves the next.
type Pool struct {
	mu        sync.Mutex
	ids       []string
	next      int
	exhausted map[string]bool
}

// NewPool creates a pool over the given account IDs.
func NewPool(ids []string) *Pool {
	return &Pool{
		ids:       append([]string(nil), ids...),
		exhausted: make(map[string]bool, len(ids)),
	}
}

// Next returns the next account that is not exhausted, advancing the
// rotation cursor. It returns ErrExhausted once no usable account
// remains.
func (p *Pool) Next() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for range p.ids {
		id := p.ids[p.next%len(p.ids)]
		p.next++
		if !p.exhausted[id] {
			return id, nil
		}
	}
	return "", ErrExhausted
}

// MarkExhausted records that an account hit its rate limit. Calling it
// again for the same account, or for an ID the pool does not hold, is
// a no-op.
func (p *Pool) MarkExhausted(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, known := range p.ids {
		if known != id {
			continue
		}
		if !p.exhausted[id] {
			p.exhausted[id] = true
			zap.L().Warn("linkedin: account rate-limited, rotating",
				zap.String("account_id", id),
				zap.Int("remaining", p.remainingLocked()),
			)
		}
		return
	}
}

// Remaining returns how many accounts are still usable.
func (p *Pool) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remainingLocked()
}

// Size returns the total number of accounts the pool was built with.
func (p *Pool) Size() int {
	return len(p.ids)
}

func (p *Pool) remainingLocked() int {
	n := 0
	for _, id := range p.ids {
		if !p.exhausted[id] {
			n++
		}
	}
	return n
}
