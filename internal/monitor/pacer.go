package monitor

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces outbound fetches: the next fetch starts at least minDelay
// after the previous one finished, plus a uniform random jitter so the
// cadence is not regular.
//
// The limiter holds a single token that Done spends when a fetch ends; Wait
// sleeps until it has been refilled.
type Pacer struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	minDelay time.Duration
	jitter   time.Duration
	fetched  bool
	now      func() time.Time
}

// NewPacer creates a pacer. A zero minDelay disables the spacing and a zero
// jitter disables the random part.
func NewPacer(minDelay, jitter time.Duration) *Pacer {
	p := &Pacer{
		minDelay: minDelay,
		jitter:   jitter,
		now:      time.Now,
	}
	if minDelay > 0 {
		p.limiter = rate.NewLimiter(rate.Every(minDelay), 1)
	}
	return p
}

// Wait blocks until the next fetch may start, or ctx is done. It returns at
// once when no fetch has finished yet.
func (p *Pacer) Wait(ctx context.Context) error {
	delay := p.delay()
	if delay <= 0 {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("pacer wait: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}

// Done marks the end of a fetch.
func (p *Pacer) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetched = true
	if p.limiter != nil {
		p.limiter.ReserveN(p.now(), 1)
	}
}

func (p *Pacer) delay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.fetched {
		return 0
	}
	var d time.Duration
	if p.limiter != nil {
		if missing := 1 - p.limiter.TokensAt(p.now()); missing > 0 {
			d = time.Duration(math.Ceil(missing*float64(p.minDelay)/1e3)) * time.Microsecond
		}
	}
	if p.jitter > 0 {
		d += rand.N(p.jitter)
	}
	return d
}
