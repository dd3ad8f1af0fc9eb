package fetch

import (
	"context"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// Pacer blocks the crawl between pages for a random duration in [min, max]
type Pacer struct {
	min, max time.Duration
	int63n   func(int64) int64 // Source of randomness, replaceable in tests
	log      *logrus.Entry
}

// NewPacer creates a Pacer. Bounds are swapped if given in the wrong order.
func NewPacer(minDelay, maxDelay time.Duration, log *logrus.Entry) *Pacer {
	if minDelay > maxDelay {
		minDelay, maxDelay = maxDelay, minDelay
	}
	return &Pacer{min: minDelay, max: maxDelay, int63n: rand.Int63n, log: log}
}

// Next picks the next delay uniformly from [min, max]
func (p *Pacer) Next() time.Duration {
	if p.max <= p.min {
		return p.min
	}
	return p.min + time.Duration(p.int63n(int64(p.max-p.min)+1))
}

// Wait sleeps for Next(). Returns ctx.Err() if ctx ends first.
func (p *Pacer) Wait(ctx context.Context) error {
	d := p.Next()
	if d <= 0 {
		return ctx.Err()
	}
	p.log.WithField("delay", d).Debug("Pausing before next page")

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
