package main

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	maxBackoff   = 10 * time.Second
	jitterWindow = 250 * time.Millisecond
)

// pacer decides how long the poll loop sleeps. Idle polls wait the base
// interval; consecutive failed batches double the wait up to maxBackoff.
// Every wait carries up to jitterWindow of jitter so replicas drift apart.
type pacer struct {
	base    time.Duration
	backoff time.Duration
	jitter  func(time.Duration) time.Duration
}

func newPacer(base time.Duration) *pacer {
	return &pacer{base: base, jitter: func(d time.Duration) time.Duration {
		return d + rand.N(jitterWindow)
	}}
}

func (p *pacer) reset() { p.backoff = 0 }

func (p *pacer) idle() time.Duration {
	p.reset()
	return p.jitter(p.base)
}

func (p *pacer) failed() time.Duration {
	switch {
	case p.backoff == 0:
		p.backoff = min(p.base*2, maxBackoff)
	default:
		p.backoff = min(p.backoff*2, maxBackoff)
	}
	return p.jitter(p.backoff)
}

func (p *pacer) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
