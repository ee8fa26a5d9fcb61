package jobs

import (
	"context"
	"log"
	"time"
)

type PaymentPoller interface {
	PollPending(ctx context.Context) (int, error)
}

type SessionSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

type LimiterCleaner interface {
	Cleanup(maxIdle time.Duration) int
}

// PaymentPoll settles pending payments the gateway has since resolved.
func PaymentPoll(p PaymentPoller) Job {
	return func(ctx context.Context) error {
		settled, err := p.PollPending(ctx)
		if err != nil {
			return err
		}
		if settled > 0 {
			log.Printf("💳 Payment poll settled %d payment(s)", settled)
		}
		return nil
	}
}

// SessionSweep deletes expired and revoked sessions
func SessionSweep(s SessionSweeper) Job {
	return func(ctx context.Context) error {
		removed, err := s.SweepExpired(ctx)
		if err != nil {
			return err
		}
		if removed > 0 {
			log.Printf("🧹 Removed %d expired session(s)", removed)
		}
		return nil
	}
}

// LimiterCleanup forgets rate-limit buckets idle for longer than maxIdle.
func LimiterCleanup(c LimiterCleaner, maxIdle time.Duration) Job {
	return func(context.Context) error {
		c.Cleanup(maxIdle)
		return nil
	}
}
