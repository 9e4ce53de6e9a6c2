package usecases

import (
	"context"
	"errors"
	"time"
)

var (
	errPollTimeout   = errors.New("poll limit reached")
	errPollCancelled = errors.New("poll cancelled")
)

// PollPolicy bounds a wait on remote state.
// Zero Timeout and zero MaxAttempts together mean unbounded; the config layer never produces that.
type PollPolicy struct {
	Interval    time.Duration
	MaxInterval time.Duration
	Multiplier  float64 // 1 keeps the interval fixed
	Timeout     time.Duration
	MaxAttempts int
}

// DefaultRunPolicy reads run status once per second for up to two minutes.
func DefaultRunPolicy() PollPolicy {
	return PollPolicy{
		Interval:    time.Second,
		MaxInterval: time.Second,
		Multiplier:  1,
		Timeout:     2 * time.Minute,
	}
}

// DefaultIndexPolicy backs off from one to five seconds for up to five minutes.
func DefaultIndexPolicy() PollPolicy {
	return PollPolicy{
		Interval:    time.Second,
		MaxInterval: 5 * time.Second,
		Multiplier:  1.5,
		Timeout:     5 * time.Minute,
	}
}

func (p PollPolicy) normalized() PollPolicy {
	if p.Interval <= 0 {
		p.Interval = time.Second
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	if p.MaxInterval < p.Interval {
		p.MaxInterval = p.Interval
	}
	return p
}

func (p PollPolicy) next(d time.Duration) time.Duration {
	n := time.Duration(float64(d) * p.Multiplier)
	if n > p.MaxInterval {
		n = p.MaxInterval
	}
	return n
}

// poll calls check until it reports done, returns an error, or the policy runs out.
// The first read happens immediately; the interval separates later reads.
func poll(ctx context.Context, policy PollPolicy, check func(ctx context.Context) (bool, error)) error {
	p := policy.normalized()

	waitCtx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	interval := p.Interval
	for attempt := 1; ; attempt++ {
		done, err := check(waitCtx)
		if err != nil {
			if waitCtx.Err() != nil {
				return stopCause(ctx)
			}
			return err
		}
		if done {
			return nil
		}
		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return errPollTimeout
		}

		select {
		case <-waitCtx.Done():
			return stopCause(ctx)
		case <-time.After(interval):
		}
		interval = p.next(interval)
	}
}

// stopCause tells caller cancellation apart from the policy deadline.
func stopCause(parent context.Context) error {
	if parent.Err() != nil {
		return errPollCancelled
	}
	return errPollTimeout
}
