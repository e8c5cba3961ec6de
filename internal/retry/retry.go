// Package retry wraps provider and object-store calls with bounded
// exponential backoff, matching the reconciler's "retry indefinitely,
// log each failure" policy.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	floor      = time.Second
	ceiling    = 60 * time.Second
	multiplier = 2.0
)

func newBackoff() backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     floor,
		RandomizationFactor: 0.2,
		Multiplier:          multiplier,
		MaxInterval:         ceiling,
		MaxElapsedTime:      0, // retry indefinitely
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

// Do retries fn indefinitely with bounded exponential backoff until it
// returns a nil error or ctx is done.
func Do[T any](ctx context.Context, log *zap.Logger, name string, fn func(context.Context) (T, error)) (T, error) {
	var result T
	op := func() error {
		var err error
		result, err = fn(ctx)
		if err != nil && log != nil {
			log.Warn("retrying after error", zap.String("op", name), zap.Error(err))
		}
		return err
	}
	err := backoff.Retry(op, backoff.WithContext(newBackoff(), ctx))
	return result, err
}

// DoIf retries fn indefinitely until it succeeds and its result
// satisfies pred, used for "wait for block N"-style polling.
func DoIf[T any](ctx context.Context, log *zap.Logger, name string, fn func(context.Context) (T, error), pred func(T) bool) (T, error) {
	var result T
	op := func() error {
		v, err := fn(ctx)
		if err != nil {
			if log != nil {
				log.Warn("retrying after error", zap.String("op", name), zap.Error(err))
			}
			return err
		}
		if !pred(v) {
			return errNotYet
		}
		result = v
		return nil
	}
	err := backoff.Retry(op, backoff.WithContext(newBackoff(), ctx))
	if err != nil {
		return result, err
	}
	return result, nil
}

type sentinelError string

func (e sentinelError) Error() string { return string(e) }

const errNotYet = sentinelError("condition not yet satisfied")
