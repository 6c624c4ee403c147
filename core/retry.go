// Copyright 2020 Stafi Protocol
// SPDX-License-Identifier: LGPL-3.0-only

package core

import (
	"errors"
	"time"

	"github.com/ChainSafe/log15"
)

// RetryPolicy is applied uniformly to every chain request.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration

	// Sleep defaults to time.Sleep
	Sleep func(time.Duration)
}

// DefaultRetryPolicy makes 3 attempts waiting 2s then 4s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		Multiplier:  2,
		MaxDelay:    4 * time.Second,
	}
}

// Delays lists the waits between consecutive attempts.
func (p RetryPolicy) Delays() []time.Duration {
	if p.MaxAttempts <= 1 {
		return nil
	}
	delays := make([]time.Duration, 0, p.MaxAttempts-1)
	d := p.BaseDelay
	for i := 1; i < p.MaxAttempts; i++ {
		if p.MaxDelay > 0 && d > p.MaxDelay {
			d = p.MaxDelay
		}
		delays = append(delays, d)
		if p.Multiplier > 0 {
			d = time.Duration(float64(d) * p.Multiplier)
		}
	}
	return delays
}

// Do runs fn until it succeeds, returns a Permanent error, or the attempts
// are used up. It returns the number of attempts made and the last error;
// a Permanent error is returned unwrapped.
func (p RetryPolicy) Do(log log15.Logger, name string, fn func() error) (int, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	max := p.MaxAttempts
	if max < 1 {
		max = 1
	}
	delays := p.Delays()

	var err error
	for i := 0; i < max; i++ {
		err = fn()
		if err == nil {
			return i + 1, nil
		}
		var perm *permanent
		if errors.As(err, &perm) {
			return i + 1, perm.err
		}
		if i == max-1 {
			break
		}
		log.Warn("request failed, will retry", "name", name, "attempt", i+1, "wait", delays[i], "err", err)
		sleep(delays[i])
	}
	return max, err
}
