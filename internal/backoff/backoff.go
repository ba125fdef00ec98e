// Package backoff computes delays between retry attempts.
package backoff

import (
	"math/rand"
	"time"
)

// Strategy computes the delay before retry n (0-based: the first retry is
// retry 0).
type Strategy interface {
	Delay(retry int, base, max time.Duration, multiplier, jitter float64) time.Duration
}

// Exponential grows the delay geometrically: base × multiplier^retry, capped
// at max, with optional uniform jitter in [0, jitter×delay).
type Exponential struct{}

// Delay implements Strategy.
func (Exponential) Delay(retry int, base, max time.Duration, multiplier, jitter float64) time.Duration {
	if retry < 0 {
		retry = 0
	}
	if retry > 30 {
		retry = 30 // overflow guard
	}

	delay := time.Duration(float64(base) * pow(multiplier, retry))
	if delay < 0 || delay > max {
		delay = max
	}

	jitter = clampJitter(jitter)
	if jitter > 0 {
		extra := time.Duration(float64(delay) * jitter * rand.Float64())
		if delay+extra > max {
			delay = max
		} else {
			delay += extra
		}
	}
	return delay
}

func clampJitter(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}

func pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
