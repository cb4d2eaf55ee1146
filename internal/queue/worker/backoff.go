package worker

import (
	"math"
	"math/rand"
	"time"
)

// ExponentialBackoff is the pause after consecutive dequeue errors:
// 500ms, 1s, 2s ... capped at 30s, plus up to 250ms of jitter.
func ExponentialBackoff(attempt int) time.Duration {
	base := 500 * time.Millisecond
	capDelay := 30 * time.Second

	if attempt < 0 {
		attempt = 0
	}

	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if delay > capDelay || delay <= 0 {
		delay = capDelay
	}

	delay += time.Duration(rand.Intn(250)) * time.Millisecond
	return delay
}
