package core

import (
	"errors"
	"fmt"
	"time"

	catrate "github.com/joeycumines/go-catrate"
)

// ErrCircuitOpen is returned once a table has failed too many batches.
var ErrCircuitOpen = errors.New("circuit breaker open")

// Breaker counts batch failures per table in a sliding window. The table
// tolerates maxFailures failures per window; the next one opens the circuit.
type Breaker struct {
	limiter     *catrate.Limiter
	maxFailures int
	window      time.Duration
}

// NewBreaker creates a breaker. Non-positive arguments fall back to
// 10 failures per 5 minutes.
func NewBreaker(maxFailures int, window time.Duration) *Breaker {
	if maxFailures <= 0 {
		maxFailures = 10
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &Breaker{
		limiter:     catrate.NewLimiter(map[time.Duration]int{window: maxFailures}),
		maxFailures: maxFailures,
		window:      window,
	}
}

// RecordFailure registers a failure for table and returns ErrCircuitOpen if
// the table is over its budget.
func (b *Breaker) RecordFailure(table string) error {
	if next, ok := b.limiter.Allow(table); !ok {
		return fmt.Errorf("%w for table %s: more than %d failures in %s (closes at %s)",
			ErrCircuitOpen, table, b.maxFailures, b.window, next.Format(time.RFC3339))
	}
	return nil
}
