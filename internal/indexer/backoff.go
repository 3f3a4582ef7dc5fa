package indexer

import (
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// fibonacciBackOff grows its interval along the Fibonacci sequence scaled
// by base, with full jitter, up to maxAttempts before signalling backoff.Stop.
// cenkalti/backoff/v4 ships only exponential backoff; spec.md §4.5 calls for
// Fibonacci growth specifically, so this implements backoff.BackOff directly.
type fibonacciBackOff struct {
	base        time.Duration
	maxAttempts int
	attempt     int
	prev, curr  time.Duration
}

// newFibonacciBackOff returns a BackOff starting at base with full jitter,
// stopping after maxAttempts calls to NextBackOff.
func newFibonacciBackOff(base time.Duration, maxAttempts int) *fibonacciBackOff {
	f := &fibonacciBackOff{base: base, maxAttempts: maxAttempts}
	f.Reset()
	return f
}

// NextBackOff implements backoff.BackOff.
func (f *fibonacciBackOff) NextBackOff() time.Duration {
	f.attempt++
	if f.attempt > f.maxAttempts {
		return backoff.Stop
	}

	interval := f.curr
	f.prev, f.curr = f.curr, f.prev+f.curr

	return time.Duration(rand.Int63n(int64(interval) + 1))
}

// Reset implements backoff.BackOff.
func (f *fibonacciBackOff) Reset() {
	f.attempt = 0
	f.prev = 0
	f.curr = f.base
}

// blockBackOff is the block-level retry policy: Fibonacci starting at
// 100ms, up to 10 attempts.
func blockBackOff() backoff.BackOff {
	return newFibonacciBackOff(100*time.Millisecond, 10)
}

// txBackOff is the inner transaction-indexing retry policy: Fibonacci
// starting at 50ms, up to 15 attempts.
func txBackOff() backoff.BackOff {
	return newFibonacciBackOff(50*time.Millisecond, 15)
}
