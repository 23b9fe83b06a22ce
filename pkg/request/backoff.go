package request

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// ProviderBackoff tracks exponential backoff per provider, shared by all
// requests to that provider.
type ProviderBackoff struct {
	mu        sync.RWMutex
	providers map[string]*backoffState
	baseDelay time.Duration
	maxDelay  time.Duration
}

type backoffState struct {
	failureCount int
	nextAllowed  time.Time
}

// NewProviderBackoff creates a new backoff manager.
func NewProviderBackoff(baseDelay, maxDelay time.Duration) *ProviderBackoff {
	return &ProviderBackoff{
		providers: make(map[string]*backoffState),
		baseDelay: baseDelay,
		maxDelay:  maxDelay,
	}
}

// Wait blocks until the provider is allowed another request or ctx ends.
func (b *ProviderBackoff) Wait(ctx context.Context, provider string) error {
	b.mu.RLock()
	state, exists := b.providers[provider]
	var next time.Time
	if exists {
		next = state.nextAllowed
	}
	b.mu.RUnlock()

	d := time.Until(next)
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecordFailure increases the backoff delay for a provider.
func (b *ProviderBackoff) RecordFailure(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, exists := b.providers[provider]
	if !exists {
		state = &backoffState{}
		b.providers[provider] = state
	}
	state.failureCount++
	state.nextAllowed = time.Now().Add(b.delay(state.failureCount))
}

// RecordSuccess steps the failure count down by one.
func (b *ProviderBackoff) RecordSuccess(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, exists := b.providers[provider]
	if !exists {
		return
	}
	if state.failureCount > 0 {
		state.failureCount--
	}
	if state.failureCount == 0 {
		state.nextAllowed = time.Time{}
	}
}

// delay returns baseDelay * 2^(failures-1), capped, plus up to 10% jitter.
func (b *ProviderBackoff) delay(failures int) time.Duration {
	d := time.Duration(float64(b.baseDelay) * math.Pow(2, float64(failures-1)))
	if d > b.maxDelay {
		d = b.maxDelay
	}
	return d + time.Duration(rand.Float64()*0.1*float64(d))
}

// State returns the failure count and next allowed time for a provider.
func (b *ProviderBackoff) State(provider string) (failureCount int, nextAllowed time.Time) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if state, exists := b.providers[provider]; exists {
		return state.failureCount, state.nextAllowed
	}
	return 0, time.Time{}
}
