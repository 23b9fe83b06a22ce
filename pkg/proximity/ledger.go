package proximity

import (
	"context"
	"sort"
	"sync"
)

// Ledger records which collectibles the user already owns. Marking is a set
// insertion, so repeating it changes nothing.
type Ledger interface {
	HasCollected(ctx context.Context, id int) (bool, error)
	MarkCollected(ctx context.Context, id int) error
	Collected(ctx context.Context) ([]int, error)
}

// MemoryLedger is a process-local Ledger.
type MemoryLedger struct {
	mu  sync.RWMutex
	ids map[int]struct{}
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{ids: make(map[int]struct{})}
}

func (l *MemoryLedger) HasCollected(ctx context.Context, id int) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.ids[id]
	return ok, nil
}

func (l *MemoryLedger) MarkCollected(ctx context.Context, id int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ids[id] = struct{}{}
	return nil
}

func (l *MemoryLedger) Collected(ctx context.Context) ([]int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]int, 0, len(l.ids))
	for id := range l.ids {
		out = append(out, id)
	}
	sort.Ints(out)
	return out, nil
}
