package tracker

import (
	"sync"
	"testing"
)

func TestTracker(t *testing.T) {
	tr := New()
	name := "peer.navigation_update"

	if stats := tr.Snapshot(); len(stats) != 0 {
		t.Errorf("Expected empty stats, got %d", len(stats))
	}

	tr.TrackCacheHit(name)
	tr.TrackCacheMiss(name)
	tr.TrackSuccess(name)
	tr.TrackFailure(name)
	tr.TrackEmpty(name)
	tr.TrackQueued(name)
	tr.TrackQueued(name)
	tr.TrackDropped(name)

	s, ok := tr.Snapshot()[name]
	if !ok {
		t.Fatalf("Expected stats for %s", name)
	}
	want := Stats{CacheHits: 1, CacheMisses: 1, Success: 1, Failures: 1, Empty: 1, Queued: 2, Dropped: 1}
	if s != want {
		t.Errorf("Snapshot() = %+v, want %+v", s, want)
	}
}

func TestTracker_Concurrent(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.TrackSuccess("ors.driving-car")
		}()
	}
	wg.Wait()

	if got := tr.Snapshot()["ors.driving-car"].Success; got != 50 {
		t.Errorf("Success = %d, want 50", got)
	}
}
