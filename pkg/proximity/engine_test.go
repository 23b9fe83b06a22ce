package proximity

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripsync/pkg/catalog"
	"tripsync/pkg/geo"
	"tripsync/pkg/location"
	"tripsync/pkg/model"
)

var user = geo.Point{Lat: 19.4326, Lon: -99.1332}

func poiAt(id string, dist, bearing float64) model.PointOfInterest {
	return model.PointOfInterest{
		ID:          id,
		DisplayName: id,
		Coordinate:  geo.DestinationPoint(user, dist, bearing),
	}
}

func newEngine(t *testing.T, pois ...model.PointOfInterest) (*Engine, *MemoryLedger) {
	t.Helper()
	cat, err := catalog.New(pois, catalog.Options{CollectibleBase: 14, CellResolution: 9})
	require.NoError(t, err)
	ledger := NewMemoryLedger()
	return NewEngine(cat, ledger, Options{}), ledger
}

func TestEvaluate_Classification(t *testing.T) {
	e, _ := newEngine(t,
		poiAt("far", 800, 0),
		poiAt("mid", 300, 90),
		poiAt("near", 60, 180),
	)

	st := e.Evaluate(user)
	require.Len(t, st.Nearby, 2)
	require.NotNil(t, st.Focus)
	assert.Equal(t, "near", st.Focus.POI.ID)
	assert.True(t, st.Collectable)

	st = e.Evaluate(geo.DestinationPoint(user, 5000, 0))
	assert.Empty(t, st.Nearby)
	assert.Nil(t, st.Focus)
	assert.False(t, st.Collectable)
}

func TestEvaluate_CollectRadiusBoundary(t *testing.T) {
	for _, tc := range []struct {
		dist float64
		want bool
	}{
		{dist: 90, want: true},
		{dist: 99.99, want: true},
		{dist: 100.01, want: false},
		{dist: 101, want: false},
	} {
		e, _ := newEngine(t, poiAt("stadium", tc.dist, 45))
		st := e.Evaluate(user)
		require.NotNil(t, st.Focus)
		assert.Equal(t, tc.want, st.Collectable, "distance %.2f", tc.dist)
	}
}

func TestEvaluate_EquidistantTieBreak(t *testing.T) {
	e, _ := newEngine(t,
		poiAt("first", 75, 0),
		poiAt("second", 75, 180),
	)
	for i := 0; i < 20; i++ {
		st := e.Evaluate(user)
		require.NotNil(t, st.Focus)
		assert.Equal(t, "first", st.Focus.POI.ID)
	}
}

func TestEvaluate_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))

	for round := 0; round < 50; round++ {
		n := 1 + rng.IntN(30)
		pois := make([]model.PointOfInterest, n)
		for i := range pois {
			pois[i] = poiAt(string(rune('A'+i)), rng.Float64()*1200, rng.Float64()*360)
		}
		e, _ := newEngine(t, pois...)

		for sample := 0; sample < 10; sample++ {
			at := geo.DestinationPoint(user, rng.Float64()*600, rng.Float64()*360)
			st := e.Evaluate(at)

			if len(st.Nearby) == 0 {
				assert.Nil(t, st.Focus)
				assert.False(t, st.Collectable)
				continue
			}
			require.NotNil(t, st.Focus)

			found := false
			for _, n := range st.Nearby {
				assert.LessOrEqual(t, n.Distance, 500.0)
				assert.GreaterOrEqual(t, n.Distance, st.Focus.Distance)
				if n.POI.ID == st.Focus.POI.ID {
					found = true
				}
			}
			assert.True(t, found, "focus must be a member of the nearby set")
			if st.Collectable {
				assert.LessOrEqual(t, st.Focus.Distance, 100.0)
			}
		}
	}
}

func TestCollect_Idempotent(t *testing.T) {
	e, ledger := newEngine(t, poiAt("a", 400, 0), poiAt("zocalo", 20, 0))
	ctx := context.Background()

	var notified []CollectResult
	e.OnCollect(func(r CollectResult) { notified = append(notified, r) })

	res, err := e.Collect(ctx, "zocalo")
	require.NoError(t, err)
	assert.Equal(t, 15, res.CollectibleID)
	assert.False(t, res.AlreadyCollected)

	before, _ := ledger.Collected(ctx)

	res, err = e.Collect(ctx, "zocalo")
	require.NoError(t, err)
	assert.True(t, res.AlreadyCollected)

	after, _ := ledger.Collected(ctx)
	assert.Equal(t, before, after)
	assert.Len(t, notified, 1)

	_, err = e.Collect(ctx, "missing")
	assert.ErrorIs(t, err, ErrUnknownPOI)
}

func TestCollectFocus(t *testing.T) {
	e, ledger := newEngine(t, poiAt("plaza", 60, 0), poiAt("museum", 300, 90))
	ctx := context.Background()

	_, err := e.CollectFocus(ctx)
	assert.ErrorIs(t, err, ErrNotCollectable, "no fix yet")

	e.OnFix(location.Fix{Coord: geo.DestinationPoint(user, 400, 270)})
	_, err = e.CollectFocus(ctx)
	assert.ErrorIs(t, err, ErrNotCollectable, "focus out of range")

	e.OnFix(location.Fix{Coord: user})
	res, err := e.CollectFocus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "plaza", res.POI.ID)

	has, _ := ledger.HasCollected(ctx, 14)
	assert.True(t, has)
}

func TestOnFix_NotifiesOnFocusChange(t *testing.T) {
	e, _ := newEngine(t, poiAt("plaza", 60, 0))

	var changes int
	e.OnChange(func(prev, next model.ProximityState) { changes++ })

	far := location.Fix{Coord: geo.DestinationPoint(user, 3000, 0), Timestamp: time.Now()}
	near := location.Fix{Coord: user, Timestamp: time.Now()}

	e.OnFix(far)  // no focus -> no focus: silent
	e.OnFix(near) // focus appears
	e.OnFix(near) // unchanged
	e.OnFix(far)  // focus gone
	assert.Equal(t, 2, changes)
	assert.Nil(t, e.State().Focus)
}

func TestEngine_ConcurrentFixesAndCollects(t *testing.T) {
	var pois []model.PointOfInterest
	for i := 0; i < 12; i++ {
		pois = append(pois, poiAt(fmt.Sprintf("poi-%02d", i), 40+float64(i)*35, float64(i)*30))
	}
	e, ledger := newEngine(t, pois...)
	ctx := context.Background()

	var mu sync.Mutex
	collected := make(map[int]int)
	e.OnCollect(func(r CollectResult) {
		mu.Lock()
		defer mu.Unlock()
		collected[r.CollectibleID]++
	})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(seed, 11))
			for i := 0; i < 200; i++ {
				at := geo.DestinationPoint(user, rng.Float64()*700, rng.Float64()*360)
				e.OnFix(location.Fix{Coord: at, Timestamp: time.Now()})
			}
		}(uint64(w))
	}
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 300; i++ {
				st := e.State()
				if st.Focus == nil {
					assert.False(t, st.Collectable)
					continue
				}
				found := false
				for _, n := range st.Nearby {
					assert.LessOrEqual(t, n.Distance, 500.0)
					if n.POI.ID == st.Focus.POI.ID {
						found = true
					}
				}
				assert.True(t, found, "focus must be a member of the nearby set")
				if st.Collectable {
					assert.LessOrEqual(t, st.Focus.Distance, 100.0)
				}
			}
		}()
	}
	for w := 0; w < 6; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, p := range pois {
				_, err := e.Collect(ctx, p.ID)
				assert.NoError(t, err)
				_, err = e.CollectFocus(ctx)
				if err != nil {
					assert.ErrorIs(t, err, ErrNotCollectable)
				}
			}
		}()
	}
	wg.Wait()

	ids, err := ledger.Collected(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, len(pois))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, collected, len(pois))
	for id, n := range collected {
		assert.Equal(t, 1, n, "collectible %d announced %d times", id, n)
	}
}
