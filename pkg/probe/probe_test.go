package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"tripsync/pkg/geo"
	"tripsync/pkg/routing/straight"
)

func TestRun(t *testing.T) {
	probes := []Probe{
		{
			Name:     "Success Probe",
			Check:    func(ctx context.Context) error { return nil },
			Critical: true,
		},
		{
			Name:  "Failure Probe (Non-Critical)",
			Check: func(ctx context.Context) error { return errors.New("minor issue") },
		},
		{
			Name: "Slow Probe",
			Check: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		},
	}

	results := Run(context.Background(), probes, 20*time.Millisecond)

	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	if results[0].Error != nil {
		t.Errorf("Expected success probe to pass, got error: %v", results[0].Error)
	}
	if results[1].Error == nil {
		t.Error("Expected failure probe to fail, got nil")
	}
	if !errors.Is(results[2].Error, context.DeadlineExceeded) {
		t.Errorf("Expected slow probe to time out, got %v", results[2].Error)
	}
}

func TestAnalyzeResults(t *testing.T) {
	tests := []struct {
		name    string
		results []Result
		wantErr bool
	}{
		{
			name:    "All Pass",
			results: []Result{{Probe: Probe{Name: "P1", Critical: true}}},
			wantErr: false,
		},
		{
			name:    "Critical Failure",
			results: []Result{{Probe: Probe{Name: "P1", Critical: true}, Error: errors.New("fail")}},
			wantErr: true,
		},
		{
			name:    "Non-Critical Failure",
			results: []Result{{Probe: Probe{Name: "P1", Critical: false}, Error: errors.New("fail")}},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AnalyzeResults(tt.results)
			if (err != nil) != tt.wantErr {
				t.Errorf("AnalyzeResults() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type fakeLink struct{ up bool }

func (f fakeLink) IsReachable() bool { return f.up }

func TestDomainChecks(t *testing.T) {
	ctx := context.Background()

	if err := Catalog(func() int { return 0 }).Check(ctx); err == nil {
		t.Error("expected empty catalog to fail")
	}
	if err := Catalog(func() int { return 8 }).Check(ctx); err != nil {
		t.Errorf("unexpected catalog error: %v", err)
	}

	if err := PeerLink(fakeLink{up: false}).Check(ctx); !errors.Is(err, ErrUnreachable) {
		t.Errorf("expected ErrUnreachable, got %v", err)
	}
	if PeerLink(fakeLink{}).Critical {
		t.Error("peer link probe must not be critical")
	}

	engine := straight.New(0)
	origin := geo.Point{Lat: 19.4326, Lon: -99.1332}
	if err := RoutingEngine(engine, origin).Check(ctx); err != nil {
		t.Errorf("unexpected routing error: %v", err)
	}
}
