package panel

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aristath/cardrisk/internal/domain"
	"github.com/aristath/cardrisk/internal/modules/drilldown"
	testingpkg "github.com/aristath/cardrisk/internal/testing"
	"github.com/rs/zerolog"
	"pgregory.net/rapid"
)

// Rows are labelled with the kind that produced them so the invariant
// "rows belong to the expanded KPI" can be checked at any moment.
func labelledFetcher(delay time.Duration) drilldown.Fetcher {
	return drilldown.FetcherFunc(func(_ context.Context, kind drilldown.Kind) ([]domain.CustomerSummary, error) {
		time.Sleep(delay)
		return testingpkg.NewSummaryFixtures(string(kind), 2), nil
	})
}

func checkInvariants(t *rapid.T, snap Snapshot) {
	key, expanded := snap.State.Key()
	if len(snap.Rows) == 0 {
		return
	}
	if !expanded {
		t.Fatalf("rows %v shown while collapsed", snap.Rows)
	}
	kind, _ := KindOf(key)
	for _, r := range snap.Rows {
		if !strings.HasPrefix(r.ID, string(kind)+"-") {
			t.Fatalf("row %s shown under %s", r.ID, key)
		}
	}
	if snap.Loading || snap.Unavailable {
		t.Fatalf("rows shown while loading=%v unavailable=%v", snap.Loading, snap.Unavailable)
	}
}

func TestPanel_StateMachineProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		delay := time.Duration(rapid.IntRange(0, 2).Draw(t, "delay_ms")) * time.Millisecond
		p := New("prop", labelledFetcher(delay), Options{FetchTimeout: time.Second, Log: zerolog.Nop()})
		defer p.Close()

		model := Collapsed()
		steps := rapid.IntRange(1, 25).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 3).Draw(t, "op") {
			case 0, 1:
				k := rapid.SampledFrom(KPIs()).Draw(t, "kpi")
				snap, err := p.Toggle(k)
				if err != nil {
					t.Fatalf("toggle: %v", err)
				}
				if cur, ok := model.Key(); ok && cur == k {
					model = Collapsed()
				} else {
					model = Expanded(k)
				}
				if snap.State != model {
					t.Fatalf("state %s, want %s", snap.State, model)
				}
			case 2:
				changed, err := p.CollapseAll()
				if err != nil {
					t.Fatalf("collapse: %v", err)
				}
				if changed != model.IsExpanded() {
					t.Fatalf("collapse changed=%v from %s", changed, model)
				}
				model = Collapsed()
			case 3:
				time.Sleep(time.Duration(rapid.IntRange(0, 3).Draw(t, "wait_ms")) * time.Millisecond)
			}

			snap, err := p.Snapshot()
			if err != nil {
				t.Fatalf("snapshot: %v", err)
			}
			if snap.State != model {
				t.Fatalf("state %s, want %s", snap.State, model)
			}
			checkInvariants(t, snap)
		}

		// Whatever was left in flight settles on the current key.
		deadline := time.Now().Add(2 * time.Second)
		for {
			snap, err := p.Snapshot()
			if err != nil {
				t.Fatalf("snapshot: %v", err)
			}
			checkInvariants(t, snap)
			if !snap.Loading {
				if model.IsExpanded() && len(snap.Rows) != 2 {
					t.Fatalf("settled on %s with %d rows", model, len(snap.Rows))
				}
				return
			}
			if time.Now().After(deadline) {
				t.Fatalf("panel still loading %s", model)
			}
			time.Sleep(time.Millisecond)
		}
	})
}
