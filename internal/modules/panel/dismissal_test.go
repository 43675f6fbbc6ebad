package panel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/cardrisk/internal/domain"
	"github.com/aristath/cardrisk/internal/modules/drilldown"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCollapser struct {
	expanded bool
	calls    int
	err      error
}

func (c *countingCollapser) CollapseAll() (bool, error) {
	c.calls++
	if c.err != nil {
		return false, c.err
	}
	changed := c.expanded
	c.expanded = false
	return changed, nil
}

var panelRegion = Rect{X: 100, Y: 100, Width: 200, Height: 50}

func TestRect_Contains(t *testing.T) {
	tests := []struct {
		name string
		pt   Point
		want bool
	}{
		{"centre", Point{200, 125}, true},
		{"top-left corner", Point{100, 100}, true},
		{"bottom-right corner", Point{300, 150}, true},
		{"left of region", Point{99.9, 125}, false},
		{"below region", Point{200, 150.1}, false},
		{"far away", Point{0, 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, panelRegion.Contains(tt.pt))
		})
	}
}

func TestDismissal_Observe(t *testing.T) {
	tests := []struct {
		name          string
		region        *Rect
		ev            Interaction
		wantCollapsed bool
		wantCalls     int
	}{
		{"outside press collapses", &panelRegion, Interaction{Point{10, 10}, OriginPage}, true, 1},
		{"inside press keeps panel", &panelRegion, Interaction{Point{150, 120}, OriginPage}, false, 0},
		{"toggle press is ignored", &panelRegion, Interaction{Point{10, 10}, OriginToggle}, false, 0},
		{"no region registered", nil, Interaction{Point{10, 10}, OriginPage}, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := &countingCollapser{expanded: true}
			d := NewDismissal(target, zerolog.Nop())
			if tt.region != nil {
				require.NoError(t, d.SetRegion(*tt.region))
			}

			collapsed, err := d.Observe(tt.ev)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCollapsed, collapsed)
			assert.Equal(t, tt.wantCalls, target.calls)
		})
	}
}

func TestDismissal_OutsidePressWhileCollapsed(t *testing.T) {
	target := &countingCollapser{}
	d := NewDismissal(target, zerolog.Nop())
	require.NoError(t, d.SetRegion(panelRegion))

	collapsed, err := d.Observe(Interaction{Point: Point{0, 0}})
	require.NoError(t, err)
	assert.False(t, collapsed)
}

func TestDismissal_Region(t *testing.T) {
	d := NewDismissal(&countingCollapser{}, zerolog.Nop())

	_, ok := d.Region()
	assert.False(t, ok)

	require.NoError(t, d.SetRegion(panelRegion))
	r, ok := d.Region()
	assert.True(t, ok)
	assert.Equal(t, panelRegion, r)

	err := d.SetRegion(Rect{Width: -1, Height: 10})
	assert.ErrorIs(t, err, ErrInvalidRegion)
	r, _ = d.Region()
	assert.Equal(t, panelRegion, r, "invalid region leaves the old one")

	d.ClearRegion()
	_, ok = d.Region()
	assert.False(t, ok)
}

func TestDismissal_PropagatesTargetError(t *testing.T) {
	target := &countingCollapser{err: ErrClosed}
	d := NewDismissal(target, zerolog.Nop())
	require.NoError(t, d.SetRegion(panelRegion))

	_, err := d.Observe(Interaction{Point: Point{0, 0}, Origin: OriginPage})
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestParseOrigin(t *testing.T) {
	o, err := ParseOrigin("")
	require.NoError(t, err)
	assert.Equal(t, OriginPage, o)

	o, err = ParseOrigin("Toggle")
	require.NoError(t, err)
	assert.Equal(t, OriginToggle, o)

	_, err = ParseOrigin("keyboard")
	assert.Error(t, err)
}

func TestDismissal_CollapsesRealPanel(t *testing.T) {
	fetcher := drilldown.FetcherFunc(func(context.Context, drilldown.Kind) ([]domain.CustomerSummary, error) {
		return []domain.CustomerSummary{{ID: "x"}}, nil
	})
	p := New("dismiss", fetcher, Options{FetchTimeout: time.Second, Log: zerolog.Nop()})
	defer p.Close()

	d := NewDismissal(p, zerolog.Nop())
	require.NoError(t, d.SetRegion(panelRegion))

	_, err := p.Toggle(KPITotalCustomers)
	require.NoError(t, err)

	// The press that opened the panel bubbles up as a toggle-origin event.
	collapsed, err := d.Observe(Interaction{Point: Point{10, 10}, Origin: OriginToggle})
	require.NoError(t, err)
	assert.False(t, collapsed)

	collapsed, err = d.Observe(Interaction{Point: Point{10, 10}, Origin: OriginPage})
	require.NoError(t, err)
	assert.True(t, collapsed)

	snap, err := p.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, Collapsed(), snap.State)
	assert.Empty(t, snap.Rows)
}
