package panel

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// ErrInvalidRegion is returned for a region with negative extent
var ErrInvalidRegion = errors.New("invalid panel region")

// Point is a position in page coordinates
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is the on-screen region of the panel. Edges are inclusive.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether pt lies within r, edges included
func (r Rect) Contains(pt Point) bool {
	return pt.X >= r.X && pt.X <= r.X+r.Width &&
		pt.Y >= r.Y && pt.Y <= r.Y+r.Height
}

// Origin says where an interaction came from
type Origin string

const (
	// OriginPage is a pointer press anywhere on the page
	OriginPage Origin = "page"
	// OriginToggle is the press that activated a KPI toggle. It is handled by
	// the toggle itself and must never dismiss.
	OriginToggle Origin = "toggle"
)

// ParseOrigin validates an origin. The empty string means OriginPage.
func ParseOrigin(s string) (Origin, error) {
	switch o := Origin(strings.ToLower(strings.TrimSpace(s))); o {
	case "", OriginPage:
		return OriginPage, nil
	case OriginToggle:
		return OriginToggle, nil
	default:
		return "", fmt.Errorf("unknown interaction origin %q", s)
	}
}

// Interaction is one pointer press
type Interaction struct {
	Point  Point  `json:"point"`
	Origin Origin `json:"origin"`
}

// Collapser is the part of a Panel the dismissal controller drives
type Collapser interface {
	CollapseAll() (bool, error)
}

// Dismissal collapses its target when a press lands outside the registered
// region. With no region registered nothing is dismissed.
type Dismissal struct {
	mu     sync.RWMutex
	region *Rect
	target Collapser
	log    zerolog.Logger
}

// NewDismissal creates a controller for target with no region registered
func NewDismissal(target Collapser, log zerolog.Logger) *Dismissal {
	return &Dismissal{
		target: target,
		log:    log.With().Str("component", "dismissal").Logger(),
	}
}

// SetRegion registers the panel's current on-screen region
func (d *Dismissal) SetRegion(r Rect) error {
	if r.Width < 0 || r.Height < 0 {
		return fmt.Errorf("%w: %gx%g", ErrInvalidRegion, r.Width, r.Height)
	}
	d.mu.Lock()
	d.region = &r
	d.mu.Unlock()
	return nil
}

// ClearRegion forgets the registered region
func (d *Dismissal) ClearRegion() {
	d.mu.Lock()
	d.region = nil
	d.mu.Unlock()
}

// Region returns the registered region, if any
func (d *Dismissal) Region() (Rect, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.region == nil {
		return Rect{}, false
	}
	return *d.region, true
}

// Observe handles one press and reports whether it collapsed the panel.
// The lock is released before the target is called.
func (d *Dismissal) Observe(ev Interaction) (bool, error) {
	if ev.Origin == OriginToggle {
		return false, nil
	}

	region, ok := d.Region()
	if !ok || region.Contains(ev.Point) {
		return false, nil
	}

	collapsed, err := d.target.CollapseAll()
	if err != nil {
		return false, err
	}
	if collapsed {
		d.log.Debug().Float64("x", ev.Point.X).Float64("y", ev.Point.Y).Msg("Outside press dismissed panel")
	}
	return collapsed, nil
}
