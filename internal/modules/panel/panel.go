package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/cardrisk/internal/domain"
	"github.com/aristath/cardrisk/internal/events"
	"github.com/aristath/cardrisk/internal/latest"
	"github.com/aristath/cardrisk/internal/modules/drilldown"
	"github.com/rs/zerolog"
)

// ErrClosed is returned by operations on an unmounted panel
var ErrClosed = errors.New("panel closed")

// DefaultFetchTimeout bounds a drill-down fetch when Options leaves it unset
const DefaultFetchTimeout = 10 * time.Second

const (
	inboxSize      = 64
	subscriberSize = 16
)

// Snapshot is the observable panel state. Rows are non-empty only while
// expanded, and always belong to the expanded KPI.
type Snapshot struct {
	PanelID     string                   `json:"panel_id"`
	State       State                    `json:"state"`
	Rows        []domain.CustomerSummary `json:"rows"`
	Loading     bool                     `json:"loading"`
	Unavailable bool                     `json:"unavailable"` // the last fetch failed
	Version     uint64                   `json:"version"`     // increments on every change
}

// Options configures a Panel
type Options struct {
	FetchTimeout time.Duration
	Events       events.Emitter
	Log          zerolog.Logger
}

type rowsResult = latest.Result[[]domain.CustomerSummary]

// Panel is the KPI drill-down state machine. All state lives on one goroutine;
// public methods post work to it and wait for the outcome. Drill-down fetches
// run off that goroutine and are applied only if still current on arrival.
type Panel struct {
	id      string
	fetcher drilldown.Fetcher
	tracker latest.Tracker
	timeout time.Duration
	events  events.Emitter
	log     zerolog.Logger

	inbox     chan func()
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc

	// Owned by the loop goroutine
	state       State
	rows        []domain.CustomerSummary
	loading     bool
	unavailable bool
	version     uint64
	subscribers map[int]chan Snapshot
	nextSubID   int
}

// New creates a collapsed panel and starts its loop. Close releases it.
func New(id string, fetcher drilldown.Fetcher, opts Options) *Panel {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Panel{
		id:          id,
		fetcher:     fetcher,
		timeout:     opts.FetchTimeout,
		events:      opts.Events,
		log:         opts.Log.With().Str("component", "panel").Str("panel_id", id).Logger(),
		inbox:       make(chan func(), inboxSize),
		quit:        make(chan struct{}),
		stopped:     make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		subscribers: make(map[int]chan Snapshot),
	}
	go p.run()
	return p
}

// ID returns the panel id
func (p *Panel) ID() string {
	return p.id
}

func (p *Panel) run() {
	defer close(p.stopped)
	for {
		select {
		case fn := <-p.inbox:
			fn()
		case <-p.quit:
			p.shutdown()
			return
		}
	}
}

// do runs fn on the loop goroutine and waits for it
func (p *Panel) do(fn func()) error {
	done := make(chan struct{})
	select {
	case p.inbox <- func() { fn(); close(done) }:
	case <-p.quit:
		return ErrClosed
	}

	select {
	case <-done:
		return nil
	case <-p.stopped:
		select {
		case <-done:
			return nil
		default:
			return ErrClosed
		}
	}
}

// post queues fn on the loop goroutine without waiting. It is dropped once the panel is closed.
func (p *Panel) post(fn func()) {
	select {
	case p.inbox <- fn:
	case <-p.quit:
	}
}

// Toggle expands k, collapses it if it is already expanded, or switches to it
// from another expanded KPI.
func (p *Panel) Toggle(k KPI) (Snapshot, error) {
	if _, ok := KindOf(k); !ok {
		return Snapshot{}, ErrUnknownKPI
	}

	var snap Snapshot
	err := p.do(func() {
		p.toggle(k)
		snap = p.snapshot()
	})
	return snap, err
}

// CollapseAll collapses an expanded panel. It reports whether anything changed.
func (p *Panel) CollapseAll() (bool, error) {
	var changed bool
	err := p.do(func() {
		changed = p.collapse("dismissed")
	})
	return changed, err
}

// Snapshot returns the current state
func (p *Panel) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := p.do(func() {
		snap = p.snapshot()
	})
	return snap, err
}

// Subscribe returns a channel that receives the current snapshot and then one
// snapshot per change. Slow subscribers miss intermediate frames. The channel
// is closed by the returned cancel func or when the panel closes.
func (p *Panel) Subscribe() (<-chan Snapshot, func(), error) {
	ch := make(chan Snapshot, subscriberSize)
	var id int
	err := p.do(func() {
		id = p.nextSubID
		p.nextSubID++
		p.subscribers[id] = ch
		ch <- p.snapshot()
	})
	if err != nil {
		return nil, func() {}, err
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			_ = p.do(func() {
				if sub, ok := p.subscribers[id]; ok {
					delete(p.subscribers, id)
					close(sub)
				}
			})
		})
	}
	return ch, cancel, nil
}

// Close unmounts the panel: in-flight fetches are invalidated, subscribers are
// closed and every later call returns ErrClosed.
func (p *Panel) Close() {
	p.closeOnce.Do(func() {
		close(p.quit)
		<-p.stopped
	})
}

// Done is closed once the panel has shut down
func (p *Panel) Done() <-chan struct{} {
	return p.stopped
}

func (p *Panel) shutdown() {
	p.tracker.Invalidate()
	p.cancel()
	p.state = Collapsed()
	p.rows = nil
	p.loading = false
	for id, sub := range p.subscribers {
		delete(p.subscribers, id)
		close(sub)
	}
}

func (p *Panel) toggle(k KPI) {
	if current, ok := p.state.Key(); ok && current == k {
		p.collapse("toggle")
		return
	}

	from := p.state
	p.state = Expanded(k)
	// Rows of the previous KPI never survive a switch
	p.rows = nil
	p.unavailable = false
	p.loading = true
	p.version++
	p.startFetch(k)

	p.log.Debug().Str("from", from.String()).Str("to", p.state.String()).Msg("Panel expanded")
	p.events.EmitTyped("panel", events.NewPanelData(events.PanelExpanded, p.id, string(k), ""))
	p.publish()
}

func (p *Panel) collapse(reason string) bool {
	if !p.state.IsExpanded() {
		return false
	}

	key, _ := p.state.Key()
	p.tracker.Invalidate()
	p.state = Collapsed()
	p.rows = nil
	p.unavailable = false
	p.loading = false
	p.version++

	p.log.Debug().Str("kpi", string(key)).Str("reason", reason).Msg("Panel collapsed")
	p.events.EmitTyped("panel", events.NewPanelData(events.PanelCollapsed, p.id, string(key), reason))
	p.publish()
	return true
}

func (p *Panel) startFetch(k KPI) {
	kind, _ := KindOf(k)
	latest.Go(&p.tracker, p.ctx,
		func(ctx context.Context) ([]domain.CustomerSummary, error) {
			return p.fetch(ctx, kind)
		},
		func(res rowsResult) {
			p.post(func() { p.applyFetch(k, kind, res) })
		},
	)
}

// fetch runs the fetcher under the panel's timeout. The timeout is enforced
// here as well, so a fetcher that ignores its context cannot leave the panel loading.
func (p *Panel) fetch(ctx context.Context, kind drilldown.Kind) ([]domain.CustomerSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type outcome struct {
		rows []domain.CustomerSummary
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: &drilldown.NetworkError{Kind: kind, Err: fmt.Errorf("fetcher panicked: %v", r)}}
			}
		}()
		rows, err := p.fetcher.FetchTop(ctx, kind)
		ch <- outcome{rows: rows, err: err}
	}()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case o := <-ch:
		return o.rows, o.err
	case <-timer.C:
		return nil, &drilldown.NetworkError{Kind: kind, Err: context.DeadlineExceeded}
	}
}

func (p *Panel) applyFetch(k KPI, kind drilldown.Kind, res rowsResult) {
	current, expanded := p.state.Key()
	if !p.tracker.Current(res.Ticket) || !expanded || current != k {
		p.log.Debug().
			Str("kpi", string(k)).
			Uint64("ticket", res.Ticket.Seq()).
			Msg("Discarded stale drill-down response")
		p.events.EmitTyped("panel", events.NewDrillDownData(events.DrillDownDiscarded, p.id, string(k), string(kind), len(res.Value), res.Err))
		return
	}
	p.tracker.Settle(res.Ticket)

	p.loading = false
	p.version++
	if res.Err != nil {
		p.rows = nil
		p.unavailable = true
		p.log.Warn().Err(res.Err).Str("kpi", string(k)).Msg("Drill-down unavailable")
		p.events.EmitTyped("panel", events.NewDrillDownData(events.DrillDownFailed, p.id, string(k), string(kind), 0, res.Err))
	} else {
		p.rows = res.Value
		p.unavailable = false
		p.events.EmitTyped("panel", events.NewDrillDownData(events.DrillDownLoaded, p.id, string(k), string(kind), len(res.Value), nil))
	}
	p.publish()
}

func (p *Panel) snapshot() Snapshot {
	rows := make([]domain.CustomerSummary, len(p.rows))
	copy(rows, p.rows)
	return Snapshot{
		PanelID:     p.id,
		State:       p.state,
		Rows:        rows,
		Loading:     p.loading,
		Unavailable: p.unavailable,
		Version:     p.version,
	}
}

// publish hands the current snapshot to subscribers, dropping the oldest
// queued frame for any that are behind.
func (p *Panel) publish() {
	if len(p.subscribers) == 0 {
		return
	}
	snap := p.snapshot()
	for _, sub := range p.subscribers {
		select {
		case sub <- snap:
		default:
			select {
			case <-sub:
			default:
			}
			select {
			case sub <- snap:
			default:
			}
		}
	}
}
