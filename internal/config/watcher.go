package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce coalesces the burst of events editors produce on save
const DefaultDebounce = 200 * time.Millisecond

// ErrWatcherStarted is returned when Start is called twice
var ErrWatcherStarted = errors.New("policy watcher already started")

// PolicyWatcher reloads the risk policy file into a PolicyStore when it changes.
// A file that fails to parse leaves the current policy in place.
type PolicyWatcher struct {
	path     string
	store    *PolicyStore
	debounce time.Duration
	onChange func(RiskPolicy)
	log      zerolog.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	cancel  context.CancelFunc
	timer   *time.Timer
	started bool
	done    chan struct{}
}

// NewPolicyWatcher creates a watcher for path. onChange may be nil.
func NewPolicyWatcher(path string, store *PolicyStore, onChange func(RiskPolicy), log zerolog.Logger) *PolicyWatcher {
	if onChange == nil {
		onChange = func(RiskPolicy) {}
	}
	return &PolicyWatcher{
		path:     path,
		store:    store,
		debounce: DefaultDebounce,
		onChange: onChange,
		log:      log.With().Str("component", "policy_watcher").Str("path", path).Logger(),
	}
}

// Start begins watching. The directory is watched rather than the file so
// atomic rename-over saves are seen.
func (w *PolicyWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrWatcherStarted
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.fsw = fsw
	w.cancel = cancel
	w.done = make(chan struct{})
	w.started = true

	go w.run(ctx, fsw.Events, fsw.Errors)

	w.log.Info().Msg("Watching risk policy file")
	return nil
}

// Stop stops watching and waits for the event loop to exit
func (w *PolicyWatcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.cancel()
	_ = w.fsw.Close()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.started = false
	done := w.done
	w.mu.Unlock()

	<-done
}

func (w *PolicyWatcher) run(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) {
	defer close(w.done)

	target := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.trigger()
			}

		case err, ok := <-errs:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("File watcher error")
		}
	}
}

func (w *PolicyWatcher) trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.Reload)
}

// Reload reads the policy file now and publishes it if it parses
func (w *PolicyWatcher) Reload() {
	policy, err := LoadRiskPolicy(w.path)
	if err != nil {
		w.log.Error().Err(err).Msg("Failed to reload risk policy, keeping current")
		return
	}

	w.store.Set(policy)
	w.log.Info().
		Strs("bands", policy.Scheme.Names()).
		Strs("flagged", policy.Flagged.Names()).
		Msg("Risk policy reloaded")
	w.onChange(policy)
}
