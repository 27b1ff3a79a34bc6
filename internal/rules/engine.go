package rules

import (
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// Engine owns the currently active rule sets and, optionally, a file
// watcher that recompiles them on write. Rule sets are immutable once
// loaded (spec.md §5): readers take a snapshot pointer under a brief lock
// and never see a partially-updated Set.
type Engine struct {
	mu       sync.RWMutex
	sets     []*Set
	path     string
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	reloadID atomic.Value // string, last reload's audit ID
}

// NewEngine builds an Engine from an already-loaded rule path. If path is
// empty, the engine starts with zero rule sets (both should_store and
// should_use default to "always", per spec.md §4.2).
func NewEngine(path string) (*Engine, error) {
	e := &Engine{path: path}
	if path != "" {
		if err := e.reloadFromDisk(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Sets returns the currently active rule sets. Callers must not mutate
// the returned slice or its elements.
func (e *Engine) Sets() []*Set {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sets
}

// ShouldStore evaluates should_store across every loaded rule set; a
// query is cacheable iff every set allows it (a rules file with multiple
// independent sets is conjunctive — each set is a distinct policy that
// must all agree to store).
func (e *Engine) ShouldStore(info QueryInfo) bool {
	sets := e.Sets()
	if len(sets) == 0 {
		return true
	}
	for _, s := range sets {
		if !s.ShouldStore(info) {
			return false
		}
	}
	return true
}

// ShouldUse evaluates should_use across every loaded rule set.
func (e *Engine) ShouldUse(session Session) bool {
	sets := e.Sets()
	if len(sets) == 0 {
		return true
	}
	for _, s := range sets {
		if !s.ShouldUse(session) {
			return false
		}
	}
	return true
}

func (e *Engine) reloadFromDisk() error {
	data, err := os.ReadFile(e.path)
	if err != nil {
		return fmt.Errorf("rules: read %s: %w", e.path, err)
	}
	sets, err := Load(data)
	if err != nil {
		// Compile failure: keep whatever was previously loaded running,
		// per spec.md §7.6.
		return err
	}
	e.mu.Lock()
	e.sets = sets
	e.mu.Unlock()

	id := uuid.NewString()
	e.reloadID.Store(id)
	log.Printf("[rules] loaded %d rule set(s) from %s (reload %s)", len(sets), e.path, id)
	return nil
}

// Reload re-reads and recompiles the rules file on demand, e.g. via the
// admin surface's reloadRules() operation. It returns the audit ID
// assigned to this reload.
func (e *Engine) Reload() (string, error) {
	if e.path == "" {
		return "", fmt.Errorf("rules: no rules file configured")
	}
	before, _ := e.reloadID.Load().(string)
	if err := e.reloadFromDisk(); err != nil {
		return before, err
	}
	id, _ := e.reloadID.Load().(string)
	return id, nil
}

// Watch starts an fsnotify watcher on the rules file and recompiles on
// every write event, grounded on hazyhaar-GoClode's internal/core/db.go
// WatchFile: a goroutine selecting on watcher.Events/watcher.Errors,
// filtering fsnotify.Write, invoking a reload callback. Call Stop to shut
// the watcher down.
func (e *Engine) Watch() error {
	if e.path == "" {
		return fmt.Errorf("rules: no rules file configured to watch")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("rules: new watcher: %w", err)
	}
	if err := w.Add(e.path); err != nil {
		w.Close()
		return fmt.Errorf("rules: watch %s: %w", e.path, err)
	}
	e.watcher = w
	e.stopCh = make(chan struct{})

	go func() {
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Write == fsnotify.Write {
					if _, err := e.Reload(); err != nil {
						log.Printf("[rules] reload after file change failed: %v", err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("[rules] watcher error: %v", err)
			case <-e.stopCh:
				return
			}
		}
	}()
	return nil
}

// Stop shuts down the file watcher, if one was started.
func (e *Engine) Stop() {
	if e.watcher == nil {
		return
	}
	close(e.stopCh)
	e.watcher.Close()
	e.watcher = nil
}
