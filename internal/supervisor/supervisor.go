// Package supervisor implements the Supervisor: it loads
// configuration, starts/reconfigures/stops Source Workers in response
// to reload/quit events, and runs the Dispatcher to completion.
//
// Grounded on original_source/pylogchop/__init__.py's PyLogChop class
// (_run/_reload/_quit/_worker_start/_worker_reload/_worker_stop).
package supervisor

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/schlitzer/pylogchop/internal/config"
	"github.com/schlitzer/pylogchop/internal/dispatcher"
	"github.com/schlitzer/pylogchop/internal/queue"
	"github.com/schlitzer/pylogchop/internal/worker"
	"github.com/schlitzer/pylogchop/pkg/types"
)

// State is the Supervisor's lifecycle state, per spec §4.6.
type State int

const (
	Loading State = iota
	Running
	Reloading
	Draining
	Stopped
)

// Supervisor owns the shared queue, the Dispatcher and every running
// Source Worker, keyed by their `<path>:source` section name.
type Supervisor struct {
	cfgPath string
	log     *zap.SugaredLogger

	mu      sync.Mutex
	state   State
	workers map[string]*worker.Worker

	q    *queue.Queue
	disp *dispatcher.Dispatcher

	// onWorkersChanged, if set, is invoked (outside the lock) after the
	// initial start, after every reload and after every Dispatcher step
	// — the Diagnostics Server's source of truth.
	onWorkersChanged func()
}

// New creates a Supervisor for the given config path. log is the
// already-built application logger (see internal/applog).
func New(cfgPath string, log *zap.SugaredLogger) *Supervisor {
	q := queue.New()
	return &Supervisor{
		cfgPath: cfgPath,
		log:     log,
		workers: make(map[string]*worker.Worker),
		q:       q,
		disp:    dispatcher.New(q, log),
		state:   Loading,
	}
}

// OnWorkersChanged registers the Diagnostics Server's change callback.
func (s *Supervisor) OnWorkersChanged(fn func()) {
	s.onWorkersChanged = fn
}

// QueueDepth reports the shared queue's current length, for diagnostics.
func (s *Supervisor) QueueDepth() int { return s.q.Len() }

// Dispatcher exposes the Dispatcher for diagnostics subscription.
func (s *Supervisor) Dispatcher() *dispatcher.Dispatcher { return s.disp }

// Snapshot is a read-only view of one running worker, for diagnostics.
type Snapshot struct {
	Section         string
	FilePath        string
	MessagesEmitted int64
}

// Snapshots returns a point-in-time view of every running worker.
func (s *Supervisor) Snapshots() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Snapshot, 0, len(s.workers))
	for section, w := range s.workers {
		out = append(out, Snapshot{
			Section:         section,
			FilePath:        w.FilePath(),
			MessagesEmitted: w.MessagesEmitted(),
		})
	}
	return out
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start performs the initial load: validates [main], starts every
// valid `:source` section as a worker, and transitions Loading→Running.
// A [main] validation failure is fatal, per spec §7, and is returned
// to the caller to exit(1) on.
func (s *Supervisor) Start() error {
	doc, err := config.Load(s.cfgPath)
	if err != nil {
		return fmt.Errorf("supervisor: load config: %w", err)
	}
	if _, err := doc.Main(); err != nil {
		return fmt.Errorf("supervisor: main section: %w", err)
	}

	s.mu.Lock()
	for _, section := range doc.SourceSectionNames() {
		s.startWorkerLocked(doc, section)
	}
	s.state = Running
	s.mu.Unlock()
	s.notifyChanged()
	return nil
}

// Reload re-reads the config file and applies the add/keep/remove
// rules from spec §4.6: sections present and running are
// live-reconfigured (or restarted if encoding changed); sections
// present and not running are started; sections running but no
// longer present are stopped and joined. A broken `:source` section
// is skipped with an error — it never disturbs a running worker.
func (s *Supervisor) Reload() {
	s.mu.Lock()
	s.state = Reloading
	s.mu.Unlock()

	doc, err := config.Load(s.cfgPath)
	if err != nil {
		s.log.Errorw("supervisor: reload: could not read config, keeping running workers", "error", err)
		s.mu.Lock()
		s.state = Running
		s.mu.Unlock()
		return
	}

	present := make(map[string]bool)
	s.mu.Lock()
	for _, section := range doc.SourceSectionNames() {
		present[section] = true
		if w, ok := s.workers[section]; ok {
			s.reconfigureWorkerLocked(doc, section, w)
		} else {
			s.startWorkerLocked(doc, section)
		}
	}

	var toStop []string
	for section := range s.workers {
		if !present[section] {
			toStop = append(toStop, section)
		}
	}
	for _, section := range toStop {
		w := s.workers[section]
		delete(s.workers, section)
		s.mu.Unlock()
		w.Terminate()
		w.Join()
		s.mu.Lock()
	}
	s.state = Running
	s.mu.Unlock()
	s.notifyChanged()
}

// startWorkerLocked validates section's config and starts a new
// Worker for it. Must be called with s.mu held.
func (s *Supervisor) startWorkerLocked(doc *config.Document, section string) {
	cfg, err := doc.SourceConfig(section)
	if err != nil {
		s.log.Errorw("supervisor: skipping broken source section", "section", section, "error", err)
		return
	}
	w, err := worker.New(cfg, s.q, s.log)
	if err != nil {
		s.log.Errorw("supervisor: worker failed validation, not starting", "section", section, "error", err)
		return
	}
	w.Start()
	s.workers[section] = w
	s.log.Infow("supervisor: worker started", "section", section)
}

// reconfigureWorkerLocked applies new config to a running worker, or
// restarts it if the encoding changed (the one field the spec marks
// not live-mutable). Must be called with s.mu held.
func (s *Supervisor) reconfigureWorkerLocked(doc *config.Document, section string, w *worker.Worker) {
	cfg, err := doc.SourceConfig(section)
	if err != nil {
		s.log.Errorw("supervisor: skipping broken source section on reload", "section", section, "error", err)
		return
	}
	if !w.EncodingUnchanged(cfg) {
		s.log.Infow("supervisor: encoding changed, restarting worker", "section", section)
		delete(s.workers, section)
		s.mu.Unlock()
		w.Terminate()
		w.Join()
		s.mu.Lock()
		s.startWorkerLocked(doc, section)
		return
	}
	w.Reconfigure(cfg)
	s.log.Infow("supervisor: worker reconfigured", "section", section)
}

// Run drives the Dispatcher until quit is closed. It is meant to run
// in the process's main goroutine.
func (s *Supervisor) Run(quit <-chan struct{}) {
	for {
		select {
		case <-quit:
			s.drainAndStop()
			return
		default:
			s.disp.Step()
			s.notifyChanged()
		}
	}
}

// drainAndStop implements the Draining→Stopped transition: terminate
// every worker, join them all, then drain the queue to empty.
func (s *Supervisor) drainAndStop() {
	s.mu.Lock()
	s.state = Draining
	workers := make([]*worker.Worker, 0, len(s.workers))
	for _, w := range s.workers {
		workers = append(workers, w)
	}
	s.mu.Unlock()

	for _, w := range workers {
		w.Terminate()
	}
	for _, w := range workers {
		w.Join()
	}
	s.disp.Drain()

	s.mu.Lock()
	s.state = Stopped
	s.mu.Unlock()
}

func (s *Supervisor) notifyChanged() {
	if s.onWorkersChanged != nil {
		s.onWorkersChanged()
	}
}

// QueueMessageType is re-exported so callers building the Diagnostics
// Server do not need to import pkg/types directly for this one type.
type QueueMessageType = types.QueueMessage
