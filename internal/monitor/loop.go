package monitor

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/lordbasex/maxproxy/internal/extcmd"
)

// Prober probes one backend and reports the role/status bits it
// currently exhibits (sans RUNNING, which the loop sets on success).
// Implementations live outside this package (mysql/postgres specific
// "SHOW SLAVE STATUS" style probes); the loop only needs this interface,
// grounded on the teacher's Handler-as-injected-dependency pattern in
// server/server.go.
type Prober interface {
	Probe(ctx context.Context, srv *Server) (Status, error)
}

// Loop drives one cluster's MonitorServer set: start/tick/stop, modeled
// on the teacher's WorkerPool (context+cancel+WaitGroup shutdown,
// server/worker_pool.go) generalized from a message-processing pool to a
// periodic-tick probe loop.
type Loop struct {
	servers  []*MonitorServer
	prober   Prober
	settings Settings
	metrics  *Metrics

	breakers map[string]*gobreaker.CircuitBreaker

	events *EventLog

	script *extcmd.Cmd

	lastJournalHash string

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewLoop builds a Loop. settings.Script, if non-empty, is compiled via
// extcmd.Create eagerly so a malformed command line is caught at
// construction rather than at the first event.
func NewLoop(servers []*MonitorServer, prober Prober, settings Settings, metrics *Metrics) (*Loop, error) {
	l := &Loop{
		servers:  servers,
		prober:   prober,
		settings: settings,
		metrics:  metrics,
		breakers: make(map[string]*gobreaker.CircuitBreaker, len(servers)),
		events:   NewEventLog(50),
	}
	for _, ms := range servers {
		name := ms.Server.Name
		l.breakers[name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    0,
			Timeout:     settings.TickInterval * 5,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		})
	}
	if settings.Script != "" {
		cmd, err := extcmd.Create(settings.Script, settings.ScriptTimeout)
		if err != nil {
			return nil, fmt.Errorf("monitor: compiling script: %w", err)
		}
		l.script = cmd
	}
	if settings.JournalPath != "" {
		if saved, err := ReadJournal(settings.JournalPath, settings.JournalMaxAge); err == nil {
			for _, ms := range servers {
				if st, ok := saved[ms.Server.Name]; ok {
					ms.Server.setStatus(st)
				}
			}
			// Prime the skip-rewrite hash with the state just restored so
			// the first tick doesn't rewrite an unchanged journal.
			l.lastJournalHash = ContentHash(servers)
		} else {
			log.Printf("[monitor] journal load: %v", err)
		}
	}
	return l, nil
}

// Start begins the tick loop in a background goroutine.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())
	l.started = true
	l.wg.Add(1)
	go l.run()
}

// Stop cancels the loop and waits for the current tick to finish.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.started {
		l.mu.Unlock()
		return
	}
	l.cancel()
	l.mu.Unlock()
	l.wg.Wait()
}

func (l *Loop) run() {
	defer l.wg.Done()
	ticker := time.NewTicker(l.settings.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			l.tick()
		}
	}
}

// tick runs exactly once per interval: stash current status as prev,
// apply pending admin requests, probe every server, derive and dispatch
// events, then flush pending back to the live Server. Per I2, every
// server's (prev, pending) pair is fully resolved before any event for
// that server is derived or published, so a concurrent admin-surface
// reader never observes a half-updated tick.
func (l *Loop) tick() {
	start := time.Now()
	for _, ms := range l.servers {
		ms.StashCurrent()
		ms.applyAdminRequest()
		l.probeOne(ms)
		ev := ms.EventType()
		if ev != EventUndefined {
			l.dispatch(ms, ev)
		}
		ms.Flush()
		if l.metrics != nil {
			l.metrics.ObserveStatus(ms.Server.Name, ms.Server.Status())
		}
	}
	if l.metrics != nil {
		l.metrics.TickDuration.Observe(time.Since(start).Seconds())
	}
	if l.settings.JournalPath != "" {
		if hash := ContentHash(l.servers); hash == "" || hash != l.lastJournalHash {
			if err := WriteJournal(l.settings.JournalPath, l.servers); err != nil {
				log.Printf("[monitor] journal write: %v", err)
			} else {
				l.lastJournalHash = hash
			}
		}
	}
}

// probeOne probes a single server. A server under maintenance is still
// probed for reachability so it is reflected as running again the
// moment it recovers, but role bits are masked out below while MAINT is
// set, per spec.md §4.5.
//
// A transient failure does not flip status bits on its own: per spec.md
// §7.1 and §4.4's ping_or_connect, the DOWN transition is only derived
// once connect_attempts has been exhausted. Until then the error counter
// increments and pending status is left untouched, so prior role bits
// carry over tick to tick while retries are still outstanding.
func (l *Loop) probeOne(ms *MonitorServer) {
	ctx, cancel := context.WithTimeout(context.Background(), l.settings.ConnectTimeout)
	defer cancel()

	breaker := l.breakers[ms.Server.Name]
	result, err := breaker.Execute(func() (interface{}, error) {
		return l.prober.Probe(ctx, ms.Server)
	})
	if err != nil {
		attempts := l.settings.ConnectRetries
		if attempts < 1 {
			attempts = 1
		}
		if n := ms.RecordError(err); n >= attempts {
			ms.MarkDown()
		}
		return
	}
	ms.ResetErrors()
	st, _ := result.(Status)
	admin := ms.PendingSnapshot() & (StatusMaint | StatusDraining)
	if admin.Has(StatusMaint) {
		st = 0
	}
	// Replace the previous tick's role bits outright rather than OR-ing:
	// a server that lost MASTER must not keep showing it just because it
	// was set going into this tick.
	ms.ClearPending(roleMask | StatusRunning | StatusAuthError)
	ms.SetPending(StatusRunning | st | admin)
}

// roleMask covers every bit probeOne is responsible for re-deriving each
// tick (role + diagnostic bits, excluding the admin-owned MAINT/DRAINING
// pair).
const roleMask = StatusMaster | StatusSlave | StatusSlaveOfExtMaster | StatusRelay | StatusJoined | StatusBLR | StatusDiskSpaceExhausted

// dispatch fires the external notification script, substituting the
// documented variables, per spec.md §4.5 and
// original_source/server/core/monitor.cc's script-variable substitution.
func (l *Loop) dispatch(ms *MonitorServer, ev Event) {
	if l.metrics != nil {
		l.metrics.ObserveEvent(ms.Server.Name, ev)
	}
	l.events.Append(EventRecord{Server: ms.Server.Name, Event: ev, At: time.Now()})
	if l.script == nil || !l.settings.Events.Allows(ev) {
		return
	}
	l.script.ResetSubstituted()
	l.script.SubstituteArg("$INITIATOR", ms.Server.Name)
	l.script.SubstituteArg("$EVENT", ev.String())
	l.script.SubstituteArg("$LIST", l.serverList())
	l.script.SubstituteArg("$NODELIST{master}", l.serverListByStatus(StatusMaster))
	l.script.SubstituteArg("$NODELIST{slave}", l.serverListByStatus(StatusSlave))
	l.script.SubstituteArg("$PARENT", "")
	l.script.SubstituteArg("$CHILDREN", "")

	res, err := l.script.Execute()
	if err == nil && (res.ExitCode != 0 || res.Signaled) {
		err = fmt.Errorf("exited with code %d (signaled=%v, timed_out=%v)", res.ExitCode, res.Signaled, res.TimedOut)
	}
	if err != nil {
		if l.metrics != nil {
			l.metrics.ScriptErrors.Inc()
		}
		log.Printf("[monitor] notification script failed for event %s on %s: %v", ev, ms.Server.Name, err)
	}
}

// RecentEvents returns up to n of this cluster's most recently dispatched
// events, newest first, for the admin snapshot.
func (l *Loop) RecentEvents(n int) []EventRecord {
	return l.events.Recent(n)
}

func (l *Loop) serverList() string {
	names := make([]string, 0, len(l.servers))
	for _, ms := range l.servers {
		names = append(names, ms.Server.Name)
	}
	return strings.Join(names, ",")
}

func (l *Loop) serverListByStatus(bit Status) string {
	names := make([]string, 0, len(l.servers))
	for _, ms := range l.servers {
		if ms.Server.Status().Has(bit) {
			names = append(names, ms.Server.Name)
		}
	}
	return strings.Join(names, ",")
}
