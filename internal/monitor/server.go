package monitor

import (
	"sync"
	"sync/atomic"
)

// Server is an addressable backend, per spec.md §3. Status is the
// authoritative per-backend role view: read without locking (an atomic
// word), written only by the owning MonitorLoop.
type Server struct {
	Name    string
	Address string
	Port    int
	Driver  string // "mysql" | "postgres"

	Weight int
	Rank   int

	DiskSpaceWarnPct     float64
	DiskSpaceCriticalPct float64

	Version string

	status atomic.Uint64
}

// NewServer builds a Server starting in the DOWN state (status 0).
func NewServer(name, address string, port int, driver string) *Server {
	return &Server{Name: name, Address: address, Port: port, Driver: driver}
}

// Status reads the server's current status bits. Safe to call from any
// goroutine.
func (s *Server) Status() Status { return Status(s.status.Load()) }

// setStatus is called only by the owning MonitorLoop: at tick-flush time,
// and once in NewLoop when a journal restores a saved status.
func (s *Server) setStatus(st Status) { s.status.Store(uint64(st)) }

// AdminRequest is an operator-requested maintenance/draining change. It is
// a request, not a direct mutation: the monitor applies it only at the
// next tick boundary so it never races with the prev/pending snapshot
// used to compute events, per spec.md §4.5.
type AdminRequest int

const (
	AdminNoChange AdminRequest = iota
	AdminMaintOn
	AdminMaintOff
	AdminDrainingOn
	AdminDrainingOff
)

// MonitorServer is the monitor-local shadow of a Server, per spec.md §3.
type MonitorServer struct {
	Server *Server // non-owning back-reference

	mu      sync.Mutex
	prev    Status
	pending Status

	ErrorCount int
	LastError  string

	adminRequest atomic.Int32 // AdminRequest, posted by admin callers

	diskSpaceCheckable bool
	diskSpaceFailures  int
}

// NewMonitorServer wraps srv for monitoring.
func NewMonitorServer(srv *Server) *MonitorServer {
	return &MonitorServer{Server: srv, diskSpaceCheckable: true}
}

// StashCurrent copies the server's current observable status into both
// prev and pending, at tick start, per spec.md §4.4.
func (ms *MonitorServer) StashCurrent() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	cur := ms.Server.Status()
	ms.prev = cur
	ms.pending = cur
}

// SetPending ORs bits into the pending (this-tick-only) status.
func (ms *MonitorServer) SetPending(bits Status) {
	ms.mu.Lock()
	ms.pending = ms.pending.Set(bits)
	ms.mu.Unlock()
}

// ClearPending clears bits from the pending status.
func (ms *MonitorServer) ClearPending(bits Status) {
	ms.mu.Lock()
	ms.pending = ms.pending.Clear(bits)
	ms.mu.Unlock()
}

// MarkDown clears the fixed DownClearBits mask from pending, per
// spec.md §4.4/§7.1.
func (ms *MonitorServer) MarkDown() {
	ms.mu.Lock()
	ms.pending = ms.pending.Clear(DownClearBits)
	ms.mu.Unlock()
}

// PendingSnapshot returns the in-progress pending status for this tick,
// after any admin request has been applied but before the probe result
// is merged in.
func (ms *MonitorServer) PendingSnapshot() Status {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.pending
}

// StatusChanged reports whether prev != pending (spec.md §4.4).
func (ms *MonitorServer) StatusChanged() bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.prev != ms.pending
}

// EventType derives the event for this tick's (prev, pending) pair. Both
// values are captured together under the lock so no partial snapshot is
// ever observed (I2).
func (ms *MonitorServer) EventType() Event {
	ms.mu.Lock()
	prev, pending := ms.prev, ms.pending
	ms.mu.Unlock()
	return GetEventType(prev, pending)
}

// Flush publishes pending as the server's new observable status, at tick
// end. Apart from NewLoop's journal restore, this is the only place
// Server.status is mutated.
func (ms *MonitorServer) Flush() {
	ms.mu.Lock()
	pending := ms.pending
	ms.mu.Unlock()
	ms.Server.setStatus(pending)
}

// RequestAdmin posts a maintenance/draining request. It takes effect at
// the next tick boundary (applyAdminRequest), never immediately, per
// spec.md §4.5.
func (ms *MonitorServer) RequestAdmin(req AdminRequest) {
	ms.adminRequest.Store(int32(req))
}

// applyAdminRequest consumes and applies any pending admin request to
// `pending`. Called once per tick, before tick() probes backends.
func (ms *MonitorServer) applyAdminRequest() {
	req := AdminRequest(ms.adminRequest.Swap(int32(AdminNoChange)))
	if req == AdminNoChange {
		return
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	switch req {
	case AdminMaintOn:
		ms.pending = ms.pending.Set(StatusMaint)
	case AdminMaintOff:
		ms.pending = ms.pending.Clear(StatusMaint)
	case AdminDrainingOn:
		ms.pending = ms.pending.Set(StatusDraining)
	case AdminDrainingOff:
		ms.pending = ms.pending.Clear(StatusDraining)
	}
}

// RecordError increments the error counter and stores the latest error
// string, per the transient-backend-error handling in spec.md §7.1. It
// returns the error counter's new value so the caller can decide whether
// connect_attempts has been exhausted.
func (ms *MonitorServer) RecordError(err error) int {
	ms.mu.Lock()
	ms.ErrorCount++
	n := ms.ErrorCount
	if err != nil {
		ms.LastError = err.Error()
	}
	ms.mu.Unlock()
	return n
}

// ResetErrors clears the error counter after a successful probe.
func (ms *MonitorServer) ResetErrors() {
	ms.mu.Lock()
	ms.ErrorCount = 0
	ms.LastError = ""
	ms.mu.Unlock()
}

// DiskSpaceCheckable reports whether disk-space probing is still enabled
// for this server (it self-disables after DiskSpaceMaxFailures).
func (ms *MonitorServer) DiskSpaceCheckable() bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.diskSpaceCheckable
}

// RecordDiskSpaceFailure increments the consecutive-failure counter and
// self-disables disk-space checking once it reaches max, per
// SPEC_FULL.md's supplemented disk-space self-disable latch.
func (ms *MonitorServer) RecordDiskSpaceFailure(max int) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.diskSpaceFailures++
	if ms.diskSpaceFailures >= max {
		ms.diskSpaceCheckable = false
	}
}

func (ms *MonitorServer) ResetDiskSpaceFailures() {
	ms.mu.Lock()
	ms.diskSpaceFailures = 0
	ms.mu.Unlock()
}
