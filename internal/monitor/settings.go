package monitor

import "time"

// EventMask restricts which derived events are allowed to trigger the
// notification script, per spec.md §4.5's "events" setting.
type EventMask map[Event]bool

// NewEventMask builds a mask from an explicit event list. A nil/empty
// list means "every event", mirroring the default "all" setting.
func NewEventMask(events ...Event) EventMask {
	if len(events) == 0 {
		return nil
	}
	m := make(EventMask, len(events))
	for _, e := range events {
		m[e] = true
	}
	return m
}

// Allows reports whether e should fire the script. A nil mask allows
// everything.
func (m EventMask) Allows(e Event) bool {
	if m == nil {
		return true
	}
	return m[e]
}

// Settings configures one MonitorLoop, per spec.md §4.4/§4.5 and the
// supplemented disk-space latch from SPEC_FULL.md.
type Settings struct {
	TickInterval time.Duration

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	ConnectRetries int

	Script        string
	ScriptTimeout time.Duration
	Events        EventMask

	JournalPath    string
	JournalMaxAge  time.Duration

	DiskSpaceCheckInterval time.Duration
	DiskSpaceMaxFailures   int
}

// DefaultSettings returns the monitor defaults, grounded on
// original_source/include/maxscale/monitor.hh's documented defaults and
// SPEC_FULL.md's supplemented disk-space self-disable latch (default 3
// consecutive failures).
func DefaultSettings() Settings {
	return Settings{
		TickInterval:           2 * time.Second,
		ConnectTimeout:         3 * time.Second,
		ReadTimeout:            3 * time.Second,
		WriteTimeout:           3 * time.Second,
		ConnectRetries:         1,
		ScriptTimeout:          90 * time.Second,
		JournalMaxAge:          28800 * time.Second,
		DiskSpaceCheckInterval: 0, // not read by Loop: it runs no disk-space probe
		DiskSpaceMaxFailures:   3,
	}
}
