package monitor

// Event is a named transition produced when a server's role bits change,
// per spec.md §3 glossary. Values mirror
// original_source/include/maxscale/monitor.hh's mxs_monitor_event_t; the
// DONOR_* variants are omitted since spec.md's Role bits glossary (§
// GLOSSARY) names only MASTER, SLAVE, RELAY, JOINED, BLR,
// SLAVE_OF_EXT_MASTER — Galera donor/joiner states are out of scope here.
type Event int

const (
	EventUndefined Event = iota
	EventMasterDown
	EventMasterUp
	EventSlaveDown
	EventSlaveUp
	EventServerDown
	EventServerUp
	EventSyncedDown
	EventSyncedUp
	EventRelayDown
	EventRelayUp
	EventBLRDown
	EventBLRUp
	EventLostMaster
	EventLostSlave
	EventLostSynced
	EventLostRelay
	EventLostBLR
	EventNewMaster
	EventNewSlave
	EventNewSynced
	EventNewRelay
	EventNewBLR
)

func (e Event) String() string {
	switch e {
	case EventMasterDown:
		return "master_down"
	case EventMasterUp:
		return "master_up"
	case EventSlaveDown:
		return "slave_down"
	case EventSlaveUp:
		return "slave_up"
	case EventServerDown:
		return "server_down"
	case EventServerUp:
		return "server_up"
	case EventSyncedDown:
		return "synced_down"
	case EventSyncedUp:
		return "synced_up"
	case EventRelayDown:
		return "relay_down"
	case EventRelayUp:
		return "relay_up"
	case EventBLRDown:
		return "blr_down"
	case EventBLRUp:
		return "blr_up"
	case EventLostMaster:
		return "lost_master"
	case EventLostSlave:
		return "lost_slave"
	case EventLostSynced:
		return "lost_synced"
	case EventLostRelay:
		return "lost_relay"
	case EventLostBLR:
		return "lost_blr"
	case EventNewMaster:
		return "new_master"
	case EventNewSlave:
		return "new_slave"
	case EventNewSynced:
		return "new_synced"
	case EventNewRelay:
		return "new_relay"
	case EventNewBLR:
		return "new_blr"
	default:
		return "undefined"
	}
}

// eventCase is one row of the verbatim case table generated from
// original_source's test_monitor_cases.hh (event_table_gen.go).
type eventCase struct {
	prev    Status
	pending Status
	event   Event
}

// coreMask keeps only the bits the case table was built against: RUNNING
// plus the five role bits. Administrative (MAINT, DRAINING) and other
// diagnostic bits (AUTH_ERROR, DISK_SPACE_EXHAUSTED) never appear in the
// source's case table and do not participate in event derivation.
const coreMask = StatusRunning | StatusMaster | StatusSlave | StatusJoined | StatusRelay | StatusBLR

var eventLookup map[[2]Status]Event

func init() {
	eventLookup = make(map[[2]Status]Event, len(eventCaseTable))
	for _, c := range eventCaseTable {
		eventLookup[[2]Status{c.prev, c.pending}] = c.event
	}
}

// GetEventType is a deterministic function of (prev, pending), per
// spec.md §4.4/I1: it looks up the verbatim case table reproduced from
// original_source, masking off bits the table was never built against. A
// (prev, pending) pair absent from the table (including prev == pending)
// produces EventUndefined — no event.
func GetEventType(prev, pending Status) Event {
	key := [2]Status{prev & coreMask, pending & coreMask}
	if ev, ok := eventLookup[key]; ok {
		return ev
	}
	return EventUndefined
}

// dominantRole returns the highest-priority role bit present in s, or 0
// if none. Exposed for diagnostics; GetEventType itself never calls this
// — it is a pure table lookup, not a re-derivation, per spec.md §9's
// instruction that the event table is verbatim, not reconstructible from
// a simpler rule.
func dominantRole(s Status) Status {
	for _, b := range roleBitsPriority {
		if s.Has(b) {
			return b
		}
	}
	return 0
}
