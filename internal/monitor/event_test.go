package monitor

import "testing"

func TestGetEventTypeBasicTransitions(t *testing.T) {
	cases := []struct {
		name    string
		prev    Status
		pending Status
		want    Event
	}{
		{"server comes up", 0, bitRunning, EventServerUp},
		{"master comes up", 0, bitRunning | bitMaster, EventMasterUp},
		{"master goes down", bitRunning | bitMaster, 0, EventMasterDown},
		{"slave comes up", 0, bitRunning | bitSlave, EventSlaveUp},
		{"slave goes down", bitRunning | bitSlave, 0, EventSlaveDown},
		{"server goes down", bitRunning, 0, EventServerDown},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := GetEventType(c.prev, c.pending); got != c.want {
				t.Fatalf("GetEventType(%v, %v) = %v, want %v", c.prev, c.pending, got, c.want)
			}
		})
	}
}

// TestGetEventTypeLostMasterAnomaly locks in a non-obvious case found in
// the verbatim table: a master that picks up the JOINED bit while MASTER
// is still set produces lost_master, not a "still master" non-event. This
// cannot be derived from a simple highest-priority-role comparison since
// the MASTER bit is present in both prev and pending — it must come from
// the table itself.
func TestGetEventTypeLostMasterAnomaly(t *testing.T) {
	prev := bitRunning | bitMaster
	pending := bitRunning | bitMaster | bitJoined
	if got := GetEventType(prev, pending); got != EventLostMaster {
		t.Fatalf("GetEventType(%v, %v) = %v, want EventLostMaster", prev, pending, got)
	}
}

func TestGetEventTypeUnknownPairIsUndefined(t *testing.T) {
	// prev == pending never appears in the case table: no transition, no
	// event.
	if got := GetEventType(bitRunning|bitMaster, bitRunning|bitMaster); got != EventUndefined {
		t.Fatalf("expected EventUndefined for a no-op transition, got %v", got)
	}
}

func TestGetEventTypeIgnoresAdminBits(t *testing.T) {
	// MAINT/DRAINING must never change the derived event: coreMask strips
	// them before lookup.
	a := GetEventType(bitRunning, 0)
	b := GetEventType(bitRunning|bitMaint, bitMaint)
	if a != b {
		t.Fatalf("admin bits changed the derived event: %v vs %v", a, b)
	}
}

func TestEventCaseTableLoaded(t *testing.T) {
	if len(eventCaseTable) == 0 {
		t.Fatalf("eventCaseTable is empty: generated table failed to load")
	}
	if len(eventLookup) != len(eventCaseTable) {
		t.Fatalf("eventLookup has %d entries, want %d (duplicate keys in the generated table?)", len(eventLookup), len(eventCaseTable))
	}
}
