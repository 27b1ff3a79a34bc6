package monitor

import "testing"

func TestEventLogRecentNewestFirst(t *testing.T) {
	l := NewEventLog(3)
	l.Append(EventRecord{Server: "a", Event: EventMasterDown})
	l.Append(EventRecord{Server: "b", Event: EventMasterUp})
	l.Append(EventRecord{Server: "c", Event: EventSlaveDown})

	got := l.Recent(2)
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Server != "c" || got[1].Server != "b" {
		t.Fatalf("expected newest-first order [c b], got [%s %s]", got[0].Server, got[1].Server)
	}
}

func TestEventLogEvictsOldestOnOverflow(t *testing.T) {
	l := NewEventLog(2)
	l.Append(EventRecord{Server: "a"})
	l.Append(EventRecord{Server: "b"})
	l.Append(EventRecord{Server: "c"})

	got := l.Recent(10)
	if len(got) != 2 {
		t.Fatalf("expected capacity to cap at 2, got %d", len(got))
	}
	if got[0].Server != "c" || got[1].Server != "b" {
		t.Fatalf("expected [c b] after eviction, got [%s %s]", got[0].Server, got[1].Server)
	}
}

func TestEventLogRecentZeroWhenEmpty(t *testing.T) {
	l := NewEventLog(5)
	if got := l.Recent(5); len(got) != 0 {
		t.Fatalf("expected no records, got %d", len(got))
	}
}
