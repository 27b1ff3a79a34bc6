package classifier

import "testing"

func TestCanonicalStability(t *testing.T) {
	// I6: canonical key is deterministic and the :P suffix distinguishes
	// a prepared statement from the same text executed directly.
	a := Canonicalize("SELECT * FROM t WHERE id = 42")
	b := Canonicalize("select   *   from t where id=42")
	if a != "select * from t where id = ?" {
		t.Fatalf("unexpected canonical form: %q", a)
	}
	if a != b {
		t.Fatalf("expected two differently-formatted statements with the same meaning to canonicalize identically, got %q vs %q", a, b)
	}
	if CanonicalKey(a, true) == CanonicalKey(a, false) {
		t.Fatalf("prepare suffix must distinguish keys")
	}
}

func TestCacheCoherence(t *testing.T) {
	// I3: insert then get returns the value while mode/options match;
	// after a mode change, the entry is evicted and reported as a miss.
	c := New(1<<20, 1)
	p := NewDefaultParser(0, 0)

	canonical := p.Canonicalize("SELECT * FROM accounts WHERE id = 1")
	key := CanonicalKey(canonical, false)

	if _, ok := c.Get(p, key); ok {
		t.Fatalf("expected miss before insert")
	}
	result, err := p.Parse(canonical)
	if err != nil {
		t.Fatal(err)
	}
	c.Insert(p, key, result)

	got, ok := c.Get(p, key)
	if !ok || got != result {
		t.Fatalf("expected cache hit returning the inserted result")
	}

	p.SetSQLMode(1)
	if _, ok := c.Get(p, key); ok {
		t.Fatalf("expected miss after SQL mode change")
	}
	if _, ok := c.Get(p, key); ok {
		t.Fatalf("expected the stale entry to remain evicted")
	}
}

func TestCacheBound(t *testing.T) {
	// I4 / S4: an entry larger than the per-thread cap is rejected; the
	// miss counter increments and a subsequent Get reports a miss.
	c := New(512*1024, 1) // one thread; its cap is 512 KiB scaled by OverheadFactor
	p := NewDefaultParser(0, 0)

	big := &Result{Operation: OpSelect}
	// Force a 1 MiB self-reported size, larger than the per-thread cap.
	big.sizeBytes = 1 << 20

	before := c.Stats().Misses
	c.Insert(p, "huge", big)
	after := c.Stats().Misses
	if after != before+1 {
		t.Fatalf("expected a miss to be recorded for an oversized insert")
	}
	if _, ok := c.Get(p, "huge"); ok {
		t.Fatalf("oversized entry must never be admitted")
	}
}

func TestCacheMaxEntrySize(t *testing.T) {
	c := New(1<<30, 1)
	p := NewDefaultParser(0, 0)
	r := &Result{Operation: OpSelect}
	r.sizeBytes = MaxEntrySize + 1
	c.Insert(p, "too-big", r)
	if _, ok := c.Get(p, "too-big"); ok {
		t.Fatalf("entry exceeding the wire-protocol max must never be admitted")
	}
}

func TestEvictionFreesRoomForNewEntries(t *testing.T) {
	c := New(0, 1) // degenerate cap forces eviction immediately
	c.maxBytes = 100
	p := NewDefaultParser(0, 0)

	for i := 0; i < 10; i++ {
		r := &Result{Operation: OpSelect}
		r.sizeBytes = 20
		c.Insert(p, key(i), r)
	}
	if c.Stats().Evictions == 0 {
		t.Fatalf("expected evictions once the cap was exceeded")
	}
	if c.Stats().Size > 100 {
		t.Fatalf("cache size must never exceed its cap, got %d", c.Stats().Size)
	}
}

func key(i int) string {
	return CanonicalKey(Canonicalize("SELECT "+string(rune('a'+i))), false)
}
