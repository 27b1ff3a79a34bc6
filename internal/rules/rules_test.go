package rules

import "testing"

func TestShouldStoreDatabaseRule(t *testing.T) {
	// S2: {"store":[{"attribute":"database","op":"=","value":"sales"}]}
	sets, err := Load([]byte(`{"store":[{"attribute":"database","op":"=","value":"sales"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	set := sets[0]

	if !set.ShouldStore(QueryInfo{DefaultDB: "sales", RawSQL: "SELECT 1"}) {
		t.Fatalf("expected should_store(sales, SELECT 1) = true")
	}
	if set.ShouldStore(QueryInfo{DefaultDB: "hr", RawSQL: "SELECT 1"}) {
		t.Fatalf("expected should_store(hr, SELECT 1) = false")
	}
	if !set.ShouldStore(QueryInfo{RawSQL: "SELECT * FROM sales.orders", Databases: []string{"sales"}}) {
		t.Fatalf("expected should_store(null, SELECT * FROM sales.orders) = true")
	}
}

func TestShouldUseUserRule(t *testing.T) {
	// S3: {"use":[{"attribute":"user","op":"=","value":"alice@%"}]}
	sets, err := Load([]byte(`{"use":[{"attribute":"user","op":"=","value":"alice@%"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	set := sets[0]

	if !set.ShouldUse(Session{User: "alice", Host: "10.0.0.1"}) {
		t.Fatalf("expected alice@10.0.0.1 to match alice@%%")
	}
	if set.ShouldUse(Session{User: "bob", Host: "10.0.0.1"}) {
		t.Fatalf("expected bob@10.0.0.1 not to match alice@%%")
	}
}

func TestIdempotence(t *testing.T) {
	// I5: repeated calls with the same inputs return the same value.
	sets, err := Load([]byte(`{"store":[{"attribute":"table","op":"=","value":"orders"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	set := sets[0]
	info := QueryInfo{RawSQL: "SELECT * FROM orders", Tables: []TableRef{{Table: "orders"}}}
	first := set.ShouldStore(info)
	for i := 0; i < 5; i++ {
		if set.ShouldStore(info) != first {
			t.Fatalf("ShouldStore is not idempotent across repeated calls")
		}
	}
}

func TestColumnResolutionSingleTableDefault(t *testing.T) {
	sets, err := Load([]byte(`{"store":[{"attribute":"column","op":"=","value":"id"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	set := sets[0]
	info := QueryInfo{
		Tables:  []TableRef{{Table: "orders"}},
		Columns: []ColumnRef{{Column: "id"}},
	}
	if !set.ShouldStore(info) {
		t.Fatalf("expected unqualified column to inherit the sole table and match")
	}
}

func TestWildcardColumnMatchesAny(t *testing.T) {
	sets, err := Load([]byte(`{"store":[{"attribute":"column","op":"=","value":"*"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	set := sets[0]
	info := QueryInfo{Columns: []ColumnRef{{Column: "anything"}}}
	if !set.ShouldStore(info) {
		t.Fatalf("expected wildcard column literal to match any column")
	}
}

func TestCompileErrorOnBadAttribute(t *testing.T) {
	_, err := Load([]byte(`{"store":[{"attribute":"bogus","op":"=","value":"x"}]}`))
	if err == nil {
		t.Fatalf("expected a compile error for an unknown attribute")
	}
}

func TestCompileErrorTooManyDots(t *testing.T) {
	_, err := Load([]byte(`{"store":[{"attribute":"database","op":"=","value":"a.b"}]}`))
	if err == nil {
		t.Fatalf("expected a compile error for a database value containing '.'")
	}
}

func TestArrayOfRuleSets(t *testing.T) {
	sets, err := Load([]byte(`[{"store":[{"attribute":"database","op":"=","value":"sales"}]},{"use":[{"attribute":"user","op":"=","value":"alice@%"}]}]`))
	if err != nil {
		t.Fatal(err)
	}
	if len(sets) != 2 {
		t.Fatalf("expected 2 rule sets, got %d", len(sets))
	}
}

func TestEmptyChainsAlwaysAllow(t *testing.T) {
	set := &Set{}
	if !set.ShouldStore(QueryInfo{}) {
		t.Fatalf("empty store chain must always store")
	}
	if !set.ShouldUse(Session{}) {
		t.Fatalf("empty use chain must always allow use")
	}
}
