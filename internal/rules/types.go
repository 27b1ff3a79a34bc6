// Package rules implements the cache-filter rule engine: a two-phase
// (store/use) rule matcher driven by a JSON-configured rule tree with
// attribute/operator/value triples and regex or literal comparison.
// Grounded on spec.md §4.2 and original_source/server/modules/filter/cache/rules.cc
// for the column-resolution and wildcard-user-to-regex details spec.md
// leaves abridged.
package rules

import "regexp"

// Attribute is the kind of thing a rule compares against.
type Attribute string

const (
	AttrColumn   Attribute = "column"
	AttrDatabase Attribute = "database"
	AttrQuery    Attribute = "query"
	AttrTable    Attribute = "table"
	AttrUser     Attribute = "user"
)

// Operator is the comparison a rule applies.
type Operator string

const (
	OpEQ     Operator = "="
	OpNEQ    Operator = "!="
	OpLIKE   Operator = "like"
	OpUNLIKE Operator = "unlike"
)

func normalizeOperator(raw string) (Operator, error) {
	switch raw {
	case "=", "eq", "EQ":
		return OpEQ, nil
	case "!=", "neq", "NEQ", "<>":
		return OpNEQ, nil
	case "like", "LIKE":
		return OpLIKE, nil
	case "unlike", "UNLIKE":
		return OpUNLIKE, nil
	default:
		return "", &CompileError{Reason: "unknown operator " + raw}
	}
}

// negated reports whether op flips the underlying comparator's result.
func (op Operator) negated() bool { return op == OpNEQ || op == OpUNLIKE }

// isRegex reports whether op compares via a compiled regex.
func (op Operator) isRegex() bool { return op == OpLIKE || op == OpUNLIKE }

// Rule is a single compiled rule node, spec.md §3's CacheRule. Rules form
// a flat ordered slice rather than the source's next-pointer chain (an
// owned ordered sequence is the idiomatic Go equivalent spec.md §9 asks
// for); traversal is still linear.
type Rule struct {
	Attribute Attribute
	Operator  Operator
	Literal   string
	Regex     *regexp.Regexp

	// Decomposition of a dotted literal value for column/database/table
	// attributes, e.g. "sales.orders.id" -> Database="sales",
	// Table="orders", Column="id".
	Database string
	Table    string
	Column   string
}

// CompileError reports why a rule document failed to compile. Rule
// compilation never partially installs a rule set: Load returns an error
// and the caller keeps whatever rule sets were previously active, per
// spec.md §7.6.
type CompileError struct {
	Reason string
}

func (e *CompileError) Error() string { return "rules: " + e.Reason }

// Set owns the two chains spec.md §3 describes: store-rules decide
// whether to cache a result; use-rules decide whether a session may read
// from the cache.
type Set struct {
	Store []Rule
	Use   []Rule
}

// TableRef and ColumnRef mirror classifier.TableRef/ColumnRef without
// importing the classifier package, keeping rules independent and
// testable on its own; the proxy package adapts between the two.
type TableRef struct {
	Database string
	Table    string
}

type ColumnRef struct {
	Database string
	Table    string
	Column   string
}

// QueryInfo is everything a rule needs to evaluate should_store against
// one statement.
type QueryInfo struct {
	DefaultDB string
	RawSQL    string
	Databases []string
	Tables    []TableRef
	Columns   []ColumnRef
}

// Session is everything a rule needs to evaluate should_use.
type Session struct {
	User string
	Host string
}

func (s Session) composite() string { return s.User + "@" + s.Host }
