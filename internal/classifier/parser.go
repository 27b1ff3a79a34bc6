// Package classifier implements the query classifier and its per-goroutine
// parsing cache: canonicalizing SQL text, memoizing the plug-in parser's
// result, and exposing size/eviction/hit-rate statistics.
package classifier

// OperationCode is the coarse statement kind a Parser reports for a
// canonical statement. Only the values the proxy and rule engine need to
// make routing and caching decisions are modeled; any other statement
// collapses to OpOther, and OpUnknown is reported only for empty text.
type OperationCode int

const (
	OpUnknown OperationCode = iota
	OpSelect
	OpInsert
	OpUpdate
	OpDelete
	OpCreate
	OpAlter
	OpDrop
	OpBegin
	OpCommit
	OpRollback
	OpShow
	OpSet
	OpCall
	OpOther
)

// IsWrite reports whether the operation mutates backend state and must be
// routed to a server carrying the MASTER role bit.
func (o OperationCode) IsWrite() bool {
	switch o {
	case OpInsert, OpUpdate, OpDelete, OpCreate, OpAlter, OpDrop:
		return true
	default:
		return false
	}
}

// TableRef is a single table reference resolved to (database, table),
// filled in with session/query defaults per the column-resolution rules
// the rule engine also uses.
type TableRef struct {
	Database string
	Table    string
}

// ColumnRef is a single field-info triple (db, table, column), as the
// rule engine's column matching requires.
type ColumnRef struct {
	Database string
	Table    string
	Column   string
}

// Result is the classifier's opaque, immutable output for one canonical
// statement. It is shared (read-only) once cached: multiple cache entries
// across goroutines never alias the same *Result, since each goroutine
// owns its own Cache and parses independently, but the type itself carries
// no per-goroutine state so nothing here prevents it being handed to a
// read-only consumer such as the rule engine.
type Result struct {
	Operation OperationCode
	Databases []string
	Tables    []TableRef
	Columns   []ColumnRef
	KillInfo  string

	// sizeBytes is the parser's self-reported footprint, used against the
	// cache's capacity bound. It may grow after insertion if the parser
	// lazily populates field info; callers report growth via
	// Cache.UpdateTotalSize.
	sizeBytes int64
}

// SizeBytes returns the parser's self-reported size of this result.
func (r *Result) SizeBytes() int64 { return r.sizeBytes }

// Summary renders a short diagnostic string for admin snapshots.
func (r *Result) Summary() string {
	switch r.Operation {
	case OpSelect:
		return "SELECT"
	case OpInsert:
		return "INSERT"
	case OpUpdate:
		return "UPDATE"
	case OpDelete:
		return "DELETE"
	case OpBegin:
		return "BEGIN"
	case OpCommit:
		return "COMMIT"
	case OpRollback:
		return "ROLLBACK"
	default:
		return "OTHER"
	}
}

// Parser is the pluggable classifier backend. A Cache never parses SQL
// itself; it asks a Parser to canonicalize and classify, and stores
// whatever the Parser hands back.
//
// The production Parser wraps a real SQL grammar; Cache is indifferent to
// the concrete implementation, matching spec.md §6's parser plug-in
// interface: parse-to-result, canonical-text extraction, field/table/
// database-name extraction, operation-code extraction, SQL-mode
// accessors.
type Parser interface {
	// Canonicalize reduces sql to its canonical form: literals replaced by
	// placeholders, whitespace collapsed. Used as the cache key.
	Canonicalize(sql string) string
	// Parse classifies an already-canonicalized statement.
	Parse(canonical string) (*Result, error)
	// SQLMode and Options identify the parser's current dialect/option
	// state; a cached entry is only valid while both match the values the
	// entry was inserted under.
	SQLMode() int
	Options() uint32
}
