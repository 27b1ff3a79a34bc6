package classifier

// DefaultParser is the built-in Parser implementation: regex-based table
// extraction plus the operation-code heuristics in canonical.go. It
// satisfies the Parser interface so the cache has something to exercise
// out of the box; a deployment with a real MariaDB/Postgres grammar
// plugs in its own Parser without touching Cache.
type DefaultParser struct {
	sqlMode int
	options uint32
}

// NewDefaultParser builds a DefaultParser with the given SQL-mode and
// option-mask values. A cached entry is valid only while both match the
// parser's current values (per spec.md §3's CacheEntry invariant).
func NewDefaultParser(sqlMode int, options uint32) *DefaultParser {
	return &DefaultParser{sqlMode: sqlMode, options: options}
}

func (p *DefaultParser) Canonicalize(sql string) string { return Canonicalize(sql) }

func (p *DefaultParser) Parse(canonical string) (*Result, error) {
	tables := extractTables(canonical)
	r := &Result{
		Operation: detectOperation(canonical),
		Tables:    tables,
		Databases: extractDatabases(tables),
	}
	r.sizeBytes = int64(len(canonical)) + int64(len(tables))*32
	return r, nil
}

func (p *DefaultParser) SQLMode() int    { return p.sqlMode }
func (p *DefaultParser) Options() uint32 { return p.options }

// SetSQLMode mutates the parser's reported SQL mode. Any cache entries
// keyed under the previous mode become unreachable on their next lookup
// (I3): Cache.Get rejects them and evicts.
func (p *DefaultParser) SetSQLMode(mode int) { p.sqlMode = mode }
