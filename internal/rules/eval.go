package rules

import "strings"

// ShouldStore reports whether info should be stored in the result cache,
// per spec.md §4.2: an empty store chain always stores; otherwise the
// result is the OR of every rule in the chain.
func (s *Set) ShouldStore(info QueryInfo) bool {
	if len(s.Store) == 0 {
		return true
	}
	for _, r := range s.Store {
		if matchStoreRule(r, info) {
			return true
		}
	}
	return false
}

// ShouldUse reports whether session may read from the result cache, per
// spec.md §4.2: an empty use chain always allows use; otherwise the
// result is the OR of every user rule.
func (s *Set) ShouldUse(session Session) bool {
	if len(s.Use) == 0 {
		return true
	}
	for _, r := range s.Use {
		if matchUserRule(r, session) {
			return true
		}
	}
	return false
}

func matchStoreRule(r Rule, info QueryInfo) bool {
	var result bool
	switch r.Attribute {
	case AttrDatabase:
		result = matchDatabase(r, info)
	case AttrTable:
		result = matchTable(r, info)
	case AttrColumn:
		result = matchColumn(r, info)
	case AttrQuery:
		result = matchLiteralOrRegex(r, info.RawSQL)
	}
	if r.Operator.negated() {
		return !result
	}
	return result
}

func matchUserRule(r Rule, session Session) bool {
	result := matchLiteralOrRegex(r, session.composite())
	if r.Operator.negated() {
		return !result
	}
	return result
}

// matchDatabase compares r against every distinct database mentioned in
// the statement, or the session default if none is mentioned.
func matchDatabase(r Rule, info QueryInfo) bool {
	dbs := info.Databases
	if len(dbs) == 0 && info.DefaultDB != "" {
		dbs = []string{info.DefaultDB}
	}
	for _, db := range dbs {
		if compareLiteralOrRegex(r, db) {
			return true
		}
	}
	return false
}

// matchTable compares r against every table reference, filling in the
// session default database where the reference has none.
func matchTable(r Rule, info QueryInfo) bool {
	if len(info.Tables) == 0 {
		// An empty table list with UNLIKE matches, per spec.md §4.2: the
		// comparison is false here and matchStoreRule negates it.
		return false
	}
	for _, t := range info.Tables {
		db := t.Database
		if db == "" {
			db = info.DefaultDB
		}
		candidate := t.Table
		if db != "" {
			candidate = db + "." + t.Table
		}
		if compareLiteralOrRegex(r, candidate) {
			return true
		}
		// Also allow a rule compiled from a bare table name (no database
		// component) to match the table part alone.
		if r.Database == "" && r.Regex == nil && compareLiteral(r.Literal, t.Table) {
			return true
		}
	}
	return false
}

// matchColumn collects field-info triples, resolves defaults per the
// Column Resolution rules in spec.md §4.2, and compares.
func matchColumn(r Rule, info QueryInfo) bool {
	columns := resolveColumns(info)
	for _, c := range columns {
		if r.Column == "*" {
			if r.Database != "" && r.Database != c.Database {
				continue
			}
			if r.Table != "" && r.Table != c.Table {
				continue
			}
			return true
		}
		if r.Regex != nil {
			candidate := qualifiedColumn(c)
			if compareLiteralOrRegex(r, candidate) {
				return true
			}
			continue
		}
		if r.Column != "" && r.Column != c.Column {
			continue
		}
		if r.Table != "" && r.Table != c.Table {
			continue
		}
		if r.Database != "" && r.Database != c.Database {
			continue
		}
		return true
	}
	return false
}

func qualifiedColumn(c ColumnRef) string {
	var b strings.Builder
	if c.Database != "" {
		b.WriteString(c.Database)
		b.WriteString(".")
	}
	if c.Table != "" {
		b.WriteString(c.Table)
		b.WriteString(".")
	}
	b.WriteString(c.Column)
	return b.String()
}

// resolveColumns fills in database/table defaults for each column
// reference per spec.md §4.2's Column Resolution:
//   - no database mentioned anywhere -> inherit the session default;
//   - exactly one database mentioned and no session default -> that
//     database becomes the default;
//   - exactly one table mentioned -> an unqualified column inherits it.
func resolveColumns(info QueryInfo) []ColumnRef {
	defaultDB := info.DefaultDB
	if defaultDB == "" && len(info.Databases) == 1 {
		defaultDB = info.Databases[0]
	}
	var defaultTable string
	if len(info.Tables) == 1 {
		defaultTable = info.Tables[0].Table
	}

	out := make([]ColumnRef, len(info.Columns))
	for i, c := range info.Columns {
		if c.Database == "" {
			c.Database = defaultDB
		}
		if c.Table == "" {
			c.Table = defaultTable
		}
		out[i] = c
	}
	return out
}

func matchLiteralOrRegex(r Rule, candidate string) bool {
	return compareLiteralOrRegex(r, candidate)
}

func compareLiteralOrRegex(r Rule, candidate string) bool {
	if r.Regex != nil {
		return r.Regex.MatchString(candidate)
	}
	return compareLiteral(r.Literal, candidate)
}

func compareLiteral(literal, candidate string) bool {
	return strings.EqualFold(literal, candidate)
}
