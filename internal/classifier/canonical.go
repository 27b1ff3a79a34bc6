package classifier

import (
	"regexp"
	"strings"
)

var (
	stringLiteralRe = regexp.MustCompile(`'(?:[^'\\]|\\.)*'|"(?:[^"\\]|\\.)*"`)
	numberLiteralRe = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	blockCommentRe  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineCommentRe   = regexp.MustCompile(`--[^\n]*`)
	operatorRe      = regexp.MustCompile(`\s*(<=|>=|<>|!=|=|<|>)\s*`)
)

// Canonicalize reduces a SQL statement to its canonical form: comments
// stripped, string and numeric literals replaced by "?", comparison
// operators set off by single spaces, whitespace collapsed to single
// spaces, and the result trimmed. Two statements that
// differ only in literal values or incidental whitespace produce the same
// canonical text, which is the cache's key per spec.md §3/§4.3.
func Canonicalize(sql string) string {
	s := blockCommentRe.ReplaceAllString(sql, " ")
	s = lineCommentRe.ReplaceAllString(s, " ")
	s = stringLiteralRe.ReplaceAllString(s, "?")
	s = numberLiteralRe.ReplaceAllString(s, "?")
	s = strings.ToLower(s)
	s = operatorRe.ReplaceAllString(s, " $1 ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

// CanonicalKey appends the ":P" prepare-suffix iff isPrepare is set, so a
// COM_STMT_PREPARE of the same text never collides with the same text
// executed directly (I6).
func CanonicalKey(canonical string, isPrepare bool) string {
	if isPrepare {
		return canonical + ":P"
	}
	return canonical
}

// detectOperation extracts the coarse operation code from the (already
// canonicalized, so upper-cased comparison is safe on the leading token)
// statement text. Grounded on the teacher's SQLValidator.detectCommand:
// strip leading comments/whitespace, take the first word.
func detectOperation(canonical string) OperationCode {
	fields := strings.Fields(strings.ToUpper(canonical))
	if len(fields) == 0 {
		return OpUnknown
	}
	switch fields[0] {
	case "SELECT":
		return OpSelect
	case "INSERT":
		return OpInsert
	case "UPDATE":
		return OpUpdate
	case "DELETE":
		return OpDelete
	case "CREATE":
		return OpCreate
	case "ALTER":
		return OpAlter
	case "DROP":
		return OpDrop
	case "BEGIN", "START":
		return OpBegin
	case "COMMIT":
		return OpCommit
	case "ROLLBACK":
		return OpRollback
	case "SHOW", "DESCRIBE", "EXPLAIN":
		return OpShow
	case "SET":
		return OpSet
	case "CALL":
		return OpCall
	default:
		return OpOther
	}
}

var (
	fromRe  = regexp.MustCompile(`(?i)\bfrom\s+([a-zA-Z0-9_.` + "`" + `]+)`)
	intoRe  = regexp.MustCompile(`(?i)\binto\s+([a-zA-Z0-9_.` + "`" + `]+)`)
	updtRe  = regexp.MustCompile(`(?i)\bupdate\s+([a-zA-Z0-9_.` + "`" + `]+)`)
	joinRe  = regexp.MustCompile(`(?i)\bjoin\s+([a-zA-Z0-9_.` + "`" + `]+)`)
)

// extractTables does a best-effort, regex-based table extraction so the
// default Parser can feed something real to the rule engine's table/
// database matching without a full SQL grammar. A production deployment
// swaps in a real grammar-based Parser implementing the same interface;
// this one exists so the proxy is usable standalone.
func extractTables(canonical string) []TableRef {
	seen := map[string]bool{}
	var refs []TableRef
	add := func(raw string) {
		raw = strings.Trim(raw, "`")
		if raw == "" || seen[raw] {
			return
		}
		seen[raw] = true
		parts := strings.SplitN(raw, ".", 2)
		if len(parts) == 2 {
			refs = append(refs, TableRef{Database: parts[0], Table: parts[1]})
		} else {
			refs = append(refs, TableRef{Table: parts[0]})
		}
	}
	for _, re := range []*regexp.Regexp{fromRe, intoRe, updtRe, joinRe} {
		for _, m := range re.FindAllStringSubmatch(canonical, -1) {
			add(m[1])
		}
	}
	return refs
}

func extractDatabases(tables []TableRef) []string {
	seen := map[string]bool{}
	var dbs []string
	for _, t := range tables {
		if t.Database != "" && !seen[t.Database] {
			seen[t.Database] = true
			dbs = append(dbs, t.Database)
		}
	}
	return dbs
}
