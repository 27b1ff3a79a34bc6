package rules

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// rawRule mirrors the JSON shape of one rule object: {attribute, op, value}.
type rawRule struct {
	Attribute string `json:"attribute"`
	Op        string `json:"op"`
	Value     string `json:"value"`
}

// rawSet mirrors one {"store": [...], "use": [...]} document.
type rawSet struct {
	Store []rawRule `json:"store"`
	Use   []rawRule `json:"use"`
}

// Load parses a rules document, which may be a single object or a
// top-level array of objects (one RuleSet per element), per spec.md
// §4.2/§6. Any compile error fails the whole load; no rule set is
// partially installed.
func Load(data []byte) ([]*Set, error) {
	trimmed := strings.TrimSpace(string(data))
	var raws []rawSet
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, &CompileError{Reason: "invalid JSON: " + err.Error()}
		}
	} else {
		var one rawSet
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, &CompileError{Reason: "invalid JSON: " + err.Error()}
		}
		raws = []rawSet{one}
	}

	sets := make([]*Set, 0, len(raws))
	for _, rs := range raws {
		set, err := compileSet(rs)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return sets, nil
}

func compileSet(rs rawSet) (*Set, error) {
	set := &Set{}
	for _, r := range rs.Store {
		rule, err := compileStoreRule(r)
		if err != nil {
			return nil, err
		}
		set.Store = append(set.Store, rule)
	}
	for _, r := range rs.Use {
		rule, err := compileUseRule(r)
		if err != nil {
			return nil, err
		}
		set.Use = append(set.Use, rule)
	}
	return set, nil
}

func compileStoreRule(r rawRule) (Rule, error) {
	attr := Attribute(r.Attribute)
	switch attr {
	case AttrColumn, AttrDatabase, AttrQuery, AttrTable:
	default:
		return Rule{}, &CompileError{Reason: fmt.Sprintf("store rule has invalid attribute %q", r.Attribute)}
	}
	op, err := normalizeOperator(r.Op)
	if err != nil {
		return Rule{}, err
	}

	rule := Rule{Attribute: attr, Operator: op, Literal: r.Value}

	if (op == OpEQ || op == OpNEQ) && attr != AttrQuery {
		if err := decomposeDotted(&rule); err != nil {
			return Rule{}, err
		}
	}
	if op.isRegex() {
		re, err := compileRegex(r.Value)
		if err != nil {
			return Rule{}, &CompileError{Reason: fmt.Sprintf("bad regex %q: %v", r.Value, err)}
		}
		rule.Regex = re
	}
	return rule, nil
}

func compileUseRule(r rawRule) (Rule, error) {
	if Attribute(r.Attribute) != AttrUser {
		return Rule{}, &CompileError{Reason: fmt.Sprintf("use rule has invalid attribute %q", r.Attribute)}
	}
	op, err := normalizeOperator(r.Op)
	if err != nil {
		return Rule{}, err
	}

	rule := Rule{Attribute: AttrUser, Operator: op, Literal: r.Value}

	if op == OpEQ || op == OpNEQ {
		user, host, hasWildcard := splitUserHost(r.Value)
		if hasWildcard {
			pattern := "^" + sqlWildcardToRegex(user) + "@" + sqlWildcardToRegex(host) + "$"
			re, err := compileRegex(pattern)
			if err != nil {
				return Rule{}, &CompileError{Reason: fmt.Sprintf("bad wildcard user rule %q: %v", r.Value, err)}
			}
			rule.Regex = re
			if op == OpEQ {
				rule.Operator = OpLIKE
			} else {
				rule.Operator = OpUNLIKE
			}
		}
		return rule, nil
	}

	// LIKE/UNLIKE on a user rule: compile the value directly as a regex.
	re, err := compileRegex(r.Value)
	if err != nil {
		return Rule{}, &CompileError{Reason: fmt.Sprintf("bad regex %q: %v", r.Value, err)}
	}
	rule.Regex = re
	return rule, nil
}

// decomposeDotted splits an EQ/NEQ literal on "." for column/database/
// table attributes per spec.md §4.2's Load rules: one part names the
// attribute itself; two parts are database.column or database.table;
// three parts are database.table.column. More dots than the attribute
// permits fails compilation.
func decomposeDotted(r *Rule) error {
	parts := strings.Split(r.Literal, ".")
	switch r.Attribute {
	case AttrColumn:
		switch len(parts) {
		case 1:
			r.Column = parts[0]
		case 2:
			r.Database, r.Column = parts[0], parts[1]
		case 3:
			r.Database, r.Table, r.Column = parts[0], parts[1], parts[2]
		default:
			return &CompileError{Reason: fmt.Sprintf("column value %q has too many dotted components", r.Literal)}
		}
	case AttrTable:
		switch len(parts) {
		case 1:
			r.Table = parts[0]
		case 2:
			r.Database, r.Table = parts[0], parts[1]
		default:
			return &CompileError{Reason: fmt.Sprintf("table value %q has too many dotted components", r.Literal)}
		}
	case AttrDatabase:
		if len(parts) != 1 {
			return &CompileError{Reason: fmt.Sprintf("database value %q must not contain '.'", r.Literal)}
		}
		r.Database = parts[0]
	}
	return nil
}

// splitUserHost splits "user@host" and reports whether host contains a
// SQL-style wildcard (% or _).
func splitUserHost(value string) (user, host string, hasWildcard bool) {
	user, host = value, "%"
	if i := strings.LastIndex(value, "@"); i >= 0 {
		user, host = value[:i], value[i+1:]
	}
	return user, host, strings.ContainsAny(host, "%_")
}

func sqlWildcardToRegex(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return b.String()
}

// compileRegex compiles value and attempts JIT compilation best-effort.
// Go's regexp package has no JIT distinction, so this is a documented
// no-op rather than a fabricated compile-mode flag (see SPEC_FULL.md
// SUPPLEMENTED FEATURES).
func compileRegex(value string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + value)
}
