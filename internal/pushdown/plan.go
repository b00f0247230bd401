package pushdown

import (
	"strings"
)

// Access names the native operation a plan executes.
type Access string

const (
	AccessQuery Access = "query"
	AccessScan  Access = "scan"
)

// Plan is the native rendering of a translated filter.
//
// A query plan carries one key condition per disjunct with the filter at the
// same index (possibly empty). A scan plan carries no key conditions and
// exactly one filter, empty when the whole table is read.
//
// Names and Values are aligned: Values[i] binds Names[i]. They are the
// argument lists the table layer's enumerator factory takes.
type Plan struct {
	KeyConditions []string
	Filters       []string
	Names         []string
	Values        []any
}

// NewPlan renders a translation result.
//
// MANDATORY: a plan is a query plan only if every disjunct has a hash-key
// filter. One disjunct without it turns the whole filter into a single scan.
func NewPlan(r *Result) *Plan {
	p := &Plan{
		Names:  append([]string(nil), r.Names...),
		Values: make([]any, len(r.Names)),
	}
	for i, name := range r.Names {
		p.Values[i] = r.Values[name]
	}

	if r.AllKeyed() {
		for _, d := range r.Disjuncts {
			p.KeyConditions = append(p.KeyConditions, keyCondition(d))
			p.Filters = append(p.Filters, joinFilters(d.Residual))
		}
		return p
	}

	var groups []string
	for _, d := range r.Disjuncts {
		if g := scanGroup(d); g != "" {
			groups = append(groups, g)
		}
	}
	p.Filters = []string{orGroups(groups)}
	return p
}

// Access reports whether the plan runs as queries or as a scan.
func (p *Plan) Access() Access {
	if p.IsScan() {
		return AccessScan
	}
	return AccessQuery
}

// IsScan reports whether the plan has no key conditions.
func (p *Plan) IsScan() bool {
	return len(p.KeyConditions) == 0
}

// ValueMap returns the placeholder bindings as a map.
func (p *Plan) ValueMap() map[string]any {
	m := make(map[string]any, len(p.Names))
	for i, name := range p.Names {
		m[name] = p.Values[i]
	}
	return m
}

// Split breaks a query plan into one single-disjunct plan per key condition,
// each carrying only the placeholders its expressions reference. A scan plan
// or a one-disjunct plan splits into itself.
func (p *Plan) Split() []*Plan {
	if len(p.KeyConditions) <= 1 {
		return []*Plan{p}
	}

	out := make([]*Plan, len(p.KeyConditions))
	for i, kc := range p.KeyConditions {
		part := &Plan{
			KeyConditions: []string{kc},
			Filters:       []string{p.Filters[i]},
		}
		for j, name := range p.Names {
			if Mentions(name, kc, p.Filters[i]) {
				part.Names = append(part.Names, name)
				part.Values = append(part.Values, p.Values[j])
			}
		}
		out[i] = part
	}
	return out
}

// String renders the plan one expression pair per line.
func (p *Plan) String() string {
	var b strings.Builder
	if p.IsScan() {
		b.WriteString("scan")
		if p.Filters[0] != "" {
			b.WriteString(" filter: ")
			b.WriteString(p.Filters[0])
		}
		return b.String()
	}
	for i, kc := range p.KeyConditions {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("query key: ")
		b.WriteString(kc)
		if p.Filters[i] != "" {
			b.WriteString(" filter: ")
			b.WriteString(p.Filters[i])
		}
	}
	return b.String()
}

// keyCondition renders hash [AND sort | AND sort BETWEEN lo AND hi].
func keyCondition(d Disjunct) string {
	parts := []string{d.HashKey.String()}
	if s := sortClause(d); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, " AND ")
}

// sortClause fuses a closed range into BETWEEN with the lower bound first.
func sortClause(d Disjunct) string {
	if lo, hi, ok := d.Range(); ok {
		return lo.Attribute + " BETWEEN " + lo.Placeholder + " AND " + hi.Placeholder
	}
	if len(d.SortKey) == 1 {
		return d.SortKey[0].String()
	}
	return ""
}

// scanGroup renders a whole disjunct in hash, sort, residual order.
func scanGroup(d Disjunct) string {
	var parts []string
	if d.HashKey != nil {
		parts = append(parts, d.HashKey.String())
	}
	if s := sortClause(d); s != "" {
		parts = append(parts, s)
	}
	for _, f := range d.Residual {
		parts = append(parts, f.String())
	}
	return strings.Join(parts, " AND ")
}

func joinFilters(filters []Filter) string {
	parts := make([]string, len(filters))
	for i, f := range filters {
		parts[i] = f.String()
	}
	return strings.Join(parts, " AND ")
}

func orGroups(groups []string) string {
	if len(groups) == 1 {
		return groups[0]
	}
	parts := make([]string, len(groups))
	for i, g := range groups {
		parts[i] = "(" + g + ")"
	}
	return strings.Join(parts, " OR ")
}

// Mentions reports whether any expression references the placeholder as a
// whole token, so :v1 does not match inside :v10.
func Mentions(placeholder string, exprs ...string) bool {
	for _, expr := range exprs {
		for i := 0; i < len(expr); {
			j := strings.Index(expr[i:], placeholder)
			if j < 0 {
				break
			}
			start := i + j
			end := start + len(placeholder)
			if (start == 0 || !isTokenByte(expr[start-1])) && (end == len(expr) || !isTokenByte(expr[end])) {
				return true
			}
			i = start + 1
		}
	}
	return false
}

func isTokenByte(c byte) bool {
	return c == '_' || c == ':' ||
		('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
