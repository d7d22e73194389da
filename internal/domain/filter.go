package domain

import "strings"

// Matched records which predicate categories of a filter expression
// consumed at least one token.
type Matched struct {
	Domain    bool
	Geometry  bool
	Attribute bool
	DataType  bool
	ID        bool
}

// Any reports whether any category matched.
func (m Matched) Any() bool {
	return m.Domain || m.Geometry || m.Attribute || m.DataType || m.ID
}

// domainAliases and geometryAliases are ordered so priority between
// spellings is stable. Aliases are matched case-insensitively.
var domainAliases = []struct {
	domain  Domain
	aliases []string
}{
	{Domain1D, []string{"1d"}},
	{Domain2D, []string{"2d", "po"}},
	{DomainRL, []string{"rl", "0d"}},
}

var geometryAliases = []struct {
	geom    Geometry
	aliases []string
}{
	{GeomPoint, []string{"point"}},
	{GeomLine, []string{"line"}},
	{GeomPolygon, []string{"polygon", "region"}},
}

// attrFilter is a predicate selected by an attribute token.
type attrFilter func(Row) bool

var attributeAliases = []struct {
	aliases []string
	match   attrFilter
}{
	{[]string{"max", "maximum", "maximums"}, func(r Row) bool { return r.IsMax }},
	{[]string{"min", "minimum", "minimums"}, func(r Row) bool { return r.IsMin }},
	{[]string{"static"}, func(r Row) bool { return r.Static }},
	{[]string{"temporal", "timeseries"}, func(r Row) bool { return !r.Static && !r.IsMax && !r.IsMin }},
}

// SplitFilter breaks a slash-delimited filter expression into lower-cased
// tokens, dropping empties.
func SplitFilter(expr string) []string {
	var out []string
	for _, tok := range strings.Split(expr, "/") {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// expandNetworkAliases rewrites the 1D shorthand tokens: "channel" means
// 1d + line and "node" means 1d + point.
func expandNetworkAliases(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	add := func(toks ...string) {
		for _, t := range toks {
			found := false
			for _, have := range out {
				if have == t {
					found = true
					break
				}
			}
			if !found {
				out = append(out, t)
			}
		}
	}
	for _, tok := range tokens {
		switch tok {
		case "channel", "channels":
			add("1d", "line")
		case "node", "nodes":
			add("1d", "point")
		default:
			add(tok)
		}
	}
	return out
}

// Resolve filters the overview down to the rows selected by a
// slash-delimited expression. Tokens are consumed by category in order:
// domain, geometry, attribute, data type, id. Multiple tokens in one
// category union; categories intersect. Leftover tokens that match nothing
// make the result empty (fail closed) unless something else matched or
// ignoreExcess is set, which callers use when the expression is shared
// with a sibling resolver that owns the other tokens.
func Resolve(o *Overview, expr string, ignoreExcess bool) (*Overview, Matched) {
	var matched Matched
	rows := make([]Row, len(o.Rows))
	copy(rows, o.Rows)

	tokens := expandNetworkAliases(SplitFilter(expr))
	if len(tokens) == 0 {
		return &Overview{Rows: rows}, matched
	}

	tokens, rows, matched.Domain = filterDomains(tokens, rows)
	tokens, rows, matched.Geometry = filterGeometries(tokens, rows)
	tokens, rows, matched.Attribute = filterAttributes(tokens, rows)
	tokens, rows, matched.DataType = filterDataTypes(tokens, rows)
	tokens, rows, matched.ID = filterIDs(tokens, rows)

	if len(tokens) > 0 && !matched.Any() && !ignoreExcess {
		return &Overview{}, matched
	}
	return &Overview{Rows: rows}, matched
}

func filterDomains(tokens []string, rows []Row) ([]string, []Row, bool) {
	want := make(map[Domain]struct{})
	rest := tokens[:0]
	for _, tok := range tokens {
		hit := false
		for _, d := range domainAliases {
			for _, a := range d.aliases {
				if tok == a {
					want[d.domain] = struct{}{}
					hit = true
					break
				}
			}
			if hit {
				break
			}
		}
		if !hit {
			rest = append(rest, tok)
		}
	}
	if len(want) == 0 {
		return rest, rows, false
	}
	kept := rows[:0]
	for _, r := range rows {
		if _, ok := want[r.Domain]; ok {
			kept = append(kept, r)
		}
	}
	return rest, kept, true
}

func filterGeometries(tokens []string, rows []Row) ([]string, []Row, bool) {
	want := make(map[Geometry]struct{})
	rest := tokens[:0]
	for _, tok := range tokens {
		hit := false
		for _, g := range geometryAliases {
			for _, a := range g.aliases {
				if tok == a {
					want[g.geom] = struct{}{}
					hit = true
					break
				}
			}
			if hit {
				break
			}
		}
		if !hit {
			rest = append(rest, tok)
		}
	}
	if len(want) == 0 {
		return rest, rows, false
	}
	kept := rows[:0]
	for _, r := range rows {
		if _, ok := want[r.Geometry]; ok {
			kept = append(kept, r)
		}
	}
	return rest, kept, true
}

func filterAttributes(tokens []string, rows []Row) ([]string, []Row, bool) {
	var preds []attrFilter
	rest := tokens[:0]
	for _, tok := range tokens {
		hit := false
		for _, a := range attributeAliases {
			for _, alias := range a.aliases {
				if tok == alias {
					preds = append(preds, a.match)
					hit = true
					break
				}
			}
			if hit {
				break
			}
		}
		if !hit {
			rest = append(rest, tok)
		}
	}
	if len(preds) == 0 {
		return rest, rows, false
	}
	kept := rows[:0]
	for _, r := range rows {
		for _, p := range preds {
			if p(r) {
				kept = append(kept, r)
				break
			}
		}
	}
	return rest, kept, true
}

func filterDataTypes(tokens []string, rows []Row) ([]string, []Row, bool) {
	have := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		have[r.DataType] = struct{}{}
	}
	type dtWant struct {
		canon string
		mod   Modifier
	}
	var want []dtWant
	rest := tokens[:0]
	for _, tok := range tokens {
		canon, mod, ok := resolveDataType(tok)
		if !ok {
			canon, mod = tok, ModNone
		}
		if _, exists := have[canon]; exists {
			want = append(want, dtWant{canon, mod})
			continue
		}
		rest = append(rest, tok)
	}
	if len(want) == 0 {
		return rest, rows, false
	}
	kept := rows[:0]
	for _, r := range rows {
		for _, w := range want {
			if r.DataType != w.canon {
				continue
			}
			switch w.mod {
			case ModMax, ModTMax:
				if !r.IsMax {
					continue
				}
			case ModMin, ModTMin:
				if !r.IsMin {
					continue
				}
			}
			kept = append(kept, r)
			break
		}
	}
	return rest, kept, true
}

func filterIDs(tokens []string, rows []Row) ([]string, []Row, bool) {
	have := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		have[strings.ToLower(r.ID)] = struct{}{}
	}
	want := make(map[string]struct{})
	rest := tokens[:0]
	for _, tok := range tokens {
		if _, ok := have[tok]; ok {
			want[tok] = struct{}{}
			continue
		}
		rest = append(rest, tok)
	}
	if len(want) == 0 {
		return rest, rows, false
	}
	kept := rows[:0]
	for _, r := range rows {
		if _, ok := want[strings.ToLower(r.ID)]; ok {
			kept = append(kept, r)
		}
	}
	return rest, kept, true
}
