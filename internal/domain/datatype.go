package domain

import (
	"regexp"
	"strings"
)

// Modifier is a max/min qualifier attached to a data type name. Modified
// names keep the modifier as a canonical prefix, e.g. "max water level".
type Modifier string

const (
	ModNone Modifier = ""
	ModMax  Modifier = "max"
	ModMin  Modifier = "min"
	ModTMax Modifier = "tmax"
	ModTMin Modifier = "tmin"
)

// dataTypeVocabulary maps each canonical data type name to the alternate
// spellings seen across result formats. Order matters: earlier entries win
// when spellings overlap. A `\d` in a name is a template slot: the digit in
// the input carries into the canonical name ("FC2" -> "fraction 2
// concentration").
var dataTypeVocabulary = []struct {
	canon string
	alts  []string
}{
	{"water level", []string{"h", "level", "levels", "water levels", "stage"}},
	{"energy", []string{"e", "energy level", "energy levels"}},
	{"flow", []string{"q", "flows", "discharge", "flow rate"}},
	{"velocity", []string{"v", "vel", "velocities"}},
	{"flow area", []string{"qa", "area", "flow areas"}},
	{"volume", []string{"vol", "volumes"}},
	{"flow integral", []string{"q integral", "cumulative flow"}},
	{"mass balance error", []string{"mb", "mass error"}},
	{"flow regime", []string{"regime"}},
	{"channel losses", []string{"losses", "channel loss"}},
	{"depth", []string{"d", "dep", "depths"}},
	{"bed level", []string{"bed elevation", "invert level"}},
	{"bed shear stress", []string{"bss", "shear stress"}},
	{"stream power", []string{"sp"}},
	{"hazard", []string{"z0", "zuk0"}},
	{"flow into region", []string{"qi", "flow in"}},
	{"flow out of region", []string{"qo", "flow out"}},
	{"average water level", []string{"average level", "avg water level"}},
	{"volume above ground", []string{"vag"}},
	{"sediment concentration", []string{"sc"}},
	{"pipes", []string{"pipe obverts", "obverts"}},
	{"pits", []string{"pit levels"}},
	{`fraction \d concentration`, []string{`fc\d`, `fraction \d`}},
}

type aliasPattern struct {
	canon     string
	re        *regexp.Regexp
	templated bool
}

var aliasPatterns []aliasPattern

// modifierPatterns strip a leading or trailing modifier word from a data
// type name. tmax/tmin come before max/min so "h tmax" is not read as a
// max of "h t". Suffix forms allow a missing separator ("Hmax").
var modifierPatterns = []struct {
	mod Modifier
	re  *regexp.Regexp
}{
	{ModTMax, regexp.MustCompile(`(?i)^(?:tmax(?:imum)?|time of (?:max(?:imum)?|peak))[ _-]+(.+)$`)},
	{ModTMax, regexp.MustCompile(`(?i)^(.+?)[ _-]?tmax(?:imum)?$`)},
	{ModTMin, regexp.MustCompile(`(?i)^(?:tmin(?:imum)?|time of min(?:imum)?)[ _-]+(.+)$`)},
	{ModTMin, regexp.MustCompile(`(?i)^(.+?)[ _-]?tmin(?:imum)?$`)},
	{ModMax, regexp.MustCompile(`(?i)^(?:max(?:imum)?|peak)[ _-]+(.+)$`)},
	{ModMax, regexp.MustCompile(`(?i)^(.+?)[ _-]?max(?:imum)?$`)},
	{ModMin, regexp.MustCompile(`(?i)^min(?:imum)?[ _-]+(.+)$`)},
	{ModMin, regexp.MustCompile(`(?i)^(.+?)[ _-]?min(?:imum)?$`)},
}

func init() {
	for _, entry := range dataTypeVocabulary {
		for _, alias := range append([]string{entry.canon}, entry.alts...) {
			re, templated := aliasRegexp(alias)
			aliasPatterns = append(aliasPatterns, aliasPattern{
				canon:     entry.canon,
				re:        re,
				templated: templated,
			})
		}
	}
}

// aliasRegexp compiles an alias into a case-insensitive whole-string match.
// A `\d` template slot becomes a capture group for the digits.
func aliasRegexp(alias string) (*regexp.Regexp, bool) {
	parts := strings.Split(alias, `\d`)
	for i := range parts {
		parts[i] = regexp.QuoteMeta(parts[i])
	}
	pattern := `(?i)^` + strings.Join(parts, `(\d+)`) + `$`
	return regexp.MustCompile(pattern), len(parts) > 1
}

// Normalize maps any recognized spelling of a data type onto its canonical
// name. A max/min/tmax/tmin modifier, written as a separate word or fused
// onto a short alias ("Hmax"), survives as a canonical prefix. Unknown
// names come back lower-cased; Normalize never fails.
func Normalize(name string) string {
	canon, mod, ok := resolveDataType(name)
	if !ok {
		return strings.ToLower(strings.TrimSpace(name))
	}
	return mod.apply(canon)
}

// NormalizeWith is Normalize with a modifier supplied by the caller, used
// when the modifier lives outside the name (e.g. a maximums-only table).
// A modifier found inside the name takes precedence.
func NormalizeWith(name string, mod Modifier) string {
	canon, found, ok := resolveDataType(name)
	if !ok {
		canon = strings.ToLower(strings.TrimSpace(name))
	}
	if found != ModNone {
		mod = found
	}
	return mod.apply(canon)
}

// KnownDataType reports whether name resolves to the canonical vocabulary.
func KnownDataType(name string) bool {
	_, _, ok := resolveDataType(name)
	return ok
}

func (m Modifier) apply(name string) string {
	if m == ModNone || name == "" {
		return name
	}
	if strings.HasPrefix(name, string(m)+" ") {
		return name
	}
	return string(m) + " " + name
}

func resolveDataType(name string) (string, Modifier, bool) {
	s := strings.TrimSpace(name)
	if s == "" {
		return "", ModNone, false
	}

	mod := ModNone
	base := s
	for _, p := range modifierPatterns {
		if m := p.re.FindStringSubmatch(base); m != nil {
			mod = p.mod
			base = m[1]
			break
		}
	}

	if canon, ok := lookupAlias(base); ok {
		return canon, mod, true
	}
	// The stripped base did not resolve; the full input may still be an
	// alias whose leading word only looks like a modifier.
	if base != s {
		if canon, ok := lookupAlias(s); ok {
			return canon, ModNone, true
		}
	}
	return "", ModNone, false
}

func lookupAlias(s string) (string, bool) {
	for _, p := range aliasPatterns {
		m := p.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		canon := p.canon
		if p.templated && len(m) > 1 {
			canon = strings.Replace(canon, `\d`, m[1], 1)
		}
		return canon, true
	}
	return "", false
}
