package psn

import (
	"encoding/json"
	"math"
	"reflect"
	"strings"
)

// The trophy API is schema-inconsistent across versions: a trophy-count
// aggregate may be a per-grade object, a flat map, a bare number, or an
// arbitrary attribute bag. All of that fragility is absorbed here; the rest
// of the codebase only ever sees plain integers and strings.

var gradeKeys = []string{"bronze", "silver", "gold", "platinum"}

// base-game group ids that commonly arrive without an explicit name
var baseGroupIDs = map[string]bool{
	"default": true,
	"all":     true,
	"0":       true,
	"000":     true,
}

// countStrategy attempts to read a trophy total out of one response shape.
// Returns (total, true) when the shape matched.
type countStrategy func(v any) (int, bool)

// Ordered: most specific shape first. Evaluated until one matches.
var countStrategies = []countStrategy{
	countFromGradeStruct,
	countFromNumber,
	countFromMap,
	countFromList,
	countFromAttrBag,
}

// SumTrophyCounts resolves a raw trophy-count aggregate to a non-negative
// total. Absence of data yields 0, never an error. Applied uniformly to
// defined and earned aggregates.
func SumTrophyCounts(v any) int {
	if v == nil {
		return 0
	}
	for _, strategy := range countStrategies {
		if total, ok := strategy(v); ok {
			if total < 0 {
				return 0
			}
			return total
		}
	}
	return 0
}

func countFromGradeStruct(v any) (int, bool) {
	switch c := v.(type) {
	case TrophyCounts:
		return c.Total(), true
	case *TrophyCounts:
		return c.Total(), true
	}
	return 0, false
}

func countFromNumber(v any) (int, bool) {
	n, ok := asInt(v)
	return n, ok
}

func countFromMap(v any) (int, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return 0, false
	}

	// Prefer the four grade keys when any are present
	gradeTotal := 0
	sawGrade := false
	for _, key := range gradeKeys {
		if raw, present := m[key]; present {
			if n, numOK := asInt(raw); numOK {
				gradeTotal += n
				sawGrade = true
			}
		}
	}
	if sawGrade {
		return gradeTotal, true
	}

	// Else sum every integer value found
	total := 0
	for _, raw := range m {
		if n, numOK := asInt(raw); numOK {
			total += n
		}
	}
	return total, true
}

func countFromList(v any) (int, bool) {
	list, ok := v.([]any)
	if !ok {
		return 0, false
	}
	total := 0
	for _, raw := range list {
		if n, numOK := asInt(raw); numOK {
			total += n
		}
	}
	return total, true
}

// countFromAttrBag sums integer-valued exported fields of an arbitrary
// struct, the last-resort shape for unrecognized API versions
func countFromAttrBag(v any) (int, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return 0, true
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return 0, false
	}

	total := 0
	for i := 0; i < rv.NumField(); i++ {
		if !rv.Type().Field(i).IsExported() {
			continue
		}
		if n, ok := asInt(rv.Field(i).Interface()); ok {
			total += n
		}
	}
	return total, true
}

// asInt accepts the integer encodings seen across decoded JSON payloads
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		// JSON numbers decode as float64; only integral values count
		if n == math.Trunc(n) {
			return int(n), true
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
	}
	return 0, false
}

// GroupNames builds a group id → display name map from a group summary.
// A base-game group id without a remote name resolves to the title's own
// display name, since upstream often leaves it blank.
func GroupNames(summary *GroupSummary, defaultTitle string) map[string]string {
	names := make(map[string]string)
	if summary == nil {
		return names
	}
	for _, g := range summary.TrophyGroups {
		if g.ID == "" {
			continue
		}
		name := g.Name
		if name == "" && baseGroupIDs[g.ID] {
			name = defaultTitle
			if name == "" {
				name = "Base Game"
			}
		}
		if name == "" {
			name = g.ID
		}
		names[g.ID] = name
	}
	return names
}

// GroupDisplayName resolves the display name for a group id, preferring the
// resolved name map and falling back to the title for base-game ids
func GroupDisplayName(names map[string]string, groupID, title string) string {
	if name := names[groupID]; name != "" {
		return name
	}
	if baseGroupIDs[groupID] {
		return title
	}
	return groupID
}

// EarnedFlag extracts the earned flag from a trophy item, falling back to
// the nested compared-user field when the top-level flag is absent.
// Absent everywhere means not earned.
func EarnedFlag(t *Trophy) bool {
	if t.Earned != nil {
		return *t.Earned
	}
	if t.ComparedUser != nil && t.ComparedUser.Earned != nil {
		return *t.ComparedUser.Earned
	}
	return false
}

// RarityRate extracts the population earn rate from whichever of the known
// field variants is populated. Empty string when none are.
func RarityRate(t *Trophy) string {
	if t.EarnedRate != "" {
		return t.EarnedRate
	}
	if t.RareRate != "" {
		return t.RareRate
	}
	if t.Rarity != nil && t.Rarity.Rate != "" {
		return t.Rarity.Rate
	}
	return ""
}

// NormBool parses the loose boolean encodings seen in cached CSV rows
func NormBool(val string) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "true", "1", "yes", "y", "t":
		return true
	}
	return false
}
