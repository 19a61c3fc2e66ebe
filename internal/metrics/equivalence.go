package metrics

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/mobility-bench/mobench/internal/models"
)

// relativeTolerance bounds numeric drift considered equal when
// comparing step arguments (coordinate rounding, unit conversion noise).
const relativeTolerance = 1e-6

// stepsEquivalent reports whether a predicted step matches a reference
// step: same tool, same argument keys, tolerantly equal values.
func stepsEquivalent(a, b models.Step) bool {
	if a.Tool != b.Tool {
		return false
	}
	return argsEquivalent(a.Args, b.Args)
}

func argsEquivalent(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for key, av := range a {
		bv, ok := b[key]
		if !ok || !valuesEquivalent(av, bv) {
			return false
		}
	}
	return true
}

// valuesEquivalent compares two argument values tolerantly: strings are
// normalized, numbers allow relative drift, lists compare as sorted
// multisets (order is not semantic for argument lists).
func valuesEquivalent(a, b any) bool {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && floatsEqual(af, bf)
	}

	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && normalizeText(av) == normalizeText(bv)
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		return listsEquivalent(av, bv)
	case map[string]any:
		bv, ok := b.(map[string]any)
		return ok && argsEquivalent(av, bv)
	default:
		return false
	}
}

func listsEquivalent(a, b []any) bool {
	sa := sortedKeys(a)
	sb := sortedKeys(b)
	for i := range sa {
		if !valuesEquivalent(a[sa[i]], b[sb[i]]) {
			return false
		}
	}
	return true
}

// sortedKeys orders list indices by a canonical rendering of each
// element, giving a deterministic multiset comparison order.
func sortedKeys(list []any) []int {
	keys := make([]int, len(list))
	renders := make([]string, len(list))
	for i, v := range list {
		keys[i] = i
		if s, ok := v.(string); ok {
			renders[i] = normalizeText(s)
		} else if data, err := json.Marshal(v); err == nil {
			renders[i] = string(data)
		}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		return renders[keys[i]] < renders[keys[j]]
	})
	return keys
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func floatsEqual(a, b float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	return math.Abs(a-b) <= relativeTolerance*scale
}
