package testrun

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/lemon07r/truescore/internal/problem"
)

// Match reports whether an actual entry-point return value satisfies a test
// case's expected output under the case's comparison rule. Values are
// canonicalized through JSON first so that YAML-decoded expectations and
// shim-decoded results compare on equal footing.
func Match(tc problem.TestCase, actual any) (bool, string) {
	expected, err := canonicalize(tc.Expected)
	if err != nil {
		return false, fmt.Sprintf("expected value not canonicalizable: %v", err)
	}
	got, err := canonicalize(actual)
	if err != nil {
		return false, fmt.Sprintf("actual value not canonicalizable: %v", err)
	}

	switch tc.Compare {
	case problem.CompareTolerance:
		if withinTolerance(expected, got, tc.Tolerance) {
			return true, ""
		}
	case problem.CompareUnordered:
		if unorderedEqual(expected, got) {
			return true, ""
		}
	default:
		if reflect.DeepEqual(expected, got) {
			return true, ""
		}
	}

	return false, fmt.Sprintf("expected %s, got %s", encode(expected), encode(got))
}

// canonicalize round-trips a value through JSON so all numbers become
// float64, all sequences []any, and all maps map[string]any.
func canonicalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// withinTolerance compares numbers (and element-wise sequences of numbers)
// within an absolute tolerance; non-numeric values fall back to equality.
func withinTolerance(expected, got any, tol float64) bool {
	ef, eok := expected.(float64)
	gf, gok := got.(float64)
	if eok && gok {
		return math.Abs(ef-gf) <= tol
	}

	es, eok := expected.([]any)
	gs, gok := got.([]any)
	if eok && gok {
		if len(es) != len(gs) {
			return false
		}
		for i := range es {
			if !withinTolerance(es[i], gs[i], tol) {
				return false
			}
		}
		return true
	}

	return reflect.DeepEqual(expected, got)
}

// unorderedEqual compares two sequences as multisets, using canonical JSON
// encodings as element keys.
func unorderedEqual(expected, got any) bool {
	es, eok := expected.([]any)
	gs, gok := got.([]any)
	if !eok || !gok {
		return reflect.DeepEqual(expected, got)
	}
	if len(es) != len(gs) {
		return false
	}

	ek := encodedKeys(es)
	gk := encodedKeys(gs)
	for i := range ek {
		if ek[i] != gk[i] {
			return false
		}
	}
	return true
}

func encodedKeys(items []any) []string {
	keys := make([]string, len(items))
	for i, it := range items {
		keys[i] = encode(it)
	}
	sort.Strings(keys)
	return keys
}

func encode(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
