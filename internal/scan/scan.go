// Package scan expands parameter-scan descriptors into the ordered set of
// labeled job variants.
//
// Descriptors can be expanded four ways: a single descriptor enumerates its
// values; multiple descriptors at dimensionality 1 are zipped element-wise
// (linked scans); when the requested dimensionality equals the number of
// distinct value-list lengths, descriptors sharing a length are grouped into
// one dimension and the Cartesian product is taken across dimensions; and
// otherwise the plain Cartesian product over all descriptors is taken.
//
// The length-grouping rule is deliberately loose: two unrelated descriptors
// that happen to share a length will land in the same dimension. This
// matches the documented behaviour of linked scans and is kept as-is.
package scan

import (
	"fmt"
	"strings"
)

// ScanError indicates the requested scan dimensionality cannot be applied to
// the given descriptors.
type ScanError struct {
	Reason string
}

func (e *ScanError) Error() string {
	return e.Reason
}

// Is allows errors.Is to match any ScanError
func (e *ScanError) Is(target error) bool {
	_, ok := target.(*ScanError)
	return ok
}

func scanf(format string, a ...interface{}) *ScanError {
	return &ScanError{Reason: fmt.Sprintf(format, a...)}
}

// Parameter describes one swept parameter: where it lives in the input file
// and the ordered values it takes.
type Parameter struct {
	Section string
	Name    string
	Values  []string
}

// Len returns the number of values in the sweep.
func (p Parameter) Len() int {
	return len(p.Values)
}

// Value is one concrete parameter assignment within a variant.
type Value struct {
	Section string
	Name    string
	Value   string
}

// Variant is one concrete combination of scan-parameter values plus the
// derived label used to name the variant's output sub-directory and job-name
// suffix.
type Variant struct {
	Label  string
	Values []Value
}

// PreviewLimit is the variant count above which Preview truncates its output.
const PreviewLimit = 100

// Expand produces the ordered set of variants for the given descriptors at
// the requested dimensionality. dims == 0 selects the dimensionality
// automatically by grouping descriptors of equal length.
func Expand(params []Parameter, dims int) ([]Variant, error) {
	if len(params) == 0 {
		return nil, scanf("no scanning parameters given")
	}
	for _, p := range params {
		if p.Len() == 0 {
			return nil, scanf("scanning parameter %s has no values", p.Name)
		}
	}

	if len(params) == 1 {
		return expandSingle(params[0]), nil
	}

	distinct := distinctLengths(params)
	if dims == 0 {
		dims = distinct
	}

	switch {
	case dims == 1:
		return expandZipped(params)
	case dims == distinct && dims != len(params):
		return expandGrouped(params), nil
	case dims == len(params):
		return expandFull(params), nil
	default:
		return nil, scanf(
			"requested scan dimensionality (%d) matches neither the number of scanning "+
				"parameters (%d) nor the number of distinct scan lengths (%d)",
			dims, len(params), distinct)
	}
}

func distinctLengths(params []Parameter) int {
	seen := make(map[int]bool)
	for _, p := range params {
		seen[p.Len()] = true
	}
	return len(seen)
}

func label(name, value string) string {
	return fmt.Sprintf("%s_%s", name, value)
}

func expandSingle(p Parameter) []Variant {
	variants := make([]Variant, 0, p.Len())
	for _, v := range p.Values {
		variants = append(variants, Variant{
			Label:  label(p.Name, v),
			Values: []Value{{Section: p.Section, Name: p.Name, Value: v}},
		})
	}
	return variants
}

// expandZipped pairs the i-th value of every descriptor, labelling each
// variant by the first descriptor's value (linked scans).
func expandZipped(params []Parameter) ([]Variant, error) {
	length := params[0].Len()
	for _, p := range params[1:] {
		if p.Len() != length {
			return nil, scanf(
				"linked scans require equal value counts: %s has %d values, %s has %d",
				params[0].Name, length, p.Name, p.Len())
		}
	}

	variants := make([]Variant, 0, length)
	for i := 0; i < length; i++ {
		values := make([]Value, 0, len(params))
		for _, p := range params {
			values = append(values, Value{Section: p.Section, Name: p.Name, Value: p.Values[i]})
		}
		variants = append(variants, Variant{
			Label:  label(params[0].Name, params[0].Values[i]),
			Values: values,
		})
	}
	return variants, nil
}

// expandGrouped groups descriptors by shared value-count into dimensions and
// takes the Cartesian product across dimensions; descriptors within a
// dimension advance together. Labels join the distinguishing parameter=value
// pair of each dimension's first descriptor.
func expandGrouped(params []Parameter) []Variant {
	var groups [][]Parameter
	index := make(map[int]int)
	for _, p := range params {
		if gi, ok := index[p.Len()]; ok {
			groups[gi] = append(groups[gi], p)
		} else {
			index[p.Len()] = len(groups)
			groups = append(groups, []Parameter{p})
		}
	}

	lengths := make([]int, len(groups))
	for i, g := range groups {
		lengths[i] = g[0].Len()
	}

	var variants []Variant
	for _, combo := range indexProduct(lengths) {
		var values []Value
		var labels []string
		for gi, g := range groups {
			i := combo[gi]
			for _, p := range g {
				values = append(values, Value{Section: p.Section, Name: p.Name, Value: p.Values[i]})
			}
			rep := g[0]
			labels = append(labels, label(rep.Name, rep.Values[i]))
		}
		variants = append(variants, Variant{
			Label:  strings.Join(labels, "__"),
			Values: values,
		})
	}
	return variants
}

// expandFull takes the plain Cartesian product over all descriptors, one
// label segment per descriptor.
func expandFull(params []Parameter) []Variant {
	lengths := make([]int, len(params))
	for i, p := range params {
		lengths[i] = p.Len()
	}

	var variants []Variant
	for _, combo := range indexProduct(lengths) {
		values := make([]Value, 0, len(params))
		labels := make([]string, 0, len(params))
		for pi, p := range params {
			v := p.Values[combo[pi]]
			values = append(values, Value{Section: p.Section, Name: p.Name, Value: v})
			labels = append(labels, label(p.Name, v))
		}
		variants = append(variants, Variant{
			Label:  strings.Join(labels, "__"),
			Values: values,
		})
	}
	return variants
}

// indexProduct enumerates every index combination for the given dimension
// lengths, last dimension varying fastest.
func indexProduct(lengths []int) [][]int {
	total := 1
	for _, l := range lengths {
		total *= l
	}

	combos := make([][]int, 0, total)
	combo := make([]int, len(lengths))
	for n := 0; n < total; n++ {
		combos = append(combos, append([]int(nil), combo...))
		for i := len(combo) - 1; i >= 0; i-- {
			combo[i]++
			if combo[i] < lengths[i] {
				break
			}
			combo[i] = 0
		}
	}
	return combos
}

// Preview returns the variant labels to show the caller. Large scans (more
// than PreviewLimit variants) are truncated to the first 20 and last 5
// combinations with an ellipsis marker in between; the full variant list is
// unaffected.
func Preview(variants []Variant) []string {
	if len(variants) <= PreviewLimit {
		labels := make([]string, len(variants))
		for i, v := range variants {
			labels[i] = v.Label
		}
		return labels
	}

	labels := make([]string, 0, 26)
	for _, v := range variants[:20] {
		labels = append(labels, v.Label)
	}
	labels = append(labels, fmt.Sprintf("... (%d more combinations)", len(variants)-25))
	for _, v := range variants[len(variants)-5:] {
		labels = append(labels, v.Label)
	}
	return labels
}
