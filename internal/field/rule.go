package field

import (
	"fmt"
	"math"
)

// Update is the input to a Rule: one delta arriving at a field.
type Update struct {
	// Old is the field value before this delta.
	Old float64
	// Delta is the weighted delta delivered by the link (or injected).
	Delta float64
	// Prior is the link's contribution before this delta.
	Prior float64
	// Link is the delivering link, or nil for an injected delta.
	Link *Link
	// Field is the receiving field. Its input contributions already include Delta.
	Field *Field
}

// Rule combines an incoming delta into a new field value.
// The outgoing delta is derived by the field from the old and new values.
type Rule interface {
	Combine(u Update) float64
	Name() string
}

// RuleFunc adapts a function to Rule.
type RuleFunc struct {
	Label string
	Fn    func(u Update) float64
}

func (r RuleFunc) Combine(u Update) float64 { return r.Fn(u) }
func (r RuleFunc) Name() string             { return r.Label }

// Sum keeps a running sum of all deltas.
type Sum struct{}

func (Sum) Combine(u Update) float64 { return u.Old + u.Delta }
func (Sum) Name() string             { return "sum" }

// Max tracks the largest active input contribution.
type Max struct{}

func (Max) Combine(u Update) float64 {
	return u.Field.reduceInputs(math.Inf(-1), math.Max)
}
func (Max) Name() string { return "max" }

// Min tracks the smallest active input contribution.
type Min struct{}

func (Min) Combine(u Update) float64 {
	return u.Field.reduceInputs(math.Inf(1), math.Min)
}
func (Min) Name() string { return "min" }

// Comparator selects how Threshold compares its input sum.
type Comparator int

const (
	Above Comparator = iota
	Below
	AboveOrEqual
	BelowOrEqual
)

// String returns the comparator name.
func (c Comparator) String() string {
	switch c {
	case Above:
		return "above"
	case Below:
		return "below"
	case AboveOrEqual:
		return "above-or-equal"
	case BelowOrEqual:
		return "below-or-equal"
	default:
		return fmt.Sprintf("comparator(%d)", int(c))
	}
}

// ParseComparator parses a comparator name as produced by String.
func ParseComparator(s string) (Comparator, error) {
	switch s {
	case "above":
		return Above, nil
	case "below":
		return Below, nil
	case "above-or-equal":
		return AboveOrEqual, nil
	case "below-or-equal":
		return BelowOrEqual, nil
	}
	return 0, fmt.Errorf("unknown comparator %q", s)
}

func (c Comparator) holds(x, threshold float64) bool {
	switch c {
	case Above:
		return x > threshold
	case Below:
		return x < threshold
	case AboveOrEqual:
		return x >= threshold
	case BelowOrEqual:
		return x <= threshold
	}
	return false
}

// Threshold maps the input sum to 1 when the comparison holds, else 0.
type Threshold struct {
	Value float64
	Cmp   Comparator
}

func (t Threshold) Combine(u Update) float64 {
	if t.Cmp.holds(u.Field.InputSum(), t.Value) {
		return 1
	}
	return 0
}
func (t Threshold) Name() string { return "threshold-" + t.Cmp.String() }

// Func1 applies a unary function to the input sum.
type Func1 struct {
	Label string
	Fn    func(x float64) float64
}

func (f Func1) Combine(u Update) float64 { return f.Fn(u.Field.InputSum()) }
func (f Func1) Name() string             { return f.Label }

// Func2 applies a binary function to the sums of argument 0 and argument 1.
type Func2 struct {
	Label string
	Fn    func(a, b float64) float64
}

func (f Func2) Combine(u Update) float64 { return f.Fn(u.Field.ArgSum(0), u.Field.ArgSum(1)) }
func (f Func2) Name() string             { return f.Label }

// Mul multiplies the sums of argument 0 and argument 1.
type Mul struct{}

func (Mul) Combine(u Update) float64 { return u.Field.ArgSum(0) * u.Field.ArgSum(1) }
func (Mul) Name() string             { return "mul" }
