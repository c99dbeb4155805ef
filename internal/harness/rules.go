package harness

import (
	"fmt"
	"math"

	"github.com/roach88/fieldnet/internal/field"
)

// ruleFor builds the combination rule a cell declares.
func ruleFor(c CellSpec) (field.Rule, error) {
	switch c.Rule {
	case "sum":
		return field.Sum{}, nil
	case "max":
		return field.Max{}, nil
	case "min":
		return field.Min{}, nil
	case "mul":
		return field.Mul{}, nil
	case "diff":
		return field.Func2{Label: "diff", Fn: func(a, b float64) float64 { return a - b }}, nil
	case "threshold":
		cmp := field.Above
		if c.Comparator != "" {
			var err error
			if cmp, err = field.ParseComparator(c.Comparator); err != nil {
				return nil, err
			}
		}
		return field.Threshold{Value: c.Threshold, Cmp: cmp}, nil
	case "identity":
		return field.Func1{Label: "identity", Fn: func(x float64) float64 { return x }}, nil
	case "tanh":
		return field.Func1{Label: "tanh", Fn: math.Tanh}, nil
	case "sigmoid":
		return field.Func1{Label: "sigmoid", Fn: func(x float64) float64 { return 1 / (1 + math.Exp(-x)) }}, nil
	case "relu":
		return field.Func1{Label: "relu", Fn: func(x float64) float64 { return math.Max(0, x) }}, nil
	case "":
		return nil, fmt.Errorf("rule is required")
	}
	return nil, fmt.Errorf("unknown rule %q", c.Rule)
}
