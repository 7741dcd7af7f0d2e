package gridcalc

import (
	"math"
	"strings"
)

// BuiltinFunc evaluates a call given its unevaluated arguments, so that
// range arguments can be walked lazily
type BuiltinFunc func(ev *Evaluator, args []ASTNode) (float64, error)

// builtins is the function table consulted by the parser and the
// evaluator. every function here is range-aware.
var builtins = map[string]BuiltinFunc{
	"SUM":     builtinSum,
	"AVERAGE": builtinAverage,
	"COUNT":   builtinCount,
	"MIN":     builtinMin,
	"MAX":     builtinMax,
}

func lookupBuiltin(name string) (BuiltinFunc, bool) {
	fn, ok := builtins[strings.ToUpper(name)]
	return fn, ok
}

// BuiltinNames lists the supported function names
func BuiltinNames() []string {
	return []string{"AVERAGE", "COUNT", "MAX", "MIN", "SUM"}
}

// aggregate feeds every numeric contribution of args to fn. ranges and
// single cell references are walked as cells; anything else is
// evaluated as a scalar.
func aggregate(ev *Evaluator, args []ASTNode, fn func(float64)) error {
	for _, arg := range args {
		switch a := arg.(type) {
		case *RangeNode:
			if err := ev.eachNumber(a.Range(), fn); err != nil {
				return err
			}
		case *CellRefNode:
			if err := ev.eachNumber(NewRangeAddress(a.Address, a.Address), fn); err != nil {
				return err
			}
		default:
			v, err := arg.Eval(ev)
			if err != nil {
				return err
			}
			fn(v)
		}
	}
	return nil
}

// SUM adds all numeric values; text and empty cells contribute 0
func builtinSum(ev *Evaluator, args []ASTNode) (float64, error) {
	sum := 0.0
	err := aggregate(ev, args, func(v float64) {
		sum += v
	})
	return sum, err
}

// AVERAGE divides the sum by the count of numeric contributions
func builtinAverage(ev *Evaluator, args []ASTNode) (float64, error) {
	sum := 0.0
	count := 0
	err := aggregate(ev, args, func(v float64) {
		sum += v
		count++
	})
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, newEvalError(EvalErrorDivideByZero)
	}
	return sum / float64(count), nil
}

// COUNT counts numeric values
func builtinCount(ev *Evaluator, args []ASTNode) (float64, error) {
	count := 0
	err := aggregate(ev, args, func(float64) {
		count++
	})
	return float64(count), err
}

func builtinMin(ev *Evaluator, args []ASTNode) (float64, error) {
	return extreme(ev, args, math.Min)
}

func builtinMax(ev *Evaluator, args []ASTNode) (float64, error) {
	return extreme(ev, args, math.Max)
}

// extreme folds numeric contributions with pick. no contributions gives 0.
func extreme(ev *Evaluator, args []ASTNode, pick func(a, b float64) float64) (float64, error) {
	result := 0.0
	seen := false
	err := aggregate(ev, args, func(v float64) {
		if !seen {
			result = v
			seen = true
			return
		}
		result = pick(result, v)
	})
	if err != nil {
		return 0, err
	}
	return result, nil
}
