package events

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/shopspring/decimal"
)

// CustomExpression is a compiled arithmetic expression evaluated against each
// event's property bag, ex "tokens * 0.25 + characters". Property keys are
// free variables; events missing a referenced key contribute zero.
type CustomExpression struct {
	source  string
	program *vm.Program
}

// CompileExpression compiles the expression source. A malformed expression is
// a configuration error, not absent data, and is surfaced to the caller.
func CompileExpression(source string) (*CustomExpression, error) {
	program, err := expr.Compile(source, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to compile custom aggregation expression").
			WithReportableDetails(map[string]any{
				"expression": source,
			}).
			Mark(ierr.ErrValidation)
	}
	return &CustomExpression{source: source, program: program}, nil
}

// Source returns the original expression text
func (e *CustomExpression) Source() string {
	return e.source
}

// EvaluateSum runs the expression once per event and sums the per-event
// results. Events whose evaluation fails or yields a non-numeric value are
// excluded from the sum; the caller still counts them.
func (e *CustomExpression) EvaluateSum(events []*Event) decimal.Decimal {
	total := decimal.Zero
	for _, event := range events {
		env := event.Properties
		if env == nil {
			env = map[string]interface{}{}
		}

		out, err := expr.Run(e.program, env)
		if err != nil {
			continue
		}

		if v, ok := toDecimal(out); ok {
			total = total.Add(v)
		}
	}
	return total
}

func toDecimal(v interface{}) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case uint64:
		return decimal.NewFromUint64(n), true
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}
