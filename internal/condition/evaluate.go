package condition

import (
	"strings"

	telemetry "gridflow/internal/telemetry/domain"
)

// Evaluator evaluates conditions against telemetry snapshots. It holds no
// state and is safe for concurrent reuse.
type Evaluator struct{}

// NewEvaluator constructs an Evaluator.
func NewEvaluator() Evaluator { return Evaluator{} }

// Evaluate parses raw and evaluates it against data.
func (e Evaluator) Evaluate(raw any, data telemetry.TelemetryData) (bool, error) {
	cond, err := Parse(raw)
	if err != nil {
		return false, err
	}
	return e.eval(cond, data)
}

func (e Evaluator) eval(cond Condition, data telemetry.TelemetryData) (bool, error) {
	switch c := cond.(type) {
	case Leaf:
		return e.evalLeaf(c, data)
	case Composite:
		return e.evalComposite(c, data)
	default:
		return false, &UnsupportedTypeError{Value: cond}
	}
}

func (e Evaluator) evalComposite(c Composite, data telemetry.TelemetryData) (bool, error) {
	for _, child := range c.Conditions {
		result, err := e.eval(child, data)
		if err != nil {
			return false, err
		}
		if c.Operator == BoolAnd && !result {
			return false, nil
		}
		if c.Operator == BoolOr && result {
			return true, nil
		}
	}
	return c.Operator == BoolAnd, nil
}

func (e Evaluator) evalLeaf(c Leaf, data telemetry.TelemetryData) (bool, error) {
	value, ok := data.Metric(c.Field)
	if !ok {
		return false, &EvaluationError{Field: c.Field, Operator: c.Operator, Reason: "metric not present"}
	}

	switch c.Operator {
	case OpGreater, OpLess, OpGreaterOrEqual, OpLessOrEqual:
		return compareOrdered(c, value)
	case OpEqual:
		return valuesEqual(value, c.Value), nil
	case OpNotEqual:
		return !valuesEqual(value, c.Value), nil
	case OpContains:
		text, ok := value.Text()
		if !ok {
			return false, &EvaluationError{Field: c.Field, Operator: c.Operator, Reason: "contains requires a string metric"}
		}
		sub, ok := c.Value.(string)
		if !ok {
			return false, &EvaluationError{Field: c.Field, Operator: c.Operator, Reason: "contains requires a string value"}
		}
		return strings.Contains(text, sub), nil
	case OpIn:
		list, ok := c.Value.([]any)
		if !ok {
			return false, &EvaluationError{Field: c.Field, Operator: c.Operator, Reason: "in requires a list value"}
		}
		for _, candidate := range list {
			if valuesEqual(value, candidate) {
				return true, nil
			}
		}
		return false, nil
	case OpBetween:
		return compareBetween(c, value)
	default:
		return false, &EvaluationError{Field: c.Field, Operator: c.Operator, Reason: "unsupported operator"}
	}
}

func compareOrdered(c Leaf, value telemetry.MetricValue) (bool, error) {
	have, ok := value.Number()
	if !ok {
		return false, &EvaluationError{Field: c.Field, Operator: c.Operator, Reason: "numeric comparison on non-numeric metric"}
	}
	want, ok := toFloat(c.Value)
	if !ok {
		return false, &EvaluationError{Field: c.Field, Operator: c.Operator, Reason: "numeric comparison requires a numeric value"}
	}
	switch c.Operator {
	case OpGreater:
		return have > want, nil
	case OpLess:
		return have < want, nil
	case OpGreaterOrEqual:
		return have >= want, nil
	default:
		return have <= want, nil
	}
}

func compareBetween(c Leaf, value telemetry.MetricValue) (bool, error) {
	have, ok := value.Number()
	if !ok {
		return false, &EvaluationError{Field: c.Field, Operator: c.Operator, Reason: "between requires a numeric metric"}
	}
	bounds, ok := c.Value.(map[string]any)
	if !ok {
		return false, &EvaluationError{Field: c.Field, Operator: c.Operator, Reason: "between requires a {min, max} value"}
	}
	min, okMin := toFloat(bounds["min"])
	max, okMax := toFloat(bounds["max"])
	if !okMin || !okMax {
		return false, &EvaluationError{Field: c.Field, Operator: c.Operator, Reason: "between requires numeric min and max"}
	}
	return have >= min && have <= max, nil
}

// valuesEqual implements eq/neq across the value union. Mismatched types
// compare as not equal; only ordering, contains and between are
// type-restricted.
func valuesEqual(value telemetry.MetricValue, want any) bool {
	switch value.Kind() {
	case telemetry.KindNumber:
		have, _ := value.Number()
		num, ok := toFloat(want)
		return ok && have == num
	case telemetry.KindBool:
		have, _ := value.Bool()
		b, ok := want.(bool)
		return ok && have == b
	case telemetry.KindString:
		have, _ := value.Text()
		s, ok := want.(string)
		return ok && have == s
	default:
		return false
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
