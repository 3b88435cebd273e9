// Package condition implements the boolean condition DSL evaluated against
// telemetry records: simple three-token strings ("temperature > 25"),
// structured leaf conditions ({field, operator, value}) and AND/OR composites
// over nested conditions.
package condition

import (
	"strconv"
	"strings"
)

// Operator is a leaf comparison operator.
type Operator string

const (
	OpGreater        Operator = "gt"
	OpLess           Operator = "lt"
	OpGreaterOrEqual Operator = "gte"
	OpLessOrEqual    Operator = "lte"
	OpEqual          Operator = "eq"
	OpNotEqual       Operator = "neq"
	OpContains       Operator = "contains"
	OpIn             Operator = "in"
	OpBetween        Operator = "between"
)

// Valid returns true when the operator is supported.
func (o Operator) Valid() bool {
	switch o {
	case OpGreater, OpLess, OpGreaterOrEqual, OpLessOrEqual,
		OpEqual, OpNotEqual, OpContains, OpIn, OpBetween:
		return true
	default:
		return false
	}
}

// BoolOperator combines composite children.
type BoolOperator string

const (
	BoolAnd BoolOperator = "AND"
	BoolOr  BoolOperator = "OR"
)

// Condition is the closed union produced by Parse. Exactly two concrete
// cases exist: Leaf and Composite.
type Condition interface {
	isCondition()
}

// Leaf compares one telemetry field against a value.
type Leaf struct {
	Field    string
	Operator Operator
	Value    any
}

func (Leaf) isCondition() {}

// Composite combines child conditions with AND/OR.
type Composite struct {
	Operator   BoolOperator
	Conditions []Condition
}

func (Composite) isCondition() {}

// symbol operators accepted in the simple string form.
var symbolOperators = map[string]Operator{
	">":  OpGreater,
	"<":  OpLess,
	">=": OpGreaterOrEqual,
	"<=": OpLessOrEqual,
	"==": OpEqual,
	"!=": OpNotEqual,
}

// Parse converts a raw condition value into the union. Accepted shapes:
// a simple "<field> <op> <value>" string, a leaf map with field/operator/value
// entries, or a composite map with an AND/OR operator and a conditions list.
func Parse(raw any) (Condition, error) {
	switch v := raw.(type) {
	case string:
		return parseSimple(v)
	case map[string]any:
		return parseMap(v)
	case Condition:
		return v, nil
	default:
		return nil, &UnsupportedTypeError{Value: raw}
	}
}

func parseSimple(raw string) (Condition, error) {
	tokens := strings.Fields(raw)
	if len(tokens) != 3 {
		return nil, &FormatError{Raw: raw, Reason: "expected exactly three tokens: field operator value"}
	}
	op, ok := symbolOperators[tokens[1]]
	if !ok {
		return nil, &FormatError{Raw: raw, Reason: "unknown operator " + tokens[1]}
	}
	return Leaf{Field: tokens[0], Operator: op, Value: parseLiteral(tokens[2])}, nil
}

func parseMap(raw map[string]any) (Condition, error) {
	if children, ok := raw["conditions"]; ok {
		return parseComposite(raw, children)
	}
	field, _ := raw["field"].(string)
	opText, _ := raw["operator"].(string)
	op := Operator(opText)
	if field == "" {
		return nil, &FormatError{Raw: opText, Reason: "leaf condition requires a field"}
	}
	if !op.Valid() {
		return nil, &FormatError{Raw: opText, Reason: "unknown leaf operator"}
	}
	return Leaf{Field: field, Operator: op, Value: raw["value"]}, nil
}

func parseComposite(raw map[string]any, children any) (Condition, error) {
	opText, _ := raw["operator"].(string)
	op := BoolOperator(strings.ToUpper(opText))
	if op != BoolAnd && op != BoolOr {
		return nil, &FormatError{Raw: opText, Reason: "composite operator must be AND or OR"}
	}
	list, ok := children.([]any)
	if !ok || len(list) == 0 {
		return nil, &FormatError{Raw: opText, Reason: "composite condition requires a non-empty conditions list"}
	}
	parsed := make([]Condition, 0, len(list))
	for _, child := range list {
		c, err := Parse(child)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, c)
	}
	return Composite{Operator: op, Conditions: parsed}, nil
}

// parseLiteral interprets the value token of a simple string condition:
// number, then boolean, then bare string.
func parseLiteral(token string) any {
	if num, err := strconv.ParseFloat(token, 64); err == nil {
		return num
	}
	if b, err := strconv.ParseBool(token); err == nil {
		return b
	}
	return token
}
