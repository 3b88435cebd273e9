package condition

import (
	"fmt"
	"strings"
)

// Result is the outcome of static validation.
type Result struct {
	Valid  bool
	Errors []string
}

// Validate statically checks a raw condition without touching telemetry.
// It mirrors the Parse rules but never fails early: all problems found are
// accumulated into the result.
func (Evaluator) Validate(raw any) Result {
	errs := collectErrors(raw)
	return Result{Valid: len(errs) == 0, Errors: errs}
}

func collectErrors(raw any) []string {
	switch v := raw.(type) {
	case string:
		return validateSimple(v)
	case map[string]any:
		if children, ok := v["conditions"]; ok {
			return validateComposite(v, children)
		}
		return validateLeaf(v)
	case Leaf:
		return validateLeaf(map[string]any{"field": v.Field, "operator": string(v.Operator), "value": v.Value})
	case Composite:
		errs := []string{}
		if v.Operator != BoolAnd && v.Operator != BoolOr {
			errs = append(errs, fmt.Sprintf("composite operator %q must be AND or OR", v.Operator))
		}
		if len(v.Conditions) == 0 {
			errs = append(errs, "composite condition requires a non-empty conditions list")
		}
		for _, child := range v.Conditions {
			errs = append(errs, collectErrors(child)...)
		}
		return errs
	default:
		return []string{fmt.Sprintf("unsupported condition type %T", raw)}
	}
}

func validateSimple(raw string) []string {
	tokens := strings.Fields(raw)
	if len(tokens) != 3 {
		return []string{fmt.Sprintf("condition %q must have exactly three tokens: field operator value", raw)}
	}
	var errs []string
	if _, ok := symbolOperators[tokens[1]]; !ok {
		errs = append(errs, fmt.Sprintf("unknown operator %q", tokens[1]))
	}
	return errs
}

func validateLeaf(raw map[string]any) []string {
	var errs []string
	field, _ := raw["field"].(string)
	if field == "" {
		errs = append(errs, "leaf condition requires a non-empty field")
	}
	opText, _ := raw["operator"].(string)
	if !Operator(opText).Valid() {
		errs = append(errs, fmt.Sprintf("unknown leaf operator %q", opText))
	}
	return errs
}

func validateComposite(raw map[string]any, children any) []string {
	var errs []string
	opText, _ := raw["operator"].(string)
	op := BoolOperator(strings.ToUpper(opText))
	if op != BoolAnd && op != BoolOr {
		errs = append(errs, fmt.Sprintf("composite operator %q must be AND or OR", opText))
	}
	list, ok := children.([]any)
	if !ok || len(list) == 0 {
		errs = append(errs, "composite condition requires a non-empty conditions list")
		return errs
	}
	for _, child := range list {
		errs = append(errs, collectErrors(child)...)
	}
	return errs
}
