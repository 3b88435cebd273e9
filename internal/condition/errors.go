package condition

import "fmt"

// FormatError reports a malformed simple-string condition.
type FormatError struct {
	Raw    string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("condition: invalid format %q: %s", e.Raw, e.Reason)
}

// UnsupportedTypeError reports a condition value whose shape is not one of
// the three accepted forms. This is a programming-usage error, not a data
// error.
type UnsupportedTypeError struct {
	Value any
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("condition: unsupported condition type %T", e.Value)
}

// EvaluationError reports a runtime mismatch between a condition and the
// telemetry record it is evaluated against.
type EvaluationError struct {
	Field    string
	Operator Operator
	Reason   string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("condition: cannot evaluate %q %s: %s", e.Field, e.Operator, e.Reason)
}
