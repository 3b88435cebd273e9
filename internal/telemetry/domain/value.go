package telemetry

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind tags the runtime type of a MetricValue.
type ValueKind int

const (
	KindNumber ValueKind = iota + 1
	KindBool
	KindString
)

// MetricValue is a tagged union over the value types a metric may carry.
// Lookups go through the typed accessors; there is no silent coercion.
type MetricValue struct {
	kind ValueKind
	num  float64
	b    bool
	str  string
}

// Number wraps a numeric metric value.
func Number(v float64) MetricValue { return MetricValue{kind: KindNumber, num: v} }

// Bool wraps a boolean metric value.
func Bool(v bool) MetricValue { return MetricValue{kind: KindBool, b: v} }

// String wraps a string metric value.
func String(v string) MetricValue { return MetricValue{kind: KindString, str: v} }

// Kind returns the value's tag. The zero MetricValue has kind 0 and matches
// no accessor.
func (v MetricValue) Kind() ValueKind { return v.kind }

// Number returns the numeric value if the kind is KindNumber.
func (v MetricValue) Number() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Bool returns the boolean value if the kind is KindBool.
func (v MetricValue) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// Text returns the string value if the kind is KindString.
func (v MetricValue) Text() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// ParseMetricValue converts a decoded JSON value into a MetricValue.
func ParseMetricValue(raw any) (MetricValue, error) {
	switch v := raw.(type) {
	case float64:
		return Number(v), nil
	case int:
		return Number(float64(v)), nil
	case int64:
		return Number(float64(v)), nil
	case bool:
		return Bool(v), nil
	case string:
		return String(v), nil
	case json.Number:
		number, err := v.Float64()
		if err != nil {
			return MetricValue{}, fmt.Errorf("telemetry: metric value %q: %w", v.String(), err)
		}
		return Number(number), nil
	default:
		return MetricValue{}, fmt.Errorf("telemetry: unsupported metric value type %T", raw)
	}
}

// MarshalJSON encodes the underlying value directly.
func (v MetricValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindString:
		return json.Marshal(v.str)
	default:
		return nil, fmt.Errorf("telemetry: cannot marshal zero metric value")
	}
}

// UnmarshalJSON decodes a number, boolean or string.
func (v *MetricValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseMetricValue(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// StringRepr renders the value for logs and reports.
func (v MetricValue) StringRepr() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return v.str
	default:
		return ""
	}
}
