package condition

import (
	"errors"
	"testing"
	"time"

	telemetry "gridflow/internal/telemetry/domain"
)

func record(metrics map[string]telemetry.MetricValue) telemetry.TelemetryData {
	return telemetry.TelemetryData{
		ID:             "t-1",
		DeviceID:       "device-1",
		OrganizationID: "org-1",
		Timestamp:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Metrics:        metrics,
	}
}

func TestEvaluate_SimpleString(t *testing.T) {
	evaluator := NewEvaluator()
	data := record(map[string]telemetry.MetricValue{"temperature": telemetry.Number(25.5)})

	cases := []struct {
		raw  string
		want bool
	}{
		{"temperature > 25", true},
		{"temperature > 30", false},
		{"temperature < 30", true},
		{"temperature >= 25.5", true},
		{"temperature <= 25.5", true},
		{"temperature == 25.5", true},
		{"temperature != 25.5", false},
	}
	for _, tc := range cases {
		got, err := evaluator.Evaluate(tc.raw, data)
		if err != nil {
			t.Fatalf("Evaluate(%q): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("Evaluate(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestEvaluate_SimpleStringFormatError(t *testing.T) {
	evaluator := NewEvaluator()
	data := record(map[string]telemetry.MetricValue{"temperature": telemetry.Number(25.5)})

	_, err := evaluator.Evaluate("temperature", data)
	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected FormatError, got %v", err)
	}

	result := evaluator.Validate("temperature")
	if result.Valid {
		t.Fatal("expected invalid result for one-token condition")
	}
}

func TestEvaluate_LeafContains(t *testing.T) {
	evaluator := NewEvaluator()
	data := record(map[string]telemetry.MetricValue{"status": telemetry.String("active")})

	raw := map[string]any{"field": "status", "operator": "contains", "value": "act"}
	got, err := evaluator.Evaluate(raw, data)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !got {
		t.Fatal("expected contains to match")
	}
}

func TestEvaluate_LeafIn(t *testing.T) {
	evaluator := NewEvaluator()
	data := record(map[string]telemetry.MetricValue{"status": telemetry.String("active")})

	raw := map[string]any{"field": "status", "operator": "in", "value": []any{"idle", "active"}}
	got, err := evaluator.Evaluate(raw, data)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !got {
		t.Fatal("expected in to match")
	}
}

func TestEvaluate_BetweenInclusive(t *testing.T) {
	evaluator := NewEvaluator()
	between := map[string]any{
		"field":    "temperature",
		"operator": "between",
		"value":    map[string]any{"min": 20.0, "max": 30.0},
	}

	cases := []struct {
		value float64
		want  bool
	}{
		{25.5, true},
		{20.0, true},
		{30.0, true},
		{19.9, false},
		{30.1, false},
	}
	for _, tc := range cases {
		data := record(map[string]telemetry.MetricValue{"temperature": telemetry.Number(tc.value)})
		got, err := evaluator.Evaluate(between, data)
		if err != nil {
			t.Fatalf("Evaluate(between, %v): %v", tc.value, err)
		}
		if got != tc.want {
			t.Fatalf("Evaluate(between, %v) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestEvaluate_CompositeTruthTable(t *testing.T) {
	evaluator := NewEvaluator()

	for _, a := range []bool{false, true} {
		for _, b := range []bool{false, true} {
			data := record(map[string]telemetry.MetricValue{
				"a": telemetry.Bool(a),
				"b": telemetry.Bool(b),
			})
			childA := map[string]any{"field": "a", "operator": "eq", "value": true}
			childB := map[string]any{"field": "b", "operator": "eq", "value": true}

			andRaw := map[string]any{"operator": "AND", "conditions": []any{childA, childB}}
			got, err := evaluator.Evaluate(andRaw, data)
			if err != nil {
				t.Fatalf("AND(%v,%v): %v", a, b, err)
			}
			if got != (a && b) {
				t.Fatalf("AND(%v,%v) = %v", a, b, got)
			}

			orRaw := map[string]any{"operator": "OR", "conditions": []any{childA, childB}}
			got, err = evaluator.Evaluate(orRaw, data)
			if err != nil {
				t.Fatalf("OR(%v,%v): %v", a, b, err)
			}
			if got != (a || b) {
				t.Fatalf("OR(%v,%v) = %v", a, b, got)
			}
		}
	}
}

func TestEvaluate_CompositeOperatorCaseInsensitive(t *testing.T) {
	evaluator := NewEvaluator()
	data := record(map[string]telemetry.MetricValue{"temperature": telemetry.Number(25.5)})

	raw := map[string]any{"operator": "and", "conditions": []any{"temperature > 20", "temperature < 30"}}
	got, err := evaluator.Evaluate(raw, data)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !got {
		t.Fatal("expected lowercase and to behave as AND")
	}
}

func TestEvaluate_EqualityAcrossTypes(t *testing.T) {
	evaluator := NewEvaluator()
	data := record(map[string]telemetry.MetricValue{"level": telemetry.String("5")})

	eq := map[string]any{"field": "level", "operator": "eq", "value": 5.0}
	got, err := evaluator.Evaluate(eq, data)
	if err != nil {
		t.Fatalf("Evaluate eq: %v", err)
	}
	if got {
		t.Fatal("string \"5\" must not equal number 5")
	}

	neq := map[string]any{"field": "level", "operator": "neq", "value": 5.0}
	got, err = evaluator.Evaluate(neq, data)
	if err != nil {
		t.Fatalf("Evaluate neq: %v", err)
	}
	if !got {
		t.Fatal("neq across mismatched types must be true")
	}
}

func TestEvaluate_MissingMetric(t *testing.T) {
	evaluator := NewEvaluator()
	data := record(map[string]telemetry.MetricValue{"temperature": telemetry.Number(25.5)})

	_, err := evaluator.Evaluate("humidity > 10", data)
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %v", err)
	}
	if evalErr.Field != "humidity" {
		t.Fatalf("expected field humidity in error, got %q", evalErr.Field)
	}
}

func TestEvaluate_OrderingOnNonNumber(t *testing.T) {
	evaluator := NewEvaluator()
	data := record(map[string]telemetry.MetricValue{"status": telemetry.String("active")})

	_, err := evaluator.Evaluate("status > 10", data)
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %v", err)
	}
}

func TestEvaluate_UnsupportedShape(t *testing.T) {
	evaluator := NewEvaluator()
	data := record(map[string]telemetry.MetricValue{"temperature": telemetry.Number(25.5)})

	_, err := evaluator.Evaluate(42, data)
	var typeErr *UnsupportedTypeError
	if !errors.As(err, &typeErr) {
		t.Fatalf("expected UnsupportedTypeError, got %v", err)
	}
}
