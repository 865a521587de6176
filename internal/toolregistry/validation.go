package toolregistry

import (
	"fmt"
	"reflect"
	"strings"

	"hyperfocus/internal/tools/ports"
)

// FieldViolation describes one schema violation so callers can produce a
// user-facing validation error instead of a stack trace.
type FieldViolation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (v FieldViolation) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// FormatViolations flattens violations into a single actionable message.
func FormatViolations(violations []FieldViolation) string {
	parts := make([]string, len(violations))
	for i, v := range violations {
		parts[i] = v.String()
	}
	return strings.Join(parts, "; ")
}

// ValidateArguments checks args against the schema and collects every
// violation rather than stopping at the first. Lenient: float64 is accepted
// for integers (JSON numbers) and extra fields not in the schema are
// allowed.
func ValidateArguments(schema ports.ParameterSchema, args map[string]any) []FieldViolation {
	if len(schema.Properties) == 0 {
		return nil
	}

	var violations []FieldViolation

	for _, req := range schema.Required {
		val, ok := args[req]
		if !ok || val == nil {
			violations = append(violations, FieldViolation{
				Path:    req,
				Message: "required argument is missing",
			})
		}
	}

	for key, val := range args {
		prop, ok := schema.Properties[key]
		if !ok {
			continue // extra fields allowed
		}
		if val == nil {
			continue // nil values skip checks
		}
		violations = append(violations, checkProperty(key, prop, val)...)
	}

	return violations
}

func checkProperty(path string, prop ports.Property, val any) []FieldViolation {
	if v := checkType(path, prop.Type, val); v != nil {
		return []FieldViolation{*v}
	}

	var violations []FieldViolation

	if s, ok := val.(string); ok {
		if prop.MinLength != nil && len(s) < *prop.MinLength {
			violations = append(violations, FieldViolation{
				Path:    path,
				Message: fmt.Sprintf("must be at least %d characters", *prop.MinLength),
			})
		}
		if prop.MaxLength != nil && len(s) > *prop.MaxLength {
			violations = append(violations, FieldViolation{
				Path:    path,
				Message: fmt.Sprintf("must be at most %d characters", *prop.MaxLength),
			})
		}
	}

	if num, ok := asFloat(val); ok {
		if prop.Minimum != nil && num < *prop.Minimum {
			violations = append(violations, FieldViolation{
				Path:    path,
				Message: fmt.Sprintf("must be >= %v", *prop.Minimum),
			})
		}
		if prop.Maximum != nil && num > *prop.Maximum {
			violations = append(violations, FieldViolation{
				Path:    path,
				Message: fmt.Sprintf("must be <= %v", *prop.Maximum),
			})
		}
	}

	if len(prop.Enum) > 0 {
		found := false
		for _, allowed := range prop.Enum {
			if reflect.DeepEqual(allowed, val) || looseEqual(allowed, val) {
				found = true
				break
			}
		}
		if !found {
			violations = append(violations, FieldViolation{
				Path:    path,
				Message: fmt.Sprintf("must be one of %v", prop.Enum),
			})
		}
	}

	if items := prop.Items; items != nil {
		if list, ok := val.([]any); ok {
			for i, elem := range list {
				violations = append(violations, checkProperty(fmt.Sprintf("%s[%d]", path, i), *items, elem)...)
			}
		}
	}

	return violations
}

func checkType(path, expectedType string, val any) *FieldViolation {
	if expectedType == "" {
		return nil
	}

	switch strings.ToLower(expectedType) {
	case "string":
		if _, ok := val.(string); !ok {
			return &FieldViolation{Path: path, Message: fmt.Sprintf("expected string, got %T", val)}
		}
	case "number", "integer":
		switch val.(type) {
		case float64, float32, int, int64:
			// OK - JSON numbers unmarshal as float64
		default:
			return &FieldViolation{Path: path, Message: fmt.Sprintf("expected number, got %T", val)}
		}
	case "boolean":
		if _, ok := val.(bool); !ok {
			return &FieldViolation{Path: path, Message: fmt.Sprintf("expected boolean, got %T", val)}
		}
	case "array":
		if _, ok := val.([]any); !ok {
			return &FieldViolation{Path: path, Message: fmt.Sprintf("expected array, got %T", val)}
		}
	case "object":
		if _, ok := val.(map[string]any); !ok {
			return &FieldViolation{Path: path, Message: fmt.Sprintf("expected object, got %T", val)}
		}
	}
	return nil
}

func asFloat(val any) (float64, bool) {
	switch n := val.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// looseEqual compares enum candidates across the int/float64 boundary that
// JSON decoding introduces.
func looseEqual(a, b any) bool {
	fa, okA := asFloat(a)
	fb, okB := asFloat(b)
	return okA && okB && fa == fb
}
