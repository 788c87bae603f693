package guard

import "fmt"

// Truthy converts a guard result into a boolean.
//
// Empty values (nil, "", empty lists and objects) are false, the exact strings "true" and "false"
// read as booleans and numbers are true when non-zero.
func Truthy(value any) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		// Any other non-empty string is truthy, including "0" and "FALSE".
		return v != "" && v != "false", nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case []any:
		return len(v) > 0, nil
	case map[string]any:
		return len(v) > 0, nil
	default:
		return false, fmt.Errorf("cannot convert %T to boolean", value)
	}
}
