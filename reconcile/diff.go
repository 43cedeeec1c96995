package reconcile

import "reflect"

// structuralEqual compares two JSON-decoded values. Object keys compare
// order-insensitively; arrays compare element-wise in order. Values are
// expected in their canonical encoding/json shapes (map[string]interface{},
// []interface{}, float64, string, bool, nil); anything else falls back to
// reflect.DeepEqual.
func structuralEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	switch av := a.(type) {
	case map[string]interface{}:
		bv, ok := b.(map[string]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, present := bv[k]
			if !present || !structuralEqual(v, other) {
				return false
			}
		}
		return true

	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !structuralEqual(av[i], bv[i]) {
				return false
			}
		}
		return true

	case float64:
		bv, ok := b.(float64)
		return ok && av == bv

	case string:
		bv, ok := b.(string)
		return ok && av == bv

	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}

	return reflect.DeepEqual(a, b)
}
