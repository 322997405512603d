package engine

import (
	"fmt"

	"github.com/hnjm/SQLiteServer/internal/errs"
)

// toStringFallback renders any scanned SQLite value as text, matching
// SQLite's own type-affinity coercion rules closely enough for the
// Get* accessors that request a narrower type than the column holds.
func toStringFallback(v interface{}) string {
	return fmt.Sprint(v)
}

// valueToInt64 coerces a scanned SQLite value to an integer, as the
// Get{Int16,Int32,Int64} accessors share one underlying conversion
// (spec §4.3).
func valueToInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int32:
		return int64(t), nil
	case int:
		return int64(t), nil
	case float64:
		return int64(t), nil
	case []byte:
		var n int64
		if _, err := fmt.Sscanf(string(t), "%d", &n); err != nil {
			return 0, errs.ServerException(fmt.Sprintf("cannot convert %q to integer", string(t)))
		}
		return n, nil
	case string:
		var n int64
		if _, err := fmt.Sscanf(t, "%d", &n); err != nil {
			return 0, errs.ServerException(fmt.Sprintf("cannot convert %q to integer", t))
		}
		return n, nil
	case nil:
		return 0, nil
	default:
		return 0, errs.ServerException(fmt.Sprintf("cannot convert %T to integer", v))
	}
}
