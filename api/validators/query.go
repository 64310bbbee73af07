package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
)

func fieldError(msg, field string, extra ...any) *pkgerrors.Error {
	details := map[string]any{"field": field}
	for i := 0; i+1 < len(extra); i += 2 {
		if key, ok := extra[i].(string); ok {
			details[key] = extra[i+1]
		}
	}
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(details)
}

// ParseQueryInt reads key as an int in [min, max], or defaultVal when absent.
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fieldError("query parameter must be numeric", key)
	}
	if value < min || value > max {
		return 0, fieldError("query parameter out of range", key, "min", min, "max", max)
	}
	return value, nil
}

// ParseQueryEnum runs parse on key. Absent values, and any listed in
// blanks, return ok=false without error.
func ParseQueryEnum[T ~string](r *http.Request, key string, parse func(string) (T, error), blanks ...string) (T, bool, error) {
	var zero T
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return zero, false, nil
	}
	for _, blank := range blanks {
		if strings.EqualFold(raw, blank) {
			return zero, false, nil
		}
	}
	value, err := parse(raw)
	if err != nil {
		return zero, false, fieldError("invalid "+key, key, "value", raw)
	}
	return value, true, nil
}

// ParseIndex reads a zero-based line index from a path parameter.
func ParseIndex(raw, field string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 0 {
		return 0, fieldError("index must be a non-negative integer", field)
	}
	return value, nil
}
