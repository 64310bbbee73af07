package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// marshalJSONValue encodes v for a json/jsonb column.
func marshalJSONValue(v any) (driver.Value, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// scanJSON decodes a json/jsonb column value into dst.
func scanJSON(kind string, value any, dst any) error {
	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("%s: unsupported scan type %T", kind, value)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%s: %w", kind, err)
	}
	return nil
}
