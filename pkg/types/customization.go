package types

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
)

// MaxAdditionUnits caps each paid addition on one line.
const MaxAdditionUnits = 5

// Customization is the configuration a shopper picked for one cart or order
// line: an optional size and counts of paid additions. The zero value means
// "no size, no additions".
type Customization struct {
	Size     enums.ProductSize `json:"size,omitempty"`
	Sugar    int               `json:"sugar,omitempty"`
	Parvarda int               `json:"parvarda,omitempty"`
}

// Normalize clamps negative counts to zero so equality ignores how a zero
// was spelled.
func (c Customization) Normalize() Customization {
	if c.Sugar < 0 {
		c.Sugar = 0
	}
	if c.Parvarda < 0 {
		c.Parvarda = 0
	}
	return c
}

// Key is the canonical serialization used to detect identical lines.
func (c Customization) Key() string {
	buf, _ := json.Marshal(c.Normalize())
	return string(buf)
}

// Equal reports structural equality of two customizations.
func (c Customization) Equal(other Customization) bool {
	return c.Key() == other.Key()
}

// Value stores the customization as JSON.
func (c Customization) Value() (driver.Value, error) {
	return marshalJSONValue(c.Normalize())
}

// Scan decodes a JSON customization column.
func (c *Customization) Scan(value interface{}) error {
	if value == nil {
		*c = Customization{}
		return nil
	}
	var decoded Customization
	if err := scanJSON("customization", value, &decoded); err != nil {
		return err
	}
	*c = decoded
	return nil
}
