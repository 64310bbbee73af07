package orders

import (
	"fmt"
	"time"

	"github.com/angelmondragon/coffeeshop-backend/pkg/security"
)

const idSuffixLength = 9

// NewOrderID returns order-<unix millis>-<base36 suffix>.
func NewOrderID(now time.Time) (string, error) {
	suffix, err := security.RandomBase36(idSuffixLength)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("order-%d-%s", now.UnixMilli(), suffix), nil
}
