package checkout

import (
	"strings"

	"github.com/google/uuid"
)

const OrderNumberPrefix = "ORD-"

// NewOrderNumber returns ORD- followed by ten upper-case hex characters.
func NewOrderNumber() string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	return OrderNumberPrefix + strings.ToUpper(token[:10])
}
