package persistence

import (
	"strings"

	"github.com/google/uuid"
)

// NewDiscountCode returns a ten character upper-case code derived from a random UUID.
func NewDiscountCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}
