package xid

import (
	"github.com/google/uuid"
)

// New returns a random identifier such as "ord-<uuid>".
func New(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
