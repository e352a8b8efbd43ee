package utils

import "github.com/google/uuid"

// NewAnonymousID mints the opaque token that identifies an anonymous
// visitor. Clients generate and persist it locally; the server only ever
// treats it as an opaque identity id.
func NewAnonymousID() string {
	return "anon-" + uuid.NewString()
}
