package model

import (
	"fmt"
	"strings"
)

// IdentityKind discriminates the party on the user side of a session. Exactly
// one kind applies to an identity; there is no "both customer and guest".
type IdentityKind string

const (
	IdentityGuest     IdentityKind = "guest"
	IdentityCustomer  IdentityKind = "customer"
	IdentityAnonymous IdentityKind = "anonymous"
)

func (k IdentityKind) Valid() bool {
	switch k {
	case IdentityGuest, IdentityCustomer, IdentityAnonymous:
		return true
	}
	return false
}

// Authenticated reports whether the identity came through the auth layer and
// therefore has a push channel. Anonymous visitors poll instead.
func (k IdentityKind) Authenticated() bool {
	return k == IdentityGuest || k == IdentityCustomer
}

// Identity is a tagged variant: the kind selects which id space ID belongs to.
type Identity struct {
	Kind IdentityKind
	ID   string
}

func GuestIdentity(id string) Identity {
	return Identity{Kind: IdentityGuest, ID: id}
}

func CustomerIdentity(id string) Identity {
	return Identity{Kind: IdentityCustomer, ID: id}
}

func AnonymousIdentity(token string) Identity {
	return Identity{Kind: IdentityAnonymous, ID: token}
}

func (i Identity) Validate() error {
	if !i.Kind.Valid() {
		return fmt.Errorf("identity: unknown kind %q", i.Kind)
	}
	if strings.TrimSpace(i.ID) == "" {
		return fmt.Errorf("identity: empty id for kind %q", i.Kind)
	}
	return nil
}

// Key is a stable map/cache key for the identity.
func (i Identity) Key() string {
	return string(i.Kind) + "#" + i.ID
}
