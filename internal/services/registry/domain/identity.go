package domain

import (
	"unicode/utf8"

	apperrors "github.com/louisbranch/recordkeep/internal/platform/errors"
)

// Identity is an opaque principal. Two identities are the same principal
// exactly when they compare equal with ==.
type Identity struct {
	value string
}

// ParseIdentity builds an Identity from a host-authenticated principal name.
// The name is kept byte for byte; it must be non-empty UTF-8.
func ParseIdentity(raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, apperrors.New(apperrors.CodeInvalidOperator, "identity is required")
	}
	if !utf8.ValidString(raw) {
		return Identity{}, apperrors.New(apperrors.CodeInvalidOperator, "identity is not valid UTF-8")
	}
	return Identity{value: raw}, nil
}

// MustIdentity is ParseIdentity for literals known to be valid.
func MustIdentity(raw string) Identity {
	identity, err := ParseIdentity(raw)
	if err != nil {
		panic(err)
	}
	return identity
}

// IsZero reports whether the identity was never set.
func (i Identity) IsZero() bool {
	return i.value == ""
}

// String returns the principal name as supplied by the host.
func (i Identity) String() string {
	return i.value
}
