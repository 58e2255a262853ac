package core

import (
	"encoding/base32"
	"strings"

	"github.com/google/uuid"
)

// IDKind selects the prefix of a generated identifier.
type IDKind string

const (
	IDKindCollection      IDKind = "col"
	IDKindDocument        IDKind = "doc"
	IDKindSchema          IDKind = "sch"
	IDKindFieldConstraint IDKind = "fc"
	IDKindIndexedField    IDKind = "if"
	IDKindIndex           IDKind = "idx"
)

// idEncoding renders 128-bit randomness with a lowercase URL-safe alphabet.
var idEncoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// NewID generates an opaque prefixed identifier from 128 bits of
// randomness. Uniqueness is probabilistic; there is no coordination with
// the backend.
func NewID(kind IDKind) string {
	u := uuid.New()
	return string(kind) + "_" + idEncoding.EncodeToString(u[:])
}

// IDMatchesKind reports whether id carries the prefix of the given kind.
func IDMatchesKind(id string, kind IDKind) bool {
	return strings.HasPrefix(id, string(kind)+"_")
}
