package util

import (
	"strings"

	"github.com/google/uuid"
)

// Identifier kinds. Every id is "<kind>_<uuid v4>".
const (
	KindUser        = "user"
	KindSession     = "session"
	KindInteraction = "interaction"
	KindMessage     = "message"
	KindToken       = "token"
)

func NewID(kind string) string {
	return kind + "_" + uuid.NewString()
}

// IsValidID reports whether id has the given kind prefix followed by a UUID.
func IsValidID(id, kind string) bool {
	rest, ok := strings.CutPrefix(id, kind+"_")
	if !ok {
		return false
	}
	return IsValidUUID(rest)
}
