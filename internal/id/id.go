// Package id issues request and task identifiers.
package id

import (
	"strings"

	"github.com/google/uuid"
)

func New() string {
	return uuid.NewString()
}

// Valid reports whether an inbound identifier can be reused. Anything
// else is replaced with a fresh id.
func Valid(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > 64 {
		return false
	}
	_, err := uuid.Parse(raw)
	return err == nil
}
