// Package idgen provides pluggable ID generation for turc.
//
// The engine assigns download IDs as UUIDv7 strings; everything turc mints
// itself (command correlation IDs, history purge batches) goes through a
// Generator so the strategy stays a startup-time decision.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator producing RFC 9562 UUID v7 strings,
// the same scheme the engine uses for download IDs.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// ULID returns a Generator producing ULID strings. Lexicographically
// sortable, which keeps correlated command/response log lines in issue
// order when grepping.
func ULID() Generator {
	return func() string {
		return ulid.Make().String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is the turc default: UUIDv7.
var Default Generator = UUIDv7()

// New produces an ID using the Default generator.
func New() string {
	return Default()
}

// Parse validates a UUID string and returns its canonical form.
// Used on IDs arriving from CLI arguments before they reach the engine.
func Parse(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid download id: %w", err)
	}
	return u.String(), nil
}
