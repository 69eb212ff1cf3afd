package settings

import "errors"

// ErrUnknownKey is returned by Set for a dotted path outside the schema.
var ErrUnknownKey = errors.New("settings: unknown setting key")

// ErrInvalidValue is returned by Set when the value does not fit the
// field's type (for example a string written to thread.total_connections).
var ErrInvalidValue = errors.New("settings: invalid value")
