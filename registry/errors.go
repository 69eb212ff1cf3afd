package registry

import (
	"errors"
	"fmt"
)

// ErrUnknownDownload is returned by commands referencing an id with no
// row in the table.
var ErrUnknownDownload = errors.New("registry: unknown download")

// ErrHistoryDisabled is returned by history operations when no history
// store is attached.
var ErrHistoryDisabled = errors.New("registry: history disabled")

// CommandError wraps an engine command failure with the operation and
// target so surfaces can render it inline.
type CommandError struct {
	Op  string
	ID  string
	Err error
}

func (e *CommandError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("registry: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("registry: %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }
