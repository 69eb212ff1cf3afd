package notify

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
)

// JSONL writes one JSON line per notification to an io.Writer. This is
// the integration point for desktop shells: tail the daemon's
// notification file and raise native toasts.
type JSONL struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONL creates a JSONL sink. If w is nil, os.Stdout is used.
func NewJSONL(w io.Writer) *JSONL {
	if w == nil {
		w = os.Stdout
	}
	return &JSONL{enc: json.NewEncoder(w)}
}

func (s *JSONL) Send(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(n)
}

func (s *JSONL) Close() error { return nil }
