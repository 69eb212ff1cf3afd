package socketio

import (
	"fmt"
	"strconv"

	"github.com/turdm/turc/engine"
)

// decodeEvent maps one wire payload onto its typed event. Numeric
// fields arrive as float64 from the socket.io JSON decoder; the
// coercions below also accept integer and string forms so the engine
// daemon is free to tighten its serializer later.
func decodeEvent(name string, payload map[string]any) (engine.Event, error) {
	id := asString(payload["id"])
	if id == "" {
		return nil, fmt.Errorf("%s payload has no id", name)
	}

	switch name {
	case evQueue:
		ev := engine.QueueEvent{
			ID:              id,
			URL:             asString(payload["url"]),
			Filename:        asString(payload["filename"]),
			Destination:     asString(payload["destination"]),
			ResumeSupported: asBool(payload["resume_supported"]),
		}
		if n, ok := asInt64(payload["size"]); ok {
			ev.Size = &n
		}
		return ev, nil
	case evStarted:
		return engine.StartedEvent{ID: id}, nil
	case evProgress:
		ev := engine.ProgressEvent{
			ID:       id,
			Speed:    asFloat(payload["speed"]),
			Progress: int(asFloat(payload["progress"])),
		}
		ev.Downloaded, _ = asInt64(payload["downloaded"])
		ev.Total, _ = asInt64(payload["total"])
		ev.Segments = decodeSegments(payload["segments"])
		return ev, nil
	case evComplete:
		return engine.CompleteEvent{ID: id}, nil
	case evFailed:
		msg := asString(payload["error"])
		if msg == "" {
			msg = "download failed"
		}
		return engine.FailedEvent{ID: id, Error: msg}, nil
	case evPaused:
		return engine.PausedEvent{ID: id}, nil
	case evCancelled:
		return engine.CancelledEvent{ID: id}, nil
	}
	return nil, fmt.Errorf("unknown event %q", name)
}

func decodeSegments(v any) []engine.Segment {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	segs := make([]engine.Segment, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		start, _ := asInt64(m["start"])
		end, _ := asInt64(m["end"])
		segs = append(segs, engine.Segment{Start: int(start), End: int(end)})
	}
	if len(segs) == 0 {
		return nil
	}
	return segs
}

// firstMap extracts the payload object from a handler's variadic args.
func firstMap(data []any) map[string]any {
	if len(data) == 0 {
		return nil
	}
	if m, ok := data[0].(map[string]any); ok {
		return m
	}
	return nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true"
	case float64:
		return b != 0
	}
	return false
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return parsed
	}
	return 0
}
