package rollcache

import "encoding/json"

// Message is one inbound unit from a Source: either a value the source
// already decoded, or raw JSON text the collection decodes before routing.
type Message struct {
	structured any
	raw        []byte
	isRaw      bool
}

// Structured wraps an already-decoded value.
func Structured(v any) Message { return Message{structured: v} }

// Raw wraps undecoded JSON text. Undecodable messages are dropped at the
// collection boundary; they never reach the router.
func Raw(b []byte) Message { return Message{raw: b, isRaw: true} }

// resolve returns the structured form of the message, decoding raw JSON if
// needed. It is pure: the message itself is never mutated.
func (m Message) resolve() (any, error) {
	if !m.isRaw {
		return m.structured, nil
	}
	var v any
	if err := json.Unmarshal(m.raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Event is one emission from a Source: a single message or a batch.
// The whole event is dropped when a refresh cycle is in flight.
type Event struct {
	Messages []Message
}

// Source feeds events into a Collection. Implementations own their transport
// (queue consumer, socket, channel fan-in) and should close the events
// channel when they stop producing.
type Source interface {
	Events() <-chan Event
}
