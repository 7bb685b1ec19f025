package types

// Event is a typed, attributed occurrence emitted while handling a request.
type Event struct {
	Type       string
	Attributes []EventAttribute
}

// EventAttribute is a single key/value pair of an Event. Index marks the
// attribute for indexing by the consensus engine.
type EventAttribute struct {
	Key   string
	Value string
	Index bool
}

// NewEvent returns an event with indexed attributes built from alternating
// key/value strings.
func NewEvent(typ string, kv ...string) Event {
	ev := Event{Type: typ}
	for i := 0; i+1 < len(kv); i += 2 {
		ev.Attributes = append(ev.Attributes, EventAttribute{Key: kv[i], Value: kv[i+1], Index: true})
	}
	return ev
}

// Attribute returns the value of the first attribute with the given key.
func (e Event) Attribute(key string) (string, bool) {
	for _, a := range e.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}
