package resource

// Handle is an opaque reference to a value in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Value is a host wrapper around a payload in foreign memory.
// Both *roc.Str and *roc.List satisfy it.
type Value interface {
	Release() error
	Footprint() uint64
	TypeName() string
}

// EventType identifies a table lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventReleased
	EventTaken
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventReleased:
		return "released"
	case EventTaken:
		return "taken"
	default:
		return "unknown"
	}
}

// Event describes a value entering or leaving a table. Err is the
// release error for EventReleased.
type Event struct {
	Value    Value
	Err      error
	TypeName string
	Handle   Handle
	Type     EventType
}

// Observer receives notifications about table events.
type Observer interface {
	OnResourceEvent(Event)
}
