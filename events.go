package tcansim

import "time"

// EventType is the category of a simulator event.
type EventType uint8

const (
	EventModeChange EventType = iota
	EventFaultDetected
	EventWakeUp
	EventPinChange
	EventFlagChange
	eventTypeCount = 5
)

func (e EventType) String() string {
	switch e {
	case EventModeChange:
		return "MODE_CHANGE"
	case EventFaultDetected:
		return "FAULT_DETECTED"
	case EventWakeUp:
		return "WAKE_UP"
	case EventPinChange:
		return "PIN_CHANGE"
	case EventFlagChange:
		return "FLAG_CHANGE"
	}
	return "UNKNOWN"
}

// Event describes a single observable change during a step. Only the fields
// relevant to the event type are populated.
type Event struct {
	Type      EventType
	Timestamp time.Duration

	// EventModeChange
	OldMode OperatingMode
	NewMode OperatingMode

	// EventFaultDetected, EventFlagChange
	Flag  Flag
	IsSet bool

	// EventWakeUp
	SourceLocal bool

	// EventPinChange
	Pin        PinName
	OldState   PinState
	NewState   PinState
	OldVoltage float64
	NewVoltage float64
}

// EventCallback receives simulator events for a registered category.
type EventCallback func(Event)

// CallbackID identifies a single registration within its category.
type CallbackID int

type callbackEntry struct {
	id CallbackID
	cb EventCallback
}

// eventRegistry holds callback registrations per category. Entries are kept
// in registration order and removed by identity. Registrations survive
// simulator reset and snapshot restore.
type eventRegistry struct {
	entries [eventTypeCount][]callbackEntry
	nextID  CallbackID
}

func (r *eventRegistry) register(t EventType, cb EventCallback) (CallbackID, error) {
	if int(t) >= eventTypeCount {
		return 0, ErrInvalidEventType
	}
	if cb == nil {
		return 0, ErrNilCallback
	}
	r.nextID++
	id := r.nextID
	r.entries[t] = append(r.entries[t], callbackEntry{id: id, cb: cb})
	return id, nil
}

func (r *eventRegistry) unregister(t EventType, id CallbackID) error {
	if int(t) >= eventTypeCount {
		return ErrInvalidEventType
	}
	list := r.entries[t]
	for i, entry := range list {
		if entry.id == id {
			r.entries[t] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrUnknownCallback
}

func (r *eventRegistry) fire(ev Event) {
	if int(ev.Type) >= eventTypeCount {
		return
	}
	for _, entry := range r.entries[ev.Type] {
		entry.cb(ev)
	}
}
