package runtime

import "github.com/vk/vine/internal/graph"

// EventKind names a scheduler event an Engine can report through an
// EventSink. Values match internal/eventstream's EventType strings so
// callers can convert directly rather than switching on each one.
type EventKind string

const (
	EventMachineStarted    EventKind = "machine_started"
	EventMachineQuiesced   EventKind = "machine_quiesced"
	EventMachineSwapped    EventKind = "machine_swapped"
	EventShutdownRequested EventKind = "shutdown_requested"
	EventTaskCompleted     EventKind = "task_completed"
)

// EventSink receives scheduler events as they happen. machine is the
// machine the event concerns; it is the zero graph.MachineID for events
// (such as EventTaskCompleted) that aren't tied to one.
type EventSink func(kind EventKind, machine graph.MachineID)

// WithEventSink attaches an observer that MainLoop calls on machine start,
// quiescence, swap, and shutdown request, and that runTask calls on task
// completion. Wiring it to an
// internal/eventstream.Broadcaster turns those events into websocket
// frames. A nil sink (the default) disables reporting entirely.
func WithEventSink(sink EventSink) Option {
	return func(e *Engine) {
		e.events = sink
	}
}

func (e *Engine) emit(kind EventKind, machine graph.MachineID) {
	if e.events != nil {
		e.events(kind, machine)
	}
}
